package module

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/modman-dev/modman/internal/types"
)

// MethodType represents the mechanism used to fetch and prepare a module.
type MethodType string

const (
	MethodTypeNPM    MethodType = "npm"
	MethodTypeNPX    MethodType = "npx"
	MethodTypePython MethodType = "python"
	MethodTypeDocker MethodType = "docker"
	MethodTypeBinary MethodType = "binary"
	MethodTypeCustom MethodType = "custom"
)

// String returns the string representation of the MethodType.
func (m MethodType) String() string {
	return string(m)
}

// IsValid checks if the MethodType is a valid enum value.
func (m MethodType) IsValid() bool {
	switch m {
	case MethodTypeNPM, MethodTypeNPX, MethodTypePython, MethodTypeDocker,
		MethodTypeBinary, MethodTypeCustom:
		return true
	default:
		return false
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (m MethodType) MarshalJSON() ([]byte, error) {
	if !m.IsValid() {
		return nil, fmt.Errorf("invalid method type: %s", m)
	}
	return json.Marshal(string(m))
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (m *MethodType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseMethodType(s)
	if err != nil {
		return err
	}

	*m = parsed
	return nil
}

// ParseMethodType parses a string into a MethodType, returning an error if invalid.
func ParseMethodType(s string) (MethodType, error) {
	m := MethodType(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid method type: %s", s)
	}
	return m, nil
}

// MethodPreferenceOrder returns method types in fixed selection preference order.
func MethodPreferenceOrder() []MethodType {
	return []MethodType{
		MethodTypeNPM,
		MethodTypeNPX,
		MethodTypePython,
		MethodTypeDocker,
		MethodTypeBinary,
		MethodTypeCustom,
	}
}

// RequirementType represents the category of a system requirement.
type RequirementType string

const (
	RequirementTypeOS       RequirementType = "os"
	RequirementTypeRuntime  RequirementType = "runtime"
	RequirementTypeHardware RequirementType = "hardware"
	RequirementTypeAPI      RequirementType = "api"
)

// String returns the string representation of the RequirementType.
func (r RequirementType) String() string {
	return string(r)
}

// IsValid checks if the RequirementType is a valid enum value.
func (r RequirementType) IsValid() bool {
	switch r {
	case RequirementTypeOS, RequirementTypeRuntime, RequirementTypeHardware, RequirementTypeAPI:
		return true
	default:
		return false
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (r *RequirementType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed := RequirementType(s)
	if !parsed.IsValid() {
		return fmt.Errorf("invalid requirement type: %s", s)
	}

	*r = parsed
	return nil
}

// TransportType represents the wire transport a module speaks once running.
type TransportType string

const (
	TransportStdio TransportType = "stdio"
	TransportHTTP  TransportType = "http"
	TransportSSE   TransportType = "sse"
)

// String returns the string representation of the TransportType.
func (t TransportType) String() string {
	return string(t)
}

// IsValid checks if the TransportType is a valid enum value.
func (t TransportType) IsValid() bool {
	switch t {
	case TransportStdio, TransportHTTP, TransportSSE:
		return true
	default:
		return false
	}
}

// ParseTransportType parses a string into a TransportType, returning an error if invalid.
func ParseTransportType(s string) (TransportType, error) {
	t := TransportType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid transport type: %s", s)
	}
	return t, nil
}

// SecurityMode controls how strictly unverified modules are treated.
type SecurityMode string

const (
	SecurityModeStrict   SecurityMode = "strict"
	SecurityModeBalanced SecurityMode = "balanced"
)

// String returns the string representation of the SecurityMode.
func (s SecurityMode) String() string {
	return string(s)
}

// IsValid checks if the SecurityMode is a valid enum value.
func (s SecurityMode) IsValid() bool {
	return s == SecurityModeStrict || s == SecurityModeBalanced
}

// ParseSecurityMode parses a string into a SecurityMode, returning an error if invalid.
func ParseSecurityMode(s string) (SecurityMode, error) {
	m := SecurityMode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid security mode: %s", s)
	}
	return m, nil
}

// HealthStatus represents the verified health of an installed instance.
type HealthStatus string

const (
	HealthStatusUnknown   HealthStatus = "unknown"
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// String returns the string representation of the HealthStatus.
func (h HealthStatus) String() string {
	return string(h)
}

// IsValid checks if the HealthStatus is a valid enum value.
func (h HealthStatus) IsValid() bool {
	switch h {
	case HealthStatusUnknown, HealthStatusHealthy, HealthStatusUnhealthy:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once the status has been resolved to healthy or unhealthy.
func (h HealthStatus) IsTerminal() bool {
	return h == HealthStatusHealthy || h == HealthStatusUnhealthy
}

// CanTransitionTo reports whether moving to the target status is allowed.
// Health only moves forward: unknown may resolve to healthy or unhealthy,
// resolved statuses never revert.
func (h HealthStatus) CanTransitionTo(target HealthStatus) bool {
	if !target.IsValid() || target == HealthStatusUnknown {
		return false
	}
	return h == HealthStatusUnknown
}

// InstallationMethod describes one concrete way to install a module.
type InstallationMethod struct {
	Type    MethodType        `json:"type"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Validate validates the InstallationMethod fields.
func (m *InstallationMethod) Validate() error {
	if !m.Type.IsValid() {
		return fmt.Errorf("invalid method type: %s", m.Type)
	}
	if m.Command == "" {
		return fmt.Errorf("method command is required")
	}
	return nil
}

// SystemRequirement describes one host precondition for a module.
// The Requirement string is interpreted per type: a comma-separated OS
// allow-list (or "any") for os, a tool name with a trailing minimum version
// for runtime (e.g. "node16"), and "ram:<gb>" for hardware.
type SystemRequirement struct {
	Type        RequirementType `json:"type"`
	Requirement string          `json:"requirement"`
	Optional    bool            `json:"optional,omitempty"`
}

// EnvVarValidation constrains the resolved value of an environment variable.
type EnvVarValidation struct {
	Pattern   string   `json:"pattern,omitempty"`
	MinLength int      `json:"minLength,omitempty"`
	MaxLength int      `json:"maxLength,omitempty"`
	Allowed   []string `json:"allowed,omitempty"`
}

// EnvVarSpec declares an environment variable contract for a module.
// Sensitive variables are resolved for runtime use but never persisted.
type EnvVarSpec struct {
	Required   bool              `json:"required,omitempty"`
	Default    string            `json:"default,omitempty"`
	Sensitive  bool              `json:"sensitive,omitempty"`
	Validation *EnvVarValidation `json:"validation,omitempty"`
}

// ModuleMetadata carries descriptive and trust metadata for a module.
type ModuleMetadata struct {
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	Verified    bool   `json:"verified"`
	ManifestURL string `json:"manifestUrl,omitempty"`
}

// InstallationSpec groups everything needed to install a module.
type InstallationSpec struct {
	Methods            []InstallationMethod `json:"methods"`
	Dependencies       map[string]string    `json:"dependencies,omitempty"`
	DevDependencies    map[string]string    `json:"devDependencies,omitempty"`
	SystemRequirements []SystemRequirement  `json:"systemRequirements,omitempty"`
}

// ConfigurationSpec declares a module's configuration contract.
// Examples holds the default configuration overlaid by caller-supplied values.
type ConfigurationSpec struct {
	Required []string              `json:"required,omitempty"`
	Env      map[string]EnvVarSpec `json:"env,omitempty"`
	Examples map[string]any        `json:"examples,omitempty"`
}

// ModuleDescriptor describes an installable capability provider.
// Descriptors are supplied by an external catalog and treated as immutable.
type ModuleDescriptor struct {
	ID            string            `json:"id"`
	Version       string            `json:"version"`
	Transports    []TransportType   `json:"transport,omitempty"`
	Capabilities  []string          `json:"capabilities,omitempty"`
	Metadata      ModuleMetadata    `json:"metadata"`
	Installation  InstallationSpec  `json:"installation"`
	Configuration ConfigurationSpec `json:"configuration"`
}

// Validate validates the ModuleDescriptor fields.
func (d *ModuleDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("module id is required")
	}
	if d.Version == "" {
		return fmt.Errorf("module version is required")
	}
	if len(d.Installation.Methods) == 0 {
		return fmt.Errorf("module %s declares no installation methods", d.ID)
	}
	for i := range d.Installation.Methods {
		if err := d.Installation.Methods[i].Validate(); err != nil {
			return fmt.Errorf("method %d: %w", i, err)
		}
	}
	return nil
}

// SupportsTransport reports whether the descriptor declares the given transport.
// A descriptor with no declared transports is treated as supporting all of them.
func (d *ModuleDescriptor) SupportsTransport(t TransportType) bool {
	if len(d.Transports) == 0 {
		return true
	}
	for _, declared := range d.Transports {
		if declared == t {
			return true
		}
	}
	return false
}

// HasCapability reports whether the descriptor declares the named capability.
func (d *ModuleDescriptor) HasCapability(name string) bool {
	for _, c := range d.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// GlobalSettings is process-wide installer configuration supplied at
// orchestrator construction.
type GlobalSettings struct {
	DefaultTransport TransportType `json:"defaultTransport" yaml:"default_transport"`
	Timeout          time.Duration `json:"timeout" yaml:"-"`
	RetryAttempts    int           `json:"retryAttempts" yaml:"retry_attempts"`
	SecurityMode     SecurityMode  `json:"securityMode" yaml:"security_mode"`
	AutoUpdate       bool          `json:"autoUpdate" yaml:"auto_update"`
	TelemetryEnabled bool          `json:"telemetryEnabled" yaml:"telemetry_enabled"`
}

// Validate validates the GlobalSettings fields.
func (s *GlobalSettings) Validate() error {
	if !s.DefaultTransport.IsValid() {
		return fmt.Errorf("invalid default transport: %s", s.DefaultTransport)
	}
	if !s.SecurityMode.IsValid() {
		return fmt.Errorf("invalid security mode: %s", s.SecurityMode)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	if s.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative, got %d", s.RetryAttempts)
	}
	return nil
}

// ModuleInstance is the persisted record of one installed, configured module.
type ModuleInstance struct {
	InstanceID    types.ID       `json:"instanceId"`
	ModuleID      string         `json:"moduleId"`
	Enabled       bool           `json:"enabled"`
	Configuration map[string]any `json:"configuration"`
	AutoStart     bool           `json:"autoStart"`
	Priority      int            `json:"priority"`
	InstalledAt   time.Time      `json:"installedAt"`
	Version       string         `json:"version"`
	HealthStatus  HealthStatus   `json:"healthStatus"`
}

// Validate validates the ModuleInstance fields.
func (i *ModuleInstance) Validate() error {
	if err := i.InstanceID.Validate(); err != nil {
		return fmt.Errorf("instance id: %w", err)
	}
	if i.ModuleID == "" {
		return fmt.Errorf("module id is required")
	}
	if i.Version == "" {
		return fmt.Errorf("version is required")
	}
	if !i.HealthStatus.IsValid() {
		return fmt.Errorf("invalid health status: %s", i.HealthStatus)
	}
	if i.InstalledAt.IsZero() {
		return fmt.Errorf("installedAt is required")
	}
	return nil
}

// InstallationResult summarizes one installation attempt.
type InstallationResult struct {
	Success       bool                `json:"success"`
	ModuleID      string              `json:"moduleId"`
	Method        *InstallationMethod `json:"method,omitempty"`
	Duration      time.Duration       `json:"duration"`
	InstalledAt   time.Time           `json:"installedAt,omitempty"`
	Configuration map[string]any      `json:"configuration,omitempty"`
	Error         string              `json:"error,omitempty"`
}
