package module

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// WarningKind categorizes a non-fatal preflight finding.
type WarningKind string

const (
	WarningKindRequirement   WarningKind = "requirement"
	WarningKindSecurity      WarningKind = "security"
	WarningKindCompatibility WarningKind = "compatibility"
	WarningKindDependency    WarningKind = "dependency"
)

// Warning is a non-fatal preflight or pipeline finding surfaced as an event.
type Warning struct {
	Kind     WarningKind
	ModuleID string
	Detail   string
}

// suspiciousPatterns are substrings scanned for in a module's serialized
// package manifest. Matches only ever downgrade to a security warning.
var suspiciousPatterns = []string{
	"eval(",
	"new Function(",
	"child_process",
	"spawn(",
	"execSync(",
	"process.env",
}

const defaultManifestFetchTimeout = 5 * time.Second

// RequirementValidator evaluates a module descriptor's system requirements,
// security constraints, and transport/capability compatibility against the
// host and the active global settings. Validation is side-effect free: it
// spawns no subprocesses beyond capability probes and writes nothing.
type RequirementValidator struct {
	probe      CapabilityProbe
	settings   GlobalSettings
	httpClient *http.Client
}

// RequirementValidatorOption configures a RequirementValidator.
type RequirementValidatorOption func(*RequirementValidator)

// WithManifestHTTPClient sets the HTTP client used for the best-effort
// manifest fetch of the security heuristic.
func WithManifestHTTPClient(client *http.Client) RequirementValidatorOption {
	return func(v *RequirementValidator) {
		if client != nil {
			v.httpClient = client
		}
	}
}

// NewRequirementValidator creates a new RequirementValidator.
func NewRequirementValidator(probe CapabilityProbe, settings GlobalSettings, opts ...RequirementValidatorOption) *RequirementValidator {
	v := &RequirementValidator{
		probe:      probe,
		settings:   settings,
		httpClient: &http.Client{Timeout: defaultManifestFetchTimeout},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the full preflight: security mode, system requirements, and
// compatibility checks. It returns the collected warnings and the first fatal
// error. A fatal error means nothing side-effecting may run for this module.
func (v *RequirementValidator) Validate(ctx context.Context, desc *ModuleDescriptor) ([]Warning, error) {
	// Strict mode rejects unverified modules before any further check runs.
	if v.settings.SecurityMode == SecurityModeStrict && !desc.Metadata.Verified {
		return nil, NewSecurityViolationError(desc.ID,
			fmt.Sprintf("module %s is not verified and security mode is strict", desc.ID))
	}

	var warnings []Warning

	for _, req := range desc.Installation.SystemRequirements {
		if err := v.checkRequirement(ctx, req); err != nil {
			if req.Optional {
				warnings = append(warnings, Warning{
					Kind:     WarningKindRequirement,
					ModuleID: desc.ID,
					Detail:   fmt.Sprintf("optional requirement %q not satisfied: %v", req.Requirement, err),
				})
				continue
			}
			return warnings, NewRequirementUnmetError(desc.ID, req.Requirement, err)
		}
	}

	warnings = append(warnings, v.scanManifest(ctx, desc)...)

	compatWarnings, err := v.checkCompatibility(desc)
	warnings = append(warnings, compatWarnings...)
	if err != nil {
		return warnings, err
	}

	return warnings, nil
}

// checkRequirement resolves a single system requirement via the capability probe.
func (v *RequirementValidator) checkRequirement(ctx context.Context, req SystemRequirement) error {
	switch req.Type {
	case RequirementTypeOS:
		return v.checkOS(req.Requirement)
	case RequirementTypeRuntime:
		return v.checkRuntime(ctx, req.Requirement)
	case RequirementTypeHardware:
		return v.checkHardware(req.Requirement)
	case RequirementTypeAPI:
		// API requirements describe remote contracts the module needs once
		// running; they cannot be resolved host-side and pass preflight.
		return nil
	default:
		return fmt.Errorf("unknown requirement type: %s", req.Type)
	}
}

// checkOS matches the host OS against a comma-separated allow-list or "any".
func (v *RequirementValidator) checkOS(spec string) error {
	if strings.EqualFold(strings.TrimSpace(spec), "any") {
		return nil
	}
	host := v.probe.OSName()
	for _, allowed := range strings.Split(spec, ",") {
		if strings.EqualFold(strings.TrimSpace(allowed), host) {
			return nil
		}
	}
	return fmt.Errorf("host os %s is not in allow-list %q", host, spec)
}

// checkRuntime splits a spec like "node16" into tool and minimum version,
// probes the tool, and compares versions component-wise.
func (v *RequirementValidator) checkRuntime(ctx context.Context, spec string) error {
	tool, minVersion := splitRuntimeSpec(spec)
	if tool == "" {
		return fmt.Errorf("invalid runtime requirement %q", spec)
	}

	output, err := v.probe.ToolVersion(ctx, tool)
	if err != nil {
		return err
	}
	if minVersion == "" {
		return nil
	}

	actual := extractVersion(output)
	if actual == "" {
		return fmt.Errorf("could not determine %s version from %q", tool, output)
	}

	ok, err := compareVersions(actual, minVersion)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s version %s is below required %s", tool, actual, minVersion)
	}
	return nil
}

// checkHardware handles "ram:<gb>" specs against total host memory.
func (v *RequirementValidator) checkHardware(spec string) error {
	kind, value, found := strings.Cut(spec, ":")
	if !found {
		return fmt.Errorf("invalid hardware requirement %q", spec)
	}
	switch strings.TrimSpace(kind) {
	case "ram":
		requiredGB, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("invalid ram requirement %q: %w", value, err)
		}
		totalGB, err := v.probe.TotalMemoryGB()
		if err != nil {
			return err
		}
		if totalGB < requiredGB {
			return fmt.Errorf("host has %.1fGB memory, %0.1fGB required", totalGB, requiredGB)
		}
		return nil
	default:
		return fmt.Errorf("unknown hardware requirement %q", kind)
	}
}

// checkCompatibility evaluates transport and capability conflicts.
// Transport mismatch is a warning; an audio capability under strict security
// mode is a hard failure.
func (v *RequirementValidator) checkCompatibility(desc *ModuleDescriptor) ([]Warning, error) {
	var warnings []Warning

	if !desc.SupportsTransport(v.settings.DefaultTransport) {
		warnings = append(warnings, Warning{
			Kind:     WarningKindCompatibility,
			ModuleID: desc.ID,
			Detail: fmt.Sprintf("module does not support default transport %s",
				v.settings.DefaultTransport),
		})
	}

	if v.settings.SecurityMode == SecurityModeStrict {
		for _, cap := range desc.Capabilities {
			if strings.Contains(strings.ToLower(cap), "audio") {
				return warnings, NewCapabilityDeniedError(desc.ID, cap)
			}
		}
	}

	return warnings, nil
}

// scanManifest fetches the module's package manifest best-effort and scans its
// serialized form for suspicious patterns. Fetch failures are silently
// ignored; matches only emit warnings, never abort.
func (v *RequirementValidator) scanManifest(ctx context.Context, desc *ModuleDescriptor) []Warning {
	url := desc.Metadata.ManifestURL
	if url == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}

	serialized := string(body)
	if decoded := reserialize(body); decoded != "" {
		serialized = decoded
	}

	var warnings []Warning
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(serialized, pattern) {
			warnings = append(warnings, Warning{
				Kind:     WarningKindSecurity,
				ModuleID: desc.ID,
				Detail:   fmt.Sprintf("manifest contains suspicious pattern %q", pattern),
			})
		}
	}
	return warnings
}

// reserialize normalizes a JSON manifest body so pattern scanning is not
// defeated by formatting. Returns "" if the body is not valid JSON.
func reserialize(body []byte) string {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ""
	}
	out, err := json.Marshal(decoded)
	if err != nil {
		return ""
	}
	return string(out)
}

// splitRuntimeSpec separates a runtime spec like "node16" or "python3.10"
// into the tool name and its minimum version. The version may be absent.
func splitRuntimeSpec(spec string) (tool, minVersion string) {
	spec = strings.TrimSpace(spec)
	cut := len(spec)
	for i := 0; i < len(spec); i++ {
		c := spec[i]
		if c >= '0' && c <= '9' {
			cut = i
			break
		}
	}
	return spec[:cut], spec[cut:]
}
