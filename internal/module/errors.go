package module

import (
	"errors"
	"fmt"
)

// Sentinel errors for registry guard checks. These can be matched with
// errors.Is() through the typed errors that wrap them.
var (
	// ErrAlreadyInstalled is returned when an instance already exists for a module.
	ErrAlreadyInstalled = errors.New("module already installed")

	// ErrAlreadyInstalling is returned when an installation is already in flight.
	ErrAlreadyInstalling = errors.New("module already being installed")

	// ErrInstallInProgress is returned when an operation conflicts with a
	// concurrent installation of the same module.
	ErrInstallInProgress = errors.New("installation in progress")

	// ErrInstanceNotFound is returned when no instance exists for a module.
	ErrInstanceNotFound = errors.New("module instance not found")
)

// ErrorCode represents specific error codes for installation operations.
type ErrorCode string

const (
	ErrCodeMethodFailed       ErrorCode = "METHOD_FAILED"
	ErrCodeNoCompatibleMethod ErrorCode = "NO_COMPATIBLE_METHOD"
	ErrCodeDependencyFailed   ErrorCode = "DEPENDENCY_FAILED"
	ErrCodeExecutionFailed    ErrorCode = "EXECUTION_FAILED"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodePersistFailed      ErrorCode = "PERSIST_FAILED"
	ErrCodeGuardConflict      ErrorCode = "GUARD_CONFLICT"
	ErrCodeVerifyFailed       ErrorCode = "VERIFY_FAILED"

	ErrCodeMissingKey     ErrorCode = "MISSING_REQUIRED_KEY"
	ErrCodeMissingEnvVar  ErrorCode = "MISSING_ENV_VAR"
	ErrCodeInvalidEnvVar  ErrorCode = "INVALID_ENV_VAR"
	ErrCodeConfigConflict ErrorCode = "CONFIG_CONFLICT"

	ErrCodeRequirementUnmet  ErrorCode = "REQUIREMENT_UNMET"
	ErrCodeSecurityViolation ErrorCode = "SECURITY_VIOLATION"
	ErrCodeCapabilityDenied  ErrorCode = "CAPABILITY_DENIED"
)

// InstallationError is a generic installation phase failure. It carries the
// module id and the installation method in play when the failure occurred.
type InstallationError struct {
	Code     ErrorCode
	ModuleID string
	Method   *InstallationMethod
	Message  string
	Cause    error
	Context  map[string]any
}

// Error implements the error interface.
// Format: "[CODE] module=<id> method=<type> message: cause".
func (e *InstallationError) Error() string {
	msg := fmt.Sprintf("[%s]", e.Code)
	if e.ModuleID != "" {
		msg += fmt.Sprintf(" module=%s", e.ModuleID)
	}
	if e.Method != nil {
		msg += fmt.Sprintf(" method=%s", e.Method.Type)
	}
	msg += fmt.Sprintf(" %s", e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for error unwrapping chains.
func (e *InstallationError) Unwrap() error {
	return e.Cause
}

// Is matches other InstallationErrors by code.
func (e *InstallationError) Is(target error) bool {
	var instErr *InstallationError
	if errors.As(target, &instErr) {
		return e.Code == instErr.Code
	}
	return false
}

// WithContext adds debugging context to the error, returning it for chaining.
func (e *InstallationError) WithContext(key string, value any) *InstallationError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithMethod records the installation method in play, returning the error for chaining.
func (e *InstallationError) WithMethod(method *InstallationMethod) *InstallationError {
	e.Method = method
	return e
}

// NewInstallationError creates a new InstallationError.
func NewInstallationError(code ErrorCode, moduleID, message string) *InstallationError {
	return &InstallationError{
		Code:     code,
		ModuleID: moduleID,
		Message:  message,
		Context:  make(map[string]any),
	}
}

// WrapInstallationError creates an InstallationError wrapping an existing error.
func WrapInstallationError(code ErrorCode, moduleID, message string, cause error) *InstallationError {
	return &InstallationError{
		Code:     code,
		ModuleID: moduleID,
		Message:  message,
		Cause:    cause,
		Context:  make(map[string]any),
	}
}

// NewNoCompatibleMethodError is returned when no declared installation method
// probes available on the host.
func NewNoCompatibleMethodError(moduleID string) *InstallationError {
	return NewInstallationError(ErrCodeNoCompatibleMethod, moduleID,
		fmt.Sprintf("no compatible installation method for module %s", moduleID))
}

// ConfigurationError is a missing or invalid required configuration key or
// environment variable. Key carries the specific key/variable name.
type ConfigurationError struct {
	Code     ErrorCode
	ModuleID string
	Key      string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("[%s]", e.Code)
	if e.ModuleID != "" {
		msg += fmt.Sprintf(" module=%s", e.ModuleID)
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" key=%s", e.Key)
	}
	msg += fmt.Sprintf(" %s", e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for error unwrapping chains.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// Is matches other ConfigurationErrors by code.
func (e *ConfigurationError) Is(target error) bool {
	var cfgErr *ConfigurationError
	if errors.As(target, &cfgErr) {
		return e.Code == cfgErr.Code
	}
	return false
}

// NewMissingKeyError creates an error for a required configuration key that is
// absent after merging defaults and caller overrides.
func NewMissingKeyError(moduleID, key string) *ConfigurationError {
	return &ConfigurationError{
		Code:     ErrCodeMissingKey,
		ModuleID: moduleID,
		Key:      key,
		Message:  fmt.Sprintf("required configuration key %q is missing", key),
	}
}

// NewMissingEnvVarError creates an error for a required environment variable
// with no process value and no default.
func NewMissingEnvVarError(moduleID, name string) *ConfigurationError {
	return &ConfigurationError{
		Code:     ErrCodeMissingEnvVar,
		ModuleID: moduleID,
		Key:      name,
		Message:  fmt.Sprintf("required environment variable %s is not set", name),
	}
}

// NewInvalidEnvVarError creates an error for an environment variable whose
// resolved value violates its validation constraints.
func NewInvalidEnvVarError(moduleID, name, reason string) *ConfigurationError {
	return &ConfigurationError{
		Code:     ErrCodeInvalidEnvVar,
		ModuleID: moduleID,
		Key:      name,
		Message:  fmt.Sprintf("environment variable %s is invalid: %s", name, reason),
	}
}

// CompatibilityError is a system requirement, security mode, or capability
// mismatch. Requirement carries the failing requirement name.
type CompatibilityError struct {
	Code        ErrorCode
	ModuleID    string
	Requirement string
	Message     string
	Cause       error
}

// Error implements the error interface.
func (e *CompatibilityError) Error() string {
	msg := fmt.Sprintf("[%s]", e.Code)
	if e.ModuleID != "" {
		msg += fmt.Sprintf(" module=%s", e.ModuleID)
	}
	if e.Requirement != "" {
		msg += fmt.Sprintf(" requirement=%s", e.Requirement)
	}
	msg += fmt.Sprintf(" %s", e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for error unwrapping chains.
func (e *CompatibilityError) Unwrap() error {
	return e.Cause
}

// Is matches other CompatibilityErrors by code.
func (e *CompatibilityError) Is(target error) bool {
	var compatErr *CompatibilityError
	if errors.As(target, &compatErr) {
		return e.Code == compatErr.Code
	}
	return false
}

// NewRequirementUnmetError creates an error for a failed non-optional system requirement.
func NewRequirementUnmetError(moduleID, requirement string, cause error) *CompatibilityError {
	return &CompatibilityError{
		Code:        ErrCodeRequirementUnmet,
		ModuleID:    moduleID,
		Requirement: requirement,
		Message:     fmt.Sprintf("system requirement %q not satisfied", requirement),
		Cause:       cause,
	}
}

// NewSecurityViolationError creates an error for a module rejected by the
// strict security mode.
func NewSecurityViolationError(moduleID, reason string) *CompatibilityError {
	return &CompatibilityError{
		Code:        ErrCodeSecurityViolation,
		ModuleID:    moduleID,
		Requirement: "metadata.verified",
		Message:     reason,
	}
}

// NewCapabilityDeniedError creates an error for a declared capability that is
// not allowed under the active security mode.
func NewCapabilityDeniedError(moduleID, capability string) *CompatibilityError {
	return &CompatibilityError{
		Code:        ErrCodeCapabilityDenied,
		ModuleID:    moduleID,
		Requirement: capability,
		Message:     fmt.Sprintf("capability %q is not permitted in strict security mode", capability),
	}
}
