package module

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallationErrorFormat(t *testing.T) {
	cause := fmt.Errorf("exit status 1")
	err := WrapInstallationError(ErrCodeExecutionFailed, "weather", "install command failed", cause).
		WithMethod(&InstallationMethod{Type: MethodTypeNPM, Command: "@example/weather"})

	msg := err.Error()
	assert.Contains(t, msg, "[EXECUTION_FAILED]")
	assert.Contains(t, msg, "module=weather")
	assert.Contains(t, msg, "method=npm")
	assert.Contains(t, msg, "exit status 1")
}

func TestInstallationErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := WrapInstallationError(ErrCodeDependencyFailed, "weather", "deps failed", cause)

	assert.ErrorIs(t, err, cause)

	var instErr *InstallationError
	require.ErrorAs(t, err, &instErr)
	assert.Equal(t, ErrCodeDependencyFailed, instErr.Code)
}

func TestInstallationErrorIsMatchesByCode(t *testing.T) {
	err := NewInstallationError(ErrCodeVerifyFailed, "weather", "verify failed")

	assert.ErrorIs(t, err, NewInstallationError(ErrCodeVerifyFailed, "other", "x"))
	assert.NotErrorIs(t, err, NewInstallationError(ErrCodeTimeout, "weather", "x"))
}

func TestInstallationErrorWithContext(t *testing.T) {
	err := NewInstallationError(ErrCodeMethodFailed, "weather", "failed").
		WithContext("attempt", 2).
		WithContext("phase", "execute")

	assert.Equal(t, 2, err.Context["attempt"])
	assert.Equal(t, "execute", err.Context["phase"])
}

func TestGuardErrorsWrapSentinels(t *testing.T) {
	err := WrapInstallationError(ErrCodeGuardConflict, "weather",
		"module weather is already being installed", ErrAlreadyInstalling)

	assert.ErrorIs(t, err, ErrAlreadyInstalling)
	assert.NotErrorIs(t, err, ErrAlreadyInstalled)
}

func TestConfigurationErrorNamesKey(t *testing.T) {
	err := NewMissingKeyError("weather", "apiKey")
	assert.Equal(t, "apiKey", err.Key)
	assert.Contains(t, err.Error(), "apiKey")
	assert.Contains(t, err.Error(), "[MISSING_REQUIRED_KEY]")

	envErr := NewMissingEnvVarError("weather", "API_KEY")
	assert.Equal(t, "API_KEY", envErr.Key)
	assert.Contains(t, envErr.Error(), "API_KEY")

	invalidErr := NewInvalidEnvVarError("weather", "REGION", "value is not in the allowed set")
	assert.Equal(t, ErrCodeInvalidEnvVar, invalidErr.Code)
	assert.Contains(t, invalidErr.Error(), "REGION")
}

func TestCompatibilityErrorNamesRequirement(t *testing.T) {
	err := NewRequirementUnmetError("weather", "node18", errors.New("node version 16.1.0 is below required 18"))
	assert.Equal(t, "node18", err.Requirement)
	assert.Contains(t, err.Error(), "node18")

	secErr := NewSecurityViolationError("weather", "module weather is not verified and security mode is strict")
	assert.Equal(t, ErrCodeSecurityViolation, secErr.Code)

	capErr := NewCapabilityDeniedError("weather", "audio-capture")
	assert.Equal(t, "audio-capture", capErr.Requirement)
}
