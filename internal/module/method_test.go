package module

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multiMethodDescriptor() *ModuleDescriptor {
	desc := testDescriptor("weather")
	desc.Installation.Methods = []InstallationMethod{
		{Type: MethodTypeDocker, Command: "example/weather"},
		{Type: MethodTypeNPM, Command: "@example/weather"},
		{Type: MethodTypePython, Command: "example-weather"},
	}
	return desc
}

func TestSelectFollowsPreferenceOrder(t *testing.T) {
	// npm outranks python and docker regardless of declaration order.
	probe := newFakeProbe(map[string]string{
		"npm":    "9.8.1",
		"pip3":   "pip 23.1.2",
		"docker": "Docker version 24.0.5",
	})

	selector := NewMethodSelector(probe)
	method, err := selector.Select(context.Background(), multiMethodDescriptor(), nil)
	require.NoError(t, err)
	assert.Equal(t, MethodTypeNPM, method.Type)
}

func TestSelectSkipsUnavailableTools(t *testing.T) {
	probe := newFakeProbe(map[string]string{
		"docker": "Docker version 24.0.5",
	})

	selector := NewMethodSelector(probe)
	method, err := selector.Select(context.Background(), multiMethodDescriptor(), nil)
	require.NoError(t, err)
	assert.Equal(t, MethodTypeDocker, method.Type)
}

func TestSelectPreferredMethodWins(t *testing.T) {
	probe := newFakeProbe(map[string]string{
		"npm":    "9.8.1",
		"docker": "Docker version 24.0.5",
	})

	preferred := MethodTypeDocker
	selector := NewMethodSelector(probe)
	method, err := selector.Select(context.Background(), multiMethodDescriptor(), &preferred)
	require.NoError(t, err)
	assert.Equal(t, MethodTypeDocker, method.Type)
}

func TestSelectPreferredMethodUnavailable(t *testing.T) {
	probe := newFakeProbe(map[string]string{"npm": "9.8.1"})

	preferred := MethodTypeDocker
	selector := NewMethodSelector(probe)
	_, err := selector.Select(context.Background(), multiMethodDescriptor(), &preferred)

	var instErr *InstallationError
	require.ErrorAs(t, err, &instErr)
	assert.Equal(t, ErrCodeNoCompatibleMethod, instErr.Code)
}

func TestSelectPreferredMethodNotDeclared(t *testing.T) {
	probe := newFakeProbe(map[string]string{"npm": "9.8.1"})

	preferred := MethodTypeBinary
	selector := NewMethodSelector(probe)
	_, err := selector.Select(context.Background(), multiMethodDescriptor(), &preferred)
	assert.Error(t, err)
}

func TestSelectNoCompatibleMethod(t *testing.T) {
	selector := NewMethodSelector(newFakeProbe(nil))
	_, err := selector.Select(context.Background(), multiMethodDescriptor(), nil)

	var instErr *InstallationError
	require.ErrorAs(t, err, &instErr)
	assert.Equal(t, ErrCodeNoCompatibleMethod, instErr.Code)
}

func TestSelectBinaryProbesOwnCommand(t *testing.T) {
	desc := testDescriptor("weather")
	desc.Installation.Methods = []InstallationMethod{
		{Type: MethodTypeBinary, Command: "weather-cli"},
	}

	probe := newFakeProbe(map[string]string{"weather-cli": "1.4.0"})
	selector := NewMethodSelector(probe)
	method, err := selector.Select(context.Background(), desc, nil)
	require.NoError(t, err)
	assert.Equal(t, MethodTypeBinary, method.Type)
	assert.Contains(t, probe.probedTools(), "weather-cli")
}
