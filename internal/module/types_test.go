package module

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modman-dev/modman/internal/types"
)

func TestMethodTypeParsing(t *testing.T) {
	tests := []struct {
		input   string
		want    MethodType
		wantErr bool
	}{
		{"npm", MethodTypeNPM, false},
		{"npx", MethodTypeNPX, false},
		{"python", MethodTypePython, false},
		{"docker", MethodTypeDocker, false},
		{"binary", MethodTypeBinary, false},
		{"custom", MethodTypeCustom, false},
		{"", "", true},
		{"NPM", "", true},
		{"cargo", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMethodType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMethodTypeJSONRejectsInvalid(t *testing.T) {
	var m MethodType
	err := json.Unmarshal([]byte(`"cargo"`), &m)
	assert.Error(t, err)

	_, err = json.Marshal(MethodType("cargo"))
	assert.Error(t, err)
}

func TestMethodPreferenceOrder(t *testing.T) {
	order := MethodPreferenceOrder()
	assert.Equal(t, []MethodType{
		MethodTypeNPM, MethodTypeNPX, MethodTypePython,
		MethodTypeDocker, MethodTypeBinary, MethodTypeCustom,
	}, order)
}

func TestHealthStatusTransitions(t *testing.T) {
	tests := []struct {
		name   string
		from   HealthStatus
		to     HealthStatus
		wantOK bool
	}{
		{"unknown to healthy", HealthStatusUnknown, HealthStatusHealthy, true},
		{"unknown to unhealthy", HealthStatusUnknown, HealthStatusUnhealthy, true},
		{"healthy back to unknown", HealthStatusHealthy, HealthStatusUnknown, false},
		{"healthy to unhealthy", HealthStatusHealthy, HealthStatusUnhealthy, false},
		{"unhealthy to healthy", HealthStatusUnhealthy, HealthStatusHealthy, false},
		{"unknown to invalid", HealthStatusUnknown, HealthStatus("degraded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantOK, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestHealthStatusIsTerminal(t *testing.T) {
	assert.False(t, HealthStatusUnknown.IsTerminal())
	assert.True(t, HealthStatusHealthy.IsTerminal())
	assert.True(t, HealthStatusUnhealthy.IsTerminal())
}

func TestModuleDescriptorValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		desc := testDescriptor("weather")
		assert.NoError(t, desc.Validate())
	})

	t.Run("missing id", func(t *testing.T) {
		desc := testDescriptor("weather")
		desc.ID = ""
		assert.Error(t, desc.Validate())
	})

	t.Run("missing version", func(t *testing.T) {
		desc := testDescriptor("weather")
		desc.Version = ""
		assert.Error(t, desc.Validate())
	})

	t.Run("no methods", func(t *testing.T) {
		desc := testDescriptor("weather")
		desc.Installation.Methods = nil
		assert.Error(t, desc.Validate())
	})

	t.Run("method without command", func(t *testing.T) {
		desc := testDescriptor("weather")
		desc.Installation.Methods = []InstallationMethod{{Type: MethodTypeNPM}}
		assert.Error(t, desc.Validate())
	})
}

func TestSupportsTransport(t *testing.T) {
	desc := testDescriptor("weather")

	// No declared transports means all are supported.
	assert.True(t, desc.SupportsTransport(TransportStdio))
	assert.True(t, desc.SupportsTransport(TransportHTTP))

	desc.Transports = []TransportType{TransportStdio}
	assert.True(t, desc.SupportsTransport(TransportStdio))
	assert.False(t, desc.SupportsTransport(TransportHTTP))
}

func TestGlobalSettingsValidate(t *testing.T) {
	valid := testSettings()
	assert.NoError(t, valid.Validate())

	badTransport := valid
	badTransport.DefaultTransport = "carrier-pigeon"
	assert.Error(t, badTransport.Validate())

	badMode := valid
	badMode.SecurityMode = "paranoid"
	assert.Error(t, badMode.Validate())

	badTimeout := valid
	badTimeout.Timeout = 0
	assert.Error(t, badTimeout.Validate())

	badRetries := valid
	badRetries.RetryAttempts = -1
	assert.Error(t, badRetries.Validate())
}

func TestModuleInstanceValidate(t *testing.T) {
	instance := ModuleInstance{
		InstanceID:   types.NewID(),
		ModuleID:     "weather",
		Version:      "1.0.0",
		InstalledAt:  time.Now(),
		HealthStatus: HealthStatusUnknown,
	}
	require.NoError(t, instance.Validate())

	missing := instance
	missing.ModuleID = ""
	assert.Error(t, missing.Validate())

	badHealth := instance
	badHealth.HealthStatus = "degraded"
	assert.Error(t, badHealth.Validate())

	noTime := instance
	noTime.InstalledAt = time.Time{}
	assert.Error(t, noTime.Validate())
}
