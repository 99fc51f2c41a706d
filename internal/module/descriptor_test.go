package module

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlDescriptor = `
id: weather
version: 1.2.0
transport:
  - stdio
capabilities:
  - forecast
metadata:
  author: Example Org
  verified: true
installation:
  methods:
    - type: npm
      command: "@example/weather"
  dependencies:
    axios: 1.6.0
  systemRequirements:
    - type: runtime
      requirement: node18
configuration:
  required:
    - apiKey
  env:
    API_KEY:
      required: true
      sensitive: true
`

func TestParseDescriptorYAML(t *testing.T) {
	desc, err := ParseDescriptor([]byte(yamlDescriptor))
	require.NoError(t, err)

	assert.Equal(t, "weather", desc.ID)
	assert.Equal(t, "1.2.0", desc.Version)
	assert.Equal(t, []TransportType{TransportStdio}, desc.Transports)
	assert.True(t, desc.Metadata.Verified)
	require.Len(t, desc.Installation.Methods, 1)
	assert.Equal(t, MethodTypeNPM, desc.Installation.Methods[0].Type)
	assert.Equal(t, "1.6.0", desc.Installation.Dependencies["axios"])
	assert.Equal(t, []string{"apiKey"}, desc.Configuration.Required)
	assert.True(t, desc.Configuration.Env["API_KEY"].Sensitive)
}

func TestParseDescriptorJSON(t *testing.T) {
	data := []byte(`{
		"id": "weather",
		"version": "1.0.0",
		"metadata": {"verified": false},
		"installation": {"methods": [{"type": "docker", "command": "example/weather"}]}
	}`)

	desc, err := ParseDescriptor(data)
	require.NoError(t, err)
	assert.Equal(t, MethodTypeDocker, desc.Installation.Methods[0].Type)
}

func TestParseDescriptorRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not yaml", ": : :"},
		{"missing id", "version: 1.0.0\ninstallation:\n  methods:\n    - type: npm\n      command: x\n"},
		{"no methods", "id: weather\nversion: 1.0.0\n"},
		{"bad method type", "id: weather\nversion: 1.0.0\ninstallation:\n  methods:\n    - type: cargo\n      command: x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDescriptor([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadDescriptorFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weather.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDescriptor), 0o644))

	desc, err := LoadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, "weather", desc.ID)
}

func TestLoadDescriptorMissingFile(t *testing.T) {
	_, err := LoadDescriptor(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
