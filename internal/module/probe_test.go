package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVersion(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"plain", "8.19.2", "8.19.2"},
		{"v prefix", "v18.17.0", "18.17.0"},
		{"tool banner", "Docker version 24.0.5, build ced0996", "24.0.5"},
		{"pip style", "pip 23.1.2 from /usr/lib/python3", "23.1.2"},
		{"two components", "npm 9.8", "9.8"},
		{"no version", "command not found", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractVersion(tt.output))
		})
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		name     string
		actual   string
		required string
		want     bool
	}{
		{"equal", "18.0.0", "18.0.0", true},
		{"newer major", "20.1.0", "18", true},
		{"older major", "16.20.0", "18", false},
		{"newer minor", "3.11.0", "3.10", true},
		{"older patch", "1.2.2", "1.2.3", false},
		{"missing trailing treated as zero", "18", "18.0.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compareVersions(tt.actual, tt.required)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareVersionsInvalid(t *testing.T) {
	_, err := compareVersions("not.a.version", "1.0")
	assert.Error(t, err)
}

func TestSplitRuntimeSpec(t *testing.T) {
	tests := []struct {
		spec        string
		wantTool    string
		wantVersion string
	}{
		{"node16", "node", "16"},
		{"python3.10", "python", "3.10"},
		{"docker", "docker", ""},
		{"go1.22", "go", "1.22"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			tool, version := splitRuntimeSpec(tt.spec)
			assert.Equal(t, tt.wantTool, tool)
			assert.Equal(t, tt.wantVersion, version)
		})
	}
}
