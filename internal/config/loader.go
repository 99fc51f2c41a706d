package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles loading settings from files.
type Loader interface {
	Load(path string) (*Settings, error)
	LoadWithDefaults(path string) (*Settings, error)
}

// viperLoader implements Loader using Viper.
type viperLoader struct{}

// NewLoader creates a new Loader instance.
func NewLoader() Loader {
	return &viperLoader{}
}

// Load loads settings from the specified file path. Values may reference
// environment variables with ${VAR_NAME} syntax. Returns an error if the
// file doesn't exist or cannot be parsed.
func (l *viperLoader) Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	for _, key := range v.AllKeys() {
		if s, ok := v.Get(key).(string); ok {
			v.Set(key, interpolateString(s))
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("settings validation failed: %w", err)
	}
	return &settings, nil
}

// LoadWithDefaults loads settings from the specified file path. If the file
// doesn't exist, returns default settings.
func (l *viperLoader) LoadWithDefaults(path string) (*Settings, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		settings := DefaultSettings()
		if err := settings.Validate(); err != nil {
			return nil, fmt.Errorf("default settings validation failed: %w", err)
		}
		return settings, nil
	}
	return l.Load(path)
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultSettings()
	v.SetDefault("core.home_dir", defaults.Core.HomeDir)
	v.SetDefault("install.default_transport", defaults.Install.DefaultTransport)
	v.SetDefault("install.timeout", defaults.Install.Timeout)
	v.SetDefault("install.retry_attempts", defaults.Install.RetryAttempts)
	v.SetDefault("install.security_mode", defaults.Install.SecurityMode)
	v.SetDefault("install.auto_update", defaults.Install.AutoUpdate)
	v.SetDefault("install.telemetry_enabled", defaults.Install.TelemetryEnabled)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateString replaces ${VAR_NAME} with environment variable values,
// leaving unset references untouched.
func interpolateString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if value := os.Getenv(name); value != "" {
			return value
		}
		return match
	})
}
