package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modman-dev/modman/internal/module"
)

// Settings is the top-level configuration for the modman tool, loaded from
// a YAML file. Zero values are filled from DefaultSettings.
type Settings struct {
	Core    CoreSettings    `mapstructure:"core"`
	Install InstallSettings `mapstructure:"install"`
	Logging LoggingSettings `mapstructure:"logging"`
}

// CoreSettings holds filesystem paths.
type CoreSettings struct {
	// HomeDir is the root under which instance and configuration records
	// are persisted.
	HomeDir string `mapstructure:"home_dir"`
}

// InstallSettings configures installation behavior.
type InstallSettings struct {
	DefaultTransport string        `mapstructure:"default_transport"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	SecurityMode     string        `mapstructure:"security_mode"`
	AutoUpdate       bool          `mapstructure:"auto_update"`
	TelemetryEnabled bool          `mapstructure:"telemetry_enabled"`
}

// LoggingSettings configures log output.
type LoggingSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultSettings returns the settings used when no config file exists.
func DefaultSettings() *Settings {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Settings{
		Core: CoreSettings{
			HomeDir: filepath.Join(home, ".modman"),
		},
		Install: InstallSettings{
			DefaultTransport: module.TransportStdio.String(),
			Timeout:          5 * time.Minute,
			RetryAttempts:    2,
			SecurityMode:     module.SecurityModeBalanced.String(),
			AutoUpdate:       false,
			TelemetryEnabled: false,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "text",
		},
	}
}

// GlobalSettings converts the install section into the engine's settings
// type, validating enum values along the way.
func (s *Settings) GlobalSettings() (module.GlobalSettings, error) {
	transport, err := module.ParseTransportType(s.Install.DefaultTransport)
	if err != nil {
		return module.GlobalSettings{}, fmt.Errorf("invalid default_transport: %w", err)
	}
	mode, err := module.ParseSecurityMode(s.Install.SecurityMode)
	if err != nil {
		return module.GlobalSettings{}, fmt.Errorf("invalid security_mode: %w", err)
	}

	gs := module.GlobalSettings{
		DefaultTransport: transport,
		Timeout:          s.Install.Timeout,
		RetryAttempts:    s.Install.RetryAttempts,
		SecurityMode:     mode,
		AutoUpdate:       s.Install.AutoUpdate,
		TelemetryEnabled: s.Install.TelemetryEnabled,
	}
	if err := gs.Validate(); err != nil {
		return module.GlobalSettings{}, err
	}
	return gs, nil
}

// Validate checks the settings for structural problems.
func (s *Settings) Validate() error {
	if s.Core.HomeDir == "" {
		return fmt.Errorf("core.home_dir must not be empty")
	}
	if _, err := s.GlobalSettings(); err != nil {
		return err
	}
	switch s.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", s.Logging.Level)
	}
	switch s.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format: %s", s.Logging.Format)
	}
	return nil
}
