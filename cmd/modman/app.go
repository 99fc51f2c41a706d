package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/modman-dev/modman/internal/config"
	"github.com/modman-dev/modman/internal/events"
	"github.com/modman-dev/modman/internal/module"
	"github.com/modman-dev/modman/internal/observability"
)

// app bundles the wired-up engine for command handlers.
type app struct {
	settings     *config.Settings
	orchestrator *module.Orchestrator
}

// buildApp loads settings and assembles the orchestrator with its
// filesystem-backed registry and configuration manager.
func buildApp() (*app, error) {
	settings, err := config.NewLoader().LoadWithDefaults(configPath)
	if err != nil {
		return nil, err
	}

	global, err := settings.GlobalSettings()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(settings.Core.HomeDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}

	orchestrator, err := module.NewOrchestrator(module.OrchestratorConfig{
		Settings: global,
		Registry: module.NewInstanceRegistry(settings.Core.HomeDir),
		Configs:  module.NewConfigurationManager(settings.Core.HomeDir),
		Bus:      events.NewEventBus(),
		Logger:   newLogger(settings.Logging),
	})
	if err != nil {
		return nil, err
	}

	return &app{settings: settings, orchestrator: orchestrator}, nil
}

func newLogger(cfg config.LoggingSettings) *observability.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return observability.NewLogger(handler)
}
