// Package observability provides structured logging with trace correlation
// for the installation engine.
package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Logger is a structured logger with automatic trace correlation. It wraps
// slog.Logger and stamps module and phase context onto every entry.
type Logger struct {
	logger   *slog.Logger
	moduleID string
	phase    string
}

// NewLogger creates a Logger backed by the given slog handler.
func NewLogger(handler slog.Handler) *Logger {
	return &Logger{logger: slog.New(handler)}
}

// NewNopLogger creates a Logger that discards everything. Useful in tests.
func NewNopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// WithModule returns a copy of the logger scoped to a module id.
func (l *Logger) WithModule(moduleID string) *Logger {
	scoped := *l
	scoped.moduleID = moduleID
	return &scoped
}

// WithPhase returns a copy of the logger scoped to a pipeline phase.
func (l *Logger) WithPhase(phase string) *Logger {
	scoped := *l
	scoped.phase = phase
	return &scoped
}

// Debug logs a debug-level message with trace correlation.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.withContext(ctx).Debug(msg, args...)
}

// Info logs an info-level message with trace correlation.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.withContext(ctx).Info(msg, args...)
}

// Warn logs a warning-level message with trace correlation.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.withContext(ctx).Warn(msg, args...)
}

// Error logs an error-level message with trace correlation.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.withContext(ctx).Error(msg, args...)
}

// withContext builds an slog.Logger carrying module, phase, and any active
// OpenTelemetry span identifiers from the context.
func (l *Logger) withContext(ctx context.Context) *slog.Logger {
	logger := l.logger
	if l.moduleID != "" {
		logger = logger.With("module_id", l.moduleID)
	}
	if l.phase != "" {
		logger = logger.With("phase", l.phase)
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		logger = logger.With(
			"trace_id", sc.TraceID().String(),
			"span_id", sc.SpanID().String(),
		)
	}

	return logger
}
