package module

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/modman-dev/modman/internal/events"
	"github.com/modman-dev/modman/internal/observability"
)

// Phase names one stage of an installation attempt's state machine.
type Phase string

const (
	PhasePreflight      Phase = "preflight"
	PhaseMethodSelect   Phase = "method_select"
	PhaseDependencies   Phase = "dependencies"
	PhaseExecute        Phase = "execute"
	PhaseConfigure      Phase = "configure"
	PhaseInstanceCreate Phase = "instance_create"
	PhaseVerify         Phase = "verify"
)

// String returns the string representation of the Phase.
func (p Phase) String() string {
	return string(p)
}

// Tracing span names for installation operations.
const (
	spanInstall   = "modman.module.install"
	spanUninstall = "modman.module.uninstall"
	spanLoad      = "modman.module.load"
)

// Orchestrator sequences one installation attempt through preflight, method
// selection, dependency installation, execution, configuration, instance
// creation, and health verification, emitting lifecycle events as each phase
// completes.
//
// All failures return typed errors: InstallationError, ConfigurationError, or
// CompatibilityError. The per-module installation guard is released on every
// exit path.
type Orchestrator struct {
	settings GlobalSettings
	registry *InstanceRegistry
	configs  *ConfigurationManager

	validator *RequirementValidator
	selector  *MethodSelector
	deps      *DependencyInstaller
	executor  *Executor
	verifier  HealthVerifier

	bus    events.EventBus
	log    *observability.Logger
	tracer trace.Tracer
}

// OrchestratorConfig assembles an Orchestrator's collaborators. Registry and
// Configs are required; Probe, Runner, Verifier, Bus, and Logger default to
// the exec-backed implementations when nil.
type OrchestratorConfig struct {
	Settings GlobalSettings
	Registry *InstanceRegistry
	Configs  *ConfigurationManager
	Probe    CapabilityProbe
	Runner   CommandRunner
	Verifier HealthVerifier
	Bus      events.EventBus
	Logger   *observability.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("instance registry is required")
	}
	if cfg.Configs == nil {
		return nil, fmt.Errorf("configuration manager is required")
	}

	probe := cfg.Probe
	if probe == nil {
		probe = NewExecProbe()
	}
	runner := cfg.Runner
	if runner == nil {
		runner = NewExecRunner()
	}
	verifier := cfg.Verifier
	if verifier == nil {
		verifier = NewProbeVerifier(probe, DefaultHealthCheckTimeout)
	}
	bus := cfg.Bus
	if bus == nil {
		bus = events.NewEventBus()
	}
	log := cfg.Logger
	if log == nil {
		log = observability.NewNopLogger()
	}

	tracer := noop.NewTracerProvider().Tracer(spanInstall)
	if cfg.Settings.TelemetryEnabled {
		tracer = otel.GetTracerProvider().Tracer("modman.module")
	}

	return &Orchestrator{
		settings:  cfg.Settings,
		registry:  cfg.Registry,
		configs:   cfg.Configs,
		validator: NewRequirementValidator(probe, cfg.Settings),
		selector:  NewMethodSelector(probe),
		deps:      NewDependencyInstaller(runner),
		executor:  NewExecutor(runner, cfg.Settings),
		verifier:  verifier,
		bus:       bus,
		log:       log,
		tracer:    tracer,
	}, nil
}

// InstallModule runs the full installation lifecycle for the descriptor.
// A nil preferred method lets the selector pick by preference order.
// On success the returned result carries the resolved configuration and the
// selected method; on failure the typed error names what went wrong and no
// instance record is left behind (a verification failure is the one
// exception: the instance persists with unhealthy status for diagnosis).
func (o *Orchestrator) InstallModule(ctx context.Context, desc *ModuleDescriptor, userConfig map[string]any, preferred *MethodType) (*InstallationResult, error) {
	if desc == nil {
		return nil, fmt.Errorf("descriptor is required")
	}
	if err := desc.Validate(); err != nil {
		return nil, WrapInstallationError(ErrCodeMethodFailed, desc.ID, "invalid descriptor", err)
	}

	// The guard is claimed before any other phase runs and released on
	// every exit path.
	if err := o.registry.Begin(desc.ID); err != nil {
		return nil, err
	}
	defer o.registry.Finish(desc.ID)

	ctx, span := o.tracer.Start(ctx, spanInstall, trace.WithAttributes(
		attribute.String("modman.module.id", desc.ID),
		attribute.String("modman.module.version", desc.Version),
	))
	defer span.End()

	start := time.Now()
	log := o.log.WithModule(desc.ID)

	o.emit(ctx, events.EventInstallationStarted, desc.ID, events.InstallationStartedPayload{
		ModuleID: desc.ID,
		Version:  desc.Version,
	})

	fail := func(phase Phase, err error) (*InstallationResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithPhase(phase.String()).Error(ctx, "installation failed", "error", err)
		o.emit(ctx, events.EventInstallationFailed, desc.ID, events.InstallationFailedPayload{
			ModuleID: desc.ID,
			Phase:    phase.String(),
			Error:    err.Error(),
			Duration: time.Since(start),
		})
		return nil, err
	}

	// Preflight: requirements, security, compatibility. No side effects yet.
	warnings, err := o.validator.Validate(ctx, desc)
	o.emitWarnings(ctx, warnings)
	if err != nil {
		return fail(PhasePreflight, err)
	}

	method, err := o.selector.Select(ctx, desc, preferred)
	if err != nil {
		return fail(PhaseMethodSelect, err)
	}
	span.SetAttributes(attribute.String("modman.module.method", method.Type.String()))
	log.Info(ctx, "selected installation method", "method", method.Type)

	// Configuration resolves before any subprocess runs so a missing key or
	// environment variable fails the attempt with zero side effects.
	resolved, err := o.configs.Resolve(desc, userConfig)
	if err != nil {
		return fail(PhaseConfigure, err)
	}

	o.emit(ctx, events.EventDependenciesStarted, desc.ID, nil)
	depWarnings, err := o.deps.Install(ctx, desc, method, o.settings.Timeout)
	o.emitWarnings(ctx, depWarnings)
	if err != nil {
		return fail(PhaseDependencies, err)
	}
	o.emit(ctx, events.EventDependenciesCompleted, desc.ID, nil)

	o.emit(ctx, events.EventServerInstallStarted, desc.ID, nil)
	if _, err := o.executor.Install(ctx, desc, method, o.settings.Timeout); err != nil {
		return fail(PhaseExecute, err)
	}
	o.emit(ctx, events.EventServerInstallComplete, desc.ID, nil)

	o.emit(ctx, events.EventConfigurationStarted, desc.ID, nil)
	if err := o.configs.Persist(desc.ID, resolved); err != nil {
		return fail(PhaseConfigure, err)
	}
	o.emit(ctx, events.EventConfigurationComplete, desc.ID, nil)

	instance, err := o.registry.Create(desc, resolved.Persisted, time.Now())
	if err != nil {
		// Keep failed attempts free of orphaned records.
		_ = o.configs.Remove(desc.ID)
		return fail(PhaseInstanceCreate, err)
	}

	report := o.verify(ctx, instance, method)
	if report.Status != HealthStatusHealthy {
		if err := o.registry.FinalizeHealth(desc.ID, HealthStatusUnhealthy); err != nil {
			log.Warn(ctx, "could not record unhealthy status", "error", err)
		}
		o.emit(ctx, events.EventVerificationFailed, desc.ID, events.VerificationPayload{
			ModuleID: desc.ID,
			Status:   report.Status.String(),
			Latency:  report.Latency,
			Error:    report.Error,
		})
		// The instance record stays on disk with unhealthy status so the
		// failure can be diagnosed; the attempt itself still fails.
		verifyErr := NewInstallationError(ErrCodeVerifyFailed, desc.ID,
			fmt.Sprintf("post-install verification failed: %s", report.Error)).
			WithMethod(method)
		return fail(PhaseVerify, verifyErr)
	}

	if err := o.registry.FinalizeHealth(desc.ID, HealthStatusHealthy); err != nil {
		return fail(PhaseVerify, WrapInstallationError(ErrCodeVerifyFailed, desc.ID,
			"could not record healthy status", err).WithMethod(method))
	}
	o.emit(ctx, events.EventVerificationCompleted, desc.ID, events.VerificationPayload{
		ModuleID: desc.ID,
		Status:   HealthStatusHealthy.String(),
		Latency:  report.Latency,
	})

	duration := time.Since(start)
	result := &InstallationResult{
		Success:       true,
		ModuleID:      desc.ID,
		Method:        method,
		Duration:      duration,
		InstalledAt:   instance.InstalledAt,
		Configuration: resolved.Persisted,
	}

	span.SetStatus(codes.Ok, "module installed")
	log.Info(ctx, "installation completed", "method", method.Type, "duration", duration)
	o.emit(ctx, events.EventInstallationCompleted, desc.ID, events.InstallationCompletedPayload{
		ModuleID:   desc.ID,
		InstanceID: instance.InstanceID.String(),
		Method:     method.Type.String(),
		Duration:   duration,
		Health:     HealthStatusHealthy.String(),
	})

	return result, nil
}

// verify runs the health verifier, retrying up to the configured attempt
// budget. Verification is idempotent so retries are safe.
func (o *Orchestrator) verify(ctx context.Context, instance *ModuleInstance, method *InstallationMethod) HealthReport {
	attempts := o.settings.RetryAttempts + 1
	var report HealthReport
	for i := 0; i < attempts; i++ {
		report = o.verifier.Verify(ctx, instance, method)
		if report.Status == HealthStatusHealthy {
			return report
		}
		if ctx.Err() != nil {
			break
		}
	}
	return report
}

// UninstallModule removes a module's instance and configuration records.
// It rejects the call while an installation of the same module is in flight.
func (o *Orchestrator) UninstallModule(ctx context.Context, moduleID string) error {
	ctx, span := o.tracer.Start(ctx, spanUninstall, trace.WithAttributes(
		attribute.String("modman.module.id", moduleID),
	))
	defer span.End()

	o.emit(ctx, events.EventUninstallationStarted, moduleID, events.UninstallationPayload{
		ModuleID: moduleID,
	})

	instance, err := o.registry.Remove(moduleID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.emit(ctx, events.EventError, moduleID, map[string]any{"error": err.Error()})
		return err
	}

	if err := o.configs.Remove(moduleID); err != nil {
		span.RecordError(err)
		o.emit(ctx, events.EventError, moduleID, map[string]any{"error": err.Error()})
		return fmt.Errorf("failed to remove configuration for %s: %w", moduleID, err)
	}

	span.SetStatus(codes.Ok, "module uninstalled")
	o.log.WithModule(moduleID).Info(ctx, "uninstalled module")
	o.emit(ctx, events.EventUninstallationCompleted, moduleID, events.UninstallationPayload{
		ModuleID:   moduleID,
		InstanceID: instance.InstanceID.String(),
	})
	return nil
}

// GetInstalledModules returns all installed instances ordered by module id.
func (o *Orchestrator) GetInstalledModules() []ModuleInstance {
	return o.registry.List()
}

// GetModuleInstance returns the instance for a module, if installed.
func (o *Orchestrator) GetModuleInstance(moduleID string) (ModuleInstance, bool) {
	return o.registry.Get(moduleID)
}

// LoadInstalledModules rehydrates the registry from persisted instance
// records. Safe to call repeatedly; reloading with no intervening mutation
// yields identical contents.
func (o *Orchestrator) LoadInstalledModules(ctx context.Context) error {
	ctx, span := o.tracer.Start(ctx, spanLoad)
	defer span.End()

	count, err := o.registry.LoadInstalled()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	o.log.Info(ctx, "loaded installed modules", "count", count)
	o.emit(ctx, events.EventServersLoaded, "", events.ServersLoadedPayload{Count: count})
	return nil
}

// Events returns the lifecycle event bus for subscription by callers.
func (o *Orchestrator) Events() events.EventBus {
	return o.bus
}

// emit publishes a lifecycle event, never blocking phase progression.
func (o *Orchestrator) emit(ctx context.Context, eventType events.EventType, moduleID string, payload any) {
	_ = o.bus.Publish(ctx, events.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		ModuleID:  moduleID,
		Payload:   payload,
	})
}

// emitWarnings maps preflight and pipeline warnings onto their event types.
func (o *Orchestrator) emitWarnings(ctx context.Context, warnings []Warning) {
	for _, w := range warnings {
		var eventType events.EventType
		switch w.Kind {
		case WarningKindSecurity:
			eventType = events.EventSecurityWarning
		case WarningKindCompatibility:
			eventType = events.EventCompatibilityWarning
		case WarningKindDependency:
			eventType = events.EventDependencyWarning
		default:
			eventType = events.EventRequirementWarning
		}
		o.emit(ctx, eventType, w.ModuleID, events.WarningPayload{
			ModuleID: w.ModuleID,
			Detail:   w.Detail,
		})
	}
}
