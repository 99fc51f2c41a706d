package events

import (
	"time"
)

// EventType identifies the category and nature of an installation lifecycle event.
type EventType string

// Installation lifecycle events.
// These events track one module installation attempt end to end.
const (
	EventInstallationStarted   EventType = "installation.started"
	EventInstallationCompleted EventType = "installation.completed"
	EventInstallationFailed    EventType = "installation.failed"
)

// Pipeline phase events.
// These events bracket the side-effecting phases of an attempt and are
// emitted in phase order for any single module's attempt.
const (
	EventDependenciesStarted   EventType = "dependencies.installation.started"
	EventDependenciesCompleted EventType = "dependencies.installation.completed"
	EventServerInstallStarted  EventType = "server.installation.started"
	EventServerInstallComplete EventType = "server.installation.completed"
	EventConfigurationStarted  EventType = "configuration.started"
	EventConfigurationComplete EventType = "configuration.completed"
)

// Warning events.
// Warnings never abort the pipeline; they surface soft findings from
// preflight and dependency handling.
const (
	EventRequirementWarning   EventType = "requirement.warning"
	EventSecurityWarning      EventType = "security.warning"
	EventCompatibilityWarning EventType = "compatibility.warning"
	EventDependencyWarning    EventType = "dependency.warning"
)

// Verification and registry events.
const (
	EventVerificationCompleted   EventType = "verification.completed"
	EventVerificationFailed      EventType = "verification.failed"
	EventUninstallationStarted   EventType = "uninstallation.started"
	EventUninstallationCompleted EventType = "uninstallation.completed"
	EventServersLoaded           EventType = "servers.loaded"
	EventError                   EventType = "error"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// Event is one installation lifecycle notification. Events are JSON
// serializable so external consumers (CLI, UI) can stream them.
type Event struct {
	// Type identifies the category and nature of the event
	Type EventType `json:"type"`

	// Timestamp records when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// ModuleID associates the event with a module (empty for system events)
	ModuleID string `json:"module_id,omitempty"`

	// Payload contains event-specific typed data (use type assertion to access)
	Payload any `json:"payload,omitempty"`

	// Attrs contains additional key-value attributes for flexible metadata
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Filter defines criteria for filtering events in subscriptions.
// All fields use AND logic; empty fields act as wildcards.
type Filter struct {
	// Types filters by event types (empty = all types)
	Types []EventType `json:"types,omitempty"`

	// ModuleID filters by module (empty = all modules)
	ModuleID string `json:"module_id,omitempty"`
}

// Matches determines if the given event matches this filter's criteria.
func (f *Filter) Matches(event Event) bool {
	if len(f.Types) > 0 {
		matched := false
		for _, t := range f.Types {
			if event.Type == t {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.ModuleID != "" && event.ModuleID != f.ModuleID {
		return false
	}

	return true
}

// InstallationStartedPayload contains data for installation.started events.
type InstallationStartedPayload struct {
	ModuleID string `json:"module_id"`
	Version  string `json:"version"`
}

// InstallationCompletedPayload contains data for installation.completed events.
type InstallationCompletedPayload struct {
	ModuleID   string        `json:"module_id"`
	InstanceID string        `json:"instance_id"`
	Method     string        `json:"method"`
	Duration   time.Duration `json:"duration"`
	Health     string        `json:"health"`
}

// InstallationFailedPayload contains data for installation.failed events.
type InstallationFailedPayload struct {
	ModuleID string        `json:"module_id"`
	Phase    string        `json:"phase"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

// WarningPayload contains data for requirement, security, and compatibility
// warning events.
type WarningPayload struct {
	ModuleID string `json:"module_id"`
	Detail   string `json:"detail"`
}

// VerificationPayload contains data for verification.completed and
// verification.failed events.
type VerificationPayload struct {
	ModuleID string        `json:"module_id"`
	Status   string        `json:"status"`
	Latency  time.Duration `json:"latency"`
	Error    string        `json:"error,omitempty"`
}

// UninstallationPayload contains data for uninstallation events.
type UninstallationPayload struct {
	ModuleID   string `json:"module_id"`
	InstanceID string `json:"instance_id,omitempty"`
}

// ServersLoadedPayload contains data for servers.loaded events.
type ServersLoadedPayload struct {
	Count int `json:"count"`
}
