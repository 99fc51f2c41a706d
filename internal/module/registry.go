package module

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/modman-dev/modman/internal/types"
)

// instancesDirName is the directory under the registry root holding one
// record per installed instance.
const instancesDirName = "instances"

// InstanceRegistry tracks in-flight and completed installations and persists
// instance records to disk. It is explicitly owned and injected into the
// orchestrator; all methods are safe for concurrent use.
//
// Exclusivity is per module id only: the in-progress set guards against two
// concurrent installations of the same module, while installations of
// distinct modules proceed fully concurrently.
type InstanceRegistry struct {
	mu         sync.Mutex
	instances  map[string]*ModuleInstance
	inProgress map[string]struct{}
	root       string
}

// NewInstanceRegistry creates a registry rooted at the given directory.
func NewInstanceRegistry(root string) *InstanceRegistry {
	return &InstanceRegistry{
		instances:  make(map[string]*ModuleInstance),
		inProgress: make(map[string]struct{}),
		root:       root,
	}
}

// Begin claims the per-module installation guard. It fails if an instance
// already exists or another installation of the same module is in flight.
// Every successful Begin must be paired with a deferred Finish so the guard
// is released on all exit paths.
func (r *InstanceRegistry) Begin(moduleID string) error {
	if moduleID == "" {
		return fmt.Errorf("module id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[moduleID]; exists {
		return WrapInstallationError(ErrCodeGuardConflict, moduleID,
			fmt.Sprintf("module %s is already installed", moduleID), ErrAlreadyInstalled)
	}
	if _, installing := r.inProgress[moduleID]; installing {
		return WrapInstallationError(ErrCodeGuardConflict, moduleID,
			fmt.Sprintf("module %s is already being installed", moduleID), ErrAlreadyInstalling)
	}

	r.inProgress[moduleID] = struct{}{}
	return nil
}

// Finish releases the installation guard for the module. It is safe to call
// when the guard is not held.
func (r *InstanceRegistry) Finish(moduleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inProgress, moduleID)
}

// Create builds a new instance record with unknown health, persists it, and
// inserts it into the registry. The caller must hold the installation guard.
func (r *InstanceRegistry) Create(desc *ModuleDescriptor, configuration map[string]any, installedAt time.Time) (*ModuleInstance, error) {
	instance := &ModuleInstance{
		InstanceID:    types.NewID(),
		ModuleID:      desc.ID,
		Enabled:       true,
		Configuration: configuration,
		AutoStart:     false,
		Priority:      0,
		InstalledAt:   installedAt,
		Version:       desc.Version,
		HealthStatus:  HealthStatusUnknown,
	}
	if err := instance.Validate(); err != nil {
		return nil, WrapInstallationError(ErrCodePersistFailed, desc.ID,
			"instance validation failed", err)
	}

	if err := r.writeRecord(instance); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.instances[desc.ID] = instance
	r.mu.Unlock()

	return instance, nil
}

// FinalizeHealth records the verification outcome for a module's instance.
// Health moves forward only: a resolved status is never reverted.
func (r *InstanceRegistry) FinalizeHealth(moduleID string, status HealthStatus) error {
	r.mu.Lock()
	instance, exists := r.instances[moduleID]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("finalize health for %s: %w", moduleID, ErrInstanceNotFound)
	}
	if !instance.HealthStatus.CanTransitionTo(status) {
		current := instance.HealthStatus
		r.mu.Unlock()
		return fmt.Errorf("invalid health transition for %s: %s -> %s", moduleID, current, status)
	}
	instance.HealthStatus = status
	snapshot := *instance
	r.mu.Unlock()

	return r.writeRecord(&snapshot)
}

// Get returns a copy of the instance for the module, if present.
func (r *InstanceRegistry) Get(moduleID string) (ModuleInstance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, exists := r.instances[moduleID]
	if !exists {
		return ModuleInstance{}, false
	}
	return *instance, true
}

// List returns copies of all installed instances, ordered by module id.
func (r *InstanceRegistry) List() []ModuleInstance {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ModuleInstance, 0, len(r.instances))
	for _, instance := range r.instances {
		out = append(out, *instance)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out
}

// Remove evicts the module's instance and deletes its persisted record.
// It rejects the removal while an installation of the same module is in
// flight rather than racing it.
func (r *InstanceRegistry) Remove(moduleID string) (*ModuleInstance, error) {
	r.mu.Lock()
	if _, installing := r.inProgress[moduleID]; installing {
		r.mu.Unlock()
		return nil, fmt.Errorf("cannot remove %s: %w", moduleID, ErrInstallInProgress)
	}
	instance, exists := r.instances[moduleID]
	if !exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("remove %s: %w", moduleID, ErrInstanceNotFound)
	}
	delete(r.instances, moduleID)
	snapshot := *instance
	r.mu.Unlock()

	path := r.recordPath(snapshot.InstanceID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &snapshot, fmt.Errorf("failed to remove instance record %s: %w", path, err)
	}
	return &snapshot, nil
}

// LoadInstalled rehydrates the registry from persisted instance records.
// Corrupt records are skipped. The operation is idempotent: re-invocation
// with no intervening mutation yields the same contents.
func (r *InstanceRegistry) LoadInstalled() (int, error) {
	dir := filepath.Join(r.root, instancesDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read instances directory: %w", err)
	}

	loaded := make(map[string]*ModuleInstance)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var instance ModuleInstance
		if err := json.Unmarshal(data, &instance); err != nil {
			continue
		}
		if err := instance.Validate(); err != nil {
			continue
		}
		loaded[instance.ModuleID] = &instance
	}

	r.mu.Lock()
	r.instances = loaded
	count := len(loaded)
	r.mu.Unlock()

	return count, nil
}

// writeRecord persists an instance record atomically to
// instances/<instanceId>.json.
func (r *InstanceRegistry) writeRecord(instance *ModuleInstance) error {
	dir := filepath.Join(r.root, instancesDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WrapInstallationError(ErrCodePersistFailed, instance.ModuleID,
			"failed to create instances directory", err)
	}

	data, err := json.MarshalIndent(instance, "", "  ")
	if err != nil {
		return WrapInstallationError(ErrCodePersistFailed, instance.ModuleID,
			"failed to encode instance record", err)
	}

	path := r.recordPath(instance.InstanceID)
	tmp, err := os.CreateTemp(dir, ".record-*")
	if err != nil {
		return WrapInstallationError(ErrCodePersistFailed, instance.ModuleID,
			"failed to create instance temp file", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return WrapInstallationError(ErrCodePersistFailed, instance.ModuleID,
			"failed to write instance record", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return WrapInstallationError(ErrCodePersistFailed, instance.ModuleID,
			"failed to close instance temp file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return WrapInstallationError(ErrCodePersistFailed, instance.ModuleID,
			"failed to move instance record into place", err)
	}

	return nil
}

func (r *InstanceRegistry) recordPath(instanceID types.ID) string {
	return filepath.Join(r.root, instancesDirName, instanceID.String()+".json")
}
