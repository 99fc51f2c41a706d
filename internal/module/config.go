package module

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// configsDirName is the directory under the manager root holding one
// configuration record per module.
const configsDirName = "configs"

// ResolvedConfig is the outcome of a successful configuration phase.
type ResolvedConfig struct {
	// Persisted is the configuration written to disk: merged defaults and
	// overrides plus resolved non-sensitive environment values.
	Persisted map[string]any

	// RuntimeEnv holds every resolved environment value, sensitive ones
	// included. It is handed to the running module and never written out.
	RuntimeEnv map[string]string
}

// ConfigurationManager merges, validates, and persists module configuration.
// Resolution is side-effect free; nothing is written until Persist.
type ConfigurationManager struct {
	root      string
	lookupEnv func(string) (string, bool)
}

// ConfigurationManagerOption configures a ConfigurationManager.
type ConfigurationManagerOption func(*ConfigurationManager)

// WithEnvLookup overrides process environment lookup, for deterministic tests.
func WithEnvLookup(lookup func(string) (string, bool)) ConfigurationManagerOption {
	return func(m *ConfigurationManager) {
		if lookup != nil {
			m.lookupEnv = lookup
		}
	}
}

// NewConfigurationManager creates a manager rooted at the given directory.
func NewConfigurationManager(root string, opts ...ConfigurationManagerOption) *ConfigurationManager {
	m := &ConfigurationManager{
		root:      root,
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve merges descriptor defaults with caller-supplied configuration,
// validates required keys, and resolves the environment variable contract.
// Every failure names the offending key or variable and leaves no side effect.
func (m *ConfigurationManager) Resolve(desc *ModuleDescriptor, userConfig map[string]any) (*ResolvedConfig, error) {
	merged := make(map[string]any, len(desc.Configuration.Examples)+len(userConfig))
	for key, value := range desc.Configuration.Examples {
		merged[key] = value
	}
	for key, value := range userConfig {
		merged[key] = value
	}

	runtimeEnv := make(map[string]string)

	// Deterministic resolution order keeps failures stable when several
	// variables are invalid at once.
	names := make([]string, 0, len(desc.Configuration.Env))
	for name := range desc.Configuration.Env {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := desc.Configuration.Env[name]

		value, present := m.lookupEnv(name)
		if !present {
			if spec.Required && spec.Default == "" {
				return nil, NewMissingEnvVarError(desc.ID, name)
			}
			value = spec.Default
		}
		if value == "" {
			continue
		}

		if err := validateEnvValue(desc.ID, name, value, spec.Validation); err != nil {
			return nil, err
		}

		runtimeEnv[name] = value
		if !spec.Sensitive {
			merged[configKeyForEnv(name)] = value
		}
	}

	// Required keys are checked after environment folding so a key sourced
	// from a non-sensitive environment variable counts as present.
	for _, key := range desc.Configuration.Required {
		if _, ok := merged[key]; !ok {
			return nil, NewMissingKeyError(desc.ID, key)
		}
	}

	return &ResolvedConfig{Persisted: merged, RuntimeEnv: runtimeEnv}, nil
}

// Persist writes the module's configuration record atomically to
// configs/<moduleID>.json. Failure paths leave no partial file behind.
func (m *ConfigurationManager) Persist(moduleID string, cfg *ResolvedConfig) error {
	dir := filepath.Join(m.root, configsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WrapInstallationError(ErrCodePersistFailed, moduleID,
			"failed to create configs directory", err)
	}

	data, err := json.MarshalIndent(cfg.Persisted, "", "  ")
	if err != nil {
		return WrapInstallationError(ErrCodePersistFailed, moduleID,
			"failed to encode configuration", err)
	}

	path := m.ConfigPath(moduleID)
	tmp, err := os.CreateTemp(dir, "."+moduleID+"-*")
	if err != nil {
		return WrapInstallationError(ErrCodePersistFailed, moduleID,
			"failed to create configuration temp file", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return WrapInstallationError(ErrCodePersistFailed, moduleID,
			"failed to write configuration", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return WrapInstallationError(ErrCodePersistFailed, moduleID,
			"failed to close configuration temp file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return WrapInstallationError(ErrCodePersistFailed, moduleID,
			"failed to move configuration into place", err)
	}

	return nil
}

// Load reads a persisted configuration record.
func (m *ConfigurationManager) Load(moduleID string) (map[string]any, error) {
	data, err := os.ReadFile(m.ConfigPath(moduleID))
	if err != nil {
		return nil, err
	}
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("corrupt configuration record for %s: %w", moduleID, err)
	}
	return cfg, nil
}

// Remove deletes the module's configuration record. Missing files are not an error.
func (m *ConfigurationManager) Remove(moduleID string) error {
	err := os.Remove(m.ConfigPath(moduleID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ConfigPath returns the on-disk path of the module's configuration record.
func (m *ConfigurationManager) ConfigPath(moduleID string) string {
	return filepath.Join(m.root, configsDirName, moduleID+".json")
}

// validateEnvValue applies an environment variable's validation constraints.
func validateEnvValue(moduleID, name, value string, v *EnvVarValidation) error {
	if v == nil {
		return nil
	}

	if v.Pattern != "" {
		re, err := regexp.Compile(v.Pattern)
		if err != nil {
			return NewInvalidEnvVarError(moduleID, name,
				fmt.Sprintf("invalid validation pattern %q", v.Pattern))
		}
		if !re.MatchString(value) {
			return NewInvalidEnvVarError(moduleID, name,
				fmt.Sprintf("value does not match pattern %q", v.Pattern))
		}
	}

	if v.MinLength > 0 && len(value) < v.MinLength {
		return NewInvalidEnvVarError(moduleID, name,
			fmt.Sprintf("value is shorter than %d characters", v.MinLength))
	}
	if v.MaxLength > 0 && len(value) > v.MaxLength {
		return NewInvalidEnvVarError(moduleID, name,
			fmt.Sprintf("value is longer than %d characters", v.MaxLength))
	}

	if len(v.Allowed) > 0 {
		for _, allowed := range v.Allowed {
			if value == allowed {
				return nil
			}
		}
		return NewInvalidEnvVarError(moduleID, name, "value is not in the allowed set")
	}

	return nil
}

// configKeyForEnv converts an environment variable name like API_KEY into the
// camelCase configuration key it folds into, apiKey.
func configKeyForEnv(name string) string {
	out := make([]byte, 0, len(name))
	upperNext := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' {
			upperNext = true
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if upperNext {
			if c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
			upperNext = false
		}
		out = append(out, c)
	}
	return string(out)
}
