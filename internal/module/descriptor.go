package module

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadDescriptor reads a module descriptor from a YAML or JSON file and
// validates it. YAML is a superset of JSON, so both formats parse through
// the same path; keys follow the descriptor's JSON field names.
func LoadDescriptor(path string) (*ModuleDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor %s: %w", path, err)
	}
	return ParseDescriptor(data)
}

// ParseDescriptor parses descriptor bytes in YAML or JSON form.
func ParseDescriptor(data []byte) (*ModuleDescriptor, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor: %w", err)
	}

	// Round-trip through JSON so the descriptor's json tags apply to YAML
	// input as well.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize descriptor: %w", err)
	}

	var desc ModuleDescriptor
	if err := json.Unmarshal(encoded, &desc); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor: %w", err)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return &desc, nil
}
