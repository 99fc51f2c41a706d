package module

import (
	"context"
	"fmt"
)

// MethodSelector chooses the best available installation method from a
// descriptor's declared methods by probing tool availability.
type MethodSelector struct {
	probe CapabilityProbe
}

// NewMethodSelector creates a new MethodSelector.
func NewMethodSelector(probe CapabilityProbe) *MethodSelector {
	return &MethodSelector{probe: probe}
}

// Select returns the best available method declared by the descriptor.
// A non-nil preferred type wins if it is declared and probes available.
// Otherwise candidates are tried in fixed preference order (npm > npx >
// python > docker > binary > custom), then in declaration order as a
// fallback. Returns a no-compatible-method error if nothing probes available.
func (s *MethodSelector) Select(ctx context.Context, desc *ModuleDescriptor, preferred *MethodType) (*InstallationMethod, error) {
	if len(desc.Installation.Methods) == 0 {
		return nil, NewNoCompatibleMethodError(desc.ID)
	}

	if preferred != nil {
		if method := findMethod(desc, *preferred); method != nil {
			if s.available(ctx, method) {
				return method, nil
			}
			return nil, NewInstallationError(ErrCodeNoCompatibleMethod, desc.ID,
				fmt.Sprintf("requested method %s is not available on this host", *preferred)).
				WithMethod(method)
		}
		return nil, NewInstallationError(ErrCodeNoCompatibleMethod, desc.ID,
			fmt.Sprintf("module %s does not declare method %s", desc.ID, *preferred))
	}

	for _, methodType := range MethodPreferenceOrder() {
		method := findMethod(desc, methodType)
		if method == nil {
			continue
		}
		if s.available(ctx, method) {
			return method, nil
		}
	}

	// No preferred type probed available; fall back to declaration order.
	for i := range desc.Installation.Methods {
		method := &desc.Installation.Methods[i]
		if s.available(ctx, method) {
			return method, nil
		}
	}

	return nil, NewNoCompatibleMethodError(desc.ID)
}

// available probes the tool backing an installation method.
func (s *MethodSelector) available(ctx context.Context, method *InstallationMethod) bool {
	_, err := s.probe.ToolVersion(ctx, probeToolFor(method))
	return err == nil
}

// probeToolFor maps a method to the executable whose presence makes it usable.
// Binary and custom methods are probed through their own command.
func probeToolFor(method *InstallationMethod) string {
	switch method.Type {
	case MethodTypeNPM:
		return "npm"
	case MethodTypeNPX:
		return "npx"
	case MethodTypePython:
		return "pip3"
	case MethodTypeDocker:
		return "docker"
	default:
		return method.Command
	}
}

// findMethod returns the first declared method of the given type, or nil.
func findMethod(desc *ModuleDescriptor, methodType MethodType) *InstallationMethod {
	for i := range desc.Installation.Methods {
		if desc.Installation.Methods[i].Type == methodType {
			return &desc.Installation.Methods[i]
		}
	}
	return nil
}
