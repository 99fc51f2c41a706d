package module

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// DependencyInstaller installs a module's declared dependencies using the
// package ecosystem of the selected installation method.
type DependencyInstaller struct {
	runner CommandRunner
}

// NewDependencyInstaller creates a new DependencyInstaller.
func NewDependencyInstaller(runner CommandRunner) *DependencyInstaller {
	return &DependencyInstaller{runner: runner}
}

// Install installs the merged dependency set for the selected method.
// An empty set is a no-op. Docker dependencies are assumed baked into the
// image. Binary and custom methods cannot install dependencies automatically
// and return a warning instead of failing. Any invocation failure wraps the
// underlying error with module and method context and aborts the pipeline.
func (d *DependencyInstaller) Install(ctx context.Context, desc *ModuleDescriptor, method *InstallationMethod, timeout time.Duration) ([]Warning, error) {
	deps := mergeDependencies(desc.Installation.Dependencies, desc.Installation.DevDependencies)
	if len(deps) == 0 {
		return nil, nil
	}

	switch method.Type {
	case MethodTypeNPM, MethodTypeNPX:
		args := append([]string{"install", "-g"}, formatDependencies(deps, "@")...)
		return nil, d.run(ctx, desc, method, CommandSpec{
			Command: "npm",
			Args:    args,
			Timeout: timeout,
		})
	case MethodTypePython:
		args := append([]string{"install"}, formatDependencies(deps, "==")...)
		return nil, d.run(ctx, desc, method, CommandSpec{
			Command: "pip3",
			Args:    args,
			Timeout: timeout,
		})
	case MethodTypeDocker:
		// Dependencies ship inside the image.
		return nil, nil
	case MethodTypeBinary, MethodTypeCustom:
		return []Warning{{
			Kind:     WarningKindDependency,
			ModuleID: desc.ID,
			Detail: fmt.Sprintf("method %s cannot install dependencies automatically; manual intervention may be required",
				method.Type),
		}}, nil
	default:
		return nil, NewInstallationError(ErrCodeDependencyFailed, desc.ID,
			fmt.Sprintf("unsupported method type %s for dependency installation", method.Type)).
			WithMethod(method)
	}
}

func (d *DependencyInstaller) run(ctx context.Context, desc *ModuleDescriptor, method *InstallationMethod, spec CommandSpec) error {
	if _, err := d.runner.Run(ctx, spec); err != nil {
		return WrapInstallationError(ErrCodeDependencyFailed, desc.ID,
			"dependency installation failed", err).WithMethod(method)
	}
	return nil
}

// mergeDependencies combines dependencies and devDependencies; on duplicate
// keys the dependencies entry wins.
func mergeDependencies(deps, devDeps map[string]string) map[string]string {
	merged := make(map[string]string, len(deps)+len(devDeps))
	for name, version := range devDeps {
		merged[name] = version
	}
	for name, version := range deps {
		merged[name] = version
	}
	return merged
}

// formatDependencies renders name/version pairs with the given separator in
// sorted order so invocations are deterministic.
func formatDependencies(deps map[string]string, sep string) []string {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		version := deps[name]
		if version == "" {
			out = append(out, name)
			continue
		}
		out = append(out, name+sep+version)
	}
	return out
}
