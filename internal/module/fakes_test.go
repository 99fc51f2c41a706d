package module

import (
	"context"
	"fmt"
	"sync"
)

// fakeProbe resolves tool versions from a fixed map. Tools absent from the
// map probe as unavailable.
type fakeProbe struct {
	mu       sync.Mutex
	tools    map[string]string
	osName   string
	memoryGB float64
	memErr   error
	probed   []string
}

func newFakeProbe(tools map[string]string) *fakeProbe {
	return &fakeProbe{
		tools:    tools,
		osName:   "linux",
		memoryGB: 16,
	}
}

func (p *fakeProbe) ToolVersion(_ context.Context, tool string) (string, error) {
	p.mu.Lock()
	p.probed = append(p.probed, tool)
	p.mu.Unlock()

	if output, ok := p.tools[tool]; ok {
		return output, nil
	}
	return "", fmt.Errorf("tool %s not found", tool)
}

func (p *fakeProbe) OSName() string {
	return p.osName
}

func (p *fakeProbe) TotalMemoryGB() (float64, error) {
	if p.memErr != nil {
		return 0, p.memErr
	}
	return p.memoryGB, nil
}

func (p *fakeProbe) probedTools() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.probed...)
}

// fakeRunner records command invocations and optionally fails them.
type fakeRunner struct {
	mu       sync.Mutex
	commands []CommandSpec
	fail     func(spec CommandSpec) error
}

func (r *fakeRunner) Run(_ context.Context, spec CommandSpec) (*CommandResult, error) {
	r.mu.Lock()
	r.commands = append(r.commands, spec)
	r.mu.Unlock()

	if r.fail != nil {
		if err := r.fail(spec); err != nil {
			return &CommandResult{Stderr: err.Error()}, err
		}
	}
	return &CommandResult{Stdout: "ok"}, nil
}

func (r *fakeRunner) recorded() []CommandSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CommandSpec(nil), r.commands...)
}

// fakeVerifier returns scripted health reports in order, repeating the last.
type fakeVerifier struct {
	mu      sync.Mutex
	reports []HealthReport
	calls   int
}

func (v *fakeVerifier) Verify(context.Context, *ModuleInstance, *InstallationMethod) HealthReport {
	v.mu.Lock()
	defer v.mu.Unlock()

	idx := v.calls
	v.calls++
	if idx >= len(v.reports) {
		idx = len(v.reports) - 1
	}
	if idx < 0 {
		return HealthReport{Status: HealthStatusHealthy}
	}
	return v.reports[idx]
}

func (v *fakeVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func testSettings() GlobalSettings {
	return GlobalSettings{
		DefaultTransport: TransportStdio,
		Timeout:          DefaultInstallTimeout,
		RetryAttempts:    0,
		SecurityMode:     SecurityModeBalanced,
	}
}

func testDescriptor(id string) *ModuleDescriptor {
	return &ModuleDescriptor{
		ID:      id,
		Version: "1.0.0",
		Metadata: ModuleMetadata{
			Verified: true,
		},
		Installation: InstallationSpec{
			Methods: []InstallationMethod{
				{Type: MethodTypeNPM, Command: "@example/" + id},
			},
		},
	}
}
