package module

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
)

// DefaultProbeTimeout bounds a single tool-version probe so a stalled external
// tool cannot hang method selection or requirement checks.
const DefaultProbeTimeout = 3 * time.Second

// CapabilityProbe tests whether a tool or runtime is present on the host and
// reports host facts used by requirement checks. Implementations must honor
// context cancellation; the exec-backed implementation is side-effecting, so
// tests inject a fake.
type CapabilityProbe interface {
	// ToolVersion runs a version probe for the named tool and returns the
	// first line of its output. Returns an error if the tool is absent or
	// the probe times out.
	ToolVersion(ctx context.Context, tool string) (string, error)

	// OSName returns the host operating system name (e.g. "linux", "darwin").
	OSName() string

	// TotalMemoryGB returns the host's total physical memory in gigabytes.
	TotalMemoryGB() (float64, error)
}

// ExecProbe probes tool availability by executing "<tool> --version" with a
// bounded timeout.
type ExecProbe struct {
	timeout time.Duration
}

// ExecProbeOption configures an ExecProbe.
type ExecProbeOption func(*ExecProbe)

// WithProbeTimeout sets the per-probe timeout.
func WithProbeTimeout(timeout time.Duration) ExecProbeOption {
	return func(p *ExecProbe) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// NewExecProbe creates a new exec-backed capability probe.
func NewExecProbe(opts ...ExecProbeOption) *ExecProbe {
	p := &ExecProbe{timeout: DefaultProbeTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ToolVersion runs "<tool> --version" and returns the first output line.
func (p *ExecProbe) ToolVersion(ctx context.Context, tool string) (string, error) {
	if tool == "" {
		return "", fmt.Errorf("tool name is required")
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, tool, "--version")
	out, err := cmd.CombinedOutput()
	if err != nil {
		if probeCtx.Err() != nil {
			return "", fmt.Errorf("probe for %s timed out after %s", tool, p.timeout)
		}
		return "", fmt.Errorf("tool %s is not available: %w", tool, err)
	}

	line := strings.TrimSpace(string(out))
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	return line, nil
}

// OSName returns the compile-time operating system name.
func (p *ExecProbe) OSName() string {
	return runtime.GOOS
}

// TotalMemoryGB returns the host's total physical memory in gigabytes.
func (p *ExecProbe) TotalMemoryGB() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("failed to read host memory: %w", err)
	}
	return float64(vm.Total) / (1 << 30), nil
}

// extractVersion pulls the first dotted numeric version out of probe output
// such as "v18.17.0" or "Python 3.11.4".
func extractVersion(output string) string {
	start := -1
	for i := 0; i < len(output); i++ {
		c := output[i]
		if c >= '0' && c <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	end := start
	for end < len(output) {
		c := output[end]
		if (c >= '0' && c <= '9') || c == '.' {
			end++
			continue
		}
		break
	}
	return strings.TrimRight(output[start:end], ".")
}

// compareVersions compares two dotted versions component-wise and reports
// whether actual >= required. Missing trailing components are treated as zero,
// so "18" satisfies "18.0.0" and vice versa.
func compareVersions(actual, required string) (bool, error) {
	actualParts, err := splitVersion(actual)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", actual, err)
	}
	requiredParts, err := splitVersion(required)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", required, err)
	}

	n := len(actualParts)
	if len(requiredParts) > n {
		n = len(requiredParts)
	}
	for i := 0; i < n; i++ {
		a, r := 0, 0
		if i < len(actualParts) {
			a = actualParts[i]
		}
		if i < len(requiredParts) {
			r = requiredParts[i]
		}
		if a > r {
			return true, nil
		}
		if a < r {
			return false, nil
		}
	}
	return true, nil
}

func splitVersion(v string) ([]int, error) {
	if v == "" {
		return nil, fmt.Errorf("version is empty")
	}
	segments := strings.Split(v, ".")
	parts := make([]int, 0, len(segments))
	for _, seg := range segments {
		n, err := strconv.Atoi(seg)
		if err != nil {
			return nil, fmt.Errorf("component %q is not numeric", seg)
		}
		parts = append(parts, n)
	}
	return parts, nil
}
