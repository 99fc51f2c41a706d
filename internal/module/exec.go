package module

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// DefaultInstallTimeout bounds a single install subprocess when global
// settings do not specify one.
const DefaultInstallTimeout = 5 * time.Minute

// killGracePeriod is how long a timed-out child gets between cancellation and
// a hard kill before Run returns.
const killGracePeriod = 3 * time.Second

// CommandSpec describes one subprocess invocation.
type CommandSpec struct {
	// Command is the executable to run.
	Command string

	// Args are the command arguments.
	Args []string

	// Env is an overlay applied on top of the process environment.
	Env map[string]string

	// Timeout bounds the invocation. Zero means DefaultInstallTimeout.
	Timeout time.Duration
}

// CommandResult contains the captured output of a completed invocation.
type CommandResult struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// CommandRunner executes subprocess invocations. The exec-backed
// implementation is side-effecting; tests inject a fake.
type CommandRunner interface {
	// Run executes the command described by spec. A non-zero exit or a
	// timeout returns an error; on timeout the child process is terminated
	// before the error propagates.
	Run(ctx context.Context, spec CommandSpec) (*CommandResult, error)
}

// ExecRunner is the default CommandRunner built on os/exec.
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command with the environment overlay and bounded timeout.
func (r *ExecRunner) Run(ctx context.Context, spec CommandSpec) (*CommandResult, error) {
	if spec.Command == "" {
		return nil, fmt.Errorf("command is required")
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultInstallTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.Command, spec.Args...)
	cmd.Env = os.Environ()
	for key, value := range spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	// WaitDelay guarantees Wait returns even if the child ignores the kill
	// signal and holds its output pipes open.
	cmd.WaitDelay = killGracePeriod

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("command %s timed out after %s", spec.Command, timeout)
		}
		return result, fmt.Errorf("command %s failed: %w", spec.Command, err)
	}

	return result, nil
}

// Executor runs the module's own install command for a selected method.
type Executor struct {
	runner   CommandRunner
	settings GlobalSettings
}

// NewExecutor creates a new Executor.
func NewExecutor(runner CommandRunner, settings GlobalSettings) *Executor {
	return &Executor{runner: runner, settings: settings}
}

// Install executes the install command appropriate for the method type.
// A zero timeout falls back to the global settings timeout.
func (e *Executor) Install(ctx context.Context, desc *ModuleDescriptor, method *InstallationMethod, timeout time.Duration) (*CommandResult, error) {
	if timeout <= 0 {
		timeout = e.settings.Timeout
	}

	spec, err := installCommand(method)
	if err != nil {
		return nil, WrapInstallationError(ErrCodeExecutionFailed, desc.ID,
			"could not build install command", err).WithMethod(method)
	}
	spec.Timeout = timeout
	spec.Env = method.Env

	result, err := e.runner.Run(ctx, *spec)
	if err != nil {
		return result, WrapInstallationError(ErrCodeExecutionFailed, desc.ID,
			fmt.Sprintf("install command for method %s failed", method.Type), err).
			WithMethod(method)
	}
	return result, nil
}

// installCommand shapes the subprocess invocation per method type:
// npm installs the package, npx only smoke-checks (it resolves on demand),
// python installs via pip, docker pulls the image, binary version-checks a
// pre-existing executable, and custom invokes the command directly.
func installCommand(method *InstallationMethod) (*CommandSpec, error) {
	switch method.Type {
	case MethodTypeNPM:
		args := append([]string{"install", "-g", method.Command}, method.Args...)
		return &CommandSpec{Command: "npm", Args: args}, nil
	case MethodTypeNPX:
		return &CommandSpec{Command: "npx", Args: []string{"--yes", method.Command, "--help"}}, nil
	case MethodTypePython:
		args := append([]string{"install", method.Command}, method.Args...)
		return &CommandSpec{Command: "pip3", Args: args}, nil
	case MethodTypeDocker:
		return &CommandSpec{Command: "docker", Args: []string{"pull", method.Command}}, nil
	case MethodTypeBinary:
		return &CommandSpec{Command: method.Command, Args: []string{"--version"}}, nil
	case MethodTypeCustom:
		return &CommandSpec{Command: method.Command, Args: method.Args}, nil
	default:
		return nil, fmt.Errorf("unsupported method type: %s", method.Type)
	}
}
