package module

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallCommandShapes(t *testing.T) {
	tests := []struct {
		name        string
		method      InstallationMethod
		wantCommand string
		wantArgs    []string
	}{
		{
			name:        "npm",
			method:      InstallationMethod{Type: MethodTypeNPM, Command: "@example/weather", Args: []string{"--no-fund"}},
			wantCommand: "npm",
			wantArgs:    []string{"install", "-g", "@example/weather", "--no-fund"},
		},
		{
			name:        "npx smoke check",
			method:      InstallationMethod{Type: MethodTypeNPX, Command: "@example/weather"},
			wantCommand: "npx",
			wantArgs:    []string{"--yes", "@example/weather", "--help"},
		},
		{
			name:        "python",
			method:      InstallationMethod{Type: MethodTypePython, Command: "example-weather"},
			wantCommand: "pip3",
			wantArgs:    []string{"install", "example-weather"},
		},
		{
			name:        "docker pull",
			method:      InstallationMethod{Type: MethodTypeDocker, Command: "example/weather:latest"},
			wantCommand: "docker",
			wantArgs:    []string{"pull", "example/weather:latest"},
		},
		{
			name:        "binary version check",
			method:      InstallationMethod{Type: MethodTypeBinary, Command: "weather-cli"},
			wantCommand: "weather-cli",
			wantArgs:    []string{"--version"},
		},
		{
			name:        "custom direct",
			method:      InstallationMethod{Type: MethodTypeCustom, Command: "./install.sh", Args: []string{"--prefix", "/opt"}},
			wantCommand: "./install.sh",
			wantArgs:    []string{"--prefix", "/opt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := installCommand(&tt.method)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCommand, spec.Command)
			assert.Equal(t, tt.wantArgs, spec.Args)
		})
	}
}

func TestExecutorInstallPassesEnvAndTimeout(t *testing.T) {
	runner := &fakeRunner{}
	executor := NewExecutor(runner, testSettings())

	method := &InstallationMethod{
		Type:    MethodTypeNPM,
		Command: "@example/weather",
		Env:     map[string]string{"NPM_TOKEN": "secret"},
	}

	_, err := executor.Install(context.Background(), testDescriptor("weather"), method, time.Minute)
	require.NoError(t, err)

	commands := runner.recorded()
	require.Len(t, commands, 1)
	assert.Equal(t, time.Minute, commands[0].Timeout)
	assert.Equal(t, map[string]string{"NPM_TOKEN": "secret"}, commands[0].Env)
}

func TestExecutorInstallZeroTimeoutUsesSettings(t *testing.T) {
	runner := &fakeRunner{}
	settings := testSettings()
	settings.Timeout = 42 * time.Second
	executor := NewExecutor(runner, settings)

	_, err := executor.Install(context.Background(), testDescriptor("weather"),
		&InstallationMethod{Type: MethodTypeNPM, Command: "@example/weather"}, 0)
	require.NoError(t, err)

	commands := runner.recorded()
	require.Len(t, commands, 1)
	assert.Equal(t, 42*time.Second, commands[0].Timeout)
}

func TestExecutorInstallFailureWrapsContext(t *testing.T) {
	cause := errors.New("exit status 1")
	runner := &fakeRunner{fail: func(CommandSpec) error { return cause }}
	executor := NewExecutor(runner, testSettings())

	method := &InstallationMethod{Type: MethodTypeNPM, Command: "@example/weather"}
	_, err := executor.Install(context.Background(), testDescriptor("weather"), method, 0)

	var instErr *InstallationError
	require.ErrorAs(t, err, &instErr)
	assert.Equal(t, ErrCodeExecutionFailed, instErr.Code)
	assert.Equal(t, method, instErr.Method)
	assert.ErrorIs(t, err, cause)
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	runner := NewExecRunner()
	result, err := runner.Run(context.Background(), CommandSpec{
		Command: "sh",
		Args:    []string{"-c", "echo out; echo err >&2"},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "out\n", result.Stdout)
	assert.Equal(t, "err\n", result.Stderr)
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestExecRunnerEnvOverlay(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	runner := NewExecRunner()
	result, err := runner.Run(context.Background(), CommandSpec{
		Command: "sh",
		Args:    []string{"-c", "echo $WEATHER_TOKEN"},
		Env:     map[string]string{"WEATHER_TOKEN": "abc123"},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123\n", result.Stdout)
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	runner := NewExecRunner()
	_, err := runner.Run(context.Background(), CommandSpec{
		Command: "sh",
		Args:    []string{"-c", "exit 3"},
		Timeout: 5 * time.Second,
	})
	assert.Error(t, err)
}

func TestExecRunnerTimeoutKillsChild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	runner := NewExecRunner()
	start := time.Now()
	_, err := runner.Run(context.Background(), CommandSpec{
		Command: "sh",
		Args:    []string{"-c", "sleep 30"},
		Timeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecRunnerMissingCommand(t *testing.T) {
	runner := NewExecRunner()
	_, err := runner.Run(context.Background(), CommandSpec{})
	assert.Error(t, err)
}
