package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/modman-dev/modman/internal/events"
	"github.com/modman-dev/modman/internal/module"
)

func newInstallCommand() *cobra.Command {
	var (
		methodName string
		values     []string
		configJSON string
	)

	cmd := &cobra.Command{
		Use:   "install DESCRIPTOR_FILE",
		Short: "Install a module from a descriptor file",
		Long: `Install a module described by a YAML or JSON descriptor file.

Configuration values can be supplied inline:
  modman install ./weather.yaml --set apiKey=abc123 --set region=eu

or as a JSON object:
  modman install ./weather.yaml --config-json '{"apiKey":"abc123"}'

By default the installation method is chosen by preference order
(npm, npx, python, docker, binary, custom) among the methods the
descriptor declares; --method forces a specific one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, args[0], methodName, values, configJSON)
		},
	}

	cmd.Flags().StringVar(&methodName, "method", "", "Force an installation method (npm, npx, python, docker, binary, custom)")
	cmd.Flags().StringArrayVar(&values, "set", nil, "Set a configuration value (key=value, repeatable)")
	cmd.Flags().StringVar(&configJSON, "config-json", "", "Configuration values as a JSON object")

	return cmd
}

func runInstall(cmd *cobra.Command, descriptorPath, methodName string, values []string, configJSON string) error {
	ctx := cmd.Context()

	desc, err := module.LoadDescriptor(descriptorPath)
	if err != nil {
		return err
	}

	userConfig, err := parseUserConfig(values, configJSON)
	if err != nil {
		return err
	}

	var preferred *module.MethodType
	if methodName != "" {
		m, err := module.ParseMethodType(methodName)
		if err != nil {
			return err
		}
		preferred = &m
	}

	a, err := buildApp()
	if err != nil {
		return err
	}

	// Stream lifecycle events for this module to the terminal while the
	// installation runs.
	ch, unsubscribe := a.orchestrator.Events().Subscribe(ctx, events.Filter{ModuleID: desc.ID}, 0)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for event := range ch {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", event.Type)
		}
	}()

	result, installErr := a.orchestrator.InstallModule(ctx, desc, userConfig, preferred)
	unsubscribe()
	wg.Wait()

	if installErr != nil {
		return installErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Installed %s via %s in %s\n",
		result.ModuleID, result.Method.Type, result.Duration.Round(time.Millisecond))
	return nil
}

// parseUserConfig merges --config-json and --set values, with --set winning
// on key conflicts.
func parseUserConfig(values []string, configJSON string) (map[string]any, error) {
	out := make(map[string]any)
	if configJSON != "" {
		if err := json.Unmarshal([]byte(configJSON), &out); err != nil {
			return nil, fmt.Errorf("invalid --config-json: %w", err)
		}
	}
	for _, kv := range values {
		key, value, found := strings.Cut(kv, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --set value %q, expected key=value", kv)
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
