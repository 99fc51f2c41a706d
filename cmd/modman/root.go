package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "modman",
	Short: "Install and manage pluggable modules",
	Long: `modman installs pluggable modules from descriptor files, resolves their
configuration, and tracks installed instances with verified health status.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(),
		"Path to the settings file")

	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newUninstallCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newLoadCommand())
}

// Execute runs the root command with the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "modman.yaml"
	}
	return filepath.Join(home, ".modman", "config.yaml")
}
