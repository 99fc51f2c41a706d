package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall MODULE_ID",
		Short: "Remove an installed module",
		Long: `Remove a module's instance and configuration records.

Fails if the module is not installed or is currently being installed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			moduleID := args[0]

			a, err := buildApp()
			if err != nil {
				return err
			}
			if err := a.orchestrator.LoadInstalledModules(cmd.Context()); err != nil {
				return err
			}

			if err := a.orchestrator.UninstallModule(cmd.Context(), moduleID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uninstalled %s\n", moduleID)
			return nil
		},
	}
}
