package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Rehydrate the registry from persisted instance records",
		Long: `Read the persisted instance records from disk and report how many
loaded cleanly. Corrupt records are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			if err := a.orchestrator.LoadInstalledModules(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d installed module(s)\n",
				len(a.orchestrator.GetInstalledModules()))
			return nil
		},
	}
}
