package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			if err := a.orchestrator.LoadInstalledModules(cmd.Context()); err != nil {
				return err
			}

			instances := a.orchestrator.GetInstalledModules()
			if len(instances) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No modules installed.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODULE\tVERSION\tHEALTH\tENABLED\tINSTALLED")
			for _, instance := range instances {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
					instance.ModuleID,
					instance.Version,
					instance.HealthStatus,
					instance.Enabled,
					instance.InstalledAt.Format("2006-01-02 15:04:05"),
				)
			}
			return w.Flush()
		},
	}
}
