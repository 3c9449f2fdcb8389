package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bootforge/internal/api"
)

func newVersionsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Show the current manifest versions and what a build would bump them to",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPortal(func(portal *api.Portal) error {
				delta, err := portal.Versions()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, delta)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Dimension", "Current", "Next"},
					[][]string{
						{"app", delta.Current.App, delta.Next.App},
						{"model", delta.Current.Model, delta.Next.Model},
					},
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
