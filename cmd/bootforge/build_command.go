package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bootforge/internal/api"
	"bootforge/internal/builder"
)

func newBuildCommand(ctx *commandContext) *cobra.Command {
	var (
		passphrase string
		token      string
		bumpApp    bool
		bumpModel  bool
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Seal the token, bump versions, and run the packaging tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPortal(func(portal *api.Portal) error {
				resp, err := portal.Build(cmd.Context(), builder.Request{
					Passphrase: passphrase,
					Token:      token,
					BumpApp:    bumpApp,
					BumpModel:  bumpModel,
				})
				if resp != nil {
					if jsonOut {
						if writeErr := writeJSON(cmd, resp); writeErr != nil {
							return writeErr
						}
					} else {
						printBuildResult(cmd, resp)
					}
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&passphrase, "passphrase", "", "Encryption passphrase (defaults to configured policy)")
	cmd.Flags().StringVar(&token, "token", "", "Secret token to seal (defaults to configured policy)")
	cmd.Flags().BoolVar(&bumpApp, "bump-app", false, "Bump the application version")
	cmd.Flags().BoolVar(&bumpModel, "bump-model", false, "Bump the model version")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printBuildResult(cmd *cobra.Command, resp *api.BuildResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		[]string{"Field", "Value"},
		[][]string{
			{"OK", yesNo(resp.OK)},
			{"Exit code", fmt.Sprintf("%d", resp.ExitCode)},
			{"Timed out", yesNo(resp.TimedOut)},
			{"App version", fmt.Sprintf("%s -> %s", resp.Bump.Current.App, resp.Bump.Next.App)},
			{"Model version", fmt.Sprintf("%s -> %s", resp.Bump.Current.Model, resp.Bump.Next.Model)},
			{"Command", resp.Command},
		},
		[]columnAlignment{alignLeft, alignLeft},
	))
	if artifacts := strings.Join(resp.Artifacts, "\n"); artifacts != "" {
		fmt.Fprintf(out, "artifacts:\n%s\n", artifacts)
	}
	if strings.TrimSpace(resp.Stdout) != "" {
		fmt.Fprintf(out, "tool stdout:\n%s\n", resp.Stdout)
	}
	if strings.TrimSpace(resp.Stderr) != "" {
		fmt.Fprintf(out, "tool stderr:\n%s\n", resp.Stderr)
	}
}
