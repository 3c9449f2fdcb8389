package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bootforge/internal/api"
	"bootforge/internal/preview"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Fetch and inspect the published encrypted bundle",
	}
	cmd.AddCommand(newPreviewFetchCommand(ctx))
	cmd.AddCommand(newPreviewReadCommand(ctx))
	return cmd
}

func newPreviewFetchCommand(ctx *commandContext) *cobra.Command {
	var (
		url        string
		passphrase string
		force      bool
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download, decrypt, and index the published bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPortal(func(portal *api.Portal) error {
				resp, err := portal.PreviewFetch(cmd.Context(), preview.FetchRequest{
					URL:          url,
					Passphrase:   passphrase,
					ForceRefresh: force,
				})
				if resp != nil {
					if jsonOut {
						if writeErr := writeJSON(cmd, resp); writeErr != nil {
							return writeErr
						}
					} else {
						printFetchResult(cmd, resp, err == nil)
					}
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Bundle URL (defaults to preview.default_url)")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "Decryption passphrase (defaults to configured policy)")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass intermediate caches")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newPreviewReadCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <name>",
		Short: "Print one extracted structured-data entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPortal(func(portal *api.Portal) error {
				text, err := portal.PreviewRead(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(text, "\n"))
				return nil
			})
		},
	}
	return cmd
}

func printFetchResult(cmd *cobra.Command, resp *api.FetchResponse, ok bool) {
	out := cmd.OutOrStdout()
	if ok {
		fmt.Fprintf(out, "downloaded %d bytes, %d entries\n", resp.DownloadBytes, len(resp.Entries))
	}
	if len(resp.Entries) > 0 {
		rows := make([][]string, 0, len(resp.Entries))
		for _, entry := range resp.Entries {
			rows = append(rows, []string{entry.Name, strconv.FormatUint(entry.Size, 10)})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Entry", "Size"},
			rows,
			[]columnAlignment{alignLeft, alignRight},
		))
	}
	if strings.TrimSpace(resp.Stderr) != "" {
		fmt.Fprintf(out, "tool stderr:\n%s\n", resp.Stderr)
	}
}
