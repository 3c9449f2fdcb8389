package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"bootforge/internal/api"
)

func newFilesCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List structured-data files in the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPortal(func(portal *api.Portal) error {
				files, err := portal.ListFiles()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.FileListResponse{Files: files})
				}
				if len(files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no structured-data files found")
					return nil
				}
				rows := make([][]string, 0, len(files))
				for _, file := range files {
					rows = append(rows, []string{file.Name, strconv.FormatInt(file.Size, 10), file.Modified})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Name", "Size", "Modified"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
