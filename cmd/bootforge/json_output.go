package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON renders v to the command's stdout for the --json flag. Output
// is indented so it is pasteable into the editor surface as-is.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
