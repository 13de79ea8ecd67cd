package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

func outputJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// newTable returns a tabwriter with the column spacing used by every listing.
func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// yesNo renders a flag column.
func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
