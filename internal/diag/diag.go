// Package diag prints verbosity-gated diagnostics for the conformance
// harness. Quiet mode suppresses everything routed through here; the
// result summary is printed elsewhere and is never gated.
package diag

import (
	"encoding/json"
	"fmt"
	"io"
)

func Printf(w io.Writer, enabled bool, format string, args ...any) {
	if !enabled {
		return
	}
	fmt.Fprintf(w, format, args...)
}

// Section prints a "=== title ===" banner.
func Section(w io.Writer, enabled bool, title string) {
	if !enabled || title == "" {
		return
	}
	fmt.Fprintf(w, "\n=== %s ===\n", title)
}

// JSON pretty-prints value under an optional banner.
func JSON(w io.Writer, enabled bool, title string, value any) {
	if !enabled {
		return
	}
	Section(w, enabled, title)
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "<marshal error: %v>\n", err)
		return
	}
	fmt.Fprintf(w, "%s\n", data)
}
