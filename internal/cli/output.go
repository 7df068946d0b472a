package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Colors used in text output. fatih/color disables them automatically
// when stdout is not a terminal or NO_COLOR is set.
var (
	successColor = color.New(color.FgGreen, color.Bold)
	failureColor = color.New(color.FgRed, color.Bold)
	labelColor   = color.New(color.Faint)
)

// printSuccess writes a "✓ ..." line.
func printSuccess(w io.Writer, format string, args ...interface{}) {
	successColor.Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

// printFailure writes a "✗ ..." line.
func printFailure(w io.Writer, format string, args ...interface{}) {
	failureColor.Fprint(w, "✗ ")
	fmt.Fprintf(w, format+"\n", args...)
}

// printField writes an aligned "label: value" line.
func printField(w io.Writer, label, value string) {
	labelColor.Fprintf(w, "%-18s", label+":")
	fmt.Fprintln(w, value)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(data))
}
