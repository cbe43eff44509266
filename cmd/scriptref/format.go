package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

// formatDiagnosticsText formats diagnostics compiler-style.
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s: %s [%s]", d.File, d.StartLine, d.StartCol, d.Severity, d.Message, d.Code)
		if len(d.Suggestions) > 0 {
			fmt.Fprintf(w, " (did you mean %s?)", strings.Join(d.Suggestions, ", "))
		}
		fmt.Fprintln(w)
	}
}

func formatReferencesText(w io.Writer, refs CLIReferences) {
	fmt.Fprintf(w, "%s %s\n", refs.ItemType, refs.Name)
	formatLocationsText(w, refs.Locations)
}

// formatCompletionsText formats CLICompletion results as aligned columns.
func formatCompletionsText(w io.Writer, cs []CLICompletion) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tDETAIL")
	for _, c := range cs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.ItemType, c.Detail)
	}
	tw.Flush()
}

// formatDefinitionsText formats CLIDefinition results as aligned columns.
func formatDefinitionsText(w io.Writer, defs []CLIDefinition) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tFILE\tLINE\tCOL")
	for _, d := range defs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", d.Name, d.ItemType, d.File, d.StartLine, d.StartCol)
	}
	tw.Flush()
}

func formatStatsText(w io.Writer, s CLIStats) {
	fmt.Fprintln(w, "Scan Summary")
	fmt.Fprintln(w, "============")
	fmt.Fprintf(w, "Discovered: %d\n", s.Discovered)
	fmt.Fprintf(w, "Indexed:    %d\n", s.Indexed)
	fmt.Fprintf(w, "Unchanged:  %d\n", s.Unchanged)
	fmt.Fprintf(w, "Skipped:    %d\n", s.Skipped)
	fmt.Fprintf(w, "Removed:    %d\n", s.Removed)
	fmt.Fprintf(w, "Failed:     %d\n", s.Failed)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case CLIReferences:
		formatReferencesText(w, v)
	case CLIHover:
		fmt.Fprintln(w, v.Contents)
	case []CLICompletion:
		formatCompletionsText(w, v)
	case []CLIDefinition:
		formatDefinitionsText(w, v)
	case CLIStats:
		formatStatsText(w, v)
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case string:
		fmt.Fprint(w, v)
	case nil:
		// No output for nil results (e.g., hover with no item).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if result.TotalCount != nil {
		count := *result.TotalCount
		if shown := resultLen(result.Results); shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// outputResultLSP writes the protocol rendering of a result, or the plain
// results when a command has no protocol equivalent.
func outputResultLSP(w io.Writer, result CLIResult) error {
	v := result.lsp
	if v == nil {
		v = result.Results
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLILocation:
		return len(r)
	case []CLIDiagnostic:
		return len(r)
	case CLIReferences:
		return len(r.Locations)
	case []CLICompletion:
		return len(r)
	case []CLIDefinition:
		return len(r)
	case []string:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text", "lsp"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(validFormats, ", "))
}
