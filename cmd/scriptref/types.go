package main

import (
	"github.com/jward/scriptref"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`

	// lsp is the Language Server Protocol rendering of Results, written
	// as-is by --format lsp.
	lsp any
}

// CLILocation is a JSON-friendly location.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	File        string   `json:"file"`
	StartLine   int      `json:"start_line"`
	StartCol    int      `json:"start_col"`
	EndLine     int      `json:"end_line"`
	EndCol      int      `json:"end_col"`
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// CLIReferences lists where an item is defined and used.
type CLIReferences struct {
	ItemType  string        `json:"item_type"`
	Name      string        `json:"name"`
	Locations []CLILocation `json:"locations"`
}

// CLIHover is the detail text for an item.
type CLIHover struct {
	Contents string      `json:"contents"`
	Range    CLILocation `json:"range"`
}

// CLICompletion is one completion candidate.
type CLICompletion struct {
	Name     string `json:"name"`
	Detail   string `json:"detail"`
	ItemType string `json:"item_type"`
}

// CLIDefinition is a definition found in the scanned roots.
type CLIDefinition struct {
	ItemType   string `json:"item_type"`
	Name       string `json:"name"`
	LocalName  string `json:"local_name"`
	ScriptName string `json:"script_name,omitempty"`
	File       string `json:"file"`
	StartLine  int    `json:"start_line"`
	StartCol   int    `json:"start_col"`
}

// CLIStats summarizes a scan of the roots.
type CLIStats struct {
	Discovered int `json:"discovered"`
	Indexed    int `json:"indexed"`
	Unchanged  int `json:"unchanged"`
	Skipped    int `json:"skipped"`
	Removed    int `json:"removed"`
	Failed     int `json:"failed"`
}

// --- Conversion helpers ---

func locationToCLI(l scriptref.Location) CLILocation {
	return CLILocation{
		File:      l.DocumentID,
		StartLine: l.Start.Line,
		StartCol:  l.Start.Col,
		EndLine:   l.End.Line,
		EndCol:    l.End.Col,
	}
}

func locationsToCLI(ls []scriptref.Location) []CLILocation {
	out := make([]CLILocation, 0, len(ls))
	for _, l := range ls {
		out = append(out, locationToCLI(l))
	}
	return out
}

func diagnosticToCLI(file string, d scriptref.Diagnostic) CLIDiagnostic {
	return CLIDiagnostic{
		File:        file,
		StartLine:   d.Range.Start.Line,
		StartCol:    d.Range.Start.Col,
		EndLine:     d.Range.End.Line,
		EndCol:      d.Range.End.Col,
		Severity:    d.Severity.String(),
		Code:        d.Code,
		Message:     d.Message,
		Suggestions: d.Suggestions,
	}
}

func completionsToCLI(cs []scriptref.Completion) []CLICompletion {
	out := make([]CLICompletion, 0, len(cs))
	for _, c := range cs {
		out = append(out, CLICompletion{Name: c.Name, Detail: c.Detail, ItemType: string(c.ItemType)})
	}
	return out
}

func definitionsToCLI(defs []*scriptref.Definition) []CLIDefinition {
	out := make([]CLIDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, CLIDefinition{
			ItemType:   d.ItemType,
			Name:       d.Name,
			LocalName:  d.LocalName,
			ScriptName: d.ScriptName,
			File:       d.Path,
			StartLine:  d.StartLine,
			StartCol:   d.StartCol,
		})
	}
	return out
}

func statsToCLI(s scriptref.ScanStats) CLIStats {
	return CLIStats{
		Discovered: s.Discovered,
		Indexed:    s.Indexed,
		Unchanged:  s.Unchanged,
		Skipped:    s.Skipped,
		Removed:    s.Removed,
		Failed:     s.Failed,
	}
}
