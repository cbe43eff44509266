package rules

import (
	"log/slog"

	"github.com/jward/scriptref/internal/scriptmeta"
)

// CueNameHint is the type hint carried by every md attribute named "cue".
const CueNameHint = "cuename"

// Default returns a registry populated with the built-in item types, hints,
// and rules.
func Default(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	for _, d := range builtinTypes {
		// Built-in ids are unique.
		_ = r.RegisterType(d)
	}
	r.AddTypeHint(scriptmeta.SchemaMD, AnyElement, "cue", CueNameHint)
	for _, rule := range builtinRules {
		r.AddRule(rule)
	}
	return r
}

var builtinTypes = []Descriptor{
	{ID: Label, DisplayName: "Label", Resolution: Basic, Schema: scriptmeta.SchemaAIScripts},
	{ID: Action, DisplayName: "Action", Resolution: External, Schema: scriptmeta.SchemaAIScripts,
		Policy: Policy{SkipUnused: true}},
	{ID: Handler, DisplayName: "Handler", Resolution: External, Schema: scriptmeta.SchemaAIScripts,
		Policy: Policy{SkipUnused: true}, FilePrefixes: []string{"interrupt."}},
	{ID: Cue, DisplayName: "Cue", Resolution: Scoped, Schema: scriptmeta.SchemaMD,
		Policy: Policy{SkipUnused: true}, Namespace: "md"},
	{ID: LibraryRun, DisplayName: "Library", Resolution: Namespaced, Schema: scriptmeta.SchemaMD,
		Policy: Policy{SkipUnused: true}, Namespace: "md"},
	{ID: LibraryInclude, DisplayName: "Library", Resolution: Namespaced, Schema: scriptmeta.SchemaMD,
		Policy: Policy{SkipUnused: true}, Namespace: "md"},
}

var (
	hasRunPurpose     = Filter{Attribute: "purpose", Value: "run_actions", MustBePresent: true}
	hasIncludePurpose = Filter{Attribute: "purpose", Value: "include_actions", MustBePresent: true}
	noPurpose         = Filter{Attribute: "purpose"}
)

var builtinRules = []Rule{
	// aiscripts
	{Element: "label", Attribute: "name", ItemType: Label, Class: Definition},
	{Element: "resume", Attribute: "label", ItemType: Label, Class: Reference, Completion: true},
	{Element: "actions", Attribute: "name", ItemType: Action, Class: Definition},
	{Element: "include_interrupt_actions", Attribute: "ref", ItemType: Action, Class: Reference, Completion: true},
	{Element: "handler", Attribute: "name", ItemType: Handler, Class: Definition},
	{Element: "handler", Attribute: "ref", ItemType: Handler, Class: Reference, Completion: true},

	// md
	{Element: "library", Attribute: "name", ItemType: LibraryRun, Class: Definition,
		Filters: []Filter{hasRunPurpose}},
	{Element: "library", Attribute: "name", ItemType: LibraryInclude, Class: Definition,
		Filters: []Filter{hasIncludePurpose}},
	{Element: "library", Attribute: "name", ItemType: Cue, Class: Definition,
		Filters: []Filter{noPurpose}},
	{Element: "cue", Attribute: "name", ItemType: Cue, Class: Definition},
	{Element: "run_actions", Attribute: "ref", ItemType: LibraryRun, Class: Reference, Completion: true},
	{Element: "include_actions", Attribute: "ref", ItemType: LibraryInclude, Class: Reference, Completion: true},
	{Element: "cue", Attribute: "ref", ItemType: Cue, Class: Reference, Completion: true},
	{Element: AnyElement, TypeHint: CueNameHint, ItemType: Cue, Class: Reference, Completion: true},
	{Element: AnyElement, Attribute: "exact", ItemType: Cue, Class: Reference, QualifiedPrefix: "md."},
	{Element: AnyElement, Attribute: "value", ItemType: Cue, Class: Reference, QualifiedPrefix: "md."},
}
