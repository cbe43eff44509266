// Package rules is the detection rule registry. It maps (schema, element,
// attribute) events coming from the structural parser to an item type and a
// class (definition or reference).
package rules

import (
	"fmt"
	"log/slog"
	"strings"
)

// ItemType identifies a category of cross-referenced name.
type ItemType string

// Built-in item types.
const (
	Label          ItemType = "label"
	Action         ItemType = "action"
	Handler        ItemType = "handler"
	Cue            ItemType = "cue"
	LibraryRun     ItemType = "library-run"
	LibraryInclude ItemType = "library-include"
)

// ResolutionClass selects the resolver strategy that owns an item type.
type ResolutionClass int

const (
	// Basic names resolve within the document only.
	Basic ResolutionClass = iota
	// External names fall back to other open documents and scanned files.
	External
	// Namespaced names are keyed by a qualified name combining the script name.
	Namespaced
	// Scoped names add reserved relative names resolved against the element tree.
	Scoped
)

func (c ResolutionClass) String() string {
	switch c {
	case Basic:
		return "basic"
	case External:
		return "external"
	case Namespaced:
		return "namespaced"
	case Scoped:
		return "scoped"
	}
	return fmt.Sprintf("ResolutionClass(%d)", int(c))
}

// ParseResolutionClass is the inverse of ResolutionClass.String.
func ParseResolutionClass(s string) (ResolutionClass, error) {
	switch strings.ToLower(s) {
	case "basic":
		return Basic, nil
	case "external":
		return External, nil
	case "namespaced":
		return Namespaced, nil
	case "scoped":
		return Scoped, nil
	}
	return Basic, fmt.Errorf("rules: unknown resolution class %q", s)
}

// ExternalCapable reports whether names of this class may be defined in files
// outside the querying document.
func (c ResolutionClass) ExternalCapable() bool { return c != Basic }

// Class distinguishes declaring from using occurrences.
type Class int

const (
	Definition Class = iota
	Reference
)

func (c Class) String() string {
	if c == Definition {
		return "definition"
	}
	return "reference"
}

// Policy holds the per-type diagnostic flags.
type Policy struct {
	// SkipUnused suppresses "defined but never used" warnings.
	SkipUnused bool `yaml:"skip_unused" json:"skip_unused"`
	// ReferenceIsExpression treats unresolved references as valid expressions,
	// suppressing "not defined" errors.
	ReferenceIsExpression bool `yaml:"reference_is_expression" json:"reference_is_expression"`
}

// Descriptor describes an item type.
type Descriptor struct {
	ID           ItemType
	DisplayName  string
	Resolution   ResolutionClass
	Schema       string
	Policy       Policy
	FilePrefixes []string // allow-list for external file names; empty allows all
	Namespace    string   // leading segment of qualified names
}

// AllowsFile reports whether an external file with the given base name may
// contribute definitions of this type.
func (d Descriptor) AllowsFile(base string) bool {
	if len(d.FilePrefixes) == 0 {
		return true
	}
	for _, p := range d.FilePrefixes {
		if strings.HasPrefix(base, p) {
			return true
		}
	}
	return false
}

// Qualifies reports whether names of this type are keyed by qualified name.
func (d Descriptor) Qualifies() bool {
	return (d.Resolution == Namespaced || d.Resolution == Scoped) && d.Namespace != ""
}

// Qualify returns the index key for a name used in script. Names already
// carrying the namespace prefix are kept verbatim.
func (d Descriptor) Qualify(script, name string) string {
	if !d.Qualifies() {
		return name
	}
	prefix := d.Namespace + "."
	if strings.HasPrefix(name, prefix) {
		return name
	}
	return prefix + script + "." + name
}

// Local strips the qualification of script from key, leaving keys of other
// scripts untouched.
func (d Descriptor) Local(script, key string) string {
	if !d.Qualifies() {
		return key
	}
	return strings.TrimPrefix(key, d.Namespace+"."+script+".")
}

// AnyElement matches every element name.
const AnyElement = "*"

// Filter is a predicate over the sibling attributes of the matched element.
//
//	MustBePresent && Value == ""  attribute present
//	MustBePresent && Value != ""  attribute present and equal to Value
//	!MustBePresent && Value == "" attribute absent
//	!MustBePresent && Value != "" attribute absent or different from Value
type Filter struct {
	Attribute     string
	Value         string
	MustBePresent bool
}

// Match evaluates the filter against siblings.
func (f Filter) Match(siblings map[string]string) bool {
	v, ok := siblings[f.Attribute]
	switch {
	case f.MustBePresent && f.Value == "":
		return ok
	case f.MustBePresent:
		return ok && v == f.Value
	case f.Value == "":
		return !ok
	default:
		return !ok || v != f.Value
	}
}

// Rule is a single detection rule.
type Rule struct {
	Element         string // element name or AnyElement
	Attribute       string
	TypeHint        string
	ItemType        ItemType
	Class           Class
	Filters         []Filter
	QualifiedPrefix string // only values starting with this prefix match
	Completion      bool   // offer completions for this attribute
}

// FiltersPass reports whether every filter of r accepts siblings.
func (r Rule) FiltersPass(siblings map[string]string) bool {
	for _, f := range r.Filters {
		if !f.Match(siblings) {
			return false
		}
	}
	return true
}

// Accepts reports whether r accepts value given the element's attributes.
func (r Rule) Accepts(value string, siblings map[string]string) bool {
	if r.QualifiedPrefix != "" && !strings.HasPrefix(strings.TrimSpace(value), r.QualifiedPrefix) {
		return false
	}
	return r.FiltersPass(siblings)
}

func (r Rule) matchesTarget(element, attribute, hint string) bool {
	if r.Element != AnyElement && r.Element != element {
		return false
	}
	if r.Attribute != "" && r.Attribute == attribute {
		return true
	}
	return r.TypeHint != "" && r.TypeHint == hint
}

// Event is one (element, attribute, value) occurrence emitted while walking a
// document.
type Event struct {
	Schema    string
	Element   string
	Attribute string
	TypeHint  string
	Value     string
	Siblings  map[string]string
}

type hintKey struct {
	schema, element, attribute string
}

// Registry holds item type descriptors and detection rules. It is populated
// once at startup and read-only afterwards.
type Registry struct {
	logger *slog.Logger
	types  map[ItemType]Descriptor
	order  []ItemType
	rules  []Rule
	hints  map[hintKey]string
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		types:  make(map[ItemType]Descriptor),
		hints:  make(map[hintKey]string),
	}
}

// RegisterType adds an item type descriptor.
func (r *Registry) RegisterType(d Descriptor) error {
	if d.ID == "" {
		return fmt.Errorf("rules: register type: empty id")
	}
	if _, ok := r.types[d.ID]; ok {
		return fmt.Errorf("rules: register type %s: already registered", d.ID)
	}
	r.types[d.ID] = d
	r.order = append(r.order, d.ID)
	return nil
}

// AddRule appends a rule. A rule naming an unregistered item type is logged
// and kept inert.
func (r *Registry) AddRule(rule Rule) {
	if _, ok := r.types[rule.ItemType]; !ok {
		r.logger.Warn("detection rule for unknown item type is inert",
			"item_type", string(rule.ItemType), "element", rule.Element, "attribute", rule.Attribute)
	}
	r.rules = append(r.rules, rule)
}

// AddTypeHint declares that attribute on element (or AnyElement) carries
// values of the given hint within schema.
func (r *Registry) AddTypeHint(schema, element, attribute, hint string) {
	r.hints[hintKey{schema, element, attribute}] = hint
}

// TypeHint returns the attribute type hint for (schema, element, attribute).
func (r *Registry) TypeHint(schema, element, attribute string) string {
	if h, ok := r.hints[hintKey{schema, element, attribute}]; ok {
		return h
	}
	return r.hints[hintKey{schema, AnyElement, attribute}]
}

// SetPolicy overrides the policy of a registered type.
func (r *Registry) SetPolicy(id ItemType, p Policy) error {
	d, ok := r.types[id]
	if !ok {
		return fmt.Errorf("rules: set policy %s: unknown item type", id)
	}
	d.Policy = p
	r.types[id] = d
	return nil
}

// Descriptor returns the descriptor for id.
func (r *Registry) Descriptor(id ItemType) (Descriptor, bool) {
	d, ok := r.types[id]
	return d, ok
}

// Types returns the registered descriptors in registration order.
func (r *Registry) Types() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.types[id])
	}
	return out
}

// Schemas returns the distinct schema kinds of the registered types.
func (r *Registry) Schemas() []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range r.order {
		s := r.types[id].Schema
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Rules returns every rule in insertion order.
func (r *Registry) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Classify returns the first rule matching ev whose filters pass.
func (r *Registry) Classify(ev Event) (Rule, bool) {
	for _, rule := range r.rules {
		d, ok := r.types[rule.ItemType]
		if !ok || d.Schema != ev.Schema {
			continue
		}
		if !rule.matchesTarget(ev.Element, ev.Attribute, ev.TypeHint) {
			continue
		}
		if rule.Accepts(ev.Value, ev.Siblings) {
			return rule, true
		}
	}
	return Rule{}, false
}

// CompletionTypes returns the item types whose completion-eligible reference
// rules target ev's attribute. The value is ignored so a partially typed name
// still qualifies.
func (r *Registry) CompletionTypes(ev Event) []ItemType {
	var out []ItemType
	seen := make(map[ItemType]bool)
	for _, rule := range r.rules {
		if rule.Class != Reference || !rule.Completion || seen[rule.ItemType] {
			continue
		}
		d, ok := r.types[rule.ItemType]
		if !ok || d.Schema != ev.Schema {
			continue
		}
		if rule.matchesTarget(ev.Element, ev.Attribute, ev.TypeHint) && rule.FiltersPass(ev.Siblings) {
			seen[rule.ItemType] = true
			out = append(out, rule.ItemType)
		}
	}
	return out
}

// ExternalDefinitionRules returns the definition rules of external-capable
// types that name a concrete element and attribute, paired with their
// descriptor. These drive raw-text extraction from files on disk.
func (r *Registry) ExternalDefinitionRules() []ExternalRule {
	var out []ExternalRule
	for _, rule := range r.rules {
		if rule.Class != Definition || rule.Element == AnyElement || rule.Attribute == "" {
			continue
		}
		d, ok := r.types[rule.ItemType]
		if !ok || !d.Resolution.ExternalCapable() {
			continue
		}
		out = append(out, ExternalRule{Rule: rule, Descriptor: d})
	}
	return out
}

// ExternalRule is a definition rule together with its type descriptor.
type ExternalRule struct {
	Rule
	Descriptor Descriptor
}

// expressionChars mark attribute values that are script expressions rather
// than plain names.
const expressionChars = " \t\r\n()[]{}+*/<>=!,'\"@?:|&^%"

// Name extracts a trackable name from an attribute value. Empty values,
// variables, and expressions yield ok == false.
func Name(value string) (string, bool) {
	v := strings.TrimSpace(value)
	if v == "" || strings.HasPrefix(v, "$") || strings.ContainsAny(v, expressionChars) {
		return "", false
	}
	return v, true
}
