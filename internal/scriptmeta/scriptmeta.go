// Package scriptmeta sniffs {script name, schema} from script file content
// without building a tree. Only the root element is inspected.
package scriptmeta

import (
	"regexp"
	"strings"
)

// Schema kinds known to the built-in item types.
const (
	SchemaAIScripts = "aiscripts"
	SchemaMD        = "md"
)

// Metadata identifies the script a file declares.
type Metadata struct {
	ScriptName string
	Schema     string
}

// rootPattern matches the first <aiscript ...> or <mdscript ...> start tag.
var rootPattern = regexp.MustCompile(`<(aiscript|mdscript)\b([^>]*)>`)

// namePattern matches the name attribute inside a start tag.
var namePattern = regexp.MustCompile(`(?:^|\s)name\s*=\s*(?:"([^"]*)"|'([^']*)')`)

// Sniff returns the metadata declared by content. ok is false when content has
// no recognizable script root.
func Sniff(content []byte) (Metadata, bool) {
	m := rootPattern.FindSubmatch(content)
	if m == nil {
		return Metadata{}, false
	}
	var md Metadata
	switch string(m[1]) {
	case "aiscript":
		md.Schema = SchemaAIScripts
	case "mdscript":
		md.Schema = SchemaMD
	}
	if n := namePattern.FindSubmatch(m[2]); n != nil {
		md.ScriptName = strings.TrimSpace(string(n[1]) + string(n[2]))
	}
	return md, true
}

// FromRoot derives metadata from an already parsed root element name and its
// name attribute.
func FromRoot(element, name string) (Metadata, bool) {
	switch element {
	case "aiscript":
		return Metadata{ScriptName: name, Schema: SchemaAIScripts}, true
	case "mdscript":
		return Metadata{ScriptName: name, Schema: SchemaMD}, true
	}
	return Metadata{}, false
}

// KnownSchema reports whether s names a schema kind, ignoring case, and
// returns its canonical spelling.
func KnownSchema(s string, schemas []string) (string, bool) {
	for _, k := range schemas {
		if strings.EqualFold(s, k) {
			return k, true
		}
	}
	return "", false
}
