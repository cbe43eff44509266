package external

import (
	"path/filepath"
	"regexp"

	"github.com/jward/scriptref/internal/rules"
	"github.com/jward/scriptref/internal/scriptmeta"
	"github.com/jward/scriptref/internal/span"
	"github.com/jward/scriptref/internal/store"
	"github.com/jward/scriptref/internal/xmltree"
)

// extractor searches raw file text for one definition rule. This skips the
// structural parse, so markup inside comments or CDATA can still match and
// badly broken files can yield attributes the parser would reject.
type extractor struct {
	rule    rules.ExternalRule
	pattern *regexp.Regexp // group 1: the attribute text of the start tag
}

// tagPattern matches a start tag of element, tolerating '>' inside quoted
// attribute values.
func tagPattern(element string) *regexp.Regexp {
	return regexp.MustCompile(`<` + regexp.QuoteMeta(element) + `(\s(?:[^>"']|"[^"]*"|'[^']*')*)?/?>`)
}

func compileExtractors(ext []rules.ExternalRule) []extractor {
	byElement := make(map[string]*regexp.Regexp)
	out := make([]extractor, 0, len(ext))
	for _, er := range ext {
		re, ok := byElement[er.Element]
		if !ok {
			re = tagPattern(er.Element)
			byElement[er.Element] = re
		}
		out = append(out, extractor{rule: er, pattern: re})
	}
	return out
}

// extract runs every applicable extractor over content, buffering matches
// into batch.
func (c *Collector) extract(batch *store.BatchedStore, content []byte, meta scriptmeta.Metadata) error {
	base := filepath.Base(batch.File.Path)
	var lines *span.LineIndex

	for _, ex := range c.extractors {
		desc := ex.rule.Descriptor
		if desc.Schema != meta.Schema || !desc.AllowsFile(base) {
			continue
		}
		for _, m := range ex.pattern.FindAllSubmatchIndex(content, -1) {
			if m[2] < 0 {
				continue
			}
			attrs := xmltree.ScanAttrs(content[m[2]:m[3]])
			siblings := make(map[string]string, len(attrs))
			var target *xmltree.RawAttr
			for i := range attrs {
				siblings[attrs[i].Name] = attrs[i].Value
				if attrs[i].Name == ex.rule.Attribute && target == nil {
					target = &attrs[i]
				}
			}
			if target == nil || !ex.rule.Accepts(target.Value, siblings) {
				continue
			}
			local, ok := rules.Name(target.Value)
			if !ok {
				continue
			}
			if lines == nil {
				lines = span.NewLineIndex(content)
			}
			r := lines.Range(m[2]+target.ValueStart, m[2]+target.ValueEnd)
			def := &store.Definition{
				ItemType:   string(desc.ID),
				Name:       desc.Qualify(meta.ScriptName, local),
				LocalName:  local,
				ScriptName: meta.ScriptName,
				StartLine:  r.Start.Line,
				StartCol:   r.Start.Col,
				EndLine:    r.End.Line,
				EndCol:     r.End.Col,
			}
			if _, err := batch.InsertDefinition(def); err != nil {
				return err
			}
		}
	}
	return nil
}

// batchSink receives definitions recorded by extraction scripts. References
// have no meaning outside an open document and are dropped.
type batchSink struct {
	batch    *store.BatchedStore
	registry *rules.Registry
	meta     scriptmeta.Metadata
}

func (s *batchSink) Definition(itemType, name string, r span.Range) {
	key := name
	if d, ok := s.registry.Descriptor(rules.ItemType(itemType)); ok {
		key = d.Qualify(s.meta.ScriptName, name)
	}
	// BatchedStore inserts never fail.
	_, _ = s.batch.InsertDefinition(&store.Definition{
		ItemType:   itemType,
		Name:       key,
		LocalName:  name,
		ScriptName: s.meta.ScriptName,
		StartLine:  r.Start.Line,
		StartCol:   r.Start.Col,
		EndLine:    r.End.Line,
		EndCol:     r.End.Col,
	})
}

func (s *batchSink) Reference(string, string, span.Range) {}
