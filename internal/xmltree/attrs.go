package xmltree

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/html"
)

// tagAttrs parses content with the tree-sitter HTML grammar and returns the
// attributes of every start and self-closing tag, keyed by the byte offset of
// the tag's '<'. Offsets inside each RawAttr are relative to that '<'.
//
// The grammar only supplies attribute spans. Nesting still comes from the XML
// decoder, because HTML rules (void elements such as <param>, raw-text
// elements such as <style>) do not match script XML. Tags the grammar did not
// place as tags are missing from the map and fall back to ScanAttrs.
func tagAttrs(content []byte) map[int][]RawAttr {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(html.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil || tree == nil {
		return nil
	}
	defer tree.Close()

	out := make(map[int][]RawAttr)
	stack := []*sitter.Node{tree.RootNode()}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.Type() {
		case "start_tag", "self_closing_tag":
			start := int(n.StartByte())
			out[start] = nodeAttrs(n, content, start)
			continue
		}
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, n.NamedChild(i))
		}
	}
	return out
}

func nodeAttrs(tag *sitter.Node, content []byte, base int) []RawAttr {
	var attrs []RawAttr
	for i := 0; i < int(tag.NamedChildCount()); i++ {
		a := tag.NamedChild(i)
		if a.Type() != "attribute" {
			continue
		}
		var (
			name   *sitter.Node
			vs, ve = -1, -1
		)
		for j := 0; j < int(a.NamedChildCount()); j++ {
			c := a.NamedChild(j)
			switch c.Type() {
			case "attribute_name":
				name = c
			case "quoted_attribute_value":
				vs, ve = int(c.StartByte())+1, int(c.EndByte())-1
			case "attribute_value":
				vs, ve = int(c.StartByte()), int(c.EndByte())
			}
		}
		// XML has no valueless attributes.
		if name == nil || vs < 0 || ve < vs {
			continue
		}
		attrs = append(attrs, RawAttr{
			Name:       name.Content(content),
			Value:      string(content[vs:ve]),
			NameStart:  int(name.StartByte()) - base,
			NameEnd:    int(name.EndByte()) - base,
			ValueStart: vs - base,
			ValueEnd:   ve - base,
		})
	}
	return attrs
}
