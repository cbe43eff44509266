// Package xmltree builds a positioned element tree from script XML. It keeps
// only what reference tracking needs: element names, attributes with value
// ranges, the parent chain, and the full extent of every element.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/jward/scriptref/internal/span"
)

// Attr is a single attribute of an element.
type Attr struct {
	Name       string
	Value      string
	NameRange  span.Range
	ValueRange span.Range // excludes the quotes
}

// Element is a node of the tree.
type Element struct {
	Name      string
	Attrs     []Attr
	Parent    *Element
	Children  []*Element
	NameRange span.Range // the tag name inside the start tag
	FullRange span.Range // start tag through end tag
}

// Attr returns the named attribute.
func (e *Element) Attr(name string) (Attr, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attr{}, false
}

// AttrValue returns the value of the named attribute, or "".
func (e *Element) AttrValue(name string) string {
	a, _ := e.Attr(name)
	return a.Value
}

// HasAttr reports whether the element carries the named attribute.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// AttrMap returns the element's attributes as a name → value map.
func (e *Element) AttrMap() map[string]string {
	m := make(map[string]string, len(e.Attrs))
	for _, a := range e.Attrs {
		m[a.Name] = a.Value
	}
	return m
}

// AttrAt returns the attribute whose value range contains pos.
func (e *Element) AttrAt(pos span.Position) (Attr, bool) {
	for _, a := range e.Attrs {
		if a.ValueRange.Contains(pos) {
			return a, true
		}
	}
	return Attr{}, false
}

// Ancestors returns the parent chain, nearest first.
func (e *Element) Ancestors() []*Element {
	var chain []*Element
	for p := e.Parent; p != nil; p = p.Parent {
		chain = append(chain, p)
	}
	return chain
}

// Document is a parsed script file.
type Document struct {
	ID       string
	Root     *Element
	Elements []*Element // document (pre-)order
}

// ElementAt returns the innermost element whose full range contains pos, or
// nil when pos lies outside every element.
func (d *Document) ElementAt(pos span.Position) *Element {
	var found *Element
	for _, el := range d.Elements {
		if el.FullRange.Contains(pos) {
			found = el
		}
	}
	return found
}

// attrPattern matches name="value" pairs inside a raw start tag. The raw-text
// external scan uses it directly; Parse falls back to it.
var attrPattern = regexp.MustCompile(`([^\s=<>/"']+)\s*=\s*(?:"([^"]*)"|'([^']*)')`)

// Parse builds a Document from content. Malformed input yields the tree built
// up to the first syntax error together with that error; elements left open
// extend to the end of the content.
func Parse(id string, content []byte) (*Document, error) {
	doc := &Document{ID: id}
	lines := span.NewLineIndex(content)
	tagged := tagAttrs(content)
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.Strict = false

	var stack []*Element
	var parseErr error
	for {
		start := int(dec.InputOffset())
		tok, err := dec.RawToken()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				parseErr = fmt.Errorf("xmltree: parse %s: %w", id, err)
			}
			break
		}
		end := int(dec.InputOffset())

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: qualifiedName(t.Name)}
			nameStart := start + 1
			el.NameRange = lines.Range(nameStart, nameStart+len(el.Name))
			el.FullRange = span.Range{Start: lines.Position(start)}
			el.Attrs = parseAttrs(content, start, end, t.Attr, tagged, lines)

			if n := len(stack); n > 0 {
				el.Parent = stack[n-1]
				el.Parent.Children = append(el.Parent.Children, el)
			} else if doc.Root == nil {
				doc.Root = el
			}
			doc.Elements = append(doc.Elements, el)
			stack = append(stack, el)

		case xml.EndElement:
			if n := len(stack); n > 0 {
				stack[n-1].FullRange.End = lines.Position(end)
				stack = stack[:n-1]
			}
		}
	}

	for _, el := range stack {
		el.FullRange.End = lines.Position(len(content))
	}
	return doc, parseErr
}

func qualifiedName(n xml.Name) string {
	if n.Space != "" {
		return n.Space + ":" + n.Local
	}
	return n.Local
}

// RawAttr is an attribute found by scanning raw tag text. Offsets are byte
// offsets relative to the scanned text; Value is not unescaped.
type RawAttr struct {
	Name       string
	Value      string
	NameStart  int
	NameEnd    int
	ValueStart int
	ValueEnd   int
}

// ScanAttrs finds name="value" and name='value' pairs in raw tag text.
func ScanAttrs(text []byte) []RawAttr {
	matches := attrPattern.FindAllSubmatchIndex(text, -1)
	out := make([]RawAttr, 0, len(matches))
	for _, m := range matches {
		vs, ve := m[4], m[5]
		if vs < 0 {
			vs, ve = m[6], m[7]
		}
		out = append(out, RawAttr{
			Name:       string(text[m[2]:m[3]]),
			Value:      string(text[vs:ve]),
			NameStart:  m[2],
			NameEnd:    m[3],
			ValueStart: vs,
			ValueEnd:   ve,
		})
	}
	return out
}

// parseAttrs pairs the decoder's unescaped attribute values with the spans
// found for the tag at start, scanning the raw tag text when the grammar
// produced none.
func parseAttrs(content []byte, start, end int, decoded []xml.Attr, tagged map[int][]RawAttr, lines *span.LineIndex) []Attr {
	if start < 0 || end > len(content) || start >= end {
		return nil
	}
	raw, ok := tagged[start]
	if !ok || len(raw) != len(decoded) {
		raw = ScanAttrs(content[start:end])
	}

	attrs := make([]Attr, 0, len(raw))
	for i, ra := range raw {
		value := ra.Value
		if i < len(decoded) && qualifiedName(decoded[i].Name) == ra.Name {
			value = decoded[i].Value
		}
		attrs = append(attrs, Attr{
			Name:       ra.Name,
			Value:      value,
			NameRange:  lines.Range(start+ra.NameStart, start+ra.NameEnd),
			ValueRange: lines.Range(start+ra.ValueStart, start+ra.ValueEnd),
		})
	}
	return attrs
}
