package xmltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/scriptref/internal/span"
)

const mdSource = `<?xml version="1.0" encoding="utf-8"?>
<mdscript name="Intro">
  <cues>
    <cue name="Root">
      <actions>
        <signal_cue cue="this"/>
      </actions>
    </cue>
  </cues>
</mdscript>
`

func TestParse_BuildsTree(t *testing.T) {
	t.Parallel()
	doc, err := Parse("intro.xml", []byte(mdSource))
	require.NoError(t, err)
	require.NotNil(t, doc.Root)

	assert.Equal(t, "mdscript", doc.Root.Name)
	require.Len(t, doc.Elements, 5)
	names := make([]string, len(doc.Elements))
	for i, el := range doc.Elements {
		names[i] = el.Name
	}
	assert.Equal(t, []string{"mdscript", "cues", "cue", "actions", "signal_cue"}, names)

	signal := doc.Elements[4]
	assert.Equal(t, "actions", signal.Parent.Name)
	ancestors := signal.Ancestors()
	require.Len(t, ancestors, 4)
	assert.Equal(t, "cue", ancestors[1].Name)
	assert.Equal(t, "mdscript", ancestors[3].Name)
}

func TestParse_Ranges(t *testing.T) {
	t.Parallel()
	doc, err := Parse("intro.xml", []byte(mdSource))
	require.NoError(t, err)

	cue := doc.Elements[2]
	assert.Equal(t, span.Range{Start: span.Position{Line: 3, Col: 5}, End: span.Position{Line: 3, Col: 8}}, cue.NameRange)

	name, ok := cue.Attr("name")
	require.True(t, ok)
	assert.Equal(t, "Root", name.Value)
	assert.Equal(t, span.Range{Start: span.Position{Line: 3, Col: 15}, End: span.Position{Line: 3, Col: 19}}, name.ValueRange)
	assert.Equal(t, span.Range{Start: span.Position{Line: 3, Col: 9}, End: span.Position{Line: 3, Col: 13}}, name.NameRange)

	assert.Equal(t, span.Position{Line: 3, Col: 4}, cue.FullRange.Start)
	assert.Equal(t, span.Position{Line: 7, Col: 10}, cue.FullRange.End)

	signal := doc.Elements[4]
	assert.Equal(t, span.Position{Line: 5, Col: 8}, signal.FullRange.Start)
	assert.Equal(t, span.Position{Line: 5, Col: 32}, signal.FullRange.End)
}

func TestParse_UnescapesValues(t *testing.T) {
	t.Parallel()
	doc, err := Parse("a.xml", []byte(`<a expr="x &lt; y"/>`))
	require.NoError(t, err)

	attr, ok := doc.Root.Attr("expr")
	require.True(t, ok)
	assert.Equal(t, "x < y", attr.Value)
	// The range still covers the raw text.
	assert.Equal(t, span.Range{Start: span.Position{Line: 0, Col: 9}, End: span.Position{Line: 0, Col: 17}}, attr.ValueRange)
}

func TestParse_SingleQuotedValues(t *testing.T) {
	t.Parallel()
	doc, err := Parse("a.xml", []byte(`<label name='start'/>`))
	require.NoError(t, err)
	assert.Equal(t, "start", doc.Root.AttrValue("name"))
}

func TestParse_MalformedKeepsPartialTree(t *testing.T) {
	t.Parallel()
	src := "<aiscript name=\"x\">\n  <label name=\"a\"/>\n  <resume label=\"a\"\n"
	doc, err := Parse("broken.xml", []byte(src))
	require.Error(t, err)
	require.NotNil(t, doc)
	require.GreaterOrEqual(t, len(doc.Elements), 2)
	assert.Equal(t, "label", doc.Elements[1].Name)
	// The unclosed root extends to the end of the content.
	assert.Equal(t, span.Position{Line: 3, Col: 0}, doc.Root.FullRange.End)
}

func TestDocument_ElementAt(t *testing.T) {
	t.Parallel()
	doc, err := Parse("intro.xml", []byte(mdSource))
	require.NoError(t, err)

	el := doc.ElementAt(span.Position{Line: 5, Col: 27})
	require.NotNil(t, el)
	assert.Equal(t, "signal_cue", el.Name)

	el = doc.ElementAt(span.Position{Line: 4, Col: 8})
	require.NotNil(t, el)
	assert.Equal(t, "actions", el.Name)

	assert.Nil(t, doc.ElementAt(span.Position{Line: 0, Col: 2}))
}

func TestElement_AttrAt(t *testing.T) {
	t.Parallel()
	doc, err := Parse("intro.xml", []byte(mdSource))
	require.NoError(t, err)

	signal := doc.Elements[4]
	attr, ok := signal.AttrAt(span.Position{Line: 5, Col: 27})
	require.True(t, ok)
	assert.Equal(t, "cue", attr.Name)

	_, ok = signal.AttrAt(span.Position{Line: 5, Col: 10})
	assert.False(t, ok)
}

func TestScanAttrs(t *testing.T) {
	t.Parallel()
	text := []byte(` name="lib.Foo" purpose = 'run_actions' `)
	attrs := ScanAttrs(text)
	require.Len(t, attrs, 2)

	assert.Equal(t, "name", attrs[0].Name)
	assert.Equal(t, "lib.Foo", attrs[0].Value)
	assert.Equal(t, "lib.Foo", string(text[attrs[0].ValueStart:attrs[0].ValueEnd]))
	assert.Equal(t, "purpose", attrs[1].Name)
	assert.Equal(t, "run_actions", attrs[1].Value)
}

func TestTagAttrs_Spans(t *testing.T) {
	t.Parallel()
	content := []byte("<a x=\"1\"/>\n<b y='two' z=\"\"></b>")
	tags := tagAttrs(content)

	a, ok := tags[0]
	require.True(t, ok)
	require.Len(t, a, 1)
	assert.Equal(t, RawAttr{Name: "x", Value: "1", NameStart: 3, NameEnd: 4, ValueStart: 6, ValueEnd: 7}, a[0])

	b, ok := tags[11]
	require.True(t, ok)
	require.Len(t, b, 2)
	assert.Equal(t, "two", b[0].Value)
	assert.Equal(t, "two", string(content[11+b[0].ValueStart:11+b[0].ValueEnd]))
	assert.Equal(t, "z", b[1].Name)
	assert.Equal(t, b[1].ValueStart, b[1].ValueEnd, "empty value has an empty span")
}

func TestParse_FallsBackOutsideGrammarTags(t *testing.T) {
	t.Parallel()
	// <style> is raw text to the HTML grammar, so the nested tag gets no
	// spans from it; the XML tree still carries the attribute.
	content := []byte("<style>\n  <set_value name=\"x\"/>\n</style>")
	_, ok := tagAttrs(content)[10]
	assert.False(t, ok)

	doc, err := Parse("s.xml", content)
	require.NoError(t, err)
	require.Len(t, doc.Elements, 2)
	attr, ok := doc.Elements[1].Attr("name")
	require.True(t, ok)
	assert.Equal(t, span.Range{Start: span.Position{Line: 1, Col: 19}, End: span.Position{Line: 1, Col: 20}}, attr.ValueRange)
}

func TestParse_VoidElementNamesNest(t *testing.T) {
	t.Parallel()
	// <param> is void in HTML; the tree must still nest its children.
	doc, err := Parse("p.xml", []byte(`<params><param name="a"><match x="1"/></param></params>`))
	require.NoError(t, err)
	require.Len(t, doc.Elements, 3)
	assert.Equal(t, "param", doc.Elements[2].Parent.Name)
	assert.Equal(t, "a", doc.Elements[1].AttrValue("name"))
	assert.Equal(t, "1", doc.Elements[2].AttrValue("x"))
}
