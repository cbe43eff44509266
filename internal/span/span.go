// Package span holds the position primitives shared by every part of the
// engine. Lines and columns are 0-based; columns count runes.
package span

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// Position is a caret position inside a document.
type Position struct {
	Line int
	Col  int
}

// Before reports whether p sorts strictly before o.
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Col < o.Col
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Range is a start/end pair. Both ends are inclusive for containment tests.
type Range struct {
	Start Position
	End   Position
}

// IsZero reports whether r is the zero range.
func (r Range) IsZero() bool {
	return r == Range{}
}

// Contains reports whether p lies within r.
func (r Range) Contains(p Position) bool {
	return !p.Before(r.Start) && !r.End.Before(p)
}

// Within reports whether r lies entirely inside outer.
func (r Range) Within(outer Range) bool {
	return outer.Contains(r.Start) && outer.Contains(r.End)
}

// Location is a range inside a specific document.
type Location struct {
	DocumentID string
	Range
}

// IsEmpty reports whether the location carries no document and no range.
func (l Location) IsEmpty() bool {
	return l.DocumentID == "" && l.Range.IsZero()
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.DocumentID, l.Start.Line, l.Start.Col)
}

// LineIndex converts byte offsets within a document to Positions.
type LineIndex struct {
	content []byte
	starts  []int // byte offset of each line start
}

// NewLineIndex builds a LineIndex over content.
func NewLineIndex(content []byte) *LineIndex {
	starts := []int{0}
	for i, b := range content {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{content: content, starts: starts}
}

// Position returns the Position of a byte offset. Offsets past the end clamp
// to the end of the content.
func (li *LineIndex) Position(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(li.content) {
		offset = len(li.content)
	}
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	col := utf8.RuneCount(li.content[li.starts[line]:offset])
	return Position{Line: line, Col: col}
}

// Range returns the Range spanning [start, end) byte offsets. The end
// position is the position of the end offset itself.
func (li *LineIndex) Range(start, end int) Range {
	return Range{Start: li.Position(start), End: li.Position(end)}
}
