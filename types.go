package scriptref

import (
	"github.com/jward/scriptref/internal/external"
	"github.com/jward/scriptref/internal/index"
	"github.com/jward/scriptref/internal/rules"
	"github.com/jward/scriptref/internal/span"
	"github.com/jward/scriptref/internal/store"
)

// Public type aliases for the internal types that appear in the Engine and
// QueryBuilder APIs. External consumers use these names; no conversion is
// needed.

type Position = span.Position
type Range = span.Range
type Location = span.Location
type Record = index.Record
type ItemType = rules.ItemType
type Policy = rules.Policy
type Descriptor = rules.Descriptor
type Definition = store.Definition
type ScanStats = external.Stats

// Built-in item types.
const (
	Label          = rules.Label
	Action         = rules.Action
	Handler        = rules.Handler
	Cue            = rules.Cue
	LibraryRun     = rules.LibraryRun
	LibraryInclude = rules.LibraryInclude
)
