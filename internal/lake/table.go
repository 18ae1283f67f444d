package lake

import (
	"context"
	"fmt"
	"slices"

	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/leapstack-labs/livef1/pkg/frame"
)

// TableFunc produces a table's frame from its resolved sources.
type TableFunc func(ctx context.Context, in Inputs) (*frame.Frame, error)

// Inputs is what a TableFunc receives: one frame per declared source, keyed
// by source table name, plus the owning session when it was requested.
type Inputs struct {
	Sources map[string]*frame.Frame
	Session Session
}

// Frame returns the frame of a declared source.
func (in Inputs) Frame(name string) (*frame.Frame, error) {
	f, ok := in.Sources[name]
	if !ok {
		return nil, fmt.Errorf("source %q was not declared", name)
	}
	return f, nil
}

// Table is a named, lazily generated unit of data at one lake level.
type Table struct {
	name           string
	level          core.Level
	lake           *DataLake
	callback       TableFunc
	sources        []string
	includeSession bool

	// populated during resolution
	sourceTables     map[core.Level][]*Table
	dependencyTables []*Table

	df        *frame.Frame
	generated bool

	// bronze only
	raw    any
	parsed []frame.Record
}

// NewTable creates a bare table with no callback and no sources.
func NewTable(name string) *Table {
	return &Table{name: name, sourceTables: map[core.Level][]*Table{}}
}

// NewBronzeTable creates a bronze table holding a raw payload and its parsed
// records. Its frame is built from the records immediately.
func NewBronzeTable(name string, raw any, parsed []frame.Record) *Table {
	t := NewTable(name)
	t.level = core.LevelBronze
	t.raw = raw
	t.parsed = parsed
	t.df = frame.FromRecords(parsed)
	t.generated = true
	return t
}

// NewSilverTable creates an ungenerated silver table.
func NewSilverTable(name string, sources []string, fn TableFunc, includeSession bool) *Table {
	return newDerivedTable(core.LevelSilver, name, sources, fn, includeSession)
}

// NewGoldTable creates an ungenerated gold table.
func NewGoldTable(name string, sources []string, fn TableFunc, includeSession bool) *Table {
	return newDerivedTable(core.LevelGold, name, sources, fn, includeSession)
}

func newDerivedTable(level core.Level, name string, sources []string, fn TableFunc, includeSession bool) *Table {
	t := NewTable(name)
	t.level = level
	t.sources = slices.Clone(sources)
	t.callback = fn
	t.includeSession = includeSession
	return t
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Level returns the level the table is stored at.
func (t *Table) Level() core.Level { return t.level }

// Lake returns the owning lake, or nil for a detached table.
func (t *Table) Lake() *DataLake { return t.lake }

// Sources returns the declared source table names in order.
func (t *Table) Sources() []string { return slices.Clone(t.sources) }

// IncludeSession reports whether the callback receives the owning session.
func (t *Table) IncludeSession() bool { return t.includeSession }

// Raw returns the raw feed payload of a bronze table.
func (t *Table) Raw() any { return t.raw }

// ParsedData returns the parsed records of a bronze table.
func (t *Table) ParsedData() []frame.Record { return t.parsed }

// Frame returns the generated frame, or nil before generation.
func (t *Table) Frame() *frame.Frame { return t.df }

// Generated reports whether the table holds a generated frame.
func (t *Table) Generated() bool { return t.generated }

// SourceTables returns the resolved sources grouped by level.
// It is empty until the table has been generated.
func (t *Table) SourceTables() map[core.Level][]*Table {
	out := make(map[core.Level][]*Table, len(t.sourceTables))
	for l, ts := range t.sourceTables {
		out[l] = slices.Clone(ts)
	}
	return out
}

// DependencyTables returns the resolved sources in declaration order.
func (t *Table) DependencyTables() []*Table { return slices.Clone(t.dependencyTables) }

// Generate produces the table's frame. An attached table is generated through
// its lake so dependencies resolve first; a detached table runs its callback
// with no inputs.
func (t *Table) Generate(ctx context.Context) (*frame.Frame, error) {
	if t.lake != nil {
		return t.lake.GenerateTable(ctx, t.name)
	}
	if t.generated {
		return t.df, nil
	}
	if t.callback == nil {
		if t.parsed != nil {
			t.df = frame.FromRecords(t.parsed)
			t.generated = true
			return t.df, nil
		}
		return nil, &core.GenerationError{Table: t.name, Err: errNoCallback}
	}
	df, err := runCallback(ctx, t.callback, Inputs{Sources: map[string]*frame.Frame{}})
	if err != nil {
		return nil, &core.GenerationError{Table: t.name, Err: err}
	}
	t.df = df
	t.generated = true
	return t.df, nil
}

// runCallback invokes fn, converting a panic into an error.
func runCallback(ctx context.Context, fn TableFunc, in Inputs) (df *frame.Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	df, err = fn(ctx, in)
	if err == nil && df == nil {
		df = frame.New()
	}
	return df, err
}
