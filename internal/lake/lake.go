// Package lake implements the three-level data lake of a session.
//
// A DataLake owns a bronze, a silver and a gold SimpleLake and one flat
// metadata namespace shared by all three. Bronze tables hold parsed feed
// topics; silver and gold tables declare source tables and a TableFunc and
// are generated on demand, dependencies first, at most once per lake.
//
// A DataLake is not safe for concurrent use.
package lake

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/leapstack-labs/livef1/pkg/frame"
)

var errNoCallback = errors.New("no callback registered")

// Session is the collaborator that supplies raw feed payloads.
type Session interface {
	Key() int
	GetRaw(ctx context.Context, topic string) (any, error)
}

// Parsers turns raw topic payloads into flat records.
type Parsers interface {
	Has(topic string) bool
	Parse(topic string, raw any, sessionKey int) ([]frame.Record, error)
}

// GenerationEvent describes one generation attempt.
type GenerationEvent struct {
	Table    string
	Level    core.Level
	Started  time.Time
	Duration time.Duration
	Rows     int
	Err      error
}

// Observer is notified after every generation attempt, successful or not.
type Observer interface {
	TableGenerated(ev GenerationEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev GenerationEvent)

// TableGenerated implements Observer.
func (f ObserverFunc) TableGenerated(ev GenerationEvent) { f(ev) }

// Option configures a DataLake.
type Option func(*DataLake)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *DataLake) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithParsers sets the topic parsers used to load bronze tables on demand.
func WithParsers(p Parsers) Option {
	return func(l *DataLake) { l.parsers = p }
}

// WithObserver sets the generation observer.
func WithObserver(o Observer) Option {
	return func(l *DataLake) { l.observer = o }
}

// WithClock overrides time.Now for created_at stamps and durations.
func WithClock(now func() time.Time) Option {
	return func(l *DataLake) {
		if now != nil {
			l.now = now
		}
	}
}

// DataLake is the aggregate root: three level stores plus the metadata namespace.
type DataLake struct {
	session  Session
	parsers  Parsers
	observer Observer
	logger   *slog.Logger
	now      func() time.Time

	bronze *SimpleLake
	silver *SimpleLake
	gold   *SimpleLake

	metadata map[string]*core.TableMetadata
}

// New creates an empty lake for sess. sess may be nil when every bronze
// table is created explicitly.
func New(sess Session, opts ...Option) *DataLake {
	l := &DataLake{
		session:  sess,
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
		metadata: make(map[string]*core.TableMetadata),
	}
	l.bronze = NewBronzeLake(l)
	l.silver = NewSilverLake(l)
	l.gold = NewGoldLake(l)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Session returns the session the lake was created for.
func (l *DataLake) Session() Session { return l.session }

// Bronze returns the bronze store.
func (l *DataLake) Bronze() *SimpleLake { return l.bronze }

// Silver returns the silver store.
func (l *DataLake) Silver() *SimpleLake { return l.silver }

// Gold returns the gold store.
func (l *DataLake) Gold() *SimpleLake { return l.gold }

func (l *DataLake) store(level core.Level) (*SimpleLake, error) {
	switch level {
	case core.LevelBronze:
		return l.bronze, nil
	case core.LevelSilver:
		return l.silver, nil
	case core.LevelGold:
		return l.gold, nil
	}
	return nil, &core.InvalidLevelError{Level: string(level)}
}

// Put stores t at level under name.
func (l *DataLake) Put(level core.Level, name string, t *Table) error {
	s, err := l.store(level)
	if err != nil {
		return err
	}
	return s.Put(name, t)
}

// Get returns the table stored at level under name. It is a pure lookup;
// use Load to also generate the table.
func (l *DataLake) Get(level core.Level, name string) (*Table, error) {
	s, err := l.store(level)
	if err != nil {
		return nil, err
	}
	t, ok := s.Get(name)
	if !ok {
		return nil, &core.TableNotFoundError{Name: name, Level: level}
	}
	return t, nil
}

// Lookup finds a table at whichever level it is registered.
func (l *DataLake) Lookup(name string) (*Table, bool) {
	md, ok := l.metadata[name]
	if !ok {
		return nil, false
	}
	s, err := l.store(md.TableType)
	if err != nil {
		return nil, false
	}
	return s.Get(name)
}

// Has reports whether name is registered at any level.
func (l *DataLake) Has(name string) bool {
	_, ok := l.metadata[name]
	return ok
}

// Tables returns the tables stored at level, sorted by name.
func (l *DataLake) Tables(level core.Level) ([]*Table, error) {
	s, err := l.store(level)
	if err != nil {
		return nil, err
	}
	names := s.Names()
	out := make([]*Table, 0, len(names))
	for _, n := range names {
		t, _ := s.Get(n)
		out = append(out, t)
	}
	return out, nil
}

// register records name at level in the namespace. Called by SimpleLake.Put.
func (l *DataLake) register(name string, level core.Level, t *Table) error {
	if md, ok := l.metadata[name]; ok && md.TableType != level {
		return &core.DuplicateTableError{Name: name, Existing: md.TableType, Attempt: level}
	}
	md := &core.TableMetadata{TableType: level, Generated: t.generated}
	if t.generated {
		now := l.now()
		md.CreatedAt = &now
	}
	l.metadata[name] = md
	return nil
}

// MetadataOption changes one field of a metadata entry.
type MetadataOption func(*core.TableMetadata)

// WithGenerated sets the generated flag.
func WithGenerated(generated bool) MetadataOption {
	return func(m *core.TableMetadata) { m.Generated = generated }
}

// WithCreatedAt sets created_at.
func WithCreatedAt(t time.Time) MetadataOption {
	return func(m *core.TableMetadata) { m.CreatedAt = &t }
}

// WithExtra stores a free-form metadata attribute.
func WithExtra(key string, value any) MetadataOption {
	return func(m *core.TableMetadata) {
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[key] = value
	}
}

// UpdateMetadata creates or updates the namespace entry for name. The entry
// may not move to a different level.
func (l *DataLake) UpdateMetadata(name string, level core.Level, opts ...MetadataOption) error {
	if _, err := core.ParseLevel(string(level)); err != nil {
		return err
	}
	md, ok := l.metadata[name]
	if !ok {
		md = &core.TableMetadata{TableType: level}
		l.metadata[name] = md
	} else if md.TableType != level {
		return &core.DuplicateTableError{Name: name, Existing: md.TableType, Attempt: level}
	}
	for _, opt := range opts {
		opt(md)
	}
	return nil
}

// Metadata returns a copy of the namespace.
func (l *DataLake) Metadata() map[string]core.TableMetadata {
	out := make(map[string]core.TableMetadata, len(l.metadata))
	for name, md := range l.metadata {
		out[name] = md.Clone()
	}
	return out
}

// TableMetadata returns a copy of one namespace entry.
func (l *DataLake) TableMetadata(name string) (core.TableMetadata, bool) {
	md, ok := l.metadata[name]
	if !ok {
		return core.TableMetadata{}, false
	}
	return md.Clone(), true
}

// CreateBronzeTable stores a bronze table built from raw and parsed, marked
// generated as of now.
func (l *DataLake) CreateBronzeTable(name string, raw any, parsed []frame.Record) (*Table, error) {
	t := NewBronzeTable(name, raw, parsed)
	if err := l.bronze.Put(name, t); err != nil {
		return nil, err
	}
	if err := l.UpdateMetadata(name, core.LevelBronze, WithGenerated(true), WithCreatedAt(l.now())); err != nil {
		return nil, err
	}
	l.logger.Debug("bronze table created", "table", name, "rows", t.df.Len())
	return t, nil
}

// RegisterTable stores an ungenerated silver or gold table. Sources need not
// be registered yet; they are resolved when the table is generated.
func (l *DataLake) RegisterTable(level core.Level, name string, sources []string, includeSession bool, fn TableFunc) (*Table, error) {
	var t *Table
	switch level {
	case core.LevelSilver:
		t = NewSilverTable(name, sources, fn, includeSession)
	case core.LevelGold:
		t = NewGoldTable(name, sources, fn, includeSession)
	case core.LevelBronze:
		return nil, errors.New("bronze tables are created from feed data, not registered with a callback")
	default:
		return nil, &core.InvalidLevelError{Level: string(level)}
	}
	if fn == nil {
		return nil, &core.GenerationError{Table: name, Err: errNoCallback}
	}
	if err := l.Put(level, name, t); err != nil {
		return nil, err
	}
	l.logger.Debug("table registered", "table", name, "level", level, "sources", sources)
	return t, nil
}

// TableBuilder is the fluent handle returned by CreateSilverTable and CreateGoldTable.
type TableBuilder struct {
	lake           *DataLake
	level          core.Level
	name           string
	sources        []string
	includeSession bool
}

// CreateSilverTable starts registering a silver table; call Do with its function.
func (l *DataLake) CreateSilverTable(name string, sources []string, includeSession bool) *TableBuilder {
	return &TableBuilder{lake: l, level: core.LevelSilver, name: name, sources: sources, includeSession: includeSession}
}

// CreateGoldTable starts registering a gold table; call Do with its function.
func (l *DataLake) CreateGoldTable(name string, sources []string, includeSession bool) *TableBuilder {
	return &TableBuilder{lake: l, level: core.LevelGold, name: name, sources: sources, includeSession: includeSession}
}

// Do registers fn as the table's function.
func (b *TableBuilder) Do(fn TableFunc) (*Table, error) {
	return b.lake.RegisterTable(b.level, b.name, b.sources, b.includeSession, fn)
}

// Load returns the frame of the table at level, generating it if needed.
func (l *DataLake) Load(ctx context.Context, level core.Level, name string) (*frame.Frame, error) {
	if _, err := l.store(level); err != nil {
		return nil, err
	}
	if !l.Has(name) && level == core.LevelBronze {
		return l.GenerateTable(ctx, name)
	}
	if _, err := l.Get(level, name); err != nil {
		return nil, err
	}
	return l.GenerateTable(ctx, name)
}
