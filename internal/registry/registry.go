// Package registry holds the explicit dispatch tables of a lake: topic
// parsers for bronze tables and table specs for silver and gold tables.
// Registries are constructed instances, so independent sessions never share
// mutable dispatch state.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/livef1/internal/lake"
	"github.com/leapstack-labs/livef1/pkg/core"
)

// TableSpec describes a derived table: where it lives, what it reads and the
// function that builds it.
type TableSpec struct {
	Name           string
	Level          core.Level
	Sources        []string
	IncludeSession bool
	Func           lake.TableFunc
	Description    string
	// Origin names where the spec came from, e.g. "builtin" or a script path.
	Origin string
}

// TableRegistry maps table names to their specs.
type TableRegistry struct {
	mu sync.RWMutex

	// byName maps table names to specs: "laps" → *TableSpec
	byName map[string]*TableSpec
}

// NewTableRegistry creates a new empty registry.
func NewTableRegistry() *TableRegistry {
	return &TableRegistry{
		byName: make(map[string]*TableSpec),
	}
}

// Register adds a table spec. Re-registering a name at the same level
// replaces the earlier spec; registering it at another level fails.
func (r *TableRegistry) Register(spec TableSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("table spec has no name")
	}
	if spec.Level != core.LevelSilver && spec.Level != core.LevelGold {
		if _, err := core.ParseLevel(string(spec.Level)); err != nil {
			return err
		}
		return fmt.Errorf("table %q: only silver and gold tables can be registered", spec.Name)
	}
	if spec.Func == nil {
		return fmt.Errorf("table %q: no function", spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[spec.Name]; ok && existing.Level != spec.Level {
		return &core.DuplicateTableError{Name: spec.Name, Existing: existing.Level, Attempt: spec.Level}
	}
	s := spec
	s.Sources = append([]string(nil), spec.Sources...)
	r.byName[spec.Name] = &s
	return nil
}

// Unregister removes every spec whose Origin matches origin and returns
// how many were removed.
func (r *TableRegistry) Unregister(origin string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for name, spec := range r.byName {
		if spec.Origin == origin {
			delete(r.byName, name)
			n++
		}
	}
	return n
}

// Resolve maps a table reference to a registered name. References may be
// level-qualified ("silver.laps").
func (r *TableRegistry) Resolve(ref string) (name string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.byName[ref]; ok {
		return ref, true
	}
	if prefix, rest, found := strings.Cut(ref, "."); found {
		if spec, ok := r.byName[rest]; ok && string(spec.Level) == prefix {
			return rest, true
		}
	}
	return "", false
}

// Get returns the spec registered under name.
func (r *TableRegistry) Get(name string) (*TableSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.byName[name]
	return spec, ok
}

// All returns every spec ordered by level, then name.
func (r *TableRegistry) All() []*TableSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]*TableSpec, 0, len(r.byName))
	for _, spec := range r.byName {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool {
		if specs[i].Level != specs[j].Level {
			return specs[i].Level.Rank() < specs[j].Level.Rank()
		}
		return specs[i].Name < specs[j].Name
	})
	return specs
}

// Count returns the number of registered specs.
func (r *TableRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// resolveSource maps a source reference to the name the lake stores it
// under. Anything that is not a registered table is a feed topic, which may
// be written "bronze.TimingData".
func (r *TableRegistry) resolveSource(src string) (name string, isTable bool) {
	if name, ok := r.Resolve(src); ok {
		return name, true
	}
	if prefix, rest, ok := strings.Cut(src, "."); ok && prefix == string(core.LevelBronze) {
		return rest, false
	}
	return src, false
}

// ResolveDependencies splits source names into:
//   - tables: names of registered specs (deduplicated)
//   - externalSources: feed topics, without any "bronze." prefix (deduplicated)
func (r *TableRegistry) ResolveDependencies(sources []string) (tables []string, externalSources []string) {
	seenTables := make(map[string]struct{})
	seenExternal := make(map[string]struct{})

	for _, src := range sources {
		name, isTable := r.resolveSource(src)
		if isTable {
			if _, seen := seenTables[name]; !seen {
				seenTables[name] = struct{}{}
				tables = append(tables, name)
			}
			continue
		}
		if _, seen := seenExternal[name]; !seen {
			seenExternal[name] = struct{}{}
			externalSources = append(externalSources, name)
		}
	}

	return tables, externalSources
}

// ExternalSources returns the feed topics read directly by registered specs,
// sorted.
func (r *TableRegistry) ExternalSources() []string {
	var all []string
	for _, spec := range r.All() {
		all = append(all, spec.Sources...)
	}
	_, topics := r.ResolveDependencies(all)
	sort.Strings(topics)
	return topics
}

// Install registers every spec with l. Sources are stored by their resolved
// names so level-qualified references work inside the lake.
func (r *TableRegistry) Install(l *lake.DataLake) error {
	for _, spec := range r.All() {
		sources := make([]string, len(spec.Sources))
		for i, src := range spec.Sources {
			sources[i], _ = r.resolveSource(src)
		}
		if _, err := l.RegisterTable(spec.Level, spec.Name, sources, spec.IncludeSession, spec.Func); err != nil {
			return fmt.Errorf("installing table %q: %w", spec.Name, err)
		}
	}
	return nil
}
