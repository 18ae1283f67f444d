package lake

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/livef1/pkg/core"
)

// SimpleLake stores the tables of one level, keyed by name.
type SimpleLake struct {
	level  core.Level
	parent *DataLake
	tables map[string]*Table
}

// NewSimpleLake creates a level-scoped store. parent may be nil for a
// standalone store.
func NewSimpleLake(parent *DataLake, level core.Level) *SimpleLake {
	return &SimpleLake{
		level:  level,
		parent: parent,
		tables: make(map[string]*Table),
	}
}

// NewBronzeLake creates the bronze store of parent.
func NewBronzeLake(parent *DataLake) *SimpleLake { return NewSimpleLake(parent, core.LevelBronze) }

// NewSilverLake creates the silver store of parent.
func NewSilverLake(parent *DataLake) *SimpleLake { return NewSimpleLake(parent, core.LevelSilver) }

// NewGoldLake creates the gold store of parent.
func NewGoldLake(parent *DataLake) *SimpleLake { return NewSimpleLake(parent, core.LevelGold) }

// LakeType returns the level this store holds.
func (s *SimpleLake) LakeType() core.Level { return s.level }

// Put stores t under name, tags it with this level and points it at the
// parent lake, which records the name in its metadata. A second Put of the
// same name replaces the first. The parent rejects a name that already
// lives at another level.
func (s *SimpleLake) Put(name string, t *Table) error {
	if t == nil {
		return fmt.Errorf("cannot put nil table %q", name)
	}
	if s.parent != nil {
		if err := s.parent.register(name, s.level, t); err != nil {
			return err
		}
	}
	t.name = name
	t.level = s.level
	t.lake = s.parent
	s.tables[name] = t
	return nil
}

// Get returns the table stored under name. It never triggers generation.
func (s *SimpleLake) Get(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// HasData reports whether name is stored in this lake.
func (s *SimpleLake) HasData(name string) bool {
	_, ok := s.tables[name]
	return ok
}

// Names returns the stored table names, sorted.
func (s *SimpleLake) Names() []string {
	names := make([]string, 0, len(s.tables))
	for n := range s.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of stored tables.
func (s *SimpleLake) Len() int { return len(s.tables) }
