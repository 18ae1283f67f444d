package lake

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/leapstack-labs/livef1/pkg/frame"
)

const (
	white = iota // not visited in this walk
	grey         // being resolved
	black        // resolved
)

type step struct {
	name     string
	expanded bool // sources already pushed; generate on pop
}

// GenerateTable returns the frame of name, generating it and every
// ungenerated table it depends on first. A generated table is returned from
// cache without running its function again. A name that is not registered but
// is a topic the lake's parsers know is loaded as a bronze table through the
// session.
//
// Dependency cycles reachable from name fail with *core.CycleError before any
// function runs. A function error fails with *core.GenerationError and leaves
// that table ungenerated.
func (l *DataLake) GenerateTable(ctx context.Context, name string) (*frame.Frame, error) {
	if path := l.findCycle([]string{name}); path != nil {
		return nil, &core.CycleError{Path: path}
	}

	color := make(map[string]int)
	var path []string
	stack := []step{{name: name}}

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if s.expanded {
			t, _ := l.Lookup(s.name)
			if err := l.generate(ctx, t); err != nil {
				return nil, err
			}
			color[s.name] = black
			path = path[:len(path)-1]
			continue
		}

		if color[s.name] == black {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t, err := l.resolve(ctx, s.name)
		if err != nil {
			return nil, err
		}
		if t.generated {
			color[s.name] = black
			continue
		}

		color[s.name] = grey
		path = append(path, s.name)
		stack = append(stack, step{name: s.name, expanded: true})
		for i := len(t.sources) - 1; i >= 0; i-- {
			src := t.sources[i]
			switch color[src] {
			case grey:
				// Only reachable if the graph changed since findCycle ran.
				start := slices.Index(path, src)
				cycle := append(slices.Clone(path[start:]), src)
				return nil, &core.CycleError{Path: cycle}
			case white:
				stack = append(stack, step{name: src})
			}
		}
	}

	t, _ := l.Lookup(name)
	return t.df, nil
}

// resolve returns the registered table for name, loading a bronze table from
// the session when name is a known topic.
func (l *DataLake) resolve(ctx context.Context, name string) (*Table, error) {
	if t, ok := l.Lookup(name); ok {
		return t, nil
	}
	if l.parsers == nil || l.session == nil || !l.parsers.Has(name) {
		return nil, &core.TableNotFoundError{Name: name}
	}
	return l.loadBronze(ctx, name)
}

func (l *DataLake) loadBronze(ctx context.Context, topic string) (*Table, error) {
	start := l.now()
	l.logger.Debug("loading bronze table from feed", "topic", topic)

	raw, err := l.session.GetRaw(ctx, topic)
	if err != nil {
		l.notify(topic, core.LevelBronze, start, 0, err)
		return nil, &core.GenerationError{Table: topic, Err: fmt.Errorf("fetching topic: %w", err)}
	}
	records, err := l.parsers.Parse(topic, raw, l.session.Key())
	if err != nil {
		l.notify(topic, core.LevelBronze, start, 0, err)
		return nil, &core.GenerationError{Table: topic, Err: fmt.Errorf("parsing topic: %w", err)}
	}
	t, err := l.CreateBronzeTable(topic, raw, records)
	if err != nil {
		return nil, err
	}
	l.notify(topic, core.LevelBronze, start, t.df.Len(), nil)
	return t, nil
}

// generate runs t's function with its sources, all of which are generated.
func (l *DataLake) generate(ctx context.Context, t *Table) error {
	if t.generated {
		return nil
	}
	if t.level == core.LevelBronze {
		t.df = frame.FromRecords(t.parsed)
		return l.markGenerated(t)
	}
	if t.callback == nil {
		return &core.GenerationError{Table: t.name, Err: errNoCallback}
	}

	in := Inputs{Sources: make(map[string]*frame.Frame, len(t.sources))}
	sourceTables := make(map[core.Level][]*Table)
	deps := make([]*Table, 0, len(t.sources))
	for _, src := range t.sources {
		st, ok := l.Lookup(src)
		if !ok || !st.generated {
			return &core.GenerationError{Table: t.name, Err: fmt.Errorf("source %q is not available", src)}
		}
		in.Sources[src] = st.df
		sourceTables[st.level] = append(sourceTables[st.level], st)
		deps = append(deps, st)
	}
	if t.includeSession {
		in.Session = l.session
	}
	t.sourceTables = sourceTables
	t.dependencyTables = deps

	start := l.now()
	l.logger.Debug("generating table", "table", t.name, "level", t.level, "sources", t.sources)
	df, err := runCallback(ctx, t.callback, in)
	if err != nil {
		l.notify(t.name, t.level, start, 0, err)
		l.logger.Debug("table generation failed", "table", t.name, "error", err)
		return &core.GenerationError{Table: t.name, Err: err}
	}

	t.df = df
	if err := l.markGenerated(t); err != nil {
		return err
	}
	l.notify(t.name, t.level, start, df.Len(), nil)
	return nil
}

func (l *DataLake) markGenerated(t *Table) error {
	t.generated = true
	opts := []MetadataOption{WithGenerated(true)}
	if md, ok := l.metadata[t.name]; !ok || md.CreatedAt == nil {
		opts = append(opts, WithCreatedAt(l.now()))
	}
	return l.UpdateMetadata(t.name, t.level, opts...)
}

func (l *DataLake) notify(name string, level core.Level, start time.Time, rows int, err error) {
	if l.observer == nil {
		return
	}
	l.observer.TableGenerated(GenerationEvent{
		Table:    name,
		Level:    level,
		Started:  start,
		Duration: l.now().Sub(start),
		Rows:     rows,
		Err:      err,
	})
}
