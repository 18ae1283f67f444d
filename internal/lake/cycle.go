package lake

import (
	"slices"

	"github.com/leapstack-labs/livef1/internal/dag"
	"github.com/leapstack-labs/livef1/pkg/core"
)

// CheckCircularDependencies reports whether the registered tables are free of
// dependency cycles. An empty lake, or one without edges, passes.
func (l *DataLake) CheckCircularDependencies() bool {
	return l.DependencyCycle() == nil
}

// DependencyCycle returns a *core.CycleError describing the first cycle among
// the registered tables, or nil.
func (l *DataLake) DependencyCycle() error {
	names := make([]string, 0, len(l.metadata))
	for n := range l.metadata {
		names = append(names, n)
	}
	slices.Sort(names)
	if path := l.findCycle(names); path != nil {
		return &core.CycleError{Path: path}
	}
	return nil
}

// findCycle walks the registered dependency graph from roots with grey/black
// colouring and returns the first cycle path found. Names that are not
// registered are leaves.
func (l *DataLake) findCycle(roots []string) []string {
	type frame struct {
		name string
		next int
	}
	color := make(map[string]int)

	for _, root := range roots {
		if color[root] != white {
			continue
		}
		color[root] = grey
		stack := []frame{{name: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			var sources []string
			if t, ok := l.Lookup(top.name); ok {
				sources = t.sources
			}
			if top.next >= len(sources) {
				color[top.name] = black
				stack = stack[:len(stack)-1]
				continue
			}
			src := sources[top.next]
			top.next++

			switch color[src] {
			case white:
				color[src] = grey
				stack = append(stack, frame{name: src})
			case grey:
				start := len(stack) - 1
				for stack[start].name != src {
					start--
				}
				path := make([]string, 0, len(stack)-start+1)
				for _, f := range stack[start:] {
					path = append(path, f.name)
				}
				return append(path, src)
			}
		}
	}
	return nil
}

// Graph returns the dependency graph of the registered tables. Edges point
// from a source to the table that reads it. Sources that are not registered
// appear as nodes with nil data.
func (l *DataLake) Graph() *dag.Graph {
	g := dag.NewGraph()
	for _, level := range core.Levels() {
		s, _ := l.store(level)
		for _, name := range s.Names() {
			t, _ := s.Get(name)
			g.AddNode(name, t)
		}
	}
	for _, node := range g.GetAllNodes() {
		t, ok := node.Data.(*Table)
		if !ok {
			continue
		}
		for _, src := range t.sources {
			if _, exists := g.GetNode(src); !exists {
				g.AddNode(src, nil)
			}
			_ = g.AddEdge(src, node.ID)
		}
	}
	return g
}
