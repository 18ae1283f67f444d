// Package dag provides directed graph operations for table dependencies.
// It supports cycle detection, topological sorting and upstream/downstream
// queries. Every traversal uses an explicit stack, so arbitrarily long
// dependency chains never grow the goroutine stack.
package dag

import (
	"fmt"
	"slices"
	"sort"

	"github.com/leapstack-labs/livef1/pkg/core"
)

// Node represents a node in the graph.
type Node struct {
	// ID is the unique identifier (table name)
	ID string
	// Data holds arbitrary node data
	Data any
}

// Graph represents a directed dependency graph.
type Graph struct {
	nodes   map[string]*Node
	edges   map[string][]string // parent -> children (dependents)
	parents map[string][]string // child -> parents (dependencies)
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// Clear removes all nodes and edges from the graph.
func (g *Graph) Clear() {
	g.nodes = make(map[string]*Node)
	g.edges = make(map[string][]string)
	g.parents = make(map[string][]string)
}

// AddNode adds a node to the graph, replacing the data of an existing node.
func (g *Graph) AddNode(id string, data any) {
	if n, exists := g.nodes[id]; exists {
		n.Data = data
		return
	}
	g.nodes[id] = &Node{ID: id, Data: data}
	g.edges[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
// A self-loop is recorded and reported by HasCycle.
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}

	if !slices.Contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// GetParents returns the parents (dependencies) of a node.
func (g *Graph) GetParents(id string) []string {
	return g.parents[id]
}

// GetChildren returns the children (dependents) of a node.
func (g *Graph) GetChildren(id string) []string {
	return g.edges[id]
}

// GetAllNodes returns all nodes sorted by ID.
func (g *Graph) GetAllNodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

const (
	white = iota // unvisited
	grey         // on the current DFS path
	black        // fully explored
)

type frame struct {
	id   string
	next int // index of the next child to explore
}

// HasCycle returns true if the graph contains a cycle, along with the cycle
// path. The path starts and ends with the same node and follows edge direction.
func (g *Graph) HasCycle() (bool, []string) {
	color := make(map[string]int, len(g.nodes))

	for _, root := range g.sortedIDs() {
		if color[root] != white {
			continue
		}
		stack := []frame{{id: root}}
		color[root] = grey

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := g.edges[top.id]
			if top.next >= len(children) {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := children[top.next]
			top.next++

			switch color[child] {
			case white:
				color[child] = grey
				stack = append(stack, frame{id: child})
			case grey:
				// Walk the stack back to where child was entered.
				start := len(stack) - 1
				for stack[start].id != child {
					start--
				}
				path := make([]string, 0, len(stack)-start+1)
				for _, f := range stack[start:] {
					path = append(path, f.id)
				}
				return true, append(path, child)
			}
		}
	}

	return false, nil
}

// TopologicalSort returns nodes in topological order (dependencies before dependents).
// Returns a *core.CycleError if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, &core.CycleError{Path: cyclePath}
	}

	visited := make(map[string]bool, len(g.nodes))
	result := make([]*Node, 0, len(g.nodes))

	// Post-order over parents, roots taken in sorted order for determinism.
	for _, root := range g.sortedIDs() {
		if visited[root] {
			continue
		}
		visited[root] = true
		stack := []frame{{id: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			parents := g.parents[top.id]
			if top.next >= len(parents) {
				result = append(result, g.nodes[top.id])
				stack = stack[:len(stack)-1]
				continue
			}
			parent := parents[top.next]
			top.next++
			if !visited[parent] {
				visited[parent] = true
				stack = append(stack, frame{id: parent})
			}
		}
	}

	return result, nil
}

// GetExecutionLevels returns nodes grouped by execution level.
// Nodes at level N depend only on nodes at levels below N.
// Level 0 contains nodes with no dependencies.
func (g *Graph) GetExecutionLevels() ([][]string, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	assigned := make(map[string]int, len(order))
	maxLevel := -1
	for _, node := range order {
		level := 0
		for _, parentID := range g.parents[node.ID] {
			if l := assigned[parentID] + 1; l > level {
				level = l
			}
		}
		assigned[node.ID] = level
		if level > maxLevel {
			maxLevel = level
		}
	}

	levels := make([][]string, maxLevel+1)
	for i := range levels {
		levels[i] = []string{}
	}
	for id, level := range assigned {
		levels[level] = append(levels[level], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}

	return levels, nil
}

// reach collects every node reachable from starts through next, excluding
// the starts themselves unless includeStarts is set.
func (g *Graph) reach(starts []string, next map[string][]string, includeStarts bool) []string {
	seen := make(map[string]bool)
	var stack []string
	for _, id := range starts {
		if _, exists := g.nodes[id]; !exists {
			continue
		}
		if includeStarts {
			seen[id] = true
		}
		stack = append(stack, id)
	}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range next[id] {
			if !seen[n] {
				seen[n] = true
				stack = append(stack, n)
			}
		}
	}

	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// GetAffectedNodes returns the given nodes and all their downstream dependents.
func (g *Graph) GetAffectedNodes(changedIDs []string) []string {
	return g.reach(changedIDs, g.edges, true)
}

// GetUpstreamNodes returns all nodes upstream of the given node (its
// dependencies and their dependencies).
func (g *Graph) GetUpstreamNodes(id string) []string {
	return g.reach([]string{id}, g.parents, false)
}

// GetRoots returns nodes with no parents (no dependencies).
func (g *Graph) GetRoots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// GetLeaves returns nodes with no children (no dependents).
func (g *Graph) GetLeaves() []string {
	var leaves []string
	for id := range g.nodes {
		if len(g.edges[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// Subgraph returns a new graph containing only the specified nodes and their edges.
func (g *Graph) Subgraph(nodeIDs []string) *Graph {
	subgraph := NewGraph()
	nodeSet := make(map[string]bool)

	for _, id := range nodeIDs {
		if node, exists := g.nodes[id]; exists {
			nodeSet[id] = true
			subgraph.AddNode(id, node.Data)
		}
	}

	for id := range nodeSet {
		for _, childID := range g.edges[id] {
			if nodeSet[childID] {
				_ = subgraph.AddEdge(id, childID)
			}
		}
	}

	return subgraph
}
