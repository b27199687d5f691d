// Package dag orders named nodes by their dependencies. The workspace uses
// it for module imports, the module pipeline for the reference graph of
// top-level bindings.
package dag

import (
	"fmt"
	"slices"
	"sort"

	"github.com/pkg/errors"
)

// Graph is a directed graph whose edges point from a dependency to its
// dependents. Nodes keep insertion order, which makes every traversal
// deterministic.
type Graph[T any] struct {
	order   []string
	nodes   map[string]T
	edges   map[string][]string // dependency -> dependents
	parents map[string][]string // dependent -> dependencies
}

func NewGraph[T any]() *Graph[T] {
	return &Graph[T]{
		nodes:   make(map[string]T),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node, or replaces the data of an existing one.
func (g *Graph[T]) AddNode(id string, data T) {
	if _, exists := g.nodes[id]; !exists {
		g.order = append(g.order, id)
	}
	g.nodes[id] = data
}

// AddEdge records that dependent depends on dependency. Self edges are
// allowed: they mark a node as recursive.
func (g *Graph[T]) AddEdge(dependency, dependent string) error {
	if _, ok := g.nodes[dependency]; !ok {
		return errors.Errorf("node %q does not exist", dependency)
	}
	if _, ok := g.nodes[dependent]; !ok {
		return errors.Errorf("node %q does not exist", dependent)
	}
	if !slices.Contains(g.edges[dependency], dependent) {
		g.edges[dependency] = append(g.edges[dependency], dependent)
		g.parents[dependent] = append(g.parents[dependent], dependency)
	}
	return nil
}

func (g *Graph[T]) Node(id string) (T, bool) {
	data, ok := g.nodes[id]
	return data, ok
}

// Parents returns the dependencies of id.
func (g *Graph[T]) Parents(id string) []string {
	return g.parents[id]
}

// Children returns the dependents of id.
func (g *Graph[T]) Children(id string) []string {
	return g.edges[id]
}

// IDs returns the node IDs in insertion order.
func (g *Graph[T]) IDs() []string {
	return slices.Clone(g.order)
}

func (g *Graph[T]) Len() int { return len(g.order) }

// CycleError is returned by the orderings that need an acyclic graph.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %v", e.Path)
}

// Cycle returns a dependency cycle as a path whose first and last
// elements are the same node, or nil when the graph is acyclic.
func (g *Graph[T]) Cycle() []string {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.order))
	from := make(map[string]string)
	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		state[id] = onStack
		for _, child := range g.edges[id] {
			switch state[child] {
			case unvisited:
				from[child] = id
				if dfs(child) {
					return true
				}
			case onStack:
				cycle = []string{child}
				for cur := id; cur != child; cur = from[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, child)
				slices.Reverse(cycle)
				return true
			}
		}
		state[id] = done
		return false
	}
	for _, id := range g.order {
		if state[id] == unvisited && dfs(id) {
			return cycle
		}
	}
	return nil
}

// TopologicalSort returns the nodes with every dependency before its
// dependents.
func (g *Graph[T]) TopologicalSort() ([]string, error) {
	if cycle := g.Cycle(); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}
	visited := make(map[string]bool, len(g.order))
	out := make([]string, 0, len(g.order))
	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, parent := range g.parents[id] {
			visit(parent)
		}
		out = append(out, id)
	}
	for _, id := range g.order {
		visit(id)
	}
	return out, nil
}

// Levels groups the nodes so that every node of level N only depends on
// nodes of earlier levels. Nodes of one level are independent of each
// other. Each level is sorted.
func (g *Graph[T]) Levels() ([][]string, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	level := make(map[string]int, len(order))
	var levels [][]string
	for _, id := range order {
		l := 0
		for _, parent := range g.parents[id] {
			l = max(l, level[parent]+1)
		}
		level[id] = l
		if l == len(levels) {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], id)
	}
	for _, l := range levels {
		sort.Strings(l)
	}
	return levels, nil
}

// Components returns the strongly connected components, dependencies
// first. Members of a component keep insertion order.
func (g *Graph[T]) Components() [][]string {
	position := make(map[string]int, len(g.order))
	for i, id := range g.order {
		position[id] = i
	}
	index := make(map[string]int, len(g.order))
	low := make(map[string]int, len(g.order))
	onStack := make(map[string]bool, len(g.order))
	var stack []string
	var out [][]string
	next := 0

	// Tarjan's algorithm over the dependency edges: a component is
	// emitted only after every component it depends on.
	var connect func(id string)
	connect = func(id string) {
		index[id], low[id] = next, next
		next++
		stack = append(stack, id)
		onStack[id] = true
		for _, dep := range g.parents[id] {
			if _, seen := index[dep]; !seen {
				connect(dep)
				low[id] = min(low[id], low[dep])
			} else if onStack[dep] {
				low[id] = min(low[id], index[dep])
			}
		}
		if low[id] != index[id] {
			return
		}
		var component []string
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == id {
				break
			}
		}
		sort.Slice(component, func(i, j int) bool { return position[component[i]] < position[component[j]] })
		out = append(out, component)
	}
	for _, id := range g.order {
		if _, seen := index[id]; !seen {
			connect(id)
		}
	}
	return out
}

// Recursive reports whether id depends on itself directly.
func (g *Graph[T]) Recursive(id string) bool {
	return slices.Contains(g.parents[id], id)
}

// Upstream returns every transitive dependency of id, sorted.
func (g *Graph[T]) Upstream(id string) []string {
	seen := map[string]bool{}
	var mark func(string)
	mark = func(n string) {
		for _, parent := range g.parents[n] {
			if !seen[parent] {
				seen[parent] = true
				mark(parent)
			}
		}
	}
	mark(id)
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
