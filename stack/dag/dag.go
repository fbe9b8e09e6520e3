// Package dag holds the resource dependency graph of a template. Edges point
// from a resource to the resources that must exist before it.
package dag

import (
	"fmt"
	"sort"
)

type node struct {
	id         string
	deps       map[string]*node
	dependents map[string]*node
}

type Graph struct {
	nodes map[string]*node
}

// CycleError reports a dependency cycle. Path starts and ends at the same node.
type CycleError struct {
	Path []string
}

func (e CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %v", e.Path)
}

// MissingNodeError reports an edge to a node that was never added.
type MissingNodeError struct {
	From string
	To   string
}

func (e MissingNodeError) Error() string {
	return fmt.Sprintf("%s depends on unknown resource %s", e.From, e.To)
}

func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode adds a node. Adding an existing id is a no-op.
func (g *Graph) AddNode(id string) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node{
		id:         id,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
}

func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// AddEdge records that id depends on dep. Both nodes must exist.
func (g *Graph) AddEdge(id, dep string) error {
	if id == dep {
		return CycleError{Path: []string{id, id}}
	}
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("node not found: %s", id)
	}
	d, ok := g.nodes[dep]
	if !ok {
		return MissingNodeError{From: id, To: dep}
	}
	n.deps[dep] = d
	d.dependents[id] = n
	return nil
}

// Dependencies returns the sorted ids id depends on directly.
func (g *Graph) Dependencies(id string) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedIDs(n.deps), nil
}

// Dependents returns the sorted ids that depend on id directly.
func (g *Graph) Dependents(id string) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedIDs(n.dependents), nil
}

// DetectCycles walks the graph depth first and returns a CycleError for the
// first cycle found. Nodes are visited in id order so the result is stable.
func (g *Graph) DetectCycles() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	var stack []string

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			start := 0
			for i, id := range stack {
				if id == n.id {
					start = i
					break
				}
			}
			path := append(append([]string{}, stack[start:]...), n.id)
			return CycleError{Path: path}
		}
		temporary[n.id] = true
		stack = append(stack, n.id)
		for _, id := range sortedIDs(n.deps) {
			if err := visit(n.deps[id]); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		delete(temporary, n.id)
		permanent[n.id] = true
		return nil
	}

	for _, id := range sortedIDs(g.nodes) {
		if err := visit(g.nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns every node after all of its dependencies. Ties are
// broken by id so the order is deterministic.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}
	remaining := make(map[string]int, len(g.nodes))
	var ready []string
	for id, n := range g.nodes {
		remaining[id] = len(n.deps)
		if len(n.deps) == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, dep := range sortedIDs(g.nodes[id].dependents) {
			remaining[dep]--
			if remaining[dep] == 0 {
				ready = append(ready, dep)
				sort.Strings(ready)
			}
		}
	}
	return order, nil
}

func sortedIDs(m map[string]*node) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
