// SPDX-License-Identifier: MPL-2.0

// Package dag provides directed acyclic graph operations for topological sorting
// and cycle detection. The registry uses it to compute mod load order and to
// report dependency cycles.
package dag

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle contains the nodes left unordered by the sort: every node on a
		// cycle, plus nodes that depend on one.
		Cycle []string
	}

	// Graph is a directed graph for topological sorting.
	// Edges represent "must come before" relationships: an edge from A to B
	// means A must be ordered before B.
	Graph[K cmp.Ordered] struct {
		// adjacency maps each node to its outgoing neighbors (nodes that depend on it).
		adjacency map[K][]K
		// nodes tracks all nodes in insertion order.
		nodes []K
		// index maps a node to its insertion position.
		index map[K]int
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New[K cmp.Ordered]() *Graph[K] {
	return &Graph[K]{
		adjacency: make(map[K][]K),
		index:     make(map[K]int),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph[K]) AddNode(name K) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

// AddEdge adds a directed edge from -> to, meaning "from" must come before "to".
// Both nodes are implicitly added if they don't exist. Duplicate edges are ignored.
func (g *Graph[K]) AddEdge(from, to K) {
	g.AddNode(from)
	g.AddNode(to)
	if slices.Contains(g.adjacency[from], to) {
		return
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Len returns the number of nodes.
func (g *Graph[K]) Len() int {
	return len(g.nodes)
}

// TopologicalSort returns a valid order using Kahn's algorithm.
// Returns CycleError if the graph contains a cycle.
// Among nodes that are ready at the same time, the smallest key is emitted
// first, so the order depends only on the graph and not on insertion order.
func (g *Graph[K]) TopologicalSort() ([]K, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[K]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	var ready []K
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			ready = append(ready, node)
		}
	}
	slices.Sort(ready)

	result := make([]K, 0, len(g.nodes))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				i, _ := slices.BinarySearch(ready, neighbor)
				ready = slices.Insert(ready, i, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var cycleNodes []K
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycleNodes = append(cycleNodes, node)
			}
		}
		slices.Sort(cycleNodes)
		names := make([]string, len(cycleNodes))
		for i, n := range cycleNodes {
			names[i] = fmt.Sprint(n)
		}
		return nil, &CycleError{Cycle: names}
	}

	return result, nil
}

// Dependents returns every node reachable from start along edges, excluding
// start itself, sorted.
func (g *Graph[K]) Dependents(start K) []K {
	seen := map[K]bool{start: true}
	stack := []K{start}
	var out []K
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g.adjacency[n] {
			if seen[next] {
				continue
			}
			seen[next] = true
			out = append(out, next)
			stack = append(stack, next)
		}
	}
	slices.Sort(out)
	return out
}
