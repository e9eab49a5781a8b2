// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"slices"
	"testing"
)

func TestTopologicalSort_EmptyGraph(t *testing.T) {
	t.Parallel()
	g := New[string]()
	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order != nil {
		t.Errorf("expected nil, got %v", order)
	}
}

func TestTopologicalSort_LinearChain(t *testing.T) {
	t.Parallel()
	g := New[string]()
	// lazylib before magiclib before nexerelin
	g.AddEdge("lazylib", "magiclib")
	g.AddEdge("magiclib", "nexerelin")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"lazylib", "magiclib", "nexerelin"}
	if !slices.Equal(order, expected) {
		t.Errorf("expected %v, got %v", expected, order)
	}
}

func TestTopologicalSort_ReadyNodesSortedByKey(t *testing.T) {
	t.Parallel()
	g := New[string]()
	g.AddNode("zeta")
	g.AddEdge("beta", "alpha")
	g.AddNode("gamma")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"beta", "alpha", "gamma", "zeta"}
	if !slices.Equal(order, expected) {
		t.Errorf("expected %v, got %v", expected, order)
	}
}

func TestTopologicalSort_Diamond(t *testing.T) {
	t.Parallel()
	g := New[string]()
	g.AddEdge("A", "C")
	g.AddEdge("A", "B")
	g.AddEdge("B", "D")
	g.AddEdge("C", "D")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(order, []string{"A", "B", "C", "D"}) {
		t.Errorf("expected [A B C D], got %v", order)
	}
}

func TestTopologicalSort_IntKeys(t *testing.T) {
	t.Parallel()
	g := New[int]()
	g.AddEdge(3, 1)
	g.AddEdge(2, 1)

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(order, []int{2, 3, 1}) {
		t.Errorf("expected [2 3 1], got %v", order)
	}
}

func TestTopologicalSort_Cycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		edges   [][2]string
		minSize int
	}{
		{"self loop", [][2]string{{"A", "A"}}, 1},
		{"simple", [][2]string{{"A", "B"}, {"B", "A"}}, 2},
		{"three", [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New[string]()
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			_, err := g.TopologicalSort()
			var cycleErr *CycleError
			if !errors.As(err, &cycleErr) {
				t.Fatalf("expected *CycleError, got %T: %v", err, err)
			}
			if len(cycleErr.Cycle) < tt.minSize {
				t.Errorf("expected at least %d nodes in cycle, got %v", tt.minSize, cycleErr.Cycle)
			}
		})
	}
}

func TestTopologicalSort_DuplicateEdges(t *testing.T) {
	t.Parallel()
	g := New[string]()
	g.AddEdge("A", "B")
	g.AddEdge("A", "B")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(order, []string{"A", "B"}) {
		t.Errorf("expected [A, B], got %v", order)
	}
}

func TestDependents(t *testing.T) {
	t.Parallel()
	g := New[string]()
	g.AddEdge("lazylib", "magiclib")
	g.AddEdge("magiclib", "nexerelin")
	g.AddEdge("lazylib", "graphicslib")
	g.AddNode("unrelated")

	got := g.Dependents("lazylib")
	want := []string{"graphicslib", "magiclib", "nexerelin"}
	if !slices.Equal(got, want) {
		t.Errorf("Dependents(lazylib) = %v, want %v", got, want)
	}
	if got := g.Dependents("unrelated"); len(got) != 0 {
		t.Errorf("Dependents(unrelated) = %v, want empty", got)
	}
	if g.Len() != 5 {
		t.Errorf("Len() = %d, want 5", g.Len())
	}
}

func TestCycleError_Message(t *testing.T) {
	t.Parallel()
	err := &CycleError{Cycle: []string{"A", "B", "C"}}
	expected := "dependency cycle detected: A -> B -> C"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}
