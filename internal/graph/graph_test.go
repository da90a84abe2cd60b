package graph_test

import (
	"reflect"
	"testing"

	"crewplan/internal/graph"
)

func TestAddEdgeIdempotent(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("a", "b")
	if g.EdgeCount() != 1 {
		t.Fatalf("edge count = %d, want 1", g.EdgeCount())
	}
	if got := g.Neighbors("a"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("neighbors = %v", got)
	}
}

func TestNodesInsertionOrder(t *testing.T) {
	g := graph.New()
	g.AddEdge("c", "a")
	g.AddNode("b")
	g.AddEdge("a", "b")
	want := []string{"c", "a", "b"}
	if got := g.Nodes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("nodes = %v, want %v", got, want)
	}
}

func TestDetectCyclesTriangle(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")
	cycles := g.DetectCycles()
	if len(cycles) != 1 {
		t.Fatalf("cycles = %v, want one", cycles)
	}
	want := []string{"a", "b", "c", "a"}
	if !reflect.DeepEqual(cycles[0], want) {
		t.Fatalf("cycle = %v, want %v", cycles[0], want)
	}
}

func TestDetectCyclesSelfLoop(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "a")
	cycles := g.DetectCycles()
	if len(cycles) != 1 || !reflect.DeepEqual(cycles[0], []string{"a", "a"}) {
		t.Fatalf("cycles = %v", cycles)
	}
}

func TestDetectCyclesAcyclic(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("a", "c")
	if !g.IsAcyclic() {
		t.Fatalf("expected acyclic, got %v", g.DetectCycles())
	}
}

func TestDetectCyclesDeterministic(t *testing.T) {
	build := func() *graph.Graph {
		g := graph.New()
		g.AddEdge("a", "b")
		g.AddEdge("b", "a")
		g.AddEdge("b", "c")
		g.AddEdge("c", "b")
		return g
	}
	first := build().DetectCycles()
	for i := 0; i < 10; i++ {
		if got := build().DetectCycles(); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: cycles = %v, want %v", i, got, first)
		}
	}
}

func TestStronglyConnectedComponents(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")
	g.AddEdge("c", "d")
	g.AddEdge("d", "e")
	g.AddEdge("e", "d")
	g.AddNode("f")

	comps := g.StronglyConnectedComponents()
	if len(comps) != 3 {
		t.Fatalf("components = %v, want 3", comps)
	}
	sizes := map[string]int{}
	total := 0
	for _, comp := range comps {
		for _, n := range comp {
			sizes[n] = len(comp)
			total++
		}
	}
	if total != g.NodeCount() {
		t.Fatalf("covered %d nodes, want %d", total, g.NodeCount())
	}
	for n, want := range map[string]int{"a": 3, "b": 3, "c": 3, "d": 2, "e": 2, "f": 1} {
		if sizes[n] != want {
			t.Fatalf("node %s in component of size %d, want %d", n, sizes[n], want)
		}
	}
}

func TestTopologicalSort(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("a", "c")
	g.AddEdge("b", "d")
	g.AddEdge("c", "d")
	order, ok := g.TopologicalSort()
	if !ok {
		t.Fatalf("expected ok")
	}
	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	for _, e := range [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}} {
		if pos[e[0]] >= pos[e[1]] {
			t.Fatalf("order %v violates %s before %s", order, e[0], e[1])
		}
	}
}

func TestTopologicalSortCyclic(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")
	order, ok := g.TopologicalSort()
	if ok || order != nil {
		t.Fatalf("got (%v, %v), want (nil, false)", order, ok)
	}
}

func TestReachable(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("x", "y")
	want := []string{"a", "b", "c"}
	if got := g.Reachable("a"); !reflect.DeepEqual(got, want) {
		t.Fatalf("reachable = %v, want %v", got, want)
	}
	if got := g.Reachable("missing"); got != nil {
		t.Fatalf("reachable from missing node = %v, want nil", got)
	}
}

func TestShortestPath(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "d")
	g.AddEdge("a", "d")
	want := []string{"a", "d"}
	if got := g.ShortestPath("a", "d"); !reflect.DeepEqual(got, want) {
		t.Fatalf("path = %v, want %v", got, want)
	}
	if got := g.ShortestPath("d", "a"); got != nil {
		t.Fatalf("path = %v, want nil", got)
	}
	if got := g.ShortestPath("a", "a"); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("path = %v, want [a]", got)
	}
}

func TestAllPaths(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("a", "c")
	g.AddEdge("b", "d")
	g.AddEdge("c", "d")
	paths := g.AllPaths("a", "d", 0)
	want := [][]string{{"a", "b", "d"}, {"a", "c", "d"}}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	if got := g.AllPaths("a", "d", 1); len(got) != 1 {
		t.Fatalf("capped paths = %v, want one", got)
	}
}

func TestAllPathsSkipsCycles(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")
	g.AddEdge("b", "c")
	paths := g.AllPaths("a", "c", 0)
	want := [][]string{{"a", "b", "c"}}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
}

func TestAnalyze(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")
	a := g.Analyze()
	if a.Nodes != 3 || a.Edges != 3 {
		t.Fatalf("nodes/edges = %d/%d", a.Nodes, a.Edges)
	}
	if !a.HasCycles || a.CycleCount != 1 {
		t.Fatalf("cycles: has=%v count=%d", a.HasCycles, a.CycleCount)
	}
	if len(a.Sources) != 0 || len(a.Sinks) != 0 {
		t.Fatalf("sources=%v sinks=%v", a.Sources, a.Sinks)
	}
	if a.Density != 0.5 {
		t.Fatalf("density = %v, want 0.5", a.Density)
	}
	if len(a.Components) != 1 || len(a.Components[0]) != 3 {
		t.Fatalf("components = %v", a.Components)
	}
}

func TestDegrees(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("a", "c")
	g.AddEdge("b", "c")
	deg := g.Degrees()
	if deg["a"] != (graph.Degree{In: 0, Out: 2}) {
		t.Fatalf("deg a = %+v", deg["a"])
	}
	if deg["c"] != (graph.Degree{In: 2, Out: 0}) {
		t.Fatalf("deg c = %+v", deg["c"])
	}
	if got := g.Sources(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("sources = %v", got)
	}
	if got := g.Sinks(); !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("sinks = %v", got)
	}
}
