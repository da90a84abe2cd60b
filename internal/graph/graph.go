// Package graph provides directed-graph utilities over opaque string node
// identifiers: cycle detection, strongly connected components, topological
// sort, reachability, path search, and degree statistics.
//
// All traversal is iterative (no recursion), and all iteration follows node
// and edge insertion order, so every result is deterministic for a given
// build sequence. A Graph is not safe for concurrent mutation; built graphs
// are safe for concurrent reads.
package graph

// Graph is a directed graph. The zero value is not usable; use New.
type Graph struct {
	nodes []string
	index map[string]int
	adj   map[string][]string
	edges map[edge]struct{}
}

type edge struct{ from, to string }

func New() *Graph {
	return &Graph{
		index: make(map[string]int),
		adj:   make(map[string][]string),
		edges: make(map[edge]struct{}),
	}
}

// AddNode inserts a node if absent.
func (g *Graph) AddNode(id string) {
	if _, ok := g.index[id]; ok {
		return
	}
	g.index[id] = len(g.nodes)
	g.nodes = append(g.nodes, id)
	g.adj[id] = nil
}

// AddEdge inserts both endpoints if absent and adds a directed edge.
// Adding the same edge twice is a no-op.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	e := edge{from, to}
	if _, ok := g.edges[e]; ok {
		return
	}
	g.edges[e] = struct{}{}
	g.adj[from] = append(g.adj[from], to)
}

// AddBidirectionalEdge adds edges in both directions. Used to model symmetric
// relationships such as co-run constraints.
func (g *Graph) AddBidirectionalEdge(a, b string) {
	g.AddEdge(a, b)
	g.AddEdge(b, a)
}

// Nodes returns node IDs in insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Neighbors returns the direct successors of id in insertion order.
func (g *Graph) Neighbors(id string) []string {
	next := g.adj[id]
	out := make([]string, len(next))
	copy(out, next)
	return out
}

// Contains reports whether id is a node of the graph.
func (g *Graph) Contains(id string) bool {
	_, ok := g.index[id]
	return ok
}

func (g *Graph) NodeCount() int { return len(g.nodes) }

func (g *Graph) EdgeCount() int { return len(g.edges) }
