package graph

// Degree holds in/out degree for one node.
type Degree struct {
	In  int `json:"in"`
	Out int `json:"out"`
}

// Degrees returns the in/out degree of every node.
func (g *Graph) Degrees() map[string]Degree {
	out := make(map[string]Degree, len(g.nodes))
	for _, n := range g.nodes {
		out[n] = Degree{Out: len(g.adj[n])}
	}
	for e := range g.edges {
		d := out[e.to]
		d.In++
		out[e.to] = d
	}
	return out
}

// Sources returns nodes with in-degree 0, in insertion order.
func (g *Graph) Sources() []string {
	deg := g.Degrees()
	var out []string
	for _, n := range g.nodes {
		if deg[n].In == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Sinks returns nodes with out-degree 0, in insertion order.
func (g *Graph) Sinks() []string {
	var out []string
	for _, n := range g.nodes {
		if len(g.adj[n]) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Analysis is the aggregate produced by Analyze.
type Analysis struct {
	Nodes        int        `json:"nodes"`
	Edges        int        `json:"edges"`
	AvgInDegree  float64    `json:"avg_in_degree"`
	AvgOutDegree float64    `json:"avg_out_degree"`
	Sources      []string   `json:"sources"`
	Sinks        []string   `json:"sinks"`
	HasCycles    bool       `json:"has_cycles"`
	CycleCount   int        `json:"cycle_count"`
	Components   [][]string `json:"strongly_connected_components"`
	Density      float64    `json:"density"`
}

// Analyze computes node/edge counts, average degrees, sources, sinks, cycle
// presence, SCCs and density (edges over V*(V-1); 0 for graphs with fewer
// than two nodes).
func (g *Graph) Analyze() Analysis {
	a := Analysis{
		Nodes:      g.NodeCount(),
		Edges:      g.EdgeCount(),
		Sources:    g.Sources(),
		Sinks:      g.Sinks(),
		Components: g.StronglyConnectedComponents(),
	}
	cycles := g.DetectCycles()
	a.HasCycles = len(cycles) > 0
	a.CycleCount = len(cycles)
	if a.Nodes > 0 {
		a.AvgInDegree = float64(a.Edges) / float64(a.Nodes)
		a.AvgOutDegree = a.AvgInDegree
	}
	if a.Nodes > 1 {
		a.Density = float64(a.Edges) / float64(a.Nodes*(a.Nodes-1))
	}
	return a
}
