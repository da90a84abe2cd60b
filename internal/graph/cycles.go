package graph

// dfs frame for the iterative traversals.
type frame struct {
	node string
	next int
}

const (
	white = iota // unvisited
	gray         // on the current traversal path
	black        // fully explored
)

// DetectCycles finds cycles with an iterative DFS. When a neighbor already on
// the current path is revisited, the path segment from that neighbor's first
// occurrence to the current node, closed with the repeated node, is reported
// as one cycle (e.g. [A B C A]). Every unvisited node is used as a DFS root,
// so each traversal reports a cycle per back edge it crosses; the result is
// not the set of all simple cycles and cycles are not minimized.
func (g *Graph) DetectCycles() [][]string {
	color := make(map[string]int, len(g.nodes))
	pathPos := make(map[string]int)
	var cycles [][]string

	for _, root := range g.nodes {
		if color[root] != white {
			continue
		}
		stack := []frame{{node: root}}
		path := []string{root}
		color[root] = gray
		pathPos[root] = 0

		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			if f.next < len(g.adj[f.node]) {
				n := g.adj[f.node][f.next]
				f.next++
				switch color[n] {
				case white:
					color[n] = gray
					pathPos[n] = len(path)
					path = append(path, n)
					stack = append(stack, frame{node: n})
				case gray:
					start := pathPos[n]
					cyc := make([]string, 0, len(path)-start+1)
					cyc = append(cyc, path[start:]...)
					cyc = append(cyc, n)
					cycles = append(cycles, cyc)
				}
				continue
			}
			color[f.node] = black
			delete(pathPos, f.node)
			path = path[:len(path)-1]
			stack = stack[:len(stack)-1]
		}
	}
	return cycles
}

// IsAcyclic reports whether the graph has no cycles.
func (g *Graph) IsAcyclic() bool {
	return len(g.DetectCycles()) == 0
}

// StronglyConnectedComponents runs Tarjan's algorithm iteratively. Every node
// appears in exactly one component; singletons are included. Components are
// emitted in completion order, members in stack-pop order.
func (g *Graph) StronglyConnectedComponents() [][]string {
	index := make(map[string]int, len(g.nodes))
	low := make(map[string]int, len(g.nodes))
	onStack := make(map[string]bool, len(g.nodes))
	var stack []string
	var comps [][]string
	counter := 0

	for _, root := range g.nodes {
		if _, seen := index[root]; seen {
			continue
		}
		frames := []frame{{node: root}}
		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			if _, seen := index[f.node]; !seen {
				index[f.node] = counter
				low[f.node] = counter
				counter++
				stack = append(stack, f.node)
				onStack[f.node] = true
			}
			descended := false
			for f.next < len(g.adj[f.node]) {
				n := g.adj[f.node][f.next]
				f.next++
				if _, seen := index[n]; !seen {
					frames = append(frames, frame{node: n})
					descended = true
					break
				}
				if onStack[n] && index[n] < low[f.node] {
					low[f.node] = index[n]
				}
			}
			if descended {
				continue
			}
			if low[f.node] == index[f.node] {
				var comp []string
				for {
					n := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[n] = false
					comp = append(comp, n)
					if n == f.node {
						break
					}
				}
				comps = append(comps, comp)
			}
			done := frames[len(frames)-1]
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := &frames[len(frames)-1]
				if low[done.node] < low[parent.node] {
					low[parent.node] = low[done.node]
				}
			}
		}
	}
	return comps
}

// TopologicalSort runs Kahn's algorithm. The second return is false when the
// graph contains a cycle (the ready queue empties before all nodes are
// emitted); the order is then nil. The queue is seeded and drained FIFO in
// node insertion order, so the result is deterministic.
func (g *Graph) TopologicalSort() ([]string, bool) {
	indeg := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		indeg[n] = 0
	}
	for e := range g.edges {
		indeg[e.to]++
	}
	var queue []string
	for _, n := range g.nodes {
		if indeg[n] == 0 {
			queue = append(queue, n)
		}
	}
	out := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n)
		for _, m := range g.adj[n] {
			indeg[m]--
			if indeg[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	if len(out) != len(g.nodes) {
		return nil, false
	}
	return out, true
}
