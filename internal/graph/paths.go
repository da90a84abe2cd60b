package graph

// Reachable returns every node reachable from start (start included when it
// exists), in BFS order.
func (g *Graph) Reachable(start string) []string {
	if !g.Contains(start) {
		return nil
	}
	seen := map[string]bool{start: true}
	queue := []string{start}
	var out []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n)
		for _, m := range g.adj[n] {
			if !seen[m] {
				seen[m] = true
				queue = append(queue, m)
			}
		}
	}
	return out
}

// ShortestPath returns a minimum-hop path from start to end inclusive, or nil
// when end is unreachable. Ties break on neighbor insertion order.
func (g *Graph) ShortestPath(start, end string) []string {
	if !g.Contains(start) || !g.Contains(end) {
		return nil
	}
	if start == end {
		return []string{start}
	}
	parent := map[string]string{start: start}
	queue := []string{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, m := range g.adj[n] {
			if _, seen := parent[m]; seen {
				continue
			}
			parent[m] = n
			if m == end {
				var path []string
				for cur := end; ; cur = parent[cur] {
					path = append(path, cur)
					if cur == start {
						break
					}
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}
			queue = append(queue, m)
		}
	}
	return nil
}

// AllPaths enumerates every simple path from start to end, in DFS order over
// insertion-ordered neighbors. maxPaths > 0 caps the result size; 0 means
// unbounded. Exponential in the worst case, intended for small graphs.
func (g *Graph) AllPaths(start, end string, maxPaths int) [][]string {
	if !g.Contains(start) || !g.Contains(end) {
		return nil
	}
	var paths [][]string
	stack := []frame{{node: start}}
	path := []string{start}
	inPath := map[string]bool{start: true}

	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		if f.node == end && f.next == 0 {
			cp := make([]string, len(path))
			copy(cp, path)
			paths = append(paths, cp)
			if maxPaths > 0 && len(paths) >= maxPaths {
				return paths
			}
		}
		advanced := false
		if f.node != end {
			for f.next < len(g.adj[f.node]) {
				n := g.adj[f.node][f.next]
				f.next++
				if inPath[n] {
					continue
				}
				inPath[n] = true
				path = append(path, n)
				stack = append(stack, frame{node: n})
				advanced = true
				break
			}
		}
		if advanced {
			continue
		}
		inPath[f.node] = false
		path = path[:len(path)-1]
		stack = stack[:len(stack)-1]
	}
	return paths
}
