package conflict

import (
	"sort"
	"strings"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

const (
	white = iota
	grey
	black
)

// dependencyGraph is an index-based view of the anchors' generates edges.
type dependencyGraph struct {
	ids   []string
	index map[string]int
	adj   [][]int
}

func newDependencyGraph(anchors map[string]models.Anchor) *dependencyGraph {
	g := &dependencyGraph{index: make(map[string]int, len(anchors))}
	for id := range anchors {
		g.ids = append(g.ids, id)
	}
	sort.Strings(g.ids)
	for i, id := range g.ids {
		g.index[id] = i
	}

	g.adj = make([][]int, len(g.ids))
	for i, id := range g.ids {
		seen := make(map[int]bool)
		for _, target := range anchors[id].Generates {
			j, ok := g.index[target]
			if !ok || seen[j] {
				continue
			}
			seen[j] = true
			g.adj[i] = append(g.adj[i], j)
		}
		sort.Ints(g.adj[i])
	}
	return g
}

// cycles returns every cycle closed by a back edge of a depth-first search,
// each rotated to start at its smallest id and reported once.
func (g *dependencyGraph) cycles() [][]string {
	color := make([]int, len(g.ids))
	var (
		stack []int
		out   [][]string
		seen  = make(map[string]bool)
	)

	var visit func(u int)
	visit = func(u int) {
		color[u] = grey
		stack = append(stack, u)
		for _, v := range g.adj[u] {
			switch color[v] {
			case white:
				visit(v)
			case grey:
				// v is on the stack: stack[pos(v):] is a cycle.
				start := len(stack) - 1
				for stack[start] != v {
					start--
				}
				cycle := g.canonical(stack[start:])
				key := strings.Join(cycle, ">")
				if !seen[key] {
					seen[key] = true
					out = append(out, cycle)
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
	}

	for i := range g.ids {
		if color[i] == white {
			visit(i)
		}
	}
	return out
}

// canonical rotates a cycle so it starts at its smallest index and maps it
// to ids.
func (g *dependencyGraph) canonical(path []int) []string {
	minPos := 0
	for i := range path {
		if path[i] < path[minPos] {
			minPos = i
		}
	}
	out := make([]string, 0, len(path))
	for i := range path {
		out = append(out, g.ids[path[(minPos+i)%len(path)]])
	}
	return out
}
