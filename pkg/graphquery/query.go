// Package graphquery provides graph algorithms over krscope decision graphs.
// Used by both the CLI and the hosted API.
package graphquery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/krscope/krscope/pkg/graph"
)

// Direction selects which edges a neighbourhood query follows.
type Direction string

const (
	// DirectionUpstream follows edges backwards: who influences the node.
	DirectionUpstream Direction = "upstream"
	// DirectionDownstream follows edges forwards: what the node influences.
	DirectionDownstream Direction = "downstream"
	DirectionBoth       Direction = "both"
)

// SubgraphResult holds the result of a neighbourhood or cap query.
type SubgraphResult struct {
	Nodes     map[string]*graph.Node `json:"nodes"`
	Edges     []graph.Edge           `json:"edges"`
	Truncated bool                   `json:"truncated,omitempty"`
}

// Graph returns the result as a standalone graph document.
func (r *SubgraphResult) Graph() *graph.Graph {
	g := &graph.Graph{
		SchemaVersion: graph.CurrentSchemaVersion,
		Nodes:         r.Nodes,
		Edges:         make(map[string]graph.Edge, len(r.Edges)),
	}
	for _, e := range r.Edges {
		g.Edges[e.ID] = e
	}
	return g
}

// PathResult holds the result of a shortest-path query.
type PathResult struct {
	Path  []string     `json:"path"`
	Edges []graph.Edge `json:"edges"`
	From  string       `json:"from"`
	To    string       `json:"to"`
}

type adjacency struct {
	fwd map[string][]graph.Edge
	rev map[string][]graph.Edge
}

// index builds adjacency lists from valid edges in edge-ID order, so every
// traversal visits neighbours deterministically.
func index(g *graph.Graph) adjacency {
	adj := adjacency{
		fwd: make(map[string][]graph.Edge),
		rev: make(map[string][]graph.Edge),
	}
	for _, e := range g.ValidEdges() {
		adj.fwd[e.From] = append(adj.fwd[e.From], e)
		adj.rev[e.To] = append(adj.rev[e.To], e)
	}
	return adj
}

// Upstream returns target and every node that can influence it within depth hops.
func Upstream(g *graph.Graph, target string, depth int) *SubgraphResult {
	return Neighbourhood(g, target, depth, DirectionUpstream, 0)
}

// Downstream returns target and every node it can influence within depth hops.
func Downstream(g *graph.Graph, target string, depth int) *SubgraphResult {
	return Neighbourhood(g, target, depth, DirectionDownstream, 0)
}

// Neighbourhood does a BFS from target following edges in direction.
// depth <= 0 means unbounded. maxNodes caps the result size (0 means no cap);
// the result is marked Truncated when the cap stops the walk. An unknown
// target yields an empty result.
func Neighbourhood(g *graph.Graph, target string, depth int, direction Direction, maxNodes int) *SubgraphResult {
	if direction == "" {
		direction = DirectionBoth
	}
	if !g.HasNode(target) {
		return &SubgraphResult{
			Nodes: map[string]*graph.Node{},
			Edges: []graph.Edge{},
		}
	}

	adj := index(g)
	visited := map[string]bool{target: true}
	queue := []string{target}
	truncated := false

	for d := 0; (depth <= 0 || d < depth) && len(queue) > 0; d++ {
		var next []string
		for _, id := range queue {
			if direction == DirectionDownstream || direction == DirectionBoth {
				for _, e := range adj.fwd[id] {
					if !visited[e.To] {
						visited[e.To] = true
						next = append(next, e.To)
					}
				}
			}
			if direction == DirectionUpstream || direction == DirectionBoth {
				for _, e := range adj.rev[id] {
					if !visited[e.From] {
						visited[e.From] = true
						next = append(next, e.From)
					}
				}
			}
		}
		queue = next

		if maxNodes > 0 && len(visited) >= maxNodes && len(queue) > 0 {
			truncated = true
			break
		}
	}

	return induced(g, visited, truncated)
}

// CapGraph returns a subset of the graph with at most maxNodes nodes,
// preferring high-degree nodes (most connected = most interesting).
func CapGraph(g *graph.Graph, maxNodes int) *SubgraphResult {
	all := map[string]bool{}
	for _, id := range g.NodeIDs() {
		if g.HasNode(id) {
			all[id] = true
		}
	}
	if maxNodes <= 0 || len(all) <= maxNodes {
		return induced(g, all, false)
	}

	degree := make(map[string]int)
	for _, e := range g.ValidEdges() {
		degree[e.From]++
		degree[e.To]++
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if degree[ids[i]] != degree[ids[j]] {
			return degree[ids[i]] > degree[ids[j]]
		}
		return ids[i] < ids[j]
	})

	keep := make(map[string]bool, maxNodes)
	for _, id := range ids[:maxNodes] {
		keep[id] = true
	}
	return induced(g, keep, true)
}

// induced returns the subgraph of g over the node set keep.
func induced(g *graph.Graph, keep map[string]bool, truncated bool) *SubgraphResult {
	nodes := make(map[string]*graph.Node, len(keep))
	for id := range keep {
		if n, ok := g.Nodes[id]; ok && n != nil {
			nodes[id] = n
		}
	}
	edges := []graph.Edge{}
	for _, e := range g.ValidEdges() {
		if keep[e.From] && keep[e.To] {
			edges = append(edges, e)
		}
	}
	return &SubgraphResult{Nodes: nodes, Edges: edges, Truncated: truncated}
}

// ShortestPath finds a shortest directed influence path from one node to
// another. Among equal-length paths the one reached first in edge-ID order
// wins. It returns nil when either node is missing or no path exists.
func ShortestPath(g *graph.Graph, from, to string) *PathResult {
	if !g.HasNode(from) || !g.HasNode(to) {
		return nil
	}
	if from == to {
		return &PathResult{Path: []string{from}, Edges: []graph.Edge{}, From: from, To: to}
	}

	adj := index(g)
	via := map[string]graph.Edge{}
	visited := map[string]bool{from: true}
	queue := []string{from}

	for len(queue) > 0 && !visited[to] {
		var next []string
		for _, id := range queue {
			for _, e := range adj.fwd[id] {
				if !visited[e.To] {
					visited[e.To] = true
					via[e.To] = e
					next = append(next, e.To)
				}
			}
		}
		queue = next
	}
	if !visited[to] {
		return nil
	}

	var path []string
	var edges []graph.Edge
	for cur := to; cur != from; {
		e := via[cur]
		path = append(path, cur)
		edges = append(edges, e)
		cur = e.From
	}
	path = append(path, from)
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}

	return &PathResult{Path: path, Edges: edges, From: from, To: to}
}

// StronglyConnected returns the feedback loops of g: strongly connected
// components with more than one node, or a single node with a self-loop.
// Each component is sorted and the list is sorted by first member.
func StronglyConnected(g *graph.Graph) [][]string {
	if g == nil {
		return nil
	}
	adj := index(g)

	selfLoop := map[string]bool{}
	for _, e := range g.ValidEdges() {
		if e.From == e.To {
			selfLoop[e.From] = true
		}
	}

	// Iterative Tarjan; call holds the DFS frames.
	var (
		counter int
		idx     = map[string]int{}
		low     = map[string]int{}
		onStack = map[string]bool{}
		stack   []string
		comps   [][]string
	)

	type frame struct {
		id   string
		next int
	}

	for _, root := range g.NodeIDs() {
		if !g.HasNode(root) {
			continue
		}
		if _, seen := idx[root]; seen {
			continue
		}

		idx[root], low[root] = counter, counter
		counter++
		stack = append(stack, root)
		onStack[root] = true
		call := []frame{{id: root}}

		for len(call) > 0 {
			top := &call[len(call)-1]
			out := adj.fwd[top.id]
			if top.next < len(out) {
				w := out[top.next].To
				top.next++
				if _, seen := idx[w]; !seen {
					idx[w], low[w] = counter, counter
					counter++
					stack = append(stack, w)
					onStack[w] = true
					call = append(call, frame{id: w})
				} else if onStack[w] && idx[w] < low[top.id] {
					low[top.id] = idx[w]
				}
				continue
			}

			v := top.id
			call = call[:len(call)-1]
			if len(call) > 0 {
				parent := call[len(call)-1].id
				if low[v] < low[parent] {
					low[parent] = low[v]
				}
			}
			if low[v] != idx[v] {
				continue
			}

			var comp []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			if len(comp) > 1 || selfLoop[v] {
				sort.Strings(comp)
				comps = append(comps, comp)
			}
		}
	}

	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })
	return comps
}

// CycleIssues reports each multi-node feedback loop as a lint warning.
// Self-loops are already reported by graph.Lint.
func CycleIssues(g *graph.Graph) []graph.Issue {
	var issues []graph.Issue
	for _, comp := range StronglyConnected(g) {
		if len(comp) < 2 {
			continue
		}
		issues = append(issues, graph.Issue{
			Severity: graph.SeverityWarning,
			Code:     graph.IssueCycle,
			Subject:  comp[0],
			Message:  fmt.Sprintf("feedback loop through %s; scores are resolved iteratively", strings.Join(comp, ", ")),
		})
	}
	return issues
}
