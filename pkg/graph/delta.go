package graph

import (
	"sort"

	"github.com/google/uuid"
)

// Delta is the structural difference between two graph states.
// Deltas are immutable once computed.
type Delta struct {
	ID           string       `json:"id"`
	AddedNodes   []Node       `json:"added_nodes"`
	RemovedNodes []Node       `json:"removed_nodes"`
	ChangedNodes []NodeChange `json:"changed_nodes"`
	AddedEdges   []Edge       `json:"added_edges"`
	RemovedEdges []Edge       `json:"removed_edges"`
	Stats        DeltaStats   `json:"stats"`
}

// NodeChange names the fields of a node that differ between two states.
type NodeChange struct {
	ID     string   `json:"id"`
	Fields []string `json:"fields"` // "type", "title", "kr_impacts"
}

// DeltaStats holds summary statistics for a delta.
type DeltaStats struct {
	AddedNodeCount   int `json:"added_node_count"`
	RemovedNodeCount int `json:"removed_node_count"`
	ChangedNodeCount int `json:"changed_node_count"`
	AddedEdgeCount   int `json:"added_edge_count"`
	RemovedEdgeCount int `json:"removed_edge_count"`
}

// Empty reports whether the two states were structurally identical.
func (d *Delta) Empty() bool {
	s := d.Stats
	return s.AddedNodeCount+s.RemovedNodeCount+s.ChangedNodeCount+s.AddedEdgeCount+s.RemovedEdgeCount == 0
}

// ComputeDelta computes the structural difference between a before and after graph.
// For nodes, it diffs by ID. For edges, it diffs by (from, to, kind) triple.
// Every list is sorted so deltas of identical inputs compare equal apart from ID.
func ComputeDelta(before, after *Graph) *Delta {
	if before == nil {
		before = &Graph{}
	}
	if after == nil {
		after = &Graph{}
	}

	delta := &Delta{ID: uuid.New().String()}

	// Node diff
	for _, id := range after.NodeIDs() {
		n := after.Nodes[id]
		if n == nil {
			continue
		}
		prev, exists := before.Nodes[id]
		if !exists || prev == nil {
			delta.AddedNodes = append(delta.AddedNodes, *n)
			continue
		}
		if fields := changedFields(prev, n); len(fields) > 0 {
			delta.ChangedNodes = append(delta.ChangedNodes, NodeChange{ID: id, Fields: fields})
		}
	}
	for _, id := range before.NodeIDs() {
		n := before.Nodes[id]
		if n == nil {
			continue
		}
		if !after.HasNode(id) {
			delta.RemovedNodes = append(delta.RemovedNodes, *n)
		}
	}

	// Edge diff using set operations on edge keys
	beforeEdges := make(map[string]Edge, len(before.Edges))
	for _, e := range before.Edges {
		beforeEdges[e.EdgeKey()] = e
	}
	afterEdges := make(map[string]Edge, len(after.Edges))
	for _, e := range after.Edges {
		afterEdges[e.EdgeKey()] = e
	}

	for key, edge := range afterEdges {
		if _, exists := beforeEdges[key]; !exists {
			delta.AddedEdges = append(delta.AddedEdges, edge)
		}
	}
	for key, edge := range beforeEdges {
		if _, exists := afterEdges[key]; !exists {
			delta.RemovedEdges = append(delta.RemovedEdges, edge)
		}
	}
	sortEdges(delta.AddedEdges)
	sortEdges(delta.RemovedEdges)

	delta.Stats = DeltaStats{
		AddedNodeCount:   len(delta.AddedNodes),
		RemovedNodeCount: len(delta.RemovedNodes),
		ChangedNodeCount: len(delta.ChangedNodes),
		AddedEdgeCount:   len(delta.AddedEdges),
		RemovedEdgeCount: len(delta.RemovedEdges),
	}

	return delta
}

func changedFields(a, b *Node) []string {
	var fields []string
	if a.Type != b.Type {
		fields = append(fields, "type")
	}
	if a.Title != b.Title {
		fields = append(fields, "title")
	}
	if !sameImpacts(a.KRImpacts, b.KRImpacts) {
		fields = append(fields, "kr_impacts")
	}
	return fields
}

func sameImpacts(a, b []KRImpact) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].EdgeKey() != edges[j].EdgeKey() {
			return edges[i].EdgeKey() < edges[j].EdgeKey()
		}
		return edges[i].ID < edges[j].ID
	})
}
