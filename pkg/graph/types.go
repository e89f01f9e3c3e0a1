// Package graph defines the decision-model graph that krscope scores.
// These types are the shared vocabulary across all modules.
// Graphs are value snapshots owned by the caller; nothing in krscope mutates them.
package graph

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// CurrentSchemaVersion is the newest graph document layout this build understands.
const CurrentSchemaVersion = 1

// Graph is a point-in-time snapshot of a decision model.
type Graph struct {
	SchemaVersion int              `json:"schema_version" yaml:"schema_version"`
	Nodes         map[string]*Node `json:"nodes" yaml:"nodes"` // keyed by node ID
	Edges         map[string]Edge  `json:"edges" yaml:"edges"` // keyed by edge ID
}

// Node is a single decision-model entity.
type Node struct {
	ID        string     `json:"id" yaml:"id"`
	Type      NodeType   `json:"type" yaml:"type"`
	Title     string     `json:"title" yaml:"title"`
	KRImpacts []KRImpact `json:"kr_impacts,omitempty" yaml:"kr_impacts,omitempty"`
}

// KRImpact is a node's self-reported effect on one key result.
type KRImpact struct {
	KRID       string  `json:"kr_id" yaml:"kr_id"`
	DeltaP50   float64 `json:"delta_p50" yaml:"delta_p50"`   // median magnitude
	Confidence float64 `json:"confidence" yaml:"confidence"` // 0.0-1.0
}

// Edge is a directed influence: From's score flows into To.
type Edge struct {
	ID   string   `json:"id" yaml:"id"`
	From string   `json:"from" yaml:"from"`
	To   string   `json:"to" yaml:"to"`
	Kind EdgeKind `json:"kind" yaml:"kind"`
}

// EdgeKey returns a stable string key for deduplication and set operations.
func (e Edge) EdgeKey() string {
	return e.From + "|" + e.To + "|" + string(e.Kind)
}

// NodeType classifies a node. Only Outcome nodes seed the scenario score.
type NodeType string

const (
	NodeProblem    NodeType = "problem"
	NodeAction     NodeType = "action"
	NodeOutcome    NodeType = "outcome"
	NodeDecision   NodeType = "decision"
	NodeAssumption NodeType = "assumption"
	NodeRisk       NodeType = "risk"
)

// NodeTypes lists every known node type.
func NodeTypes() []NodeType {
	return []NodeType{NodeProblem, NodeAction, NodeOutcome, NodeDecision, NodeAssumption, NodeRisk}
}

// Known reports whether t is one of NodeTypes.
func (t NodeType) Known() bool {
	for _, k := range NodeTypes() {
		if t == k {
			return true
		}
	}
	return false
}

func (t *NodeType) UnmarshalText(b []byte) error {
	*t = NodeType(canonical(string(b)))
	return nil
}

func (t *NodeType) UnmarshalYAML(value *yaml.Node) error {
	*t = NodeType(canonical(value.Value))
	return nil
}

// EdgeKind selects the propagation weight of an edge.
type EdgeKind string

const (
	EdgeSupports  EdgeKind = "supports"
	EdgeMitigates EdgeKind = "mitigates"
	EdgeBlocks    EdgeKind = "blocks"
	EdgeRelates   EdgeKind = "relates"
)

// EdgeKinds lists every known edge kind.
func EdgeKinds() []EdgeKind {
	return []EdgeKind{EdgeSupports, EdgeMitigates, EdgeBlocks, EdgeRelates}
}

// Known reports whether k is one of EdgeKinds.
func (k EdgeKind) Known() bool {
	for _, known := range EdgeKinds() {
		if k == known {
			return true
		}
	}
	return false
}

func (k *EdgeKind) UnmarshalText(b []byte) error {
	*k = EdgeKind(canonical(string(b)))
	return nil
}

func (k *EdgeKind) UnmarshalYAML(value *yaml.Node) error {
	*k = EdgeKind(canonical(value.Value))
	return nil
}

// canonical folds document spellings ("Outcome", " SUPPORTS ") onto enum values.
func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Stats holds summary counts for a graph.
type Stats struct {
	NodeCount    int `json:"node_count"`
	EdgeCount    int `json:"edge_count"`
	OutcomeCount int `json:"outcome_count"`
	ImpactCount  int `json:"impact_count"`
}

// Stats computes summary counts.
func (g *Graph) Stats() Stats {
	if g == nil {
		return Stats{}
	}
	s := Stats{NodeCount: len(g.Nodes), EdgeCount: len(g.Edges)}
	for _, n := range g.Nodes {
		if n == nil {
			continue
		}
		if n.Type == NodeOutcome {
			s.OutcomeCount++
		}
		s.ImpactCount += len(n.KRImpacts)
	}
	return s
}

// NodeIDs returns node IDs in ascending order.
func (g *Graph) NodeIDs() []string {
	if g == nil {
		return nil
	}
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EdgeIDs returns edge IDs in ascending order.
func (g *Graph) EdgeIDs() []string {
	if g == nil {
		return nil
	}
	ids := make([]string, 0, len(g.Edges))
	for id := range g.Edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasNode reports whether id names a non-nil node.
func (g *Graph) HasNode(id string) bool {
	if g == nil {
		return false
	}
	n, ok := g.Nodes[id]
	return ok && n != nil
}

// ValidEdges returns the edges whose endpoints both exist, ordered by edge ID.
// Dangling edges are dropped.
func (g *Graph) ValidEdges() []Edge {
	var edges []Edge
	for _, id := range g.EdgeIDs() {
		e := g.Edges[id]
		if g.HasNode(e.From) && g.HasNode(e.To) {
			edges = append(edges, e)
		}
	}
	return edges
}
