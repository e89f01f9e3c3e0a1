// Package scoring implements the krscope graph scoring engine.
// It turns a decision graph with KR impact estimates into bounded per-node
// scores by propagating influence along edges to a fixed point.
package scoring

// MaxScore is the upper bound of every node and scenario score.
const MaxScore = 100.0

// ScoreResult is the complete output of scoring a graph.
// Immutable once computed.
type ScoreResult struct {
	PerNode       map[string]float64     `json:"per_node"` // total score, always in [0, 100]
	ScenarioScore float64                `json:"scenario_score"`
	Explain       map[string]NodeExplain `json:"explain"`
	Diagnostics   Diagnostics            `json:"diagnostics"`
}

// NodeExplain splits a node's total score into its own impact and what flowed in.
// Own + FromChildren equals the clamped total.
type NodeExplain struct {
	Own          float64 `json:"own"`
	FromChildren float64 `json:"from_children"`
}

// Diagnostics reports how the fixed point was reached and what input was normalized.
type Diagnostics struct {
	Iterations        int      `json:"iterations"`
	Converged         bool     `json:"converged"`
	MaxDelta          float64  `json:"max_delta"` // residual of the last iteration
	Relaxation        float64  `json:"relaxation"`
	IgnoredEdges      []string `json:"ignored_edges,omitempty"`
	NormalizedImpacts int      `json:"normalized_impacts"`
}

// Total returns the total score of node id, or 0 if it was not scored.
func (r *ScoreResult) Total(id string) float64 {
	if r == nil {
		return 0
	}
	return r.PerNode[id]
}
