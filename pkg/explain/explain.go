// Package explain attributes score changes between two scoring runs of a
// graph to individual nodes.
package explain

import (
	"math"
	"sort"

	"github.com/krscope/krscope/pkg/graph"
	"github.com/krscope/krscope/pkg/scoring"
)

// Reasons attached to a Contributor.
const (
	ReasonOwnChanged         = "Own KR changed"
	ReasonPropagationChanged = "Propagation changed"
)

// ReasonThreshold is the minimum absolute change that earns a reason.
const ReasonThreshold = 0.5

const bound = 100.0

// Contributor is one node's score change between a before and an after run.
type Contributor struct {
	NodeID       string         `json:"node_id"`
	Title        string         `json:"title"`
	Type         graph.NodeType `json:"type"`
	Own          float64        `json:"own"`
	FromChildren float64        `json:"from_children"`
	Total        float64        `json:"total"`
	BeforeTotal  float64        `json:"before_total"`
	Delta        float64        `json:"delta"`
	Reasons      []string       `json:"reasons"`
}

// TopContributors ranks every node of g by how much its score moved from
// before to after. Entries missing from either result count as zero, and a nil
// result is treated as empty. The order is |Delta| descending, then Title,
// then NodeID, so equal inputs always produce the same list.
func TopContributors(before, after *scoring.ScoreResult, g *graph.Graph) []Contributor {
	if g == nil {
		return []Contributor{}
	}

	out := make([]Contributor, 0, len(g.Nodes))
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if n == nil {
			continue
		}

		a := lookup(after, id)
		b := lookup(before, id)

		total := bounded(a.Own + a.FromChildren)
		beforeTotal := bounded(b.Own + b.FromChildren)

		reasons := []string{}
		if math.Abs(a.Own-b.Own) >= ReasonThreshold {
			reasons = append(reasons, ReasonOwnChanged)
		}
		if math.Abs(a.FromChildren-b.FromChildren) >= ReasonThreshold {
			reasons = append(reasons, ReasonPropagationChanged)
		}

		out = append(out, Contributor{
			NodeID:       id,
			Title:        n.Title,
			Type:         n.Type,
			Own:          a.Own,
			FromChildren: a.FromChildren,
			Total:        total,
			BeforeTotal:  beforeTotal,
			Delta:        bounded(total - beforeTotal),
			Reasons:      reasons,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		di, dj := math.Abs(out[i].Delta), math.Abs(out[j].Delta)
		if di != dj {
			return di > dj
		}
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].NodeID < out[j].NodeID
	})

	return out
}

// Top returns the first n contributors. n <= 0 keeps all of them.
func Top(cs []Contributor, n int) []Contributor {
	if n <= 0 || n >= len(cs) {
		return cs
	}
	return cs[:n]
}

// Changed drops contributors whose score did not move and that carry no reasons.
func Changed(cs []Contributor) []Contributor {
	out := make([]Contributor, 0, len(cs))
	for _, c := range cs {
		if c.Delta == 0 && len(c.Reasons) == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// lookup returns the bounded explain entry of id, zero when absent.
func lookup(r *scoring.ScoreResult, id string) scoring.NodeExplain {
	if r == nil {
		return scoring.NodeExplain{}
	}
	e := r.Explain[id]
	return scoring.NodeExplain{Own: bounded(e.Own), FromChildren: bounded(e.FromChildren)}
}

func bounded(f float64) float64 {
	return scoring.Clamp(f, -bound, bound)
}
