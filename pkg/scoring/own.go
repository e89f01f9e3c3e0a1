package scoring

import (
	"math"

	"github.com/krscope/krscope/pkg/graph"
)

// ImpactScore is the contribution of one KR impact: its confidence-weighted
// median delta on the 0-100 scale. Non-finite values and confidence outside
// [0, 1] contribute 0; ok reports whether the impact was usable.
func ImpactScore(imp graph.KRImpact) (score float64, ok bool) {
	if !finite(imp.DeltaP50) || !finite(imp.Confidence) {
		return 0, false
	}
	if imp.Confidence < 0 || imp.Confidence > 1 {
		return 0, false
	}
	s := float64(imp.DeltaP50*imp.Confidence) * MaxScore
	if !finite(s) {
		return 0, false
	}
	return s, true
}

// OwnScore sums a node's impact contributions and clamps to [0, 100].
// A nil node or one with no impacts scores 0.
func OwnScore(n *graph.Node) float64 {
	s, _ := ownScore(n)
	return s
}

func ownScore(n *graph.Node) (score float64, normalized int) {
	if n == nil {
		return 0, 0
	}
	for _, imp := range n.KRImpacts {
		c, ok := ImpactScore(imp)
		if !ok {
			normalized++
			continue
		}
		score += c
	}
	return clamp(score, 0, MaxScore), normalized
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// clamp bounds f to [lo, hi]; non-finite input becomes 0 first.
func clamp(f, lo, hi float64) float64 {
	if !finite(f) {
		f = 0
	}
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

// Clamp is the exported form of the engine's sanitizing clamp.
func Clamp(f, lo, hi float64) float64 {
	return clamp(f, lo, hi)
}

// round snaps f to the Resolution grid.
func round(f float64) float64 {
	r := math.Round(f*resolutionScale) / resolutionScale
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}
