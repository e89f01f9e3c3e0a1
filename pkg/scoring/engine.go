package scoring

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/krscope/krscope/pkg/graph"
)

// Engine scores graphs with a fixed propagation table and iteration bounds.
// An Engine holds no per-call state and is safe for concurrent use.
type Engine struct {
	weights       Weights
	tolerance     float64
	maxIterations int
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeights replaces the propagation table.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w.Clone() }
}

// WithTolerance sets the convergence threshold. Non-positive values are ignored.
func WithTolerance(tol float64) Option {
	return func(e *Engine) {
		if tol > 0 && finite(tol) {
			e.tolerance = tol
		}
	}
}

// WithMaxIterations caps fixed-point iterations. Non-positive values are ignored.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// NewEngine creates a scoring engine with default weights and bounds.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		weights:       Defaults(),
		tolerance:     DefaultTolerance,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScoreGraph scores g with the default engine.
func ScoreGraph(g *graph.Graph) *ScoreResult {
	return NewEngine().Score(g)
}

// link is a compiled edge between node indexes.
type link struct {
	from, to int
	weight   float64
	basis    Basis
}

// Score computes per-node totals, the scenario score and the own/propagated
// split for g. It never fails: dangling edges are skipped, unusable impacts
// count as zero, and a graph that does not settle within the iteration cap
// returns its last iterate with Diagnostics.Converged unset.
func (e *Engine) Score(g *graph.Graph) *ScoreResult {
	result := &ScoreResult{
		PerNode:     make(map[string]float64),
		Explain:     make(map[string]NodeExplain),
		Diagnostics: Diagnostics{Converged: true, Relaxation: 1},
	}
	if g == nil {
		return result
	}

	// Index nodes in ID order so float sums are independent of map order.
	var ids []string
	for _, id := range g.NodeIDs() {
		if g.HasNode(id) {
			ids = append(ids, id)
		}
	}
	n := len(ids)
	index := make(map[string]int, n)
	own := make([]float64, n)
	for i, id := range ids {
		index[id] = i
		s, normalized := ownScore(g.Nodes[id])
		own[i] = s
		result.Diagnostics.NormalizedImpacts += normalized
	}

	var links []link
	for _, id := range g.EdgeIDs() {
		edge := g.Edges[id]
		from, okFrom := index[edge.From]
		to, okTo := index[edge.To]
		if !okFrom || !okTo {
			result.Diagnostics.IgnoredEdges = append(result.Diagnostics.IgnoredEdges, id)
			continue
		}
		w, basis, ok := e.weights.For(edge.Kind, g.Nodes[edge.To].Type)
		if !ok || w == 0 || !finite(w) {
			continue
		}
		links = append(links, link{from: from, to: to, weight: w, basis: basis})
	}

	totals := e.iterate(own, links, &result.Diagnostics)

	for i, id := range ids {
		total := round(clamp(totals[i], 0, MaxScore))
		o := round(own[i])
		result.PerNode[id] = total
		result.Explain[id] = NodeExplain{Own: o, FromChildren: round(total - o)}
		if g.Nodes[id].Type == graph.NodeOutcome && total > result.ScenarioScore {
			result.ScenarioScore = total
		}
	}

	return result
}

// iterate runs synchronous (Jacobi) updates from the own scores until the
// largest residual drops below tolerance or the cap is hit. Every update reads
// only the previous iterate, so visiting order cannot change the result.
// When successive steps point in opposite directions the step is halved;
// damping slows an oscillation down without moving its fixed point.
func (e *Engine) iterate(own []float64, links []link, diag *Diagnostics) []float64 {
	n := len(own)
	prev := make([]float64, n)
	copy(prev, own)
	if n == 0 {
		return prev
	}

	next := make([]float64, n)
	target := make([]float64, n)
	step := make([]float64, n)
	prevStep := make([]float64, n)
	relax := 1.0

	diag.Converged = false
	for iter := 1; iter <= e.maxIterations; iter++ {
		for i := range target {
			target[i] = 0
		}
		for _, l := range links {
			src := prev[l.from]
			if l.basis == BasisOwn {
				src = own[l.from]
			}
			// Explicit conversion keeps the product from being fused
			// into the sum, so results match across architectures.
			target[l.to] += float64(l.weight * src)
		}
		for i := range target {
			target[i] = clamp(own[i]+target[i], 0, MaxScore)
		}

		residual := floats.Distance(target, prev, math.Inf(1))
		floats.SubTo(step, target, prev)
		if iter > 1 && relax > minRelaxation && floats.Dot(step, prevStep) < 0 {
			relax /= 2
		}

		if relax == 1 {
			copy(next, target)
		} else {
			for i := range next {
				next[i] = prev[i] + float64(relax*step[i])
			}
		}

		diag.Iterations = iter
		diag.MaxDelta = residual
		diag.Relaxation = relax
		prev, next = next, prev
		prevStep, step = step, prevStep

		if !finite(residual) {
			// Unreachable with clamped inputs; stop rather than spin.
			break
		}
		if residual < e.tolerance {
			diag.Converged = true
			break
		}
	}

	return prev
}
