package scoring

import "github.com/krscope/krscope/pkg/graph"

// Basis selects which score of the source node an edge propagates.
type Basis string

const (
	// BasisTotal propagates the source's own plus propagated score.
	BasisTotal Basis = "total"
	// BasisOwn propagates only the source's own score, so a source with no
	// impacts contributes nothing.
	BasisOwn Basis = "own"
)

// EdgeWeight is the signed attenuation applied along one edge kind.
type EdgeWeight struct {
	Weight float64
	Basis  Basis
}

// Weights is the propagation table keyed by edge kind. TargetOverrides
// replaces the weight (not the basis) when the edge points at a node of the
// given type. Kinds absent from the table propagate nothing.
type Weights struct {
	Kinds           map[graph.EdgeKind]EdgeWeight
	TargetOverrides map[graph.NodeType]map[graph.EdgeKind]float64
}

// Defaults returns the default propagation table.
func Defaults() Weights {
	return Weights{
		Kinds: map[graph.EdgeKind]EdgeWeight{
			graph.EdgeSupports:  {Weight: 0.7, Basis: BasisTotal},
			graph.EdgeMitigates: {Weight: -0.5, Basis: BasisOwn},
			graph.EdgeBlocks:    {Weight: -0.5, Basis: BasisTotal},
			graph.EdgeRelates:   {Weight: 0.25, Basis: BasisTotal},
		},
		TargetOverrides: map[graph.NodeType]map[graph.EdgeKind]float64{
			// Outcomes are where supporting work is realized.
			graph.NodeOutcome: {
				graph.EdgeSupports: 1.8,
			},
		},
	}
}

// Clone returns a deep copy so callers can override entries safely.
func (w Weights) Clone() Weights {
	out := Weights{
		Kinds:           make(map[graph.EdgeKind]EdgeWeight, len(w.Kinds)),
		TargetOverrides: make(map[graph.NodeType]map[graph.EdgeKind]float64, len(w.TargetOverrides)),
	}
	for k, v := range w.Kinds {
		out.Kinds[k] = v
	}
	for t, m := range w.TargetOverrides {
		inner := make(map[graph.EdgeKind]float64, len(m))
		for k, v := range m {
			inner[k] = v
		}
		out.TargetOverrides[t] = inner
	}
	return out
}

// For returns the effective weight and basis of an edge of kind k into a
// node of type target. ok is false when the kind carries no weight.
func (w Weights) For(k graph.EdgeKind, target graph.NodeType) (weight float64, basis Basis, ok bool) {
	ew, ok := w.Kinds[k]
	if !ok {
		return 0, BasisTotal, false
	}
	weight = ew.Weight
	if o, found := w.TargetOverrides[target][k]; found {
		weight = o
	}
	basis = ew.Basis
	if basis == "" {
		basis = BasisTotal
	}
	return weight, basis, true
}

// Default iteration bounds.
const (
	DefaultTolerance     = 1e-6
	DefaultMaxIterations = 100

	// Resolution is the grid final scores are rounded to.
	Resolution      = 1e-6
	resolutionScale = 1 / Resolution

	// minRelaxation bounds how far oscillation damping can shrink a step.
	minRelaxation = 1.0 / 16
)
