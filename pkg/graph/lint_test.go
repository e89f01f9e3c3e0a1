package graph

import (
	"math"
	"testing"
)

func TestLint_CleanGraph(t *testing.T) {
	g, err := LoadGraph(testdataPath("reference.json"))
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if issues := Lint(g); len(issues) != 0 {
		t.Errorf("expected no issues, got %+v", issues)
	}
}

func TestLint_Findings(t *testing.T) {
	g := &Graph{
		SchemaVersion: CurrentSchemaVersion + 1,
		Nodes: map[string]*Node{
			"a": {ID: "a", Type: NodeAction, KRImpacts: []KRImpact{
				{KRID: "kr1", DeltaP50: math.NaN(), Confidence: 0.5},
				{KRID: "kr2", DeltaP50: 0.1, Confidence: -0.2},
			}},
			"b":     {ID: "not-b", Type: "widget"},
			"empty": nil,
		},
		Edges: map[string]Edge{
			"e1": {ID: "e1", From: "a", To: "ghost", Kind: EdgeSupports},
			"e2": {ID: "e2", From: "a", To: "a", Kind: "amplifies"},
		},
	}

	issues := Lint(g)
	counts := make(map[string]int)
	for _, is := range issues {
		counts[is.Code]++
	}

	want := map[string]int{
		IssueUnsupportedSchema: 1,
		IssueInvalidImpact:     2,
		IssueIDMismatch:        1,
		IssueUnknownNodeType:   1,
		IssueNilNode:           1,
		IssueDanglingEdge:      1,
		IssueUnknownEdgeKind:   1,
		IssueSelfLoop:          1,
	}
	for code, n := range want {
		if counts[code] != n {
			t.Errorf("%s issues = %d, want %d", code, counts[code], n)
		}
	}

	if !HasErrors(issues) {
		t.Error("expected error-severity issues")
	}

	// Errors sort before warnings.
	seenWarning := false
	for _, is := range issues {
		if is.Severity == SeverityWarning {
			seenWarning = true
		} else if seenWarning {
			t.Fatalf("error issue %s sorted after a warning", is.Code)
		}
	}
}

func TestLint_Nil(t *testing.T) {
	if issues := Lint(nil); issues != nil {
		t.Errorf("Lint(nil) = %v, want nil", issues)
	}
}
