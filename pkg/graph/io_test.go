package graph

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestLoadGraph_JSON(t *testing.T) {
	g, err := LoadGraph(testdataPath("reference.json"))
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}

	if g.SchemaVersion != 1 {
		t.Errorf("SchemaVersion = %d, want 1", g.SchemaVersion)
	}
	stats := g.Stats()
	if stats.NodeCount != 3 || stats.EdgeCount != 2 || stats.OutcomeCount != 1 || stats.ImpactCount != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if got := g.Edges["e2"].Kind; got != EdgeMitigates {
		t.Errorf("e2 kind = %q, want mitigates", got)
	}
}

func TestLoadGraph_YAMLCanonicalizesEnumsAndIDs(t *testing.T) {
	g, err := LoadGraph(testdataPath("cycle.yaml"))
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}

	a := g.Nodes["a"]
	if a == nil {
		t.Fatal("missing node a")
	}
	if a.ID != "a" {
		t.Errorf("node ID = %q, want filled from map key", a.ID)
	}
	if a.Type != NodeOutcome {
		t.Errorf("node type = %q, want %q", a.Type, NodeOutcome)
	}
	if g.Nodes["b"].Type != NodeProblem {
		t.Errorf("node type = %q, want %q", g.Nodes["b"].Type, NodeProblem)
	}
	if e := g.Edges["ab"]; e.ID != "ab" || e.Kind != EdgeSupports {
		t.Errorf("edge = %+v, want id ab kind supports", e)
	}
}

func TestDecode_JSONCanonicalizesEnums(t *testing.T) {
	g, err := Decode([]byte(`{"nodes":{"x":{"type":" Outcome "}},"edges":{"e":{"from":"x","to":"x","kind":"SUPPORTS"}}}`), FormatJSON)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if g.Nodes["x"].Type != NodeOutcome {
		t.Errorf("type = %q", g.Nodes["x"].Type)
	}
	if g.Edges["e"].Kind != EdgeSupports {
		t.Errorf("kind = %q", g.Edges["e"].Kind)
	}
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	_, err := Decode([]byte(`{}`), Format("toml"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSaveLoadGraph_YAML(t *testing.T) {
	src, err := LoadGraph(testdataPath("reference.json"))
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}

	path := filepath.Join(t.TempDir(), "nested", "graph.yaml")
	if err := SaveGraph(path, src); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}

	got, err := LoadGraph(path)
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if d := ComputeDelta(src, got); !d.Empty() {
		t.Errorf("YAML copy differs from source: %+v", d.Stats)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"g.json", FormatJSON},
		{"g.yaml", FormatYAML},
		{"g.YML", FormatYAML},
		{"g", FormatJSON},
	}
	for _, tt := range tests {
		if got := FormatFromPath(tt.path); got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestValidEdgesSkipsDangling(t *testing.T) {
	g := &Graph{
		Nodes: map[string]*Node{"a": {ID: "a"}, "b": {ID: "b"}},
		Edges: map[string]Edge{
			"z": {ID: "z", From: "a", To: "b"},
			"y": {ID: "y", From: "a", To: "ghost"},
			"x": {ID: "x", From: "b", To: "a"},
		},
	}

	edges := g.ValidEdges()
	if len(edges) != 2 {
		t.Fatalf("len(ValidEdges) = %d, want 2", len(edges))
	}
	if edges[0].ID != "x" || edges[1].ID != "z" {
		t.Errorf("ValidEdges not ordered by ID: %s, %s", edges[0].ID, edges[1].ID)
	}
}
