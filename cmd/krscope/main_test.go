package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/krscope/krscope/pkg/explain"
	"github.com/krscope/krscope/pkg/graph"
	"github.com/krscope/krscope/pkg/scoring"
	"github.com/krscope/krscope/pkg/surface"
)

const (
	referenceGraph = "../../testdata/reference.json"
	afterGraph     = "../../testdata/after.json"
	cycleGraph     = "../../testdata/cycle.yaml"
)

func TestScoreCmdFlags(t *testing.T) {
	f := newScoreCmd().Flags()

	outputFmt, _ := f.GetString("output")
	if outputFmt != "" {
		t.Errorf("default output = %q, want empty (config decides)", outputFmt)
	}

	for _, flag := range []string{"output", "save", "max-nodes"} {
		if f.Lookup(flag) == nil {
			t.Errorf("missing flag: %s", flag)
		}
	}
}

func TestExplainCmdFlags(t *testing.T) {
	f := newExplainCmd().Flags()

	top, _ := f.GetInt("top")
	if top != 10 {
		t.Errorf("default top = %d, want 10", top)
	}
	for _, flag := range []string{"output", "baseline", "top", "changed"} {
		if f.Lookup(flag) == nil {
			t.Errorf("missing flag: %s", flag)
		}
	}
}

func TestRootCmdSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"score", "explain", "lint", "trace", "path"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("missing subcommand %s", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("missing persistent flag: config")
	}
}

func TestRunScoreJSON(t *testing.T) {
	var buf bytes.Buffer
	err := runScore(&buf, scoreOpts{
		graphPath: referenceGraph,
		engine:    scoring.NewEngine(),
		renderer:  &surface.JSONRenderer{},
	})
	if err != nil {
		t.Fatalf("runScore: %v", err)
	}

	var report struct {
		Score scoring.ScoreResult `json:"score"`
	}
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if report.Score.ScenarioScore != 33 || report.Score.PerNode["n1"] != 10 {
		t.Errorf("unexpected score %+v", report.Score)
	}
}

func TestRunScoreSaveAndExplainBaseline(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	// Copy the fixture into a fresh workspace so results land under HOME.
	ws := t.TempDir()
	if err := os.Mkdir(filepath.Join(ws, ".krscope"), 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(referenceGraph)
	if err != nil {
		t.Fatal(err)
	}
	graphPath := filepath.Join(ws, "plan.json")
	if err := os.WriteFile(graphPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := runScore(&buf, scoreOpts{
		graphPath: graphPath,
		engine:    scoring.NewEngine(),
		renderer:  &surface.JSONRenderer{},
		save:      true,
	}); err != nil {
		t.Fatalf("runScore: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(home, ".cache", "krscope", "*", "results", "plan.json"))
	if len(matches) != 1 {
		t.Fatalf("expected one saved result, found %v", matches)
	}

	saved, err := loadScoreResult(matches[0])
	if err != nil {
		t.Fatalf("loadScoreResult: %v", err)
	}
	if saved.ScenarioScore != 33 || saved.Explain["n3"].FromChildren != 18 {
		t.Errorf("unexpected saved result %+v", saved)
	}

	buf.Reset()
	if err := runExplain(&buf, explainOpts{
		afterPath: afterGraph,
		baseline:  matches[0],
		engine:    scoring.NewEngine(),
		renderer:  &surface.JSONRenderer{},
		top:       1,
	}); err != nil {
		t.Fatalf("runExplain: %v", err)
	}

	var report struct {
		Contributors []explain.Contributor `json:"contributors"`
		Delta        *graph.Delta          `json:"delta"`
	}
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(report.Contributors) != 1 || report.Contributors[0].NodeID != "n3" {
		t.Errorf("unexpected contributors %+v", report.Contributors)
	}
	if report.Delta != nil {
		t.Error("baseline comparison has no before graph, expected no delta")
	}
}

func TestRunExplainTwoGraphs(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	if err := runExplain(&buf, explainOpts{
		beforePath: referenceGraph,
		afterPath:  afterGraph,
		engine:     scoring.NewEngine(),
		renderer:   &surface.TerminalRenderer{},
		top:        0,
		changed:    true,
	}); err != nil {
		t.Fatalf("runExplain: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"Top contributors:", "Activation rate up", "Instrument funnel", "1 added nodes"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	if strings.Contains(output, "Legacy signup friction [problem]") {
		t.Error("unchanged node should be filtered by --changed")
	}
}

func TestRunExplainRejectsNegativeTop(t *testing.T) {
	err := runExplain(&bytes.Buffer{}, explainOpts{
		beforePath: referenceGraph,
		afterPath:  afterGraph,
		engine:     scoring.NewEngine(),
		renderer:   &surface.JSONRenderer{},
		top:        -1,
	})
	if err == nil {
		t.Fatal("expected error for negative top")
	}
}

func TestRunLint(t *testing.T) {
	t.Run("clean graph with loop", func(t *testing.T) {
		var buf bytes.Buffer
		if err := runLint(&buf, cycleGraph, &surface.JSONRenderer{}); err != nil {
			t.Fatalf("runLint: %v", err)
		}
		var report struct {
			Issues []graph.Issue `json:"issues"`
			Cycles [][]string    `json:"cycles"`
		}
		if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if len(report.Cycles) != 1 || len(report.Issues) != 1 || report.Issues[0].Code != graph.IssueCycle {
			t.Errorf("unexpected report %+v", report)
		}
	})

	t.Run("dangling edge fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		doc := "schema_version: 1\nnodes:\n  a: {type: action, title: A}\nedges:\n  e1: {from: a, to: ghost, kind: supports}\n"
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		err := runLint(&bytes.Buffer{}, path, &surface.JSONRenderer{})
		if err == nil || !strings.Contains(err.Error(), "1 error(s)") {
			t.Errorf("err = %v, want lint failure", err)
		}
	})
}

func TestRunTrace(t *testing.T) {
	var buf bytes.Buffer
	err := runTrace(&buf, traceOpts{
		graphPath: afterGraph,
		node:      "n3",
		direction: "upstream",
		depth:     1,
		format:    graph.FormatJSON,
	})
	if err != nil {
		t.Fatalf("runTrace: %v", err)
	}

	sub, err := graph.Decode(buf.Bytes(), graph.FormatJSON)
	if err != nil {
		t.Fatalf("trace output is not a graph: %v", err)
	}
	if len(sub.Nodes) != 2 || !sub.HasNode("n1") || len(sub.Edges) != 1 {
		t.Errorf("unexpected subgraph: %d nodes, %d edges", len(sub.Nodes), len(sub.Edges))
	}

	if err := runTrace(&bytes.Buffer{}, traceOpts{graphPath: afterGraph, node: "ghost", direction: "both"}); err == nil {
		t.Error("expected error for unknown node")
	}
	if err := runTrace(&bytes.Buffer{}, traceOpts{graphPath: afterGraph, node: "n3", direction: "sideways"}); err == nil {
		t.Error("expected error for unknown direction")
	}
}

func TestRunPath(t *testing.T) {
	var buf bytes.Buffer
	if err := runPath(&buf, afterGraph, "n4", "n3", false); err != nil {
		t.Fatalf("runPath: %v", err)
	}
	if !strings.Contains(buf.String(), "n4 (Instrument funnel)\n  -> n1 (Launch onboarding revamp)\n  -> n3") {
		t.Errorf("unexpected path output:\n%s", buf.String())
	}

	if err := runPath(&bytes.Buffer{}, afterGraph, "n3", "n4", false); err == nil {
		t.Error("expected error when no path exists")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"a", "b", "c"}, "a"},
		{[]string{"", "b", "c"}, "b"},
		{[]string{"", "", "c"}, "c"},
		{[]string{"", "", ""}, ""},
	}

	for _, tt := range tests {
		got := firstNonEmpty(tt.args...)
		if got != tt.want {
			t.Errorf("firstNonEmpty(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
