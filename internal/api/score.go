package api

import (
	"encoding/json"
	"net/http"

	"github.com/krscope/krscope/internal/ctxlog"
	"github.com/krscope/krscope/internal/metrics"
	"github.com/krscope/krscope/pkg/explain"
	"github.com/krscope/krscope/pkg/graph"
	"github.com/krscope/krscope/pkg/graphquery"
	"github.com/krscope/krscope/pkg/scoring"
)

// explainRequest is the JSON body for POST /api/v1/explain.
type explainRequest struct {
	Before json.RawMessage `json:"before"`
	After  json.RawMessage `json:"after"`
}

type explainResponse struct {
	BeforeScore  float64               `json:"before_score"`
	AfterScore   float64               `json:"after_score"`
	Contributors []explain.Contributor `json:"contributors"`
	Delta        *graph.Delta          `json:"delta"`
}

type lintResponse struct {
	OK     bool          `json:"ok"`
	Issues []graph.Issue `json:"issues"`
	Cycles [][]string    `json:"cycles"`
}

// score runs the engine and records its metrics.
func (h *Handler) score(r *http.Request, g *graph.Graph) *scoring.ScoreResult {
	result := h.engine.Score(g)
	metrics.ObserveScore(len(g.Nodes), result)
	if !result.Diagnostics.Converged {
		ctxlog.FromContext(r.Context()).Warn("scoring hit iteration cap",
			"iterations", result.Diagnostics.Iterations, "max_delta", result.Diagnostics.MaxDelta)
	}
	return result
}

// handleScore handles POST /api/v1/score: scores a graph document without
// storing anything.
func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	g, ok := h.decodeGraph(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.score(r, g))
}

// handleExplain handles POST /api/v1/explain: scores two graph documents and
// ranks the nodes of the after graph by score change.
func (h *Handler) handleExplain(w http.ResponseWriter, r *http.Request) {
	top, err := intParam(r, "top", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := h.readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req explainRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Before) == 0 || len(req.After) == 0 {
		writeError(w, http.StatusBadRequest, "before and after graphs are required")
		return
	}

	before, err := graph.Decode(req.Before, graph.FormatJSON)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid before graph: "+err.Error())
		return
	}
	after, err := graph.Decode(req.After, graph.FormatJSON)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid after graph: "+err.Error())
		return
	}

	beforeResult := h.score(r, before)
	afterResult := h.score(r, after)

	contributors := explain.TopContributors(beforeResult, afterResult, after)
	if r.URL.Query().Get("changed") == "true" {
		contributors = explain.Changed(contributors)
	}

	writeJSON(w, http.StatusOK, explainResponse{
		BeforeScore:  beforeResult.ScenarioScore,
		AfterScore:   afterResult.ScenarioScore,
		Contributors: explain.Top(contributors, top),
		Delta:        graph.ComputeDelta(before, after),
	})
}

// handleLint handles POST /api/v1/lint.
func (h *Handler) handleLint(w http.ResponseWriter, r *http.Request) {
	g, ok := h.decodeGraph(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, lint(g))
}

func lint(g *graph.Graph) lintResponse {
	issues := append(graph.Lint(g), graphquery.CycleIssues(g)...)
	graph.SortIssues(issues)
	if issues == nil {
		issues = []graph.Issue{}
	}
	cycles := graphquery.StronglyConnected(g)
	if cycles == nil {
		cycles = [][]string{}
	}
	return lintResponse{
		OK:     !graph.HasErrors(issues),
		Issues: issues,
		Cycles: cycles,
	}
}
