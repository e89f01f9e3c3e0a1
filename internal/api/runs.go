package api

import (
	"net/http"

	"github.com/krscope/krscope/internal/runs"
	"github.com/krscope/krscope/pkg/explain"
	"github.com/krscope/krscope/pkg/scoring"
)

type runResponse struct {
	Run   *runs.Run            `json:"run"`
	Score *scoring.ScoreResult `json:"score"`
}

// handleCreateRun handles POST /api/v1/graphs/{graphID}/runs: scores a stored
// graph and records the run.
func (h *Handler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	graphID := r.PathValue("graphID")

	rec, err := h.runs.GetGraph(r.Context(), graphID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	run, result, err := h.runs.Score(r.Context(), rec.Workspace, graphID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, runResponse{Run: run, Score: result})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")

	run, err := h.runs.GetRun(r.Context(), runID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	result, err := h.runs.LoadResult(r.Context(), runID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Run: run, Score: result})
}

// handleContributors handles GET /api/runs/{runID}/contributors?before=:
// ranks the nodes of the run's graph by score change since the before run.
func (h *Handler) handleContributors(w http.ResponseWriter, r *http.Request) {
	beforeID := r.URL.Query().Get("before")
	if beforeID == "" {
		writeError(w, http.StatusBadRequest, "before parameter required")
		return
	}
	top, err := intParam(r, "top", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cmp, err := h.runs.Compare(r.Context(), beforeID, r.PathValue("runID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if r.URL.Query().Get("changed") == "true" {
		cmp.Contributors = explain.Changed(cmp.Contributors)
	}
	cmp.Contributors = explain.Top(cmp.Contributors, top)
	writeJSON(w, http.StatusOK, cmp)
}
