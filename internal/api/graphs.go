package api

import (
	"context"
	"net/http"

	"github.com/krscope/krscope/internal/runs"
	"github.com/krscope/krscope/pkg/graph"
	"github.com/krscope/krscope/pkg/graphquery"
)

type graphResponse struct {
	Record    *runs.GraphRecord `json:"record"`
	Graph     *graph.Graph      `json:"graph"`
	Truncated bool              `json:"truncated,omitempty"`
}

// loadGraph loads a stored graph by ID, checking the cache first.
// Stored graphs are immutable, so cached entries never go stale.
func (h *Handler) loadGraph(ctx context.Context, graphID string) (*graph.Graph, *runs.GraphRecord, error) {
	if e := h.cache.Get(graphID); e != nil {
		return e.Graph, e.Record, nil
	}

	g, rec, err := h.runs.LoadGraph(ctx, graphID)
	if err != nil {
		return nil, nil, err
	}

	h.cache.Put(graphID, &CachedGraph{Graph: g, Record: rec})
	return g, rec, nil
}

// handleUploadGraph handles POST /api/v1/graphs?workspace=: stores a graph
// document (optionally gzip-compressed) and returns its record.
func (h *Handler) handleUploadGraph(w http.ResponseWriter, r *http.Request) {
	workspace := r.URL.Query().Get("workspace")
	if workspace == "" {
		writeError(w, http.StatusBadRequest, "workspace parameter required")
		return
	}

	g, ok := h.decodeGraph(w, r)
	if !ok {
		return
	}

	if g.SchemaVersion > graph.CurrentSchemaVersion {
		writeError(w, http.StatusUnprocessableEntity, "unsupported schema version")
		return
	}

	rec, err := h.runs.SaveGraph(r.Context(), workspace, g)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.cache.Put(rec.ID, &CachedGraph{Graph: g, Record: rec})

	writeJSON(w, http.StatusCreated, rec)
}

// handleGetGraph handles GET /api/graphs/{graphID}. With max_nodes the
// document is cut down to its best-connected nodes.
func (h *Handler) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	maxNodes, err := intParam(r, "max_nodes", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, rec, err := h.loadGraph(r.Context(), r.PathValue("graphID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := graphResponse{Record: rec, Graph: g}
	if maxNodes > 0 {
		capped := graphquery.CapGraph(g, maxNodes)
		resp.Graph = capped.Graph()
		resp.Truncated = capped.Truncated
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", runs.DefaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.runs.ListRuns(r.Context(), r.PathValue("graphID"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []runs.Run{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleNeighbourhood handles GET /api/graphs/{graphID}/neighbourhood:
// the nodes within depth hops of node, following direction.
func (h *Handler) handleNeighbourhood(w http.ResponseWriter, r *http.Request) {
	g, _, err := h.loadGraph(r.Context(), r.PathValue("graphID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	node := r.URL.Query().Get("node")
	if node == "" {
		writeError(w, http.StatusBadRequest, "node parameter required")
		return
	}
	if !g.HasNode(node) {
		writeError(w, http.StatusNotFound, "node not found: "+node)
		return
	}

	depth, err := intParam(r, "depth", 2)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxNodes, err := intParam(r, "max_nodes", 500)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	direction := graphquery.Direction(r.URL.Query().Get("direction"))
	switch direction {
	case "":
		direction = graphquery.DirectionUpstream
	case graphquery.DirectionUpstream, graphquery.DirectionDownstream, graphquery.DirectionBoth:
	default:
		writeError(w, http.StatusBadRequest, "direction must be upstream, downstream or both")
		return
	}

	writeJSON(w, http.StatusOK, graphquery.Neighbourhood(g, node, depth, direction, maxNodes))
}

func (h *Handler) handlePath(w http.ResponseWriter, r *http.Request) {
	g, _, err := h.loadGraph(r.Context(), r.PathValue("graphID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	fromQ := r.URL.Query().Get("from")
	toQ := r.URL.Query().Get("to")
	if fromQ == "" || toQ == "" {
		writeError(w, http.StatusBadRequest, "from and to parameters required")
		return
	}

	result := graphquery.ShortestPath(g, fromQ, toQ)
	if result == nil {
		writeError(w, http.StatusNotFound, "no path from "+fromQ+" to "+toQ)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
