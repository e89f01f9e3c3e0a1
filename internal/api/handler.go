// Package api implements the krscope REST API.
// It provides stateless scoring endpoints and, when a run ledger is
// configured, endpoints for stored graphs and runs.
package api

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/krscope/krscope/internal/runs"
	"github.com/krscope/krscope/pkg/graph"
	"github.com/krscope/krscope/pkg/scoring"
)

// DefaultMaxBodyBytes limits request bodies after decompression.
const DefaultMaxBodyBytes = 16 << 20

// Handler is the top-level API handler for the krscope service.
type Handler struct {
	runs    *runs.Service
	engine  *scoring.Engine
	cache   *GraphCache
	maxBody int64
}

// NewHandler creates a new API handler. runSvc may be nil, in which case the
// ledger endpoints answer 503. A nil engine uses the default weights.
func NewHandler(runSvc *runs.Service, engine *scoring.Engine, cache *GraphCache) *Handler {
	if engine == nil {
		engine = scoring.NewEngine()
	}
	if cache == nil {
		cache = NewGraphCache(0)
	}
	return &Handler{
		runs:    runSvc,
		engine:  engine,
		cache:   cache,
		maxBody: DefaultMaxBodyBytes,
	}
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleHealth)

	// Stateless endpoints
	mux.HandleFunc("POST /api/v1/score", h.handleScore)
	mux.HandleFunc("POST /api/v1/explain", h.handleExplain)
	mux.HandleFunc("POST /api/v1/lint", h.handleLint)

	// Ledger write endpoints (auth-protected)
	mux.HandleFunc("POST /api/v1/graphs", h.ledger(h.handleUploadGraph))
	mux.HandleFunc("POST /api/v1/graphs/{graphID}/runs", h.ledger(h.handleCreateRun))

	// Ledger read endpoints
	mux.HandleFunc("GET /api/graphs/{graphID}", h.ledger(h.handleGetGraph))
	mux.HandleFunc("GET /api/graphs/{graphID}/runs", h.ledger(h.handleListRuns))
	mux.HandleFunc("GET /api/graphs/{graphID}/neighbourhood", h.ledger(h.handleNeighbourhood))
	mux.HandleFunc("GET /api/graphs/{graphID}/path", h.ledger(h.handlePath))
	mux.HandleFunc("GET /api/runs/{runID}", h.ledger(h.handleGetRun))
	mux.HandleFunc("GET /api/runs/{runID}/contributors", h.ledger(h.handleContributors))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.runs != nil {
		if err := h.runs.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "ledger": true, "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ledger": h.runs != nil})
}

// ledger rejects requests when no run ledger is configured.
func (h *Handler) ledger(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.runs == nil {
			writeError(w, http.StatusServiceUnavailable, "run ledger is not configured")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps run ledger errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runs.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, runs.ErrInvalidWorkspace):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// readBody returns the request body, transparently inflating gzip uploads.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	var body io.Reader = http.MaxBytesReader(w, r.Body, h.maxBody)
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		defer gz.Close()
		body = io.LimitReader(gz, h.maxBody+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) > h.maxBody {
		return nil, fmt.Errorf("body exceeds %d bytes", h.maxBody)
	}
	return data, nil
}

// requestFormat picks the graph encoding from the Content-Type header.
func requestFormat(r *http.Request) graph.Format {
	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, "yaml") {
		return graph.FormatYAML
	}
	return graph.FormatJSON
}

// decodeGraph reads a graph document from the request body.
func (h *Handler) decodeGraph(w http.ResponseWriter, r *http.Request) (*graph.Graph, bool) {
	data, err := h.readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	g, err := graph.Decode(data, requestFormat(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid graph document: "+err.Error())
		return nil, false
	}
	return g, true
}

// intParam reads a non-negative integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
