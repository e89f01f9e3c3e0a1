// Package runs keeps a ledger of scoring runs: stored graph documents, the
// score results computed from them, and comparisons between two runs.
package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/krscope/krscope/internal/ctxlog"
	"github.com/krscope/krscope/internal/metrics"
	"github.com/krscope/krscope/internal/storage"
	"github.com/krscope/krscope/pkg/explain"
	"github.com/krscope/krscope/pkg/graph"
	"github.com/krscope/krscope/pkg/scoring"
)

var (
	// ErrNotFound is returned when a graph or run does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidWorkspace is returned for workspace names unsafe as storage keys.
	ErrInvalidWorkspace = errors.New("invalid workspace name")
)

// DefaultListLimit bounds ListRuns when no limit is given.
const DefaultListLimit = 50

var workspacePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,62}$`)

// GraphRecord describes a stored graph document.
type GraphRecord struct {
	ID            string    `json:"id"`
	Workspace     string    `json:"workspace"`
	SchemaVersion int       `json:"schema_version"`
	NodeCount     int       `json:"node_count"`
	EdgeCount     int       `json:"edge_count"`
	StorageRef    string    `json:"storage_ref"`
	CreatedAt     time.Time `json:"created_at"`
}

// Run is one persisted scoring of a stored graph.
type Run struct {
	ID            string    `json:"id"`
	Workspace     string    `json:"workspace"`
	GraphID       string    `json:"graph_id"`
	ScenarioScore float64   `json:"scenario_score"`
	Iterations    int       `json:"iterations"`
	Converged     bool      `json:"converged"`
	StorageRef    string    `json:"storage_ref"`
	CreatedAt     time.Time `json:"created_at"`
}

// Comparison explains the score change between two runs.
type Comparison struct {
	Before       *Run                  `json:"before"`
	After        *Run                  `json:"after"`
	Contributors []explain.Contributor `json:"contributors"`
	Delta        *graph.Delta          `json:"delta"`
}

// Service orchestrates the ledger: blob storage for documents, a Store for
// records, and the scoring engine.
type Service struct {
	store  Store
	blobs  storage.Client
	engine *scoring.Engine
}

// NewService creates a new run Service. A nil engine uses the defaults.
func NewService(store Store, blobs storage.Client, engine *scoring.Engine) *Service {
	if engine == nil {
		engine = scoring.NewEngine()
	}
	return &Service{store: store, blobs: blobs, engine: engine}
}

// Ping checks the record store's connection. Stores without one always pass.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.store.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("ping store: %w", err)
		}
	}
	return nil
}

// ValidWorkspace reports whether name can be used as a workspace.
func ValidWorkspace(name string) bool {
	return workspacePattern.MatchString(name)
}

// SaveGraph stores a graph document and records it.
func (s *Service) SaveGraph(ctx context.Context, workspace string, g *graph.Graph) (*GraphRecord, error) {
	if !ValidWorkspace(workspace) {
		return nil, fmt.Errorf("save graph: %w: %q", ErrInvalidWorkspace, workspace)
	}
	if g == nil {
		return nil, errors.New("save graph: nil graph")
	}

	data, err := graph.Encode(g, graph.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("save graph: %w", err)
	}

	stats := g.Stats()
	rec := &GraphRecord{
		ID:            uuid.NewString(),
		Workspace:     workspace,
		SchemaVersion: g.SchemaVersion,
		NodeCount:     stats.NodeCount,
		EdgeCount:     stats.EdgeCount,
	}
	rec.StorageRef = storage.Key(workspace, storage.KindGraphs, rec.ID)

	if err := s.blobs.PutGraph(ctx, workspace, rec.ID, data); err != nil {
		return nil, fmt.Errorf("save graph: store document: %w", err)
	}
	if err := s.store.InsertGraph(ctx, rec); err != nil {
		return nil, fmt.Errorf("save graph: %w", err)
	}

	ctxlog.FromContext(ctx).Info("graph stored",
		"graph_id", rec.ID, "workspace", workspace, "nodes", rec.NodeCount, "edges", rec.EdgeCount)
	return rec, nil
}

// GetGraph returns the record of a stored graph.
func (s *Service) GetGraph(ctx context.Context, graphID string) (*GraphRecord, error) {
	return s.store.GetGraph(ctx, graphID)
}

// LoadGraph returns a stored graph document and its record.
func (s *Service) LoadGraph(ctx context.Context, graphID string) (*graph.Graph, *GraphRecord, error) {
	rec, err := s.store.GetGraph(ctx, graphID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.GetGraph(ctx, rec.Workspace, rec.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load graph %s: %w", graphID, blobErr(err))
	}
	g, err := graph.Decode(data, graph.FormatJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("load graph %s: %w", graphID, err)
	}
	return g, rec, nil
}

// Score scores a stored graph, stores the result and records the run.
// The graph must belong to workspace.
func (s *Service) Score(ctx context.Context, workspace, graphID string) (*Run, *scoring.ScoreResult, error) {
	g, rec, err := s.LoadGraph(ctx, graphID)
	if err != nil {
		return nil, nil, err
	}
	if rec.Workspace != workspace {
		return nil, nil, fmt.Errorf("score graph %s in %s: %w", graphID, workspace, ErrNotFound)
	}

	result := s.engine.Score(g)
	metrics.ObserveScore(rec.NodeCount, result)

	data, err := json.Marshal(result)
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}

	run := &Run{
		ID:            uuid.NewString(),
		Workspace:     workspace,
		GraphID:       graphID,
		ScenarioScore: result.ScenarioScore,
		Iterations:    result.Diagnostics.Iterations,
		Converged:     result.Diagnostics.Converged,
	}
	run.StorageRef = storage.Key(workspace, storage.KindResults, run.ID)

	if err := s.blobs.PutResult(ctx, workspace, run.ID, data); err != nil {
		return nil, nil, fmt.Errorf("store result: %w", err)
	}
	if err := s.store.InsertRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("record run: %w", err)
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("graph scored",
		"run_id", run.ID, "graph_id", graphID, "scenario_score", run.ScenarioScore,
		"iterations", run.Iterations, "converged", run.Converged)
	if !run.Converged {
		logger.Warn("scoring hit iteration cap", "run_id", run.ID, "max_delta", result.Diagnostics.MaxDelta)
	}
	return run, result, nil
}

// GetRun returns a run record.
func (s *Service) GetRun(ctx context.Context, runID string) (*Run, error) {
	return s.store.GetRun(ctx, runID)
}

// ListRuns returns the newest runs of a graph. limit <= 0 uses DefaultListLimit.
func (s *Service) ListRuns(ctx context.Context, graphID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if _, err := s.store.GetGraph(ctx, graphID); err != nil {
		return nil, err
	}
	return s.store.ListRuns(ctx, graphID, limit)
}

// LoadResult returns the stored score result of a run.
func (s *Service) LoadResult(ctx context.Context, runID string) (*scoring.ScoreResult, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return s.loadResult(ctx, run)
}

func (s *Service) loadResult(ctx context.Context, run *Run) (*scoring.ScoreResult, error) {
	data, err := s.blobs.GetResult(ctx, run.Workspace, run.ID)
	if err != nil {
		return nil, fmt.Errorf("load result %s: %w", run.ID, blobErr(err))
	}
	var result scoring.ScoreResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", run.ID, err)
	}
	return &result, nil
}

// Compare explains how scores moved from one run to another. The after
// run's graph defines the node set; both runs must share a workspace.
func (s *Service) Compare(ctx context.Context, beforeRunID, afterRunID string) (*Comparison, error) {
	before, err := s.store.GetRun(ctx, beforeRunID)
	if err != nil {
		return nil, err
	}
	after, err := s.store.GetRun(ctx, afterRunID)
	if err != nil {
		return nil, err
	}
	if before.Workspace != after.Workspace {
		return nil, fmt.Errorf("compare %s with %s: runs belong to different workspaces: %w", beforeRunID, afterRunID, ErrNotFound)
	}

	beforeResult, err := s.loadResult(ctx, before)
	if err != nil {
		return nil, err
	}
	afterResult, err := s.loadResult(ctx, after)
	if err != nil {
		return nil, err
	}

	afterGraph, _, err := s.LoadGraph(ctx, after.GraphID)
	if err != nil {
		return nil, err
	}
	beforeGraph := afterGraph
	if before.GraphID != after.GraphID {
		if beforeGraph, _, err = s.LoadGraph(ctx, before.GraphID); err != nil {
			return nil, err
		}
	}

	return &Comparison{
		Before:       before,
		After:        after,
		Contributors: explain.TopContributors(beforeResult, afterResult, afterGraph),
		Delta:        graph.ComputeDelta(beforeGraph, afterGraph),
	}, nil
}

// blobErr maps storage misses onto ErrNotFound.
func blobErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
