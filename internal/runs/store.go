package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store persists graph and run records.
type Store interface {
	InsertGraph(ctx context.Context, rec *GraphRecord) error
	GetGraph(ctx context.Context, id string) (*GraphRecord, error)
	InsertRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, graphID string, limit int) ([]Run, error)
}

// Pinger is implemented by stores that hold a connection worth health-checking.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PostgresStore implements Store on the schema in internal/platform.
type PostgresStore struct {
	db *sql.DB
}

var _ Pinger = (*PostgresStore)(nil)

// NewPostgresStore creates a Store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) InsertGraph(ctx context.Context, rec *GraphRecord) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO graphs (id, workspace, schema_version, node_count, edge_count, storage_ref)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		rec.ID, rec.Workspace, rec.SchemaVersion, rec.NodeCount, rec.EdgeCount, rec.StorageRef,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert graph: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGraph(ctx context.Context, id string) (*GraphRecord, error) {
	rec := &GraphRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workspace, schema_version, node_count, edge_count, storage_ref, created_at
		 FROM graphs WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.Workspace, &rec.SchemaVersion, &rec.NodeCount, &rec.EdgeCount, &rec.StorageRef, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get graph %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get graph %s: %w", id, err)
	}
	return rec, nil
}

func (s *PostgresStore) InsertRun(ctx context.Context, run *Run) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO runs (id, workspace, graph_id, scenario_score, iterations, converged, storage_ref)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		run.ID, run.Workspace, run.GraphID, run.ScenarioScore, run.Iterations, run.Converged, run.StorageRef,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*Run, error) {
	run := &Run{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workspace, graph_id, scenario_score, iterations, converged, storage_ref, created_at
		 FROM runs WHERE id = $1`,
		id,
	).Scan(&run.ID, &run.Workspace, &run.GraphID, &run.ScenarioScore, &run.Iterations, &run.Converged, &run.StorageRef, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, graphID string, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace, graph_id, scenario_score, iterations, converged, storage_ref, created_at
		 FROM runs WHERE graph_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2`,
		graphID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Workspace, &r.GraphID, &r.ScenarioScore, &r.Iterations, &r.Converged, &r.StorageRef, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	graphs map[string]GraphRecord
	runs   map[string]Run
	now    func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		graphs: make(map[string]GraphRecord),
		runs:   make(map[string]Run),
		now:    time.Now,
	}
}

func (s *MemoryStore) InsertGraph(ctx context.Context, rec *GraphRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.graphs[rec.ID]; ok {
		return fmt.Errorf("insert graph: duplicate id %s", rec.ID)
	}
	rec.CreatedAt = s.now().UTC()
	s.graphs[rec.ID] = *rec
	return nil
}

func (s *MemoryStore) GetGraph(ctx context.Context, id string) (*GraphRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.graphs[id]
	if !ok {
		return nil, fmt.Errorf("get graph %s: %w", id, ErrNotFound)
	}
	return &rec, nil
}

func (s *MemoryStore) InsertRun(ctx context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.graphs[run.GraphID]; !ok {
		return fmt.Errorf("insert run: unknown graph %s", run.GraphID)
	}
	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("insert run: duplicate id %s", run.ID)
	}
	run.CreatedAt = s.now().UTC()
	s.runs[run.ID] = *run
	return nil
}

func (s *MemoryStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	return &run, nil
}

func (s *MemoryStore) ListRuns(ctx context.Context, graphID string, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Run
	for _, r := range s.runs {
		if r.GraphID == graphID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
