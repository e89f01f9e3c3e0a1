// Package storage holds graph documents and score results as blobs keyed by
// workspace and ID.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when a blob does not exist.
var ErrNotFound = errors.New("object not found")

// Blob kinds.
const (
	KindGraphs  = "graphs"
	KindResults = "results"
)

// Client abstracts blob storage for graphs and score results.
type Client interface {
	PutGraph(ctx context.Context, workspace, graphID string, data []byte) error
	GetGraph(ctx context.Context, workspace, graphID string) ([]byte, error)
	PutResult(ctx context.Context, workspace, runID string, data []byte) error
	GetResult(ctx context.Context, workspace, runID string) ([]byte, error)
}

// Key returns the object key of a blob. The same layout is used by every
// backend so buckets and directories can be copied between them.
func Key(workspace, kind, id string) string {
	return workspace + "/" + kind + "/" + id + ".json"
}

// LocalStorage implements Client using the local filesystem.
// Useful for development and testing.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(workspace, kind, id string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(Key(workspace, kind, id)))
}

func (s *LocalStorage) put(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *LocalStorage) get(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, ErrNotFound)
	}
	return data, err
}

// PutGraph stores a graph document.
func (s *LocalStorage) PutGraph(ctx context.Context, workspace, graphID string, data []byte) error {
	return s.put(s.path(workspace, KindGraphs, graphID), data)
}

// GetGraph retrieves a graph document.
func (s *LocalStorage) GetGraph(ctx context.Context, workspace, graphID string) ([]byte, error) {
	return s.get(s.path(workspace, KindGraphs, graphID))
}

// PutResult stores a score result.
func (s *LocalStorage) PutResult(ctx context.Context, workspace, runID string, data []byte) error {
	return s.put(s.path(workspace, KindResults, runID), data)
}

// GetResult retrieves a score result.
func (s *LocalStorage) GetResult(ctx context.Context, workspace, runID string) ([]byte, error) {
	return s.get(s.path(workspace, KindResults, runID))
}
