package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var _ Client = (*LocalStorage)(nil)
var _ Client = (*S3Storage)(nil)
var _ Client = (*GCSStorage)(nil)

func TestLocalStoragePutGetGraph(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir)
	ctx := context.Background()

	data := []byte(`{"nodes":{}}`)
	if err := s.PutGraph(ctx, "growth", "g1", data); err != nil {
		t.Fatalf("PutGraph: %v", err)
	}

	got, err := s.GetGraph(ctx, "growth", "g1")
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("GetGraph = %q, want %q", got, data)
	}

	// Verify file path layout
	expectedPath := filepath.Join(dir, "growth", "graphs", "g1.json")
	if _, err := os.Stat(expectedPath); err != nil {
		t.Errorf("expected file at %s: %v", expectedPath, err)
	}
}

func TestLocalStoragePutGetResult(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir)
	ctx := context.Background()

	data := []byte(`{"scenario_score":33}`)
	if err := s.PutResult(ctx, "growth", "run1", data); err != nil {
		t.Fatalf("PutResult: %v", err)
	}

	got, err := s.GetResult(ctx, "growth", "run1")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("GetResult = %q, want %q", got, data)
	}

	expectedPath := filepath.Join(dir, "growth", "results", "run1.json")
	if _, err := os.Stat(expectedPath); err != nil {
		t.Errorf("expected file at %s: %v", expectedPath, err)
	}
}

func TestLocalStorageGetNotFound(t *testing.T) {
	s := NewLocalStorage(t.TempDir())
	ctx := context.Background()

	if _, err := s.GetGraph(ctx, "growth", "nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetGraph error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetResult(ctx, "growth", "nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetResult error = %v, want ErrNotFound", err)
	}
}

func TestLocalStorageOverwrite(t *testing.T) {
	s := NewLocalStorage(t.TempDir())
	ctx := context.Background()

	for _, body := range []string{"first", "second"} {
		if err := s.PutResult(ctx, "w", "r", []byte(body)); err != nil {
			t.Fatalf("PutResult: %v", err)
		}
	}
	got, err := s.GetResult(ctx, "w", "r")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("GetResult = %q, want %q", got, "second")
	}
}

func TestKey(t *testing.T) {
	if got := Key("growth", KindResults, "abc"); got != "growth/results/abc.json" {
		t.Errorf("Key = %q", got)
	}
}
