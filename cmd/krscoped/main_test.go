package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/krscope/krscope/internal/storage"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "STORAGE_BACKEND", "GRAPH_CACHE_SIZE", "LOG_LEVEL", "AUTO_MIGRATE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Port != "8080" || cfg.StorageBackend != "none" || cfg.GraphCacheSize != 20 || !cfg.AutoMigrate {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("GRAPH_CACHE_SIZE", "5")
	t.Setenv("AUTO_MIGRATE", "false")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Port != "9090" || cfg.StorageBackend != "local" || cfg.GraphCacheSize != 5 || cfg.AutoMigrate {
		t.Errorf("unexpected config %+v", cfg)
	}

	t.Setenv("GRAPH_CACHE_SIZE", "many")
	if _, err := loadConfig(); err == nil {
		t.Error("expected error for non-numeric GRAPH_CACHE_SIZE")
	}
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()

	c, closeFn, err := openStorage(ctx, serverConfig{StorageBackend: "none"})
	if err != nil || c != nil {
		t.Errorf("none backend: client=%v err=%v, want nil client", c, err)
	}
	closeFn()

	c, _, err = openStorage(ctx, serverConfig{StorageBackend: "local", StoragePath: t.TempDir()})
	if err != nil {
		t.Fatalf("local backend: %v", err)
	}
	if _, ok := c.(*storage.LocalStorage); !ok {
		t.Errorf("local backend returned %T", c)
	}

	if _, _, err := openStorage(ctx, serverConfig{StorageBackend: "s3"}); err == nil {
		t.Error("expected error for s3 backend without bucket")
	}
	if _, _, err := openStorage(ctx, serverConfig{StorageBackend: "ftp"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestOpenStoreWithoutDatabase(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, closeFn, err := openStore(serverConfig{}, logger)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer closeFn()
	if store == nil {
		t.Fatal("expected in-memory store")
	}
}

func TestNewEngineFromConfigFile(t *testing.T) {
	if _, err := newEngine(serverConfig{}); err != nil {
		t.Fatalf("default engine: %v", err)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("scoring:\n  weights:\n    bogus: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := newEngine(serverConfig{ConfigFile: path}); err == nil {
		t.Error("expected error for invalid config file")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("unexpected log output %q", out)
	}

	buf.Reset()
	newLogger(&buf, "nonsense").Info("fallback")
	if !strings.Contains(buf.String(), "fallback") {
		t.Error("unknown level should fall back to info")
	}
}
