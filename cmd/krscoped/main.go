// Command krscoped is the krscope HTTP service.
// It serves the stateless scoring API, the run ledger when Postgres is
// configured, Prometheus metrics and a health check.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/krscope/krscope/internal/api"
	"github.com/krscope/krscope/internal/platform"
	"github.com/krscope/krscope/internal/runs"
	"github.com/krscope/krscope/internal/storage"
	"github.com/krscope/krscope/pkg/config"
	"github.com/krscope/krscope/pkg/scoring"
)

type serverConfig struct {
	Port           string `env:"PORT" envDefault:"8080"`
	DatabaseURL    string `env:"DATABASE_URL"`
	AutoMigrate    bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"none"`
	StoragePath    string `env:"STORAGE_PATH" envDefault:"/tmp/krscope-data"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3Region       string `env:"S3_REGION"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	GCSBucket      string `env:"GCS_BUCKET"`
	APIKey         string `env:"API_KEY"`
	GraphCacheSize int    `env:"GRAPH_CACHE_SIZE" envDefault:"20"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	ConfigFile     string `env:"KRSCOPE_CONFIG"`
}

func loadConfig() (serverConfig, error) {
	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("krscoped exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func run(ctx context.Context, cfg serverConfig, logger *slog.Logger) error {
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	blobs, closeBlobs, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBlobs()

	var runSvc *runs.Service
	if blobs != nil {
		store, closeStore, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()
		runSvc = runs.NewService(store, blobs, engine)
	} else {
		logger.Info("run ledger disabled", "storage_backend", cfg.StorageBackend)
	}

	handler := api.NewHandler(runSvc, engine, api.NewGraphCache(cfg.GraphCacheSize))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Chain(mux, logger, cfg.APIKey),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting krscoped", "port", cfg.Port, "ledger", runSvc != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newEngine builds the scoring engine from the optional config file.
func newEngine(cfg serverConfig) (*scoring.Engine, error) {
	if cfg.ConfigFile == "" {
		return scoring.NewEngine(), nil
	}
	c, err := config.Load(cfg.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return scoring.NewEngine(c.EngineOptions()...), nil
}

// openStorage selects the blob backend. "none" returns a nil client, which
// disables the run ledger.
func openStorage(ctx context.Context, cfg serverConfig) (storage.Client, func(), error) {
	noop := func() {}
	switch strings.ToLower(cfg.StorageBackend) {
	case "", "none":
		return nil, noop, nil
	case "local":
		return storage.NewLocalStorage(cfg.StoragePath), noop, nil
	case "s3":
		s, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case "gcs":
		s, err := storage.NewGCSStorage(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown STORAGE_BACKEND %q (want none, local, s3 or gcs)", cfg.StorageBackend)
	}
}

// openStore connects the ledger records to Postgres, or keeps them in memory
// when DATABASE_URL is unset.
func openStore(cfg serverConfig, logger *slog.Logger) (runs.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; run records are kept in memory")
		return runs.NewMemoryStore(), func() {}, nil
	}

	db, err := platform.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		if err := platform.AutoMigrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("database migrations applied")
	}
	return runs.NewPostgresStore(db), func() { db.Close() }, nil
}
