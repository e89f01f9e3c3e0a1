package api

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/krscope/krscope/internal/metrics"
	"github.com/krscope/krscope/internal/runs"
	"github.com/krscope/krscope/internal/storage"
)

func requestCount(method, route, status string) float64 {
	return testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(method, route, status))
}

func TestLoggingLabelsByRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	var logs bytes.Buffer
	h := Chain(mux, slog.New(slog.NewJSONHandler(&logs, nil)), "")

	before := requestCount("GET", "GET /items/{id}", "418")
	unmatched := requestCount("GET", "unmatched", "404")

	for _, path := range []string{"/items/1", "/items/2"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if got := requestCount("GET", "GET /items/{id}", "418") - before; got != 2 {
		t.Errorf("route-labelled requests = %v, want 2", got)
	}
	if got := requestCount("GET", "unmatched", "404") - unmatched; got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}
	if strings.Contains(logs.String(), `"route":"/items/1"`) {
		t.Error("route label must not carry the raw path")
	}
	if !strings.Contains(logs.String(), `"route":"GET /items/{id}"`) {
		t.Errorf("expected route pattern in logs:\n%s", logs.String())
	}
}

func TestChainRecordsRecoveredPanic(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /explode/{id}", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})

	var logs bytes.Buffer
	h := Chain(mux, slog.New(slog.NewJSONHandler(&logs, nil)), "")

	before := requestCount("GET", "GET /explode/{id}", "500")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explode/9", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if got := requestCount("GET", "GET /explode/{id}", "500") - before; got != 1 {
		t.Errorf("500 count = %v, want 1", got)
	}

	var panicLine, requestLine string
	for _, line := range strings.Split(logs.String(), "\n") {
		switch {
		case strings.Contains(line, "panic recovered"):
			panicLine = line
		case strings.Contains(line, `"msg":"http request"`):
			requestLine = line
		}
	}
	if !strings.Contains(panicLine, `"request_id"`) {
		t.Errorf("panic log lacks request_id: %q", panicLine)
	}
	if !strings.Contains(requestLine, `"status":500`) {
		t.Errorf("request log lacks 500 status: %q", requestLine)
	}
}

type unreachableStore struct {
	*runs.MemoryStore
}

func (unreachableStore) Ping(ctx context.Context) error {
	return errors.New("connection refused")
}

func TestHealthReportsStoreOutage(t *testing.T) {
	svc := runs.NewService(unreachableStore{runs.NewMemoryStore()}, storage.NewLocalStorage(t.TempDir()), nil)
	mux := http.NewServeMux()
	NewHandler(svc, nil, nil).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "connection refused") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
