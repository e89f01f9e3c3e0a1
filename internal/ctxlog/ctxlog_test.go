package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	if got := FromContext(context.Background()); got != slog.Default() {
		t.Error("expected the default logger for a bare context")
	}
}

func TestWithLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatal("expected the embedded logger")
	}

	ctx = With(ctx, "run_id", "r1")
	FromContext(ctx).Info("scored")

	if out := buf.String(); !strings.Contains(out, "run_id=r1") || !strings.Contains(out, "msg=scored") {
		t.Errorf("unexpected log output %q", out)
	}
}
