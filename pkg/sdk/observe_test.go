package quizrag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserver_CountsAndLogs(t *testing.T) {
	reg := prometheus.NewRegistry()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	obs, err := newObserver(logger, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	obs.observe("retrieve", time.Now(), nil)
	obs.observe("retrieve", time.Now(), errors.New("boom"), "k", 3)
	obs.observe("generate", time.Now(), fmt.Errorf("generate: %w", context.Canceled))

	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("retrieve", "ok")); got != 1 {
		t.Errorf("ok count = %v", got)
	}
	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("retrieve", "error")); got != 1 {
		t.Errorf("error count = %v", got)
	}
	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("generate", "canceled")); got != 1 {
		t.Errorf("canceled count = %v", got)
	}
	out := buf.String()
	if !strings.Contains(out, "quizrag call failed") || !strings.Contains(out, "boom") {
		t.Errorf("missing failure log: %s", out)
	}
	if !strings.Contains(out, "quizrag call canceled") {
		t.Errorf("cancellation must be logged separately: %s", out)
	}
}

func TestObserver_ReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.metrics.operations != second.metrics.operations {
		t.Error("expected the registered counter to be reused")
	}
}

func TestObserver_Nil(t *testing.T) {
	var obs *observer
	obs.observe("ping", time.Now(), nil)
}

func TestWithPrometheus_ClientOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newMemoryClient(t, WithPrometheus(reg))

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if n := testutil.CollectAndCount(reg, "quizrag_sdk_operations_total"); n != 1 {
		t.Errorf("expected 1 series, got %d", n)
	}
}
