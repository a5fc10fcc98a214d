package quizrag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusOK       = "ok"
	statusCanceled = "canceled"
	statusError    = "error"
)

type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	ops, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizrag",
		Subsystem: "sdk",
		Name:      "operations_total",
		Help:      "SDK calls by operation and status (ok, canceled, error).",
	}, []string{"operation", "status"}))
	if err != nil {
		return nil, err
	}
	dur, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quizrag",
		Subsystem: "sdk",
		Name:      "operation_duration_seconds",
		Help:      "SDK call latency. Generate calls include every model round trip.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	return &sdkMetrics{operations: ops, duration: dur}, nil
}

// register adds c to reg. When a collector with the same descriptor already
// exists it is returned instead, so several clients can share a registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, fmt.Errorf("quizrag: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("quizrag: metric registered with a different type %T", are.ExistingCollector)
	}
	return existing, nil
}

// observer logs and counts SDK calls. A nil observer records nothing.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error, attrs ...any) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)
	status := statusOf(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if o.logger == nil {
		return
	}

	args := append([]any{"op", op, "duration", elapsed}, attrs...)
	switch status {
	case statusOK:
		o.logger.Debug("quizrag call completed", args...)
	case statusCanceled:
		o.logger.Info("quizrag call canceled", append(args, "error", err)...)
	default:
		o.logger.Warn("quizrag call failed", append(args, "error", err)...)
	}
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return statusCanceled
	default:
		return statusError
	}
}
