package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type loaderMetrics struct {
	documentsProcessed prometheus.Counter
	documentsFailed    *prometheus.CounterVec
	chunks             prometheus.Counter
	batchesTotal       prometheus.Counter
	batchDuration      prometheus.Histogram
	cursorFile         prometheus.Gauge
}

func newLoaderMetrics(reg prometheus.Registerer) *loaderMetrics {
	m := &loaderMetrics{
		documentsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quizrag_loader",
			Name:      "documents_processed_total",
			Help:      "Documents ingested successfully.",
		}),
		documentsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizrag_loader",
			Name:      "documents_failed_total",
			Help:      "Documents that could not be ingested.",
		}, []string{"reason"}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quizrag_loader",
			Name:      "chunks_total",
			Help:      "Chunks written to the index.",
		}),
		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quizrag_loader",
			Name:      "batches_total",
			Help:      "Ingest batches sent.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quizrag_loader",
			Name:      "batch_duration_seconds",
			Help:      "Ingest batch duration.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		cursorFile: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quizrag_loader",
			Name:      "cursor_file_index",
			Help:      "Index of the corpus file currently being read.",
		}),
	}
	reg.MustRegister(
		m.documentsProcessed, m.documentsFailed, m.chunks,
		m.batchesTotal, m.batchDuration, m.cursorFile,
	)
	return m
}

// serveMetrics exposes reg on :port/metrics. An empty port disables the server.
func serveMetrics(port string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	if port == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()
	return srv
}
