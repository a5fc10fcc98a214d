package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every quizrag metric.
const Namespace = "quizrag"

// providerLabels identify the upstream API and model behind a request.
var providerLabels = []string{"provider", "model"}

func withLabels(extra ...string) []string {
	return append(append([]string(nil), providerLabels...), extra...)
}

// Embedding and completion provider metrics, recorded by the openai transport.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "embedding_requests_total",
		Help:      "Embedding provider requests by status",
	}, withLabels("status"))

	EmbeddingRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "embedding_request_duration_seconds",
		Help:      "Embedding request latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, providerLabels)

	EmbeddingTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "embedding_tokens_total",
		Help:      "Embedding tokens consumed",
	}, withLabels("type"))

	EmbeddingErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "embedding_errors_total",
		Help:      "Embedding failures by classified cause",
	}, withLabels("error_type"))

	// EmbeddingCacheTotal is shared by the in-process LRU and the Redis cache.
	EmbeddingCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "embedding_cache_total",
		Help:      "Embedding cache lookups by result (hit, miss)",
	}, []string{"result"})

	CompletionRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "completion_requests_total",
		Help:      "Chat completion requests by status",
	}, withLabels("status"))

	CompletionRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "completion_request_duration_seconds",
		Help:      "Chat completion latency",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
	}, providerLabels)

	CompletionTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "completion_tokens_total",
		Help:      "Chat completion tokens consumed",
	}, withLabels("type"))
)

var registerProvider sync.Once

// RegisterProviderMetrics registers the provider collectors with the default
// registry. Safe to call more than once.
func RegisterProviderMetrics() {
	registerProvider.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
			CompletionRequestsTotal,
			CompletionRequestDuration,
			CompletionTokensTotal,
		)
	})
}
