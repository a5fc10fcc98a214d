package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// QuestionsTotal counts per-question outcomes: validated, failed, regenerated, near_duplicate, low_quality.
	QuestionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "questions_total",
		Help:      "Question generation outcomes",
	}, []string{"difficulty", "outcome"})

	RetrievalPassages = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "retrieval_passages",
		Help:      "Passages surviving threshold and dedup per retrieval",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
	})

	RerankFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rerank_failures_total",
		Help:      "Retrievals that kept vector order because reranking failed",
	})
)

var registerGeneration sync.Once

// RegisterGenerationMetrics registers question and retrieval collectors. Safe to call more than once.
func RegisterGenerationMetrics() {
	registerGeneration.Do(func() {
		prometheus.MustRegister(QuestionsTotal, RetrievalPassages, RerankFailures)
	})
}
