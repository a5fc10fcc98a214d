package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/quizrag/internal/domain"
	"github.com/kailas-cloud/quizrag/internal/domain/filter"
	domret "github.com/kailas-cloud/quizrag/internal/domain/retrieval"
)

// Defaults applied by New when a Config field is zero.
const (
	DefaultK         = 5
	DefaultOverFetch = 2
	DefaultThreshold = 0.3
	MaxK             = 100
)

// Config holds retrieval defaults.
type Config struct {
	K         int
	OverFetch int
	Threshold float64
	// Passages observes the number of passages returned per query. Optional.
	Passages prometheus.Observer
	// Reranker reorders the over-fetched candidates before truncation. Optional.
	Reranker Reranker
	// RerankFailures counts queries that kept vector order because the
	// reranker failed. Optional.
	RerankFailures prometheus.Counter
}

// Query is a single retrieval request.
type Query struct {
	Text    string
	K       int
	Subject string
	Unit    string
	// Threshold is the minimum cosine similarity. Nil uses the configured default.
	Threshold *float64
}

// Service turns a query text into ranked passages.
type Service struct {
	embed  Embedder
	index  Index
	cfg    Config
	logger *zap.Logger
}

// New creates a retrieval service.
func New(embed Embedder, idx Index, cfg Config) *Service {
	if cfg.K <= 0 {
		cfg.K = DefaultK
	}
	if cfg.OverFetch <= 1 {
		cfg.OverFetch = DefaultOverFetch
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &Service{embed: embed, index: idx, cfg: cfg, logger: zap.NewNop()}
}

// WithLogger sets the logger used for reranker failures.
func (s *Service) WithLogger(logger *zap.Logger) *Service {
	s.logger = logger
	return s
}

// Retrieve embeds q.Text and returns up to q.K passages above the threshold,
// unique by chunk ID and ordered by descending score, or by reranker
// relevance when one is configured. Nothing above the threshold is an empty
// result, not an error.
func (s *Service) Retrieve(ctx context.Context, q Query) (domret.Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return domret.Result{}, fmt.Errorf("query text is required: %w", domain.ErrInvalidQuery)
	}
	if q.K < 0 {
		return domret.Result{}, fmt.Errorf("k must not be negative, got %d: %w", q.K, domain.ErrInvalidQuery)
	}
	k := q.K
	if k == 0 {
		k = s.cfg.K
	}
	if k > MaxK {
		return domret.Result{}, fmt.Errorf("k must be at most %d, got %d: %w", MaxK, k, domain.ErrInvalidQuery)
	}
	threshold := s.cfg.Threshold
	if q.Threshold != nil {
		threshold = *q.Threshold
	}

	scope, err := filter.Scope(q.Subject, q.Unit)
	if err != nil {
		return domret.Result{}, fmt.Errorf("build filter: %w", err)
	}

	vec, err := s.embed.EmbedQuery(ctx, q.Text)
	if err != nil {
		return domret.Result{}, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.index.Query(ctx, vec, k*s.cfg.OverFetch, scope)
	if err != nil {
		return domret.Result{}, fmt.Errorf("query index: %w", err)
	}

	best := make(map[string]int, len(hits))
	passages := make([]domret.Passage, 0, len(hits))
	for _, h := range hits {
		if h.Score < threshold {
			continue
		}
		if i, ok := best[h.Chunk.ID()]; ok {
			if h.Score > passages[i].Score {
				passages[i].Score = h.Score
			}
			continue
		}
		best[h.Chunk.ID()] = len(passages)
		passages = append(passages, domret.Passage{Chunk: h.Chunk, Score: h.Score})
	}

	sort.SliceStable(passages, func(i, j int) bool { return passages[i].Score > passages[j].Score })
	if s.cfg.Reranker != nil && len(passages) > 1 {
		s.rerank(ctx, q.Text, passages)
	}
	if len(passages) > k {
		passages = passages[:k]
	}

	if s.cfg.Passages != nil {
		s.cfg.Passages.Observe(float64(len(passages)))
	}
	if len(passages) == 0 {
		return domret.Result{}, nil
	}
	return domret.Result{Passages: passages}, nil
}

// rerank reorders passages in place by reranker relevance. A failed or
// short reply keeps the vector order.
func (s *Service) rerank(ctx context.Context, query string, passages []domret.Passage) {
	scores, err := s.cfg.Reranker.Rerank(ctx, query, passages)
	if err == nil && len(scores) != len(passages) {
		err = fmt.Errorf("reranker returned %d scores for %d passages", len(scores), len(passages))
	}
	if err != nil {
		if s.cfg.RerankFailures != nil {
			s.cfg.RerankFailures.Inc()
		}
		s.logger.Warn("Rerank failed, keeping vector order", zap.Int("passages", len(passages)), zap.Error(err))
		return
	}
	for i := range passages {
		passages[i].Relevance = scores[i]
	}
	sort.SliceStable(passages, func(i, j int) bool { return passages[i].Relevance > passages[j].Relevance })
}
