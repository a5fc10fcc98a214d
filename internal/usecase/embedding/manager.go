package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/kailas-cloud/quizrag/internal/domain"
	"github.com/kailas-cloud/quizrag/internal/retry"
)

// DefaultMaxBatchSize is the maximum number of texts per provider request.
const DefaultMaxBatchSize = 256

// Config holds the embedding manager settings.
type Config struct {
	// Model identifies the embedding model; it is part of every cache key.
	Model string
	// Dimensions pins the expected vector size. Zero adopts the first observed size.
	Dimensions   int
	MaxBatchSize int
	Retry        retry.Policy
	// Instruction is prepended to every text sent to the provider and is part
	// of the cache key, so document and query managers can share one cache.
	Instruction string
}

// Manager turns texts into vectors through a cache and a batching, retrying provider.
// Safe for concurrent use.
type Manager struct {
	provider Provider
	cache    Cache
	cfg      Config
	dim      atomic.Int64
	logger   *zap.Logger
}

// NewManager creates an embedding manager. cache may be nil to disable caching.
func NewManager(provider Provider, cache Cache, cfg Config, logger *zap.Logger) *Manager {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.Instruction != "" {
		provider = domain.NewInstructionEmbedder(provider, cfg.Instruction)
	}
	m := &Manager{provider: provider, cache: cache, cfg: cfg, logger: logger}
	m.dim.Store(int64(cfg.Dimensions))
	return m
}

// Model returns the embedding model identifier.
func (m *Manager) Model() string { return m.cfg.Model }

// Dimensions returns the pinned or first observed vector size, zero if unknown yet.
func (m *Manager) Dimensions() int { return int(m.dim.Load()) }

// EmbedQuery embeds a single text.
func (m *Manager) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Embed returns one vector per text, in input order. Cached texts never reach
// the provider; uncached texts are de-duplicated and sent in batches of at most
// MaxBatchSize. Any batch failing after retries fails the whole call with
// domain.ErrEmbeddingUnavailable; no partial result is returned.
func (m *Manager) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	// positions of every text sharing a key; misses keep first-seen order
	positions := make(map[string][]int, len(texts))
	var missKeys []string
	var missTexts []string

	for i, t := range texts {
		key := m.cacheKey(t)
		if prev, seen := positions[key]; seen {
			positions[key] = append(prev, i)
			continue
		}
		positions[key] = []int{i}

		if vec, ok := m.lookup(ctx, key); ok {
			if err := m.checkDim(vec); err != nil {
				return nil, err
			}
			out[i] = vec
			continue
		}
		missKeys = append(missKeys, key)
		missTexts = append(missTexts, t)
	}

	for offset := 0; offset < len(missTexts); offset += m.cfg.MaxBatchSize {
		end := min(offset+m.cfg.MaxBatchSize, len(missTexts))
		vecs, err := m.embedBatch(ctx, missTexts[offset:end])
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			key := missKeys[offset+j]
			m.store(ctx, key, vec)
			out[positions[key][0]] = vec
		}
	}

	// fill duplicates from their first occurrence
	for _, idx := range positions {
		for _, i := range idx[1:] {
			out[i] = out[idx[0]]
		}
	}
	return out, nil
}

func (m *Manager) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	res, err := retry.Do(ctx, m.policy(len(batch)), func(ctx context.Context) (domain.BatchEmbeddingResult, error) {
		return m.provider.BatchEmbed(ctx, batch)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("embed batch: %w", ctxErr)
		}
		m.logger.Error("Embedding batch failed",
			zap.String("model", m.cfg.Model),
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if len(res.Embeddings) != len(batch) {
		return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts",
			domain.ErrEmbeddingUnavailable, len(res.Embeddings), len(batch))
	}
	for _, vec := range res.Embeddings {
		if err := m.checkDim(vec); err != nil {
			return nil, err
		}
	}

	m.logger.Debug("Embedding batch completed",
		zap.String("model", m.cfg.Model),
		zap.Int("batch_size", len(batch)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res.Embeddings, nil
}

func (m *Manager) policy(batchSize int) retry.Policy {
	p := m.cfg.Retry
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		m.logger.Warn("Retrying embedding batch",
			zap.String("model", m.cfg.Model),
			zap.Int("attempt", attempt),
			zap.Int("batch_size", batchSize),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
	return p
}

// checkDim enforces a single dimensionality per manager.
func (m *Manager) checkDim(vec []float32) error {
	n := int64(len(vec))
	if n == 0 {
		return fmt.Errorf("empty embedding vector: %w", domain.ErrVectorDimMismatch)
	}
	if m.dim.CompareAndSwap(0, n) {
		return nil
	}
	if want := m.dim.Load(); want != n {
		return fmt.Errorf("embedding has %d dimensions, expected %d: %w", n, want, domain.ErrVectorDimMismatch)
	}
	return nil
}

func (m *Manager) lookup(ctx context.Context, key string) ([]float32, bool) {
	if m.cache == nil {
		return nil, false
	}
	vec, ok, err := m.cache.Get(ctx, key)
	if err != nil {
		m.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, ok
}

func (m *Manager) store(ctx context.Context, key string, vec []float32) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Put(ctx, key, vec); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// cacheKey hashes the model and instruction with the normalized text: NFC,
// whitespace collapsed, trimmed.
func (m *Manager) cacheKey(text string) string {
	normalized := strings.Join(strings.Fields(norm.NFC.String(text)), " ")
	h := sha256.New()
	h.Write([]byte(m.cfg.Model))
	h.Write([]byte{0})
	h.Write([]byte(m.cfg.Instruction))
	h.Write([]byte{0})
	h.Write([]byte(normalized))
	return hex.EncodeToString(h.Sum(nil))
}
