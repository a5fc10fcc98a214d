package embedding

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quizrag/internal/domain"
	"github.com/kailas-cloud/quizrag/internal/retry"
)

func newTestManager(p *countingProvider, cache Cache, cfg Config) *Manager {
	if cfg.Model == "" {
		cfg.Model = "test-model"
	}
	return NewManager(p, cache, cfg, zap.NewNop())
}

func TestManager_CacheHitsSkipProvider(t *testing.T) {
	p := &countingProvider{}
	m := newTestManager(p, NewLRUCache(100, 0, nil), Config{})
	ctx := context.Background()

	first, err := m.Embed(ctx, []string{"기울기", "절편"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.Embed(ctx, []string{"절편", "기울기"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Calls() != 1 {
		t.Fatalf("provider calls = %d, want 1", p.Calls())
	}
	if second[0][0] != first[1][0] || second[1][0] != first[0][0] {
		t.Error("cached vectors returned in the wrong order")
	}
}

func TestManager_NormalizedTextsShareKey(t *testing.T) {
	p := &countingProvider{}
	m := newTestManager(p, NewLRUCache(100, 0, nil), Config{})

	vecs, err := m.Embed(context.Background(), []string{"일차 함수", "  일차\t함수 ", "일차 함수"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Calls() != 1 || len(p.batches[0]) != 1 {
		t.Fatalf("expected a single one-text request, got %v", p.batches)
	}
	if len(vecs) != 3 || vecs[1] == nil || vecs[2] == nil {
		t.Fatalf("duplicates must be filled: %v", vecs)
	}
}

func TestManager_ModelIsPartOfKey(t *testing.T) {
	p := &countingProvider{}
	cache := NewLRUCache(100, 0, nil)
	a := newTestManager(p, cache, Config{Model: "a"})
	b := newTestManager(p, cache, Config{Model: "b"})

	_, _ = a.Embed(context.Background(), []string{"text"})
	_, _ = b.Embed(context.Background(), []string{"text"})
	if p.Calls() != 2 {
		t.Fatalf("different models must not share cache entries, calls = %d", p.Calls())
	}
}

func TestManager_InstructionPrefixesAndKeys(t *testing.T) {
	p := &countingProvider{}
	cache := NewLRUCache(100, 0, nil)
	docs := newTestManager(p, cache, Config{})
	queries := newTestManager(p, cache, Config{Instruction: "query: "})

	_, _ = docs.Embed(context.Background(), []string{"기울기"})
	if _, err := queries.EmbedQuery(context.Background(), "기울기"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Calls() != 2 {
		t.Fatalf("instructions must not share cache entries, calls = %d", p.Calls())
	}
	if got := p.batches[1][0]; got != "query: 기울기" {
		t.Errorf("provider got %q, want prefixed text", got)
	}
}

func TestManager_Batching(t *testing.T) {
	p := &countingProvider{}
	m := newTestManager(p, nil, Config{MaxBatchSize: 2})

	vecs, err := m.Embed(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Calls() != 3 {
		t.Fatalf("provider calls = %d, want 3", p.Calls())
	}
	for _, b := range p.batches {
		if len(b) > 2 {
			t.Errorf("batch of %d exceeds max size", len(b))
		}
	}
	for i, v := range vecs {
		if int(v[0]) != i+1 {
			t.Errorf("vector %d out of order: %v", i, v)
		}
	}
}

func TestManager_RetriesTransientFailures(t *testing.T) {
	p := &countingProvider{errs: []error{domain.ErrRateLimited, domain.ErrProviderTimeout}}
	m := newTestManager(p, nil, Config{Retry: retry.Policy{MaxAttempts: 3}})

	if _, err := m.Embed(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Calls() != 3 {
		t.Errorf("provider calls = %d, want 3", p.Calls())
	}
}

func TestManager_ExhaustionFailsWholeCall(t *testing.T) {
	p := &countingProvider{errs: []error{nil, domain.ErrProviderUnavailable, domain.ErrProviderUnavailable}}
	m := newTestManager(p, NewLRUCache(10, 0, nil), Config{MaxBatchSize: 1, Retry: retry.Policy{MaxAttempts: 2}})

	vecs, err := m.Embed(context.Background(), []string{"ok", "bad"})
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if vecs != nil {
		t.Errorf("no partial result expected, got %v", vecs)
	}
}

func TestManager_NonRetryableNotRetried(t *testing.T) {
	p := &countingProvider{errs: []error{domain.ErrProviderRejected}}
	m := newTestManager(p, nil, Config{Retry: retry.Policy{MaxAttempts: 5}})

	_, err := m.Embed(context.Background(), []string{"x"})
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) || !errors.Is(err, domain.ErrProviderRejected) {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", p.Calls())
	}
}

func TestManager_DimensionMismatch(t *testing.T) {
	p := &countingProvider{dim: 4}
	m := newTestManager(p, nil, Config{Dimensions: 3})

	_, err := m.Embed(context.Background(), []string{"x"})
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestManager_AdoptsFirstDimension(t *testing.T) {
	p := &countingProvider{dim: 5}
	m := newTestManager(p, nil, Config{})

	if _, err := m.EmbedQuery(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Dimensions() != 5 {
		t.Errorf("Dimensions() = %d, want 5", m.Dimensions())
	}
	p.dim = 6
	if _, err := m.EmbedQuery(context.Background(), "y"); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestManager_BrokenCacheFallsBackToProvider(t *testing.T) {
	p := &countingProvider{}
	m := newTestManager(p, brokenCache{}, Config{})

	if _, err := m.Embed(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("cache faults must not fail embedding: %v", err)
	}
	if p.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", p.Calls())
	}
}

func TestManager_Empty(t *testing.T) {
	p := &countingProvider{}
	m := newTestManager(p, nil, Config{})
	vecs, err := m.Embed(context.Background(), nil)
	if err != nil || len(vecs) != 0 || p.Calls() != 0 {
		t.Fatalf("unexpected: %v %v %d", vecs, err, p.Calls())
	}
}

func TestManager_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := newTestManager(&countingProvider{}, nil, Config{})
	if _, err := m.Embed(ctx, []string{"x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
