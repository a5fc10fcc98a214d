package embedding

import (
	"context"
	"sync"

	"github.com/kailas-cloud/quizrag/internal/domain"
)

// countingProvider returns deterministic vectors and records every request.
type countingProvider struct {
	mu      sync.Mutex
	calls   int
	batches [][]string
	dim     int
	// errs is consumed one per call before succeeding.
	errs []error
}

func (p *countingProvider) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.batches = append(p.batches, append([]string(nil), texts...))
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
	}
	dim := p.dim
	if dim == 0 {
		dim = 3
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, dim)
		v[0] = float32(len([]rune(t)))
		v[dim-1] = 1
		out[i] = v
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

func (p *countingProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]float32, bool, error) {
	return nil, false, context.DeadlineExceeded
}

func (brokenCache) Put(context.Context, string, []float32) error {
	return context.DeadlineExceeded
}
