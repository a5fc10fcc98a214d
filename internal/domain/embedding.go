package domain

import (
	"context"
	"fmt"
)

// KeyPrefix prefixes every key quizrag writes to a shared key-value store.
const KeyPrefix = "quizrag:"

// BatchEmbedder vectorizes multiple texts in a single provider call.
// Implementations return exactly one vector per input, in input order.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BatchEmbeddingResult carries embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// InstructionEmbedder is a decorator that prepends instruction text before embedding.
// Documents and queries typically use different instructions with asymmetric models.
type InstructionEmbedder struct {
	inner       BatchEmbedder
	instruction string
}

// NewInstructionEmbedder creates a decorator that prepends instruction text.
func NewInstructionEmbedder(inner BatchEmbedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// BatchEmbed prepends the instruction to each text and delegates to the inner embedder.
func (e *InstructionEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	if e.instruction == "" {
		return e.inner.BatchEmbed(ctx, texts)
	}
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = e.instruction + t
	}

	res, err := e.inner.BatchEmbed(ctx, prefixed)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("instruction batch embed: %w", err)
	}
	return res, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (e *InstructionEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
