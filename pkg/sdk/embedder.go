package quizrag

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/quizrag/internal/domain"
)

// Embedder vectorizes texts. Implementations return exactly one vector per
// input, in input order. Errors wrapping ErrRateLimited, ErrProviderTimeout or
// ErrProviderUnavailable are retried.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// BatchEmbeddingResult carries embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// Prompt is a chat request sent to a Completer.
type Prompt struct {
	System string
	User   string
	// JSON asks for a JSON object reply when the provider supports it.
	JSON        bool
	Temperature float32
	MaxTokens   int
}

// Completer sends a prompt to a generative model and returns its raw reply.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// embedderAdapter bridges the public Embedder to domain.BatchEmbedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	res, err := a.inner.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   res.Embeddings,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

func (a *embedderAdapter) HealthCheck(ctx context.Context) error {
	if hc, ok := a.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // caller wraps
	}
	return nil
}

// completerAdapter bridges the public Completer to domain.Completer.
type completerAdapter struct {
	inner Completer
}

func (a *completerAdapter) Complete(ctx context.Context, p domain.Prompt) (string, error) {
	out, err := a.inner.Complete(ctx, Prompt{
		System: p.System, User: p.User, JSON: p.JSON,
		Temperature: p.Temperature, MaxTokens: p.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	return out, nil
}

func (a *completerAdapter) HealthCheck(ctx context.Context) error {
	if hc, ok := a.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // caller wraps
	}
	return nil
}
