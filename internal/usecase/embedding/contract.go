package embedding

import (
	"context"

	"github.com/kailas-cloud/quizrag/internal/domain"
)

// Provider produces vectors for a batch of texts (one per input, in order).
type Provider = domain.BatchEmbedder

// Cache stores vectors by content key. Implementations must be safe for
// concurrent use. A Get error is treated as a miss; a Put error is logged.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Put(ctx context.Context, key string, vec []float32) error
}
