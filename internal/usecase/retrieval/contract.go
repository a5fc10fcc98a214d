package retrieval

import (
	"context"

	"github.com/kailas-cloud/quizrag/internal/domain/filter"
	"github.com/kailas-cloud/quizrag/internal/domain/index"
	domret "github.com/kailas-cloud/quizrag/internal/domain/retrieval"
)

// Embedder vectorizes a query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Index answers nearest-neighbour queries over chunk records.
type Index interface {
	Query(ctx context.Context, vector []float32, k int, f filter.Expression) ([]index.Hit, error)
}

// Reranker scores passages against the query text, one score per passage in
// input order. Higher is more relevant.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []domret.Passage) ([]float64, error)
}
