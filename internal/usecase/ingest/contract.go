package ingest

import (
	"context"

	"github.com/kailas-cloud/quizrag/internal/domain/chunk"
	"github.com/kailas-cloud/quizrag/internal/domain/document"
)

// Chunker splits a document into ordered chunks.
type Chunker interface {
	Chunk(doc document.Document) []chunk.Chunk
}

// Embedder vectorizes chunk texts, one vector per text in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Index stores chunk records.
type Index interface {
	Upsert(ctx context.Context, records []chunk.Record) error
	Delete(ctx context.Context, ids []string) error
	// PruneDocument deletes the chunks of docID not listed in keep.
	PruneDocument(ctx context.Context, docID string, keep []string) (int, error)
}
