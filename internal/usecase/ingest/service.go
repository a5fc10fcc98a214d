package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/quizrag/internal/domain"
	dombatch "github.com/kailas-cloud/quizrag/internal/domain/batch"
	"github.com/kailas-cloud/quizrag/internal/domain/chunk"
	"github.com/kailas-cloud/quizrag/internal/domain/document"
)

// MaxBatchSize is the maximum number of documents per IngestMany call.
const MaxBatchSize = 100

// DefaultConcurrency bounds parallel document ingestion.
const DefaultConcurrency = 4

// upsertBatch is the number of records written per index call.
const upsertBatch = 64

// Service turns documents into indexed chunk records.
type Service struct {
	chunker      Chunker
	embed        Embedder
	index        Index
	logger       *zap.Logger
	maxBatchSize int
	concurrency  int
}

// New creates an ingestion service.
func New(chunker Chunker, embed Embedder, idx Index, logger *zap.Logger) *Service {
	return &Service{
		chunker: chunker, embed: embed, index: idx, logger: logger,
		maxBatchSize: MaxBatchSize,
		concurrency:  DefaultConcurrency,
	}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// WithConcurrency configures how many documents are ingested in parallel.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Ingest chunks, embeds and upserts one document and returns the number of
// chunks indexed. It is all-or-nothing: if any upsert fails, every record
// already written for the document is deleted before returning. After a
// successful upsert, chunks left over from a longer earlier version of the
// document are removed.
func (s *Service) Ingest(ctx context.Context, doc document.Document) (int, error) {
	chunks := s.chunker.Chunk(doc)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text()
	}

	vecs, err := s.embed.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed document %s: %w", doc.ID(), err)
	}
	if len(vecs) != len(chunks) {
		return 0, fmt.Errorf("embed document %s: got %d vectors for %d chunks: %w",
			doc.ID(), len(vecs), len(chunks), domain.ErrEmbeddingUnavailable)
	}

	model := s.embed.Model()
	records := make([]chunk.Record, len(chunks))
	for i, c := range chunks {
		records[i] = chunk.NewRecord(c, vecs[i], model)
	}

	written := make([]string, 0, len(records))
	for start := 0; start < len(records); start += upsertBatch {
		part := records[start:min(start+upsertBatch, len(records))]
		// a failed batch may still be partially applied
		for _, r := range part {
			written = append(written, r.ID())
		}
		if err := s.index.Upsert(ctx, part); err != nil {
			s.rollback(ctx, doc.ID(), written)
			return 0, fmt.Errorf("upsert document %s: %w", doc.ID(), err)
		}
	}

	pruned, err := s.index.PruneDocument(ctx, doc.ID(), written)
	if err != nil {
		// the new version is complete; a later re-ingest prunes again
		s.logger.Error("Stale chunk cleanup failed",
			zap.String("doc_id", doc.ID()),
			zap.Error(err),
		)
	}

	s.logger.Debug("Document ingested",
		zap.String("doc_id", doc.ID()),
		zap.Int("chunks", len(records)),
		zap.Int("pruned", pruned),
		zap.String("model", model),
	)
	return len(records), nil
}

func (s *Service) rollback(ctx context.Context, docID string, ids []string) {
	// rollback must run even when ctx is what failed the upsert
	if err := s.index.Delete(context.WithoutCancel(ctx), ids); err != nil {
		s.logger.Error("Ingest rollback failed",
			zap.String("doc_id", docID),
			zap.Int("chunks", len(ids)),
			zap.Error(err),
		)
	}
}

// IngestMany ingests documents concurrently with per-document error reporting.
// Results keep input order.
func (s *Service) IngestMany(ctx context.Context, docs []document.Document) []dombatch.Result {
	results := make([]dombatch.Result, len(docs))

	if len(docs) > s.maxBatchSize {
		for i, doc := range docs {
			results[i] = dombatch.NewError(
				doc.ID(),
				fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrInvalidQuery),
			)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = dombatch.NewError(doc.ID(), err)
				return nil
			}
			n, err := s.Ingest(ctx, doc)
			if err != nil {
				results[i] = dombatch.NewError(doc.ID(), err)
				return nil
			}
			results[i] = dombatch.NewOK(doc.ID(), n)
			return nil
		})
	}
	_ = g.Wait()

	sum := dombatch.Summarize(results)
	s.logger.Info("Batch ingested",
		zap.Int("documents", len(docs)),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Int("chunks", sum.Chunks),
	)
	return results
}
