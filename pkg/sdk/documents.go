package quizrag

import (
	"context"
	"fmt"
	"time"

	dombatch "github.com/kailas-cloud/quizrag/internal/domain/batch"
	domdoc "github.com/kailas-cloud/quizrag/internal/domain/document"
)

// DocumentService chunks, embeds and indexes documents.
type DocumentService struct {
	svc ingestUseCase
	obs *observer
}

// Ingest indexes one document and returns the number of chunks written.
// Re-ingesting an ID overwrites chunks with the same sequence numbers.
func (s *DocumentService) Ingest(ctx context.Context, doc Document) (_ int, err error) {
	start := time.Now()
	defer func() { s.obs.observe("ingest", start, err, "doc_id", doc.ID) }()

	d, err := toInternalDocument(doc)
	if err != nil {
		return 0, fmt.Errorf("ingest: %w", err)
	}
	n, err := s.svc.Ingest(ctx, d)
	if err != nil {
		return 0, fmt.Errorf("ingest: %w", err)
	}
	return n, nil
}

// IngestMany indexes documents independently. Invalid documents are reported
// in their own result without affecting the rest. Results keep input order.
func (s *DocumentService) IngestMany(ctx context.Context, docs []Document) []IngestResult {
	start := time.Now()

	results := make([]IngestResult, len(docs))
	valid := make([]domdoc.Document, 0, len(docs))
	pos := make([]int, 0, len(docs))
	for i, doc := range docs {
		d, err := toInternalDocument(doc)
		if err != nil {
			results[i] = IngestResult{ID: doc.ID, Err: err}
			continue
		}
		valid = append(valid, d)
		pos = append(pos, i)
	}

	failed := len(docs) - len(valid)
	if len(valid) > 0 {
		internal := s.svc.IngestMany(ctx, valid)
		for j, r := range internal {
			results[pos[j]] = fromInternalResult(r)
		}
		failed += dombatch.Summarize(internal).Failed
	}

	var err error
	if failed > 0 {
		err = fmt.Errorf("%d of %d documents failed", failed, len(docs))
	}
	s.obs.observe("ingest_many", start, err, "count", len(docs))
	return results
}

func toInternalDocument(d Document) (domdoc.Document, error) {
	doc, err := domdoc.New(d.ID, d.Text, d.Source, d.Subject, d.Unit)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return doc, nil
}

func fromInternalResult(r dombatch.Result) IngestResult {
	return IngestResult{
		ID:     r.ID(),
		OK:     r.OK(),
		Chunks: r.Chunks(),
		Err:    r.Err(),
	}
}
