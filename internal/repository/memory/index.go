// Package memory is an in-process vector index with exact cosine search.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/quizrag/internal/domain"
	"github.com/kailas-cloud/quizrag/internal/domain/chunk"
	"github.com/kailas-cloud/quizrag/internal/domain/filter"
	"github.com/kailas-cloud/quizrag/internal/domain/index"
)

type entry struct {
	record chunk.Record
	seq    int64
}

// Index holds records in memory. Safe for concurrent use; readers never
// observe a partially written record because records are replaced whole.
type Index struct {
	mu      sync.RWMutex
	entries map[string]entry
	nextSeq int64
	dim     int
	model   string
}

// New creates an empty in-memory index.
func New() *Index {
	return &Index{entries: make(map[string]entry)}
}

// Upsert inserts or overwrites records by chunk ID.
// An overwritten record keeps its original insertion sequence. The first
// upsert pins the vector dimension and the embedding model; later records
// must match both.
func (ix *Index) Upsert(ctx context.Context, records []chunk.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	dim, model := ix.dim, ix.model
	if dim == 0 {
		model = records[0].Model()
	}
	for _, r := range records {
		if r.Model() != model {
			return fmt.Errorf("record %s embedded with %q, index holds %q: %w",
				r.ID(), r.Model(), model, domain.ErrInvalidConfiguration)
		}
		n := len(r.Vector())
		if n == 0 {
			return fmt.Errorf("record %s has an empty vector: %w", r.ID(), domain.ErrVectorDimMismatch)
		}
		if dim == 0 {
			dim = n
		}
		if n != dim {
			return fmt.Errorf("record %s has %d dims, index has %d: %w", r.ID(), n, dim, domain.ErrVectorDimMismatch)
		}
	}
	ix.dim, ix.model = dim, model

	for _, r := range records {
		e, ok := ix.entries[r.ID()]
		if !ok {
			ix.nextSeq++
			e.seq = ix.nextSeq
		}
		e.record = r
		ix.entries[r.ID()] = e
	}
	return nil
}

// Query returns up to k records nearest to vector, filtered by f.
func (ix *Index) Query(ctx context.Context, vector []float32, k int, f filter.Expression) ([]index.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidQuery)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.entries) == 0 {
		return nil, nil
	}
	if len(vector) != ix.dim {
		return nil, fmt.Errorf("query has %d dims, index has %d: %w", len(vector), ix.dim, domain.ErrVectorDimMismatch)
	}

	hits := make([]index.Hit, 0, len(ix.entries))
	for _, e := range ix.entries {
		c := e.record.Chunk()
		if !f.Matches(c.Tag) {
			continue
		}
		hits = append(hits, index.Hit{
			Chunk: c,
			Score: index.Cosine(vector, e.record.Vector()),
			Seq:   e.seq,
		})
	}
	return index.Rank(hits, k), nil
}

// Delete removes records by chunk ID. Missing IDs are ignored.
func (ix *Index) Delete(_ context.Context, ids []string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, id := range ids {
		delete(ix.entries, id)
	}
	return nil
}

// PruneDocument deletes the records of docID whose IDs are not in keep.
func (ix *Index) PruneDocument(ctx context.Context, docID string, keep []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	n := 0
	for id, e := range ix.entries {
		if e.record.Chunk().DocumentID() != docID {
			continue
		}
		if _, ok := kept[id]; !ok {
			delete(ix.entries, id)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored records.
func (ix *Index) Count(_ context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries), nil
}

// Get returns a stored record by chunk ID.
func (ix *Index) Get(_ context.Context, id string) (chunk.Record, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.entries[id]
	if !ok {
		return chunk.Record{}, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	return e.record, nil
}
