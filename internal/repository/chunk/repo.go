// Package chunk stores chunk records as Redis/Valkey hashes behind an FT vector index.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/quizrag/internal/db"
	"github.com/kailas-cloud/quizrag/internal/domain"
	domchunk "github.com/kailas-cloud/quizrag/internal/domain/chunk"
	"github.com/kailas-cloud/quizrag/internal/domain/filter"
	"github.com/kailas-cloud/quizrag/internal/domain/index"
)

// pruneLimit matches the FT default MAXSEARCHRESULTS.
const pruneLimit = 10000

var (
	keyPrefix = domain.KeyPrefix + "chunk:"
	seqKey    = domain.KeyPrefix + "chunk_seq"
	indexName = domain.KeyPrefix + "chunks:idx"
)

// store is the consumer interface for chunk records (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetMulti(ctx context.Context, keys []string, field string) ([]string, error)
	DelMulti(ctx context.Context, keys []string) error
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	SearchKeys(ctx context.Context, index string, f filter.Expression, limit int) ([]string, error)
}

// HNSWConfig holds HNSW graph parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Config describes the FT vector index.
type Config struct {
	Dimensions int
	// Model is the embedding model every record must carry. Empty skips the check.
	Model     string
	Algorithm db.VectorAlgorithm
	HNSW      HNSWConfig
}

// Repo is a Redis/Valkey vector index keyed by chunk ID.
type Repo struct {
	store store
	cfg   Config
}

// New creates a chunk repository.
func New(s store, cfg Config) *Repo {
	if cfg.Algorithm == "" {
		cfg.Algorithm = db.VectorHNSW
	}
	return &Repo{store: s, cfg: cfg}
}

// EnsureIndex creates the FT index when it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	if r.cfg.Dimensions <= 0 {
		return fmt.Errorf("chunk index needs positive dimensions, got %d: %w",
			r.cfg.Dimensions, domain.ErrInvalidConfiguration)
	}

	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", indexName, err)
	}
	if exists {
		return nil
	}

	def, err := r.indexDefinition()
	if err != nil {
		return fmt.Errorf("build index %s: %w: %w", indexName, domain.ErrInvalidConfiguration, err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", indexName, err)
	}
	return nil
}

func (r *Repo) indexDefinition() (*db.IndexDefinition, error) {
	b := db.NewIndex(indexName).
		Prefix(keyPrefix).
		Tag(filter.KeySubject).
		Tag(filter.KeyUnit).
		Tag(filter.KeyDocument).
		Numeric(fieldSeq)
	spec := db.VectorSpec{Algorithm: r.cfg.Algorithm, Dim: r.cfg.Dimensions, Distance: db.DistanceCosine}
	if spec.Algorithm == db.VectorHNSW {
		spec.M, spec.EFConstruction = r.cfg.HNSW.M, r.cfg.HNSW.EFConstruct
	}
	return b.Vector(fieldVector, spec).Build()
}

// Upsert writes records as hashes. Each HSET is atomic per record; an
// overwritten record keeps its insertion sequence.
func (r *Repo) Upsert(ctx context.Context, records []domchunk.Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if err := r.checkDim(len(rec.Vector())); err != nil {
			return fmt.Errorf("record %s: %w", rec.ID(), err)
		}
		if r.cfg.Model != "" && rec.Model() != r.cfg.Model {
			return fmt.Errorf("record %s embedded with %q, index expects %q: %w",
				rec.ID(), rec.Model(), r.cfg.Model, domain.ErrInvalidConfiguration)
		}
	}

	keys := make([]string, len(records))
	for i, rec := range records {
		keys[i] = chunkKey(rec.ID())
	}

	seqs, err := r.assignSeqs(ctx, keys)
	if err != nil {
		return err
	}

	items := make([]db.HashSetItem, len(records))
	for i, rec := range records {
		items[i] = db.HashSetItem{Key: keys[i], Fields: buildHashFields(rec, seqs[i])}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset %d chunks: %w", len(items), err)
	}
	return nil
}

// assignSeqs reuses stored sequences and allocates a contiguous block for new keys.
func (r *Repo) assignSeqs(ctx context.Context, keys []string) ([]int64, error) {
	existing, err := r.store.HGetMulti(ctx, keys, fieldSeq)
	if err != nil {
		return nil, fmt.Errorf("read chunk sequences: %w", err)
	}

	seqs := make([]int64, len(keys))
	missing := 0
	for i, raw := range existing {
		n, parseErr := strconv.ParseInt(raw, 10, 64)
		if raw == "" || parseErr != nil {
			seqs[i] = -1
			missing++
			continue
		}
		seqs[i] = n
	}
	if missing == 0 {
		return seqs, nil
	}

	last, err := r.store.IncrBy(ctx, seqKey, int64(missing))
	if err != nil {
		return nil, fmt.Errorf("allocate chunk sequences: %w", err)
	}
	next := last - int64(missing) + 1
	for i := range seqs {
		if seqs[i] < 0 {
			seqs[i] = next
			next++
		}
	}
	return seqs, nil
}

// Query returns up to k chunks nearest to vector that match f.
// A missing FT index is treated as an empty index.
func (r *Repo) Query(ctx context.Context, vector []float32, k int, f filter.Expression) ([]index.Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidQuery)
	}
	if err := r.checkDim(len(vector)); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName,
		Filters:      f,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("search knn %s: %w", indexName, err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	hits := make([]index.Hit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		c, seq, err := parseHashFields(chunkID(entry.Key), entry.Fields)
		if err != nil {
			return nil, fmt.Errorf("parse search entry: %w", err)
		}
		hits = append(hits, index.Hit{Chunk: c, Score: entry.Score, Seq: seq})
	}
	return index.Rank(hits, k), nil
}

// Delete removes records by chunk ID. Missing IDs are ignored.
func (r *Repo) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = chunkKey(id)
	}
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("del %d chunks: %w", len(keys), err)
	}
	return nil
}

// PruneDocument deletes the chunks of docID whose IDs are not in keep and
// returns how many were removed.
func (r *Repo) PruneDocument(ctx context.Context, docID string, keep []string) (int, error) {
	expr, err := documentScope(docID)
	if err != nil {
		return 0, err
	}
	keys, err := r.store.SearchKeys(ctx, indexName, expr, pruneLimit)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("search chunks of %s: %w", docID, err)
	}

	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[chunkKey(id)] = struct{}{}
	}
	stale := keys[:0]
	for _, k := range keys {
		if _, ok := kept[k]; !ok {
			stale = append(stale, k)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := r.store.DelMulti(ctx, stale); err != nil {
		return 0, fmt.Errorf("del %d stale chunks of %s: %w", len(stale), docID, err)
	}
	return len(stale), nil
}

func documentScope(docID string) (filter.Expression, error) {
	cond, err := filter.NewMatch(filter.KeyDocument, docID)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("document filter: %w", err)
	}
	return filter.NewExpression([]filter.Condition{cond}, nil)
}

// Count returns the number of indexed chunks.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, indexName, "*")
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("search count %s: %w", indexName, err)
	}
	return n, nil
}

func (r *Repo) checkDim(n int) error {
	if n == 0 || (r.cfg.Dimensions > 0 && n != r.cfg.Dimensions) {
		return fmt.Errorf("vector has %d dims, index has %d: %w", n, r.cfg.Dimensions, domain.ErrVectorDimMismatch)
	}
	return nil
}
