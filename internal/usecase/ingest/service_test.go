package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quizrag/internal/chunker"
	"github.com/kailas-cloud/quizrag/internal/domain"
	dombatch "github.com/kailas-cloud/quizrag/internal/domain/batch"
	"github.com/kailas-cloud/quizrag/internal/domain/document"
	"github.com/kailas-cloud/quizrag/internal/repository/memory"
)

func newChunker(t *testing.T, size, overlap int) *chunker.Chunker {
	t.Helper()
	c, err := chunker.New(size, overlap)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	return c
}

func mustDoc(t *testing.T, id, text string) document.Document {
	t.Helper()
	doc, err := document.New(id, text, "test.md", "수학", "일차함수")
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return doc
}

func TestIngest_IndexesAllChunks(t *testing.T) {
	idx := memory.New()
	svc := New(newChunker(t, 50, 10), &mockEmbedder{}, idx, zap.NewNop())

	doc := mustDoc(t, "math-1", strings.Repeat("일차함수 y=ax+b에서 a는 기울기, b는 y절편이다. ", 6))
	n, err := svc.Ingest(context.Background(), doc)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n < 2 {
		t.Fatalf("expected several chunks, got %d", n)
	}
	if got, _ := idx.Count(context.Background()); got != n {
		t.Errorf("index holds %d records, want %d", got, n)
	}
	rec, err := idx.Get(context.Background(), "math-1-c0000")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Model() != "test-model" || rec.Chunk().Subject() != "수학" {
		t.Errorf("unexpected record: model=%s subject=%s", rec.Model(), rec.Chunk().Subject())
	}
}

func TestIngest_ReingestIsIdempotent(t *testing.T) {
	idx := memory.New()
	svc := New(newChunker(t, 20, 5), &mockEmbedder{}, idx, zap.NewNop())
	doc := mustDoc(t, "doc", strings.Repeat("가나다라마 ", 10))

	first, _ := svc.Ingest(context.Background(), doc)
	second, err := svc.Ingest(context.Background(), doc)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if first != second {
		t.Errorf("chunk counts differ: %d vs %d", first, second)
	}
	if got, _ := idx.Count(context.Background()); got != first {
		t.Errorf("re-ingest must overwrite, index holds %d", got)
	}
}

func TestIngest_ShorterReingestPrunesStaleChunks(t *testing.T) {
	ctx := context.Background()
	idx := memory.New()
	svc := New(newChunker(t, 20, 5), &mockEmbedder{}, idx, zap.NewNop())

	long, err := svc.Ingest(ctx, mustDoc(t, "doc", strings.Repeat("가나다라마 ", 10)))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	other, _ := svc.Ingest(ctx, mustDoc(t, "other", strings.Repeat("바사아자차 ", 10)))

	short, err := svc.Ingest(ctx, mustDoc(t, "doc", "가나다라마 바사"))
	if err != nil {
		t.Fatalf("re-Ingest: %v", err)
	}
	if short >= long {
		t.Fatalf("expected fewer chunks on re-ingest, got %d then %d", long, short)
	}
	if got, _ := idx.Count(ctx); got != short+other {
		t.Errorf("index holds %d records, want %d", got, short+other)
	}
	if _, err := idx.Get(ctx, fmt.Sprintf("doc-c%04d", long-1)); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("stale tail chunk must be gone, got %v", err)
	}
}

func TestIngest_PruneFailureKeepsNewVersion(t *testing.T) {
	idx := newRecordingIndex()
	idx.pruneErr = errors.New("search unavailable")
	svc := New(newChunker(t, 20, 5), &mockEmbedder{}, idx, zap.NewNop())

	n, err := svc.Ingest(context.Background(), mustDoc(t, "doc", strings.Repeat("a ", 30)))
	if err != nil {
		t.Fatalf("cleanup failure must not fail ingest: %v", err)
	}
	if idx.count() != n || len(idx.deleted) != 0 {
		t.Errorf("new chunks must stay: count %d of %d, deleted %v", idx.count(), n, idx.deleted)
	}
}

func TestIngest_EmbeddingFailureWritesNothing(t *testing.T) {
	idx := newRecordingIndex()
	svc := New(newChunker(t, 20, 5), &mockEmbedder{err: domain.ErrEmbeddingUnavailable}, idx, zap.NewNop())

	_, err := svc.Ingest(context.Background(), mustDoc(t, "doc", strings.Repeat("a ", 50)))
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if idx.calls != 0 {
		t.Errorf("index must not be touched, got %d calls", idx.calls)
	}
}

func TestIngest_VectorCountMismatch(t *testing.T) {
	svc := New(newChunker(t, 20, 5), &mockEmbedder{short: true}, newRecordingIndex(), zap.NewNop())
	_, err := svc.Ingest(context.Background(), mustDoc(t, "doc", strings.Repeat("a ", 50)))
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestIngest_RollbackOnPartialUpsert(t *testing.T) {
	idx := newRecordingIndex()
	idx.failOn = 2
	idx.failErr = errors.New("connection reset")
	svc := New(newChunker(t, 10, 2), &mockEmbedder{}, idx, zap.NewNop())

	// enough text for more than one upsert batch
	doc := mustDoc(t, "big", strings.Repeat("x", 10*upsertBatch))
	_, err := svc.Ingest(context.Background(), doc)
	if err == nil {
		t.Fatal("expected upsert failure")
	}
	if !errors.Is(err, idx.failErr) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
	if idx.count() != 0 {
		t.Errorf("expected full rollback, %d records left", idx.count())
	}
	if len(idx.deleted) <= upsertBatch {
		t.Errorf("expected records from both batches deleted, got %d", len(idx.deleted))
	}
}

func TestIngestMany_IsolatesFailures(t *testing.T) {
	idx := newRecordingIndex()
	idx.failErr = errors.New("write failed")
	idx.failDocs["bad"] = true
	svc := New(newChunker(t, 20, 5), &mockEmbedder{}, idx, zap.NewNop()).WithConcurrency(2)

	docs := []document.Document{
		mustDoc(t, "good-1", strings.Repeat("하나 ", 10)),
		mustDoc(t, "bad", strings.Repeat("둘 ", 10)),
		mustDoc(t, "good-2", strings.Repeat("셋 ", 10)),
	}
	results := svc.IngestMany(context.Background(), docs)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []dombatch.ItemStatus{dombatch.StatusOK, dombatch.StatusError, dombatch.StatusOK} {
		if results[i].Status() != want {
			t.Errorf("results[%d] = %s, want %s (%v)", i, results[i].Status(), want, results[i].Err())
		}
		if results[i].ID() != docs[i].ID() {
			t.Errorf("results[%d] id = %s, order must follow input", i, results[i].ID())
		}
	}
	if results[0].Chunks() == 0 {
		t.Error("expected chunk count for successful document")
	}
	for id := range idx.records {
		if strings.HasPrefix(id, "bad-") {
			t.Errorf("failed document left record %s", id)
		}
	}
}

func TestIngestMany_TooLarge(t *testing.T) {
	svc := New(newChunker(t, 20, 5), &mockEmbedder{}, newRecordingIndex(), zap.NewNop()).WithMaxBatchSize(2)

	docs := make([]document.Document, 3)
	for i := range docs {
		docs[i] = mustDoc(t, fmt.Sprintf("d%d", i), "text")
	}
	for _, r := range svc.IngestMany(context.Background(), docs) {
		if r.Status() != dombatch.StatusError || !errors.Is(r.Err(), domain.ErrInvalidQuery) {
			t.Errorf("expected batch size error, got %s %v", r.Status(), r.Err())
		}
	}
}

func TestIngestMany_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := New(newChunker(t, 20, 5), &mockEmbedder{}, newRecordingIndex(), zap.NewNop())

	results := svc.IngestMany(ctx, []document.Document{mustDoc(t, "a", "text")})
	if !errors.Is(results[0].Err(), context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", results[0].Err())
	}
}
