package ingest

import (
	"context"
	"sync"

	"github.com/kailas-cloud/quizrag/internal/domain/chunk"
)

// --- Mocks ---

type mockEmbedder struct {
	err   error
	short bool
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	n := len(texts)
	if m.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(len([]rune(texts[i]))), 1}
	}
	return out, nil
}

func (m *mockEmbedder) Model() string { return "test-model" }

// recordingIndex stores records in a map and fails the nth Upsert call when failOn > 0.
type recordingIndex struct {
	mu       sync.Mutex
	records  map[string]chunk.Record
	calls    int
	failOn   int
	failErr  error
	deleted  []string
	failDocs map[string]bool
	pruneErr error
}

func newRecordingIndex() *recordingIndex {
	return &recordingIndex{records: make(map[string]chunk.Record), failDocs: make(map[string]bool)}
}

func (m *recordingIndex) Upsert(_ context.Context, records []chunk.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, r := range records {
		m.records[r.ID()] = r
	}
	if m.failOn > 0 && m.calls == m.failOn {
		return m.failErr
	}
	if len(records) > 0 && m.failDocs[records[0].Chunk().DocumentID()] {
		return m.failErr
	}
	return nil
}

func (m *recordingIndex) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.records, id)
	}
	m.deleted = append(m.deleted, ids...)
	return nil
}

func (m *recordingIndex) PruneDocument(_ context.Context, docID string, keep []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pruneErr != nil {
		return 0, m.pruneErr
	}
	kept := make(map[string]bool, len(keep))
	for _, id := range keep {
		kept[id] = true
	}
	n := 0
	for id, r := range m.records {
		if r.Chunk().DocumentID() == docID && !kept[id] {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *recordingIndex) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
