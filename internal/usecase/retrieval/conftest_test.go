package retrieval

import (
	"context"

	"github.com/kailas-cloud/quizrag/internal/domain"
	"github.com/kailas-cloud/quizrag/internal/domain/chunk"
	"github.com/kailas-cloud/quizrag/internal/domain/filter"
	"github.com/kailas-cloud/quizrag/internal/domain/index"
	domret "github.com/kailas-cloud/quizrag/internal/domain/retrieval"
)

// --- Mocks ---

type mockEmbedder struct {
	vec []float32
	err error
	got string
}

func (m *mockEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	m.got = text
	return m.vec, m.err
}

type mockIndex struct {
	hits    []index.Hit
	err     error
	gotK    int
	gotExpr filter.Expression
}

func (m *mockIndex) Query(_ context.Context, _ []float32, k int, f filter.Expression) ([]index.Hit, error) {
	m.gotK = k
	m.gotExpr = f
	return m.hits, m.err
}

func hit(id string, score float64) index.Hit {
	return index.Hit{
		Chunk: chunk.Reconstruct(id, "doc", 0, 0, 4, "text "+id, "", "수학", "일차함수"),
		Score: score,
	}
}

func ptr(f float64) *float64 { return &f }

type mockReranker struct {
	scores []float64
	err    error
	query  string
	got    []domret.Passage
}

func (m *mockReranker) Rerank(_ context.Context, query string, passages []domret.Passage) ([]float64, error) {
	m.query = query
	m.got = passages
	return m.scores, m.err
}

type mockCompleter struct {
	reply string
	err   error
	calls int
	got   domain.Prompt
}

func (m *mockCompleter) Complete(_ context.Context, p domain.Prompt) (string, error) {
	m.calls++
	m.got = p
	return m.reply, m.err
}
