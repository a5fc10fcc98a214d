package chi

import (
	"context"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	dombatch "github.com/kailas-cloud/quizrag/internal/domain/batch"
	"github.com/kailas-cloud/quizrag/internal/domain/chunk"
	"github.com/kailas-cloud/quizrag/internal/domain/document"
	"github.com/kailas-cloud/quizrag/internal/domain/question"
	domret "github.com/kailas-cloud/quizrag/internal/domain/retrieval"
	healthuc "github.com/kailas-cloud/quizrag/internal/usecase/health"
	"github.com/kailas-cloud/quizrag/internal/usecase/retrieval"
)

type mockIngester struct {
	ingestFn func(ctx context.Context, doc document.Document) (int, error)
	manyFn   func(ctx context.Context, docs []document.Document) []dombatch.Result
}

func (m *mockIngester) Ingest(ctx context.Context, doc document.Document) (int, error) {
	return m.ingestFn(ctx, doc)
}

func (m *mockIngester) IngestMany(ctx context.Context, docs []document.Document) []dombatch.Result {
	return m.manyFn(ctx, docs)
}

type mockRetriever struct {
	got      retrieval.Query
	result   domret.Result
	err      error
	retrieve func(q retrieval.Query) (domret.Result, error)
}

func (m *mockRetriever) Retrieve(_ context.Context, q retrieval.Query) (domret.Result, error) {
	m.got = q
	if m.retrieve != nil {
		return m.retrieve(q)
	}
	return m.result, m.err
}

type mockGenerator struct {
	got    question.Spec
	result question.BatchResult
	err    error
}

func (m *mockGenerator) Generate(_ context.Context, spec question.Spec) (question.BatchResult, error) {
	m.got = spec
	return m.result, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

type fixture struct {
	ingest    *mockIngester
	retrieval *mockRetriever
	generator *mockGenerator
	health    *mockHealth
	router    *gochi.Mux
}

func newFixture() *fixture {
	f := &fixture{
		ingest:    &mockIngester{},
		retrieval: &mockRetriever{},
		generator: &mockGenerator{},
		health:    &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}},
		router:    gochi.NewRouter(),
	}
	NewServer(f.ingest, f.retrieval, f.generator, f.health, zap.NewNop()).WithMaxQuestions(20).Routes(f.router)
	return f
}

func slopePassage() domret.Passage {
	c := chunk.New("math-1", 0, 0, 31, "일차함수 y=ax+b에서 a는 기울기이다.", "math.md", "수학", "일차함수")
	return domret.Passage{Chunk: c, Score: 0.91}
}

func sampleQuestion() question.Question {
	q, err := question.New("q-1", question.Draft{
		Stem:        "일차함수 y=ax+b에서 a가 나타내는 것은?",
		Options:     []string{"y절편", "기울기", "x절편", "원점", "상수항"},
		Correct:     1,
		Explanation: "a는 기울기로 x가 1 증가할 때 y의 변화량이다.",
	}, question.Meta{Difficulty: question.Easy, Kind: question.Concept, Subject: "수학", Unit: "일차함수"},
		question.Provenance{ChunkIDs: []string{"math-1-c0000"}, Model: "chat", GeneratedAt: time.Unix(1700000000, 0)})
	if err != nil {
		panic(err)
	}
	return q
}
