package quizrag

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"

	dombatch "github.com/kailas-cloud/quizrag/internal/domain/batch"
	domdoc "github.com/kailas-cloud/quizrag/internal/domain/document"
	"github.com/kailas-cloud/quizrag/internal/domain/question"
	domret "github.com/kailas-cloud/quizrag/internal/domain/retrieval"
	healthuc "github.com/kailas-cloud/quizrag/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/quizrag/internal/usecase/retrieval"
)

// --- ingestUseCase mock ---

type mockIngestUC struct {
	ingestFn     func(ctx context.Context, doc domdoc.Document) (int, error)
	ingestManyFn func(ctx context.Context, docs []domdoc.Document) []dombatch.Result
}

func (m *mockIngestUC) Ingest(ctx context.Context, doc domdoc.Document) (int, error) {
	return m.ingestFn(ctx, doc)
}

func (m *mockIngestUC) IngestMany(ctx context.Context, docs []domdoc.Document) []dombatch.Result {
	return m.ingestManyFn(ctx, docs)
}

// --- retrievalUseCase mock ---

type mockRetrievalUC struct {
	retrieveFn func(ctx context.Context, q retrievaluc.Query) (domret.Result, error)
}

func (m *mockRetrievalUC) Retrieve(ctx context.Context, q retrievaluc.Query) (domret.Result, error) {
	return m.retrieveFn(ctx, q)
}

// --- generationUseCase mock ---

type mockGenerationUC struct {
	generateFn func(ctx context.Context, spec question.Spec) (question.BatchResult, error)
}

func (m *mockGenerationUC) Generate(ctx context.Context, spec question.Spec) (question.BatchResult, error) {
	return m.generateFn(ctx, spec)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report { return m.report }

// --- public provider fakes ---

// keywordEmbedder puts texts on one axis per keyword plus a small bias.
type keywordEmbedder struct {
	keywords []string
	err      error
}

func (e *keywordEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	if e.err != nil {
		return BatchEmbeddingResult{}, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(e.keywords)+1)
		for j, k := range e.keywords {
			if strings.Contains(text, k) {
				vec[j] = 1
			}
		}
		vec[len(e.keywords)] = 0.1
		out[i] = vec
	}
	return BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

// draftCompleter returns a distinct valid draft per call.
type draftCompleter struct {
	calls atomic.Int32
}

var draftStems = []string{
	"일차함수 y=ax+b에서 a가 의미하는 것은 무엇인가?",
	"다음 중 직선의 기울어진 정도를 나타내는 값으로 옳은 것은?",
	"그래프가 y축과 만나는 점의 좌표를 결정하는 상수는 무엇인가?",
	"두 점을 지나는 직선에서 변화율을 구하는 방법으로 알맞은 것은?",
}

func (c *draftCompleter) Complete(_ context.Context, _ Prompt) (string, error) {
	n := int(c.calls.Add(1)) - 1
	b, _ := json.Marshal(map[string]any{
		"question":       draftStems[n%len(draftStems)],
		"options":        []string{"기울기", "y절편", "x절편", "원점", "상수항"},
		"correct_answer": 1,
		"explanation":    "a는 직선의 기울기이며 x가 1 증가할 때 y의 증가량이다.",
	})
	return string(b), nil
}

// gradingCompleter drafts like draftCompleter and answers rerank and
// quality prompts with fixed scores.
type gradingCompleter struct {
	draftCompleter
	reranks atomic.Int32
	grades  atomic.Int32
}

func (c *gradingCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	switch {
	case strings.Contains(p.User, "관련 있는지"):
		c.reranks.Add(1)
		n := strings.Count(p.User, "[참고자료 ")
		scores := make([]int, n)
		scores[n-1] = 10
		b, _ := json.Marshal(map[string]any{"scores": scores})
		return string(b), nil
	case strings.Contains(p.User, "평가 기준"):
		c.grades.Add(1)
		scores := map[string]any{}
		for _, k := range question.Criteria {
			scores[k] = map[string]any{"score": 4, "reason": "양호"}
		}
		b, _ := json.Marshal(map[string]any{"scores": scores, "summary": "좋은 문제"})
		return string(b), nil
	}
	return c.draftCompleter.Complete(ctx, p)
}
