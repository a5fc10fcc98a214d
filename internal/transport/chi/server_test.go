package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kailas-cloud/quizrag/internal/domain"
	dombatch "github.com/kailas-cloud/quizrag/internal/domain/batch"
	"github.com/kailas-cloud/quizrag/internal/domain/document"
	"github.com/kailas-cloud/quizrag/internal/domain/question"
	domret "github.com/kailas-cloud/quizrag/internal/domain/retrieval"
	healthuc "github.com/kailas-cloud/quizrag/internal/usecase/health"
)

func do(f *fixture, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestIngestDocument(t *testing.T) {
	f := newFixture()
	var got document.Document
	f.ingest.ingestFn = func(_ context.Context, doc document.Document) (int, error) {
		got = doc
		return 3, nil
	}

	rr := do(f, http.MethodPost, "/documents",
		`{"id":"math-1","text":"일차함수 y=ax+b","subject":"수학","unit":"일차함수"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	resp := decode[IngestResponse](t, rr)
	if resp.DocumentID != "math-1" || resp.Chunks != 3 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if got.Subject() != "수학" || got.Unit() != "일차함수" {
		t.Errorf("tags not forwarded: %q %q", got.Subject(), got.Unit())
	}
}

func TestIngestDocument_Validation(t *testing.T) {
	f := newFixture()
	f.ingest.ingestFn = func(context.Context, document.Document) (int, error) {
		t.Fatal("ingester must not be called")
		return 0, nil
	}

	for name, body := range map[string]string{
		"bad json":      `{`,
		"unknown field": `{"id":"a","text":"b","tags":{}}`,
		"bad id":        `{"id":"a/b","text":"b"}`,
		"empty text":    `{"id":"a","text":""}`,
	} {
		t.Run(name, func(t *testing.T) {
			if rr := do(f, http.MethodPost, "/documents", body); rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d", rr.Code)
			}
		})
	}
}

func TestIngestDocument_EmbeddingUnavailable(t *testing.T) {
	f := newFixture()
	f.ingest.ingestFn = func(context.Context, document.Document) (int, error) {
		return 0, fmt.Errorf("embed chunks: %w", domain.ErrEmbeddingUnavailable)
	}

	rr := do(f, http.MethodPost, "/documents", `{"id":"a","text":"b"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decode[ErrorResponse](t, rr)
	if resp.Code != CodeEmbeddingProvider || resp.Message != domain.ErrEmbeddingUnavailable.Error() {
		t.Errorf("unexpected error: %+v", resp)
	}
}

func TestIngestBatch_MixedOutcomes(t *testing.T) {
	f := newFixture()
	f.ingest.manyFn = func(_ context.Context, docs []document.Document) []dombatch.Result {
		out := make([]dombatch.Result, len(docs))
		for i, d := range docs {
			if d.ID() == "fail" {
				out[i] = dombatch.NewError(d.ID(), domain.ErrEmbeddingUnavailable)
				continue
			}
			out[i] = dombatch.NewOK(d.ID(), 2)
		}
		return out
	}

	rr := do(f, http.MethodPost, "/documents/batch",
		`{"items":[{"id":"ok-1","text":"a"},{"id":"bad/id","text":"b"},{"id":"fail","text":"c"},{"id":"ok-2","text":"d"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decode[BatchIngestResponse](t, rr)
	if resp.Succeeded != 2 || resp.Failed != 2 || resp.Chunks != 4 {
		t.Errorf("unexpected counts: %+v", resp)
	}
	wantIDs := []string{"ok-1", "bad/id", "fail", "ok-2"}
	for i, it := range resp.Items {
		if it.ID != wantIDs[i] {
			t.Errorf("item %d: id %q, want %q", i, it.ID, wantIDs[i])
		}
	}
	if resp.Items[1].Error == nil || resp.Items[1].Error.Code != CodeValidationFailed {
		t.Errorf("invalid document must fail validation: %+v", resp.Items[1])
	}
	if resp.Items[2].Error == nil || resp.Items[2].Error.Code != CodeEmbeddingProvider {
		t.Errorf("ingest failure must carry its code: %+v", resp.Items[2])
	}
}

func TestIngestBatch_Empty(t *testing.T) {
	if rr := do(newFixture(), http.MethodPost, "/documents/batch", `{"items":[]}`); rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestRetrievePassages(t *testing.T) {
	f := newFixture()
	f.retrieval.result = domret.Result{Passages: []domret.Passage{slopePassage()}}

	rr := do(f, http.MethodGet, "/passages?q=%EA%B8%B0%EC%9A%B8%EA%B8%B0&k=3&subject=%EC%88%98%ED%95%99&threshold=0.5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	q := f.retrieval.got
	if q.Text != "기울기" || q.K != 3 || q.Subject != "수학" || q.Unit != "" {
		t.Errorf("unexpected query: %+v", q)
	}
	if q.Threshold == nil || *q.Threshold != 0.5 {
		t.Errorf("threshold not bound: %v", q.Threshold)
	}

	resp := decode[RetrieveResponse](t, rr)
	if resp.Total != 1 || resp.Items[0].ChunkID != "math-1-c0000" || resp.Items[0].Score != 0.91 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if !strings.HasPrefix(resp.Context, "[참고자료 1] (과목: 수학, 단원: 일차함수)") {
		t.Errorf("unexpected context: %q", resp.Context)
	}
}

func TestRetrievePassages_DefaultsOmitted(t *testing.T) {
	f := newFixture()
	rr := do(f, http.MethodGet, "/passages?q=x", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if f.retrieval.got.K != 0 || f.retrieval.got.Threshold != nil {
		t.Errorf("missing params must stay unset: %+v", f.retrieval.got)
	}
	if resp := decode[RetrieveResponse](t, rr); resp.Items == nil || resp.Total != 0 {
		t.Errorf("empty result must be an empty list: %+v", resp)
	}
}

func TestRetrievePassages_BadParams(t *testing.T) {
	for _, target := range []string{"/passages", "/passages?q=x&k=abc", "/passages?q=x&threshold=high"} {
		if rr := do(newFixture(), http.MethodGet, target, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", target, rr.Code)
		}
	}
}

func TestRetrievePassages_InvalidQuery(t *testing.T) {
	f := newFixture()
	f.retrieval.err = fmt.Errorf("k exceeds 100: %w", domain.ErrInvalidQuery)

	rr := do(f, http.MethodGet, "/passages?q=x&k=500", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != CodeInvalidQuery {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestGenerateQuestions(t *testing.T) {
	f := newFixture()
	q := sampleQuestion()
	failures := []question.Failure{{
		Position: 1, Difficulty: question.Hard, Reason: "insufficient context",
		Err: domain.ErrInsufficientContext,
	}}
	f.generator.result = question.BatchResult{
		ID:        "batch-1",
		Questions: []question.Question{q},
		Failures:  failures,
		Stats:     question.NewStats(2, []question.Question{q}, failures, 1),
	}

	rr := do(f, http.MethodPost, "/questions",
		`{"count":2,"difficulty":{"easy":1,"hard":1},"subject":"수학","topic":"기울기의 의미","hints":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}

	spec := f.generator.got
	if spec.Count != 2 || spec.Mix != (question.Mix{Easy: 1, Hard: 1}) || spec.Topic != "기울기의 의미" || !spec.Hints {
		t.Errorf("unexpected spec: %+v", spec)
	}

	resp := decode[GenerateResponse](t, rr)
	if len(resp.Questions) != 1 || len(resp.Failures) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	got := resp.Questions[0]
	if got.CorrectAnswer != 2 {
		t.Errorf("correct_answer must be 1-based, got %d", got.CorrectAnswer)
	}
	if got.Options[got.CorrectAnswer-1] != "기울기" || got.Type != "concept" || got.Difficulty != "easy" {
		t.Errorf("unexpected question: %+v", got)
	}
	if resp.Failures[0].Code != CodeInsufficientContext || resp.Failures[0].Position != 1 {
		t.Errorf("unexpected failure: %+v", resp.Failures[0])
	}
	if resp.Stats.Requested != 2 || resp.Stats.ByDifficulty["easy"] != 1 || resp.Stats.Regenerations != 1 {
		t.Errorf("unexpected stats: %+v", resp.Stats)
	}
}

func TestGenerateQuestions_Quality(t *testing.T) {
	f := newFixture()
	a, err := question.NewAssessment(map[string]int{
		question.CriterionRelevance: 5, question.CriterionClarity: 4, question.CriterionCorrectness: 5,
		question.CriterionDistractors: 4, question.CriterionDifficulty: 4,
	}, nil, "명확한 문제")
	if err != nil {
		t.Fatalf("NewAssessment: %v", err)
	}
	plain := sampleQuestion()
	graded := plain.WithAssessment(a)
	f.generator.result = question.BatchResult{ID: "b", Questions: []question.Question{graded, plain}}

	rr := do(f, http.MethodPost, "/questions", `{"count":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	resp := decode[GenerateResponse](t, rr)
	q := resp.Questions[0].Quality
	if q == nil || q.Average != 4.4 || q.Scores["relevance"] != 5 || q.Summary != "명확한 문제" {
		t.Errorf("unexpected quality: %+v", q)
	}
	if resp.Questions[1].Quality != nil {
		t.Errorf("unassessed question must omit quality, got %+v", resp.Questions[1].Quality)
	}
}

func TestGenerateQuestions_Presets(t *testing.T) {
	tests := []struct {
		body string
		want question.Mix
	}{
		{`{"count":10}`, question.Mix{Easy: 3, Medium: 4, Hard: 3}},
		{`{"count":10,"preset":"hard"}`, question.Mix{Easy: 1, Medium: 2, Hard: 7}},
	}
	for _, tc := range tests {
		f := newFixture()
		if rr := do(f, http.MethodPost, "/questions", tc.body); rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tc.body, rr.Code)
		}
		if f.generator.got.Mix != tc.want {
			t.Errorf("%s: mix = %+v, want %+v", tc.body, f.generator.got.Mix, tc.want)
		}
	}
}

func TestGenerateQuestions_Validation(t *testing.T) {
	for _, body := range []string{
		`{"count":0}`,
		`{"count":21}`,
		`{"count":5,"preset":"insane"}`,
		`{"count":5,"difficulty":{"easy":0,"medium":0,"hard":0}}`,
		`{"count":5,"difficulty":{"easy":-1,"medium":2,"hard":0}}`,
	} {
		if rr := do(newFixture(), http.MethodPost, "/questions", body); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", body, rr.Code)
		}
	}
}

func TestGenerateQuestions_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   ErrorCode
	}{
		{context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout},
		{fmt.Errorf("draft: %w", domain.ErrGenerationProvider), http.StatusBadGateway, CodeGenerationProvider},
		{fmt.Errorf("limit: %w", domain.ErrRateLimited), http.StatusTooManyRequests, CodeRateLimited},
		{domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeVectorDimMismatch},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tc := range tests {
		f := newFixture()
		f.generator.err = tc.err
		rr := do(f, http.MethodPost, "/questions", `{"count":1}`)
		if rr.Code != tc.status {
			t.Errorf("%v: status = %d, want %d", tc.err, rr.Code, tc.status)
			continue
		}
		resp := decode[ErrorResponse](t, rr)
		if resp.Code != tc.code {
			t.Errorf("%v: code = %s, want %s", tc.err, resp.Code, tc.code)
		}
		if tc.code == CodeInternalError && resp.Message != "internal error" {
			t.Errorf("internal errors must not leak details: %q", resp.Message)
		}
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture()
	f.health.report = healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK, "generation": healthuc.CheckError},
	}

	rr := do(f, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("degraded must still be 200, got %d", rr.Code)
	}
	resp := decode[HealthResponse](t, rr)
	if resp.Status != "degraded" || resp.Checks["generation"] != "error" || resp.Version == "" {
		t.Errorf("unexpected response: %+v", resp)
	}

	f.health.report.Status = healthuc.Unhealthy
	if rr := do(f, http.MethodGet, "/health", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy: status = %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rr := do(newFixture(), http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("expected default Go collector output")
	}
}
