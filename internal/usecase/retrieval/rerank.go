package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quizrag/internal/domain"
	domret "github.com/kailas-cloud/quizrag/internal/domain/retrieval"
	"github.com/kailas-cloud/quizrag/internal/retry"
)

// Rerank prompt settings.
const (
	MaxRelevance   = 10
	rerankExcerpt  = 600 // runes per passage in the prompt
	rerankTokens   = 200
	rerankTemp     = 0
	rerankSystem   = "당신은 검색 결과의 관련성을 판정하는 평가자입니다. JSON만 출력하세요."
	rerankHeader   = "질문과 각 참고자료가 얼마나 관련 있는지 0~10점 정수로 평가하세요.\n\n질문: %s\n\n"
	rerankFormat   = "출력 형식 (JSON만 출력, 참고자료 순서대로 %d개):\n{\"scores\": [점수1, 점수2, ...]}"
	rerankPassages = "[참고자료 %d]\n%s\n\n"
)

// LLMReranker scores query/passage pairs with a chat model in one call.
type LLMReranker struct {
	completer domain.Completer
	policy    retry.Policy
	logger    *zap.Logger
}

// NewLLMReranker creates a reranker backed by completer.
func NewLLMReranker(completer domain.Completer, policy retry.Policy, logger *zap.Logger) *LLMReranker {
	if policy.MaxAttempts == 0 {
		policy = retry.Default()
	}
	return &LLMReranker{completer: completer, policy: policy, logger: logger}
}

// Rerank returns one relevance in [0, 1] per passage.
func (r *LLMReranker) Rerank(ctx context.Context, query string, passages []domret.Passage) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, rerankHeader, query)
	for i, p := range passages {
		fmt.Fprintf(&b, rerankPassages, i+1, excerpt(p.Chunk.Text(), rerankExcerpt))
	}
	fmt.Fprintf(&b, rerankFormat, len(passages))

	prompt := domain.Prompt{
		System:      rerankSystem,
		User:        b.String(),
		JSON:        true,
		Temperature: rerankTemp,
		MaxTokens:   rerankTokens,
	}
	policy := r.policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		r.logger.Warn("Retrying rerank", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	}
	raw, err := retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		return r.completer.Complete(ctx, prompt)
	})
	if err != nil {
		return nil, fmt.Errorf("rerank completion: %w", err)
	}
	return parseRelevance(raw, len(passages))
}

func parseRelevance(raw string, n int) ([]float64, error) {
	start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("rerank reply contains no JSON object")
	}
	var w struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &w); err != nil {
		return nil, fmt.Errorf("invalid rerank JSON: %w", err)
	}
	if len(w.Scores) != n {
		return nil, fmt.Errorf("rerank reply has %d scores for %d passages", len(w.Scores), n)
	}
	out := make([]float64, n)
	for i, s := range w.Scores {
		out[i] = min(max(s, 0), MaxRelevance) / MaxRelevance
	}
	return out, nil
}

func excerpt(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}
