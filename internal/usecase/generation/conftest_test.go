package generation

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quizrag/internal/domain"
	"github.com/kailas-cloud/quizrag/internal/domain/chunk"
	"github.com/kailas-cloud/quizrag/internal/domain/question"
	domret "github.com/kailas-cloud/quizrag/internal/domain/retrieval"
	"github.com/kailas-cloud/quizrag/internal/retry"
	"github.com/kailas-cloud/quizrag/internal/usecase/retrieval"
)

// --- Mocks ---

type mockRetriever struct {
	mu      sync.Mutex
	result  domret.Result
	err     error
	queries []string
}

func (m *mockRetriever) Retrieve(_ context.Context, q retrieval.Query) (domret.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q.Text)
	return m.result, m.err
}

func passages(ids ...string) domret.Result {
	var r domret.Result
	for i, id := range ids {
		r.Passages = append(r.Passages, domret.Passage{
			Chunk: chunk.Reconstruct(id, "doc", i, 0, 10, "일차함수 y=ax+b에서 a는 기울기이다.", "", "수학", "일차함수"),
			Score: 0.9,
		})
	}
	return r
}

// scriptedCompleter answers prompts with reply and counts calls.
type scriptedCompleter struct {
	mu      sync.Mutex
	calls   int
	prompts []domain.Prompt
	reply   func(call int, p domain.Prompt) (string, error)
}

func (c *scriptedCompleter) Complete(ctx context.Context, p domain.Prompt) (string, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.prompts = append(c.prompts, p)
	c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.reply(n, p)
}

func (c *scriptedCompleter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type wireQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

func draftJSON(stem string, correct int, explanation string, options ...string) string {
	if len(options) == 0 {
		options = []string{"기울기", "y절편", "x절편", "원점", "상수항"}
	}
	b, _ := json.Marshal(wireQuestion{Question: stem, Options: options, CorrectAnswer: correct, Explanation: explanation})
	return string(b)
}

// goodDraft returns a valid draft whose stem is unique per n.
func goodDraft(n int) string {
	stems := []string{
		"일차함수 y=ax+b에서 a가 의미하는 것은 무엇인가?",
		"다음 중 직선의 기울어진 정도를 나타내는 값으로 옳은 것은?",
		"그래프가 y축과 만나는 점의 좌표를 결정하는 상수는 무엇인가?",
		"두 점을 지나는 직선에서 변화율을 구하는 방법으로 알맞은 것은?",
		"함수의 식에서 x의 계수가 음수일 때 그래프의 모양으로 옳은 것은?",
		"평행한 두 직선의 관계에 대한 설명으로 옳은 것을 고르시오.",
	}
	return draftJSON(stems[n%len(stems)], 1, "a는 직선의 기울기를 나타내며 x가 1 증가할 때 y의 증가량이다.")
}

func isHintPrompt(p domain.Prompt) bool {
	return strings.Contains(p.User, "힌트를 2개")
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, Timeout: time.Second}
}

func newTestService(t *testing.T, r Retriever, c Completer, cfg Config) *Service {
	t.Helper()
	prompts, err := NewPrompts(Templates{})
	if err != nil {
		t.Fatalf("NewPrompts: %v", err)
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = fastPolicy()
	}
	if cfg.Model == "" {
		cfg.Model = "chat-model"
	}
	return New(r, c, prompts, cfg, zap.NewNop())
}

func isAssessmentPrompt(p domain.Prompt) bool {
	return strings.Contains(p.User, "평가 기준")
}

// assessmentJSON scores the five criteria in order.
func assessmentJSON(scores ...int) string {
	type entry struct {
		Score  int    `json:"score"`
		Reason string `json:"reason"`
	}
	m := make(map[string]entry, len(scores))
	for i, c := range question.Criteria {
		m[c] = entry{Score: scores[i], Reason: c + " 평가"}
	}
	b, _ := json.Marshal(map[string]any{"scores": m, "summary": "총평"})
	return string(b)
}
