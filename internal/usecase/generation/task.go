package generation

import (
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quizrag/internal/domain/question"
)

// state is the lifecycle stage of a single question.
type state string

const (
	statePending      state = "PENDING"
	stateContextReady state = "CONTEXT_READY"
	stateDrafted      state = "DRAFTED"
	stateValidated    state = "VALIDATED"
	stateRejected     state = "REJECTED"
	stateFailed       state = "FAILED"
)

// task is one question position in a batch.
type task struct {
	position   int
	difficulty question.Difficulty
	kind       question.Kind
	subject    string
	unit       string
	query      string
	state      state
	logger     *zap.Logger
}

func (t *task) to(s state, fields ...zap.Field) {
	t.logger.Debug("Question state change",
		append([]zap.Field{
			zap.Int("position", t.position),
			zap.String("from", string(t.state)),
			zap.String("to", string(s)),
		}, fields...)...,
	)
	t.state = s
}

// queryFocus varies retrieval across positions when no topic is given.
var queryFocus = []string{"개념", "예제", "응용", "문제", "정의", "계산", "공식", "원리"}

// planTasks lays out positions in (bucket, sequence) order.
func planTasks(spec question.Spec, buckets []question.Bucket, logger *zap.Logger) []*task {
	tasks := make([]*task, 0, spec.Count)
	for _, b := range buckets {
		for range b.Count {
			p := len(tasks)
			tasks = append(tasks, &task{
				position:   p,
				difficulty: b.Difficulty,
				kind:       question.Kinds[p%len(question.Kinds)],
				subject:    spec.Subject,
				unit:       spec.Unit,
				query:      queryFor(spec, p),
				state:      statePending,
				logger:     logger,
			})
		}
	}
	return tasks
}

func queryFor(spec question.Spec, position int) string {
	if spec.Topic != "" {
		return spec.Topic
	}
	parts := make([]string, 0, 3)
	for _, s := range []string{spec.Subject, spec.Unit} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	parts = append(parts, queryFocus[position%len(queryFocus)])
	return strings.Join(parts, " ")
}
