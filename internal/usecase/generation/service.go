// Package generation turns retrieved passages into validated multiple-choice questions.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/quizrag/internal/domain"
	"github.com/kailas-cloud/quizrag/internal/domain/question"
	domret "github.com/kailas-cloud/quizrag/internal/domain/retrieval"
	"github.com/kailas-cloud/quizrag/internal/retry"
	"github.com/kailas-cloud/quizrag/internal/usecase/retrieval"
)

// Defaults applied by New when a Config field is zero.
const (
	DefaultMaxRegenerations    = 2
	DefaultMinExplanationRunes = 10
	DefaultDuplicateThreshold  = 0.8
	DefaultConcurrency         = 4
	DefaultPassages            = 3
	DefaultTemperature         = 0.7
	DefaultMaxTokens           = 1000
	DefaultMinQuality          = 3.5
	assessmentTemperature      = 0.1
)

const (
	correctionDuplicate = "이미 출제된 다음 문제와 너무 비슷합니다: %q. 다른 관점의 문제를 만드세요."
	correctionHintLeak  = "힌트에 정답 선택지의 문구가 그대로 들어 있습니다. 정답을 드러내지 마세요."
	correctionQuality   = "품질 평가 평균 %.1f점이 기준 %.1f점에 못 미칩니다. 가장 낮은 항목 %s(%d점): %s"
)

// Config tunes generation.
type Config struct {
	// Model is recorded in question provenance.
	Model               string
	MaxRegenerations    int
	MinExplanationRunes int
	DuplicateThreshold  float64
	Concurrency         int
	// Passages is the number of passages retrieved per question.
	Passages int
	// Threshold overrides the retriever's similarity threshold when set.
	Threshold   *float64
	Temperature float32
	MaxTokens   int
	Retry       retry.Policy
	// Assess enables the model-graded quality pass after validation. Drafts
	// averaging below MinQuality are rejected and regenerated.
	Assess     bool
	MinQuality float64
	// Questions counts outcomes with labels "difficulty" and "outcome". Optional.
	Questions *prometheus.CounterVec
}

// Service generates question batches.
type Service struct {
	retriever Retriever
	completer Completer
	prompts   *Prompts
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// New creates a generation service.
func New(r Retriever, c Completer, prompts *Prompts, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxRegenerations <= 0 {
		cfg.MaxRegenerations = DefaultMaxRegenerations
	}
	if cfg.MinExplanationRunes <= 0 {
		cfg.MinExplanationRunes = DefaultMinExplanationRunes
	}
	if cfg.DuplicateThreshold <= 0 {
		cfg.DuplicateThreshold = DefaultDuplicateThreshold
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Passages <= 0 {
		cfg.Passages = DefaultPassages
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Default()
	}
	if cfg.MinQuality <= 0 {
		cfg.MinQuality = DefaultMinQuality
	}
	return &Service{
		retriever: r, completer: c, prompts: prompts, cfg: cfg, logger: logger,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

type outcome struct {
	q             question.Question
	regenerations int
	err           error
}

// Generate produces spec.Count questions split by difficulty. Each position
// is generated independently; positions that produce no question are listed
// in the failure manifest, so len(Questions)+len(Failures) == spec.Count.
// After ctx is cancelled no new model calls are made and unfinished
// positions fail with context.Canceled.
func (s *Service) Generate(ctx context.Context, spec question.Spec) (question.BatchResult, error) {
	if err := spec.Validate(); err != nil {
		return question.BatchResult{}, fmt.Errorf("validate batch: %w", err)
	}
	buckets, err := spec.Mix.Allocate(spec.Count)
	if err != nil {
		return question.BatchResult{}, fmt.Errorf("allocate difficulties: %w", err)
	}

	batchID := s.newID()
	log := s.logger.With(zap.String("batch_id", batchID))
	tasks := planTasks(spec, buckets, log)
	outcomes := make([]outcome, len(tasks))
	reg := &stemRegistry{threshold: s.cfg.DuplicateThreshold}

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, t := range tasks {
		if err := ctx.Err(); err != nil {
			t.to(stateFailed)
			outcomes[i] = outcome{err: err}
			continue
		}
		g.Go(func() error {
			outcomes[i] = s.run(ctx, t, spec.Hints, reg)
			return nil
		})
	}
	_ = g.Wait()

	res := question.BatchResult{ID: batchID}
	regenerations := 0
	for i, o := range outcomes {
		t := tasks[i]
		regenerations += o.regenerations
		if o.err != nil {
			res.Failures = append(res.Failures, question.Failure{
				Position:   t.position,
				Difficulty: t.difficulty,
				Reason:     o.err.Error(),
				Err:        o.err,
			})
			s.count(t.difficulty, outcomeLabel(o.err))
			continue
		}
		res.Questions = append(res.Questions, o.q)
		s.count(t.difficulty, "generated")
	}
	res.Stats = question.NewStats(spec.Count, res.Questions, res.Failures, regenerations)

	log.Info("Question batch completed",
		zap.Int("requested", spec.Count),
		zap.Int("generated", res.Stats.Generated),
		zap.Int("failed", res.Stats.Failed),
		zap.Int("regenerations", regenerations),
	)
	return res, nil
}

// run drives one position through the question lifecycle.
func (s *Service) run(ctx context.Context, t *task, withHints bool, reg *stemRegistry) outcome {
	if err := ctx.Err(); err != nil {
		t.to(stateFailed)
		return outcome{err: err}
	}

	res, err := s.retriever.Retrieve(ctx, retrieval.Query{
		Text:      t.query,
		K:         s.cfg.Passages,
		Subject:   t.subject,
		Unit:      t.unit,
		Threshold: s.cfg.Threshold,
	})
	if err != nil {
		t.to(stateFailed, zap.Error(err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome{err: ctxErr}
		}
		return outcome{err: fmt.Errorf("retrieve context: %w", err)}
	}
	if res.Empty() {
		t.to(stateFailed, zap.String("query", t.query))
		return outcome{err: fmt.Errorf("no passages for %q: %w", t.query, domain.ErrInsufficientContext)}
	}
	t.to(stateContextReady, zap.Int("passages", len(res.Passages)))
	contextText := retrieval.FormatContext(res)

	q, used, err := s.draft(ctx, t, contextText, res, "", 1+s.cfg.MaxRegenerations)
	regenerations := used - 1
	if err != nil {
		return outcome{regenerations: regenerations, err: err}
	}

	if closest, ok := reg.admit(q.Stem(), false); !ok {
		t.logger.Debug("Near-duplicate stem, regenerating",
			zap.Int("position", t.position),
			zap.String("stem", q.Stem()),
			zap.String("similar_to", closest),
		)
		alt, n, altErr := s.draft(ctx, t, contextText, res, fmt.Sprintf(correctionDuplicate, closest), 1)
		regenerations += n
		if altErr == nil {
			q = alt
		}
		if _, unique := reg.admit(q.Stem(), true); !unique {
			q = q.WithTag(question.TagNearDuplicate)
		}
	}

	if withHints && ctx.Err() == nil {
		q = s.hints(ctx, t, contextText, q)
	}
	return outcome{q: q, regenerations: regenerations}
}

// draft asks for up to attempts drafts until one validates. It returns the
// number of model calls made.
func (s *Service) draft(
	ctx context.Context, t *task, contextText string, res domret.Result, correction string, attempts int,
) (question.Question, int, error) {
	reason := correction
	for n := 1; n <= attempts; n++ {
		system, user, err := s.prompts.Question(newPromptData(t, contextText, reason))
		if err != nil {
			t.to(stateFailed, zap.Error(err))
			return question.Question{}, n, err
		}
		raw, err := s.complete(ctx, s.prompt(system, user))
		if err != nil {
			t.to(stateFailed, zap.Error(err))
			return question.Question{}, n, err
		}
		t.to(stateDrafted)

		switch r := ParseDraft(raw).(type) {
		case Malformed:
			reason = r.Reason
		case Parsed:
			if verr := validateDraft(r.Draft, s.cfg.MinExplanationRunes); verr != nil {
				reason = verr.Error()
				break
			}
			q, qerr := question.New(s.newID(), r.Draft, question.Meta{
				Difficulty: t.difficulty,
				Kind:       t.kind,
				Subject:    t.subject,
				Unit:       t.unit,
			}, question.Provenance{
				ChunkIDs:    res.ChunkIDs(),
				Model:       s.cfg.Model,
				GeneratedAt: s.now(),
			})
			if qerr != nil {
				reason = qerr.Error()
				break
			}
			t.to(stateValidated)
			if s.cfg.Assess {
				assessed, low := s.assess(ctx, t, contextText, q)
				if low != "" {
					reason = low
					s.count(t.difficulty, "low_quality")
					break
				}
				q = assessed
			}
			return q, n, nil
		}
		t.to(stateRejected, zap.String("reason", reason))
	}

	t.to(stateFailed)
	return question.Question{}, attempts, fmt.Errorf("%w: %d drafts rejected, last: %s",
		domain.ErrGenerationQuality, attempts, reason)
}

// hints runs the secondary hint pass. Hints that contain the correct option
// are dropped; after one retry the question is returned as is.
func (s *Service) hints(ctx context.Context, t *task, contextText string, q question.Question) question.Question {
	correction := ""
	for attempt := 1; attempt <= 2; attempt++ {
		data := newPromptData(t, contextText, correction)
		data.Stem = q.Stem()
		data.Options = q.Options()

		system, user, err := s.prompts.Hints(data)
		if err != nil {
			t.logger.Warn("Hint prompt failed", zap.Int("position", t.position), zap.Error(err))
			return q
		}
		raw, err := s.complete(ctx, s.prompt(system, user))
		if err != nil {
			t.logger.Warn("Hint generation failed", zap.Int("position", t.position), zap.Error(err))
			return q
		}
		hints, err := ParseHints(raw)
		if err != nil {
			correction = err.Error()
			continue
		}
		kept := filterHints(hints, q.CorrectOption())
		// the retry accepts whatever survived filtering
		if len(kept) > 0 && (len(kept) == len(hints) || attempt == 2) {
			return q.WithHints(kept)
		}
		correction = correctionHintLeak
	}
	t.logger.Debug("Question returned without hints", zap.Int("position", t.position))
	return q
}

// assess grades q against its context. A failed or unparsable review keeps
// the question unassessed; a low average returns the rejection reason.
func (s *Service) assess(ctx context.Context, t *task, contextText string, q question.Question) (question.Question, string) {
	data := newPromptData(t, contextText, "")
	data.Stem = q.Stem()
	data.Options = q.Options()
	data.Answer = fmt.Sprintf("%d. %s", q.Correct()+1, q.CorrectOption())
	data.Explanation = q.Explanation()

	system, user, err := s.prompts.Assessment(data)
	if err != nil {
		t.logger.Warn("Assessment prompt failed", zap.Int("position", t.position), zap.Error(err))
		return q, ""
	}
	p := s.prompt(system, user)
	p.Temperature = assessmentTemperature
	raw, err := s.complete(ctx, p)
	if err != nil {
		t.logger.Warn("Quality assessment failed", zap.Int("position", t.position), zap.Error(err))
		return q, ""
	}
	a, err := ParseAssessment(raw)
	if err != nil {
		t.logger.Warn("Unparsable quality assessment", zap.Int("position", t.position), zap.Error(err))
		return q, ""
	}
	if avg := a.Average(); avg < s.cfg.MinQuality {
		c, score := a.Weakest()
		return q, fmt.Sprintf(correctionQuality, avg, s.cfg.MinQuality, c, score, a.Reason(c))
	}
	return q.WithAssessment(a), ""
}

func (s *Service) prompt(system, user string) domain.Prompt {
	return domain.Prompt{
		System:      system,
		User:        user,
		JSON:        true,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}
}

// complete calls the model under the shared retry policy.
func (s *Service) complete(ctx context.Context, p domain.Prompt) (string, error) {
	policy := s.cfg.Retry
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		s.logger.Warn("Retrying completion",
			zap.String("model", s.cfg.Model),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	raw, err := retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		return s.completer.Complete(ctx, p)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		s.logger.Error("Completion failed", zap.String("model", s.cfg.Model), zap.Error(err))
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationProvider, err)
	}
	return raw, nil
}

func (s *Service) count(d question.Difficulty, outcome string) {
	if s.cfg.Questions != nil {
		s.cfg.Questions.WithLabelValues(string(d), outcome).Inc()
	}
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, domain.ErrInsufficientContext):
		return "insufficient_context"
	case errors.Is(err, domain.ErrGenerationQuality):
		return "quality_error"
	case errors.Is(err, domain.ErrGenerationProvider):
		return "provider_error"
	default:
		return "retrieval_error"
	}
}
