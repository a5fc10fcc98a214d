package quizrag

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/quizrag/internal/domain/question"
)

const defaultPreset = "balanced"

// QuestionService generates multiple-choice question batches.
type QuestionService struct {
	svc generationUseCase
	obs *observer
}

// Generate produces req.Count questions split across difficulties.
// Positions that cannot produce a valid question are listed in Batch.Failures;
// an error means the request itself was rejected.
func (s *QuestionService) Generate(ctx context.Context, req GenerateRequest) (_ Batch, err error) {
	start := time.Now()
	defer func() { s.obs.observe("generate", start, err, "count", req.Count) }()

	spec, err := toInternalSpec(req)
	if err != nil {
		return Batch{}, fmt.Errorf("generate: %w", err)
	}
	res, err := s.svc.Generate(ctx, spec)
	if err != nil {
		return Batch{}, fmt.Errorf("generate: %w", err)
	}
	return fromInternalBatch(res), nil
}

func toInternalSpec(req GenerateRequest) (question.Spec, error) {
	var mix question.Mix
	switch {
	case req.Mix != nil:
		mix = question.Mix{Easy: req.Mix.Easy, Medium: req.Mix.Medium, Hard: req.Mix.Hard}
	default:
		name := req.Preset
		if name == "" {
			name = defaultPreset
		}
		m, err := question.Preset(name)
		if err != nil {
			return question.Spec{}, err //nolint:wrapcheck // caller wraps
		}
		mix = m
	}
	spec := question.Spec{
		Count: req.Count, Mix: mix,
		Subject: req.Subject, Unit: req.Unit, Topic: req.Topic, Hints: req.Hints,
	}
	if err := spec.Validate(); err != nil {
		return question.Spec{}, err //nolint:wrapcheck // caller wraps
	}
	return spec, nil
}

func fromInternalBatch(res question.BatchResult) Batch {
	b := Batch{
		ID:        res.ID,
		Questions: make([]Question, len(res.Questions)),
		Failures:  make([]Failure, len(res.Failures)),
		Stats: Stats{
			Requested:     res.Stats.Requested,
			Generated:     res.Stats.Generated,
			Failed:        res.Stats.Failed,
			Regenerations: res.Stats.Regenerations,
			ByDifficulty:  make(map[string]int, len(res.Stats.ByDifficulty)),
			BySubject:     res.Stats.BySubject,
			ByUnit:        res.Stats.ByUnit,
		},
	}
	for d, n := range res.Stats.ByDifficulty {
		b.Stats.ByDifficulty[string(d)] = n
	}
	for i, q := range res.Questions {
		b.Questions[i] = fromInternalQuestion(q)
	}
	for i, f := range res.Failures {
		b.Failures[i] = Failure{
			Position: f.Position, Difficulty: string(f.Difficulty), Reason: f.Reason, Err: f.Err,
		}
	}
	return b
}

func fromInternalQuestion(q question.Question) Question {
	prov := q.Provenance()
	out := Question{
		ID:          q.ID(),
		Stem:        q.Stem(),
		Options:     q.Options(),
		Correct:     q.Correct(),
		Explanation: q.Explanation(),
		Hints:       q.Hints(),
		Tags:        q.Tags(),
		Difficulty:  string(q.Difficulty()),
		Kind:        string(q.Kind()),
		Subject:     q.Subject(),
		Unit:        q.Unit(),
		ChunkIDs:    prov.ChunkIDs,
		Model:       prov.Model,
		GeneratedAt: prov.GeneratedAt,
	}
	if a := q.Assessment(); !a.IsZero() {
		out.Quality = &Quality{Scores: a.Scores(), Average: a.Average(), Summary: a.Summary()}
	}
	return out
}
