package chi

import (
	dombatch "github.com/kailas-cloud/quizrag/internal/domain/batch"
	"github.com/kailas-cloud/quizrag/internal/domain/question"
	domret "github.com/kailas-cloud/quizrag/internal/domain/retrieval"
)

func batchResultToResponse(r dombatch.Result) BatchIngestItem {
	item := BatchIngestItem{ID: r.ID(), Status: string(r.Status()), Chunks: r.Chunks()}
	if r.Err() != nil {
		item.Error = &ErrorResponse{Code: errorCode(r.Err()), Message: safeDomainMessage(r.Err())}
	}
	return item
}

func passageToResponse(p domret.Passage) PassageResponse {
	c := p.Chunk
	return PassageResponse{
		ChunkID:    c.ID(),
		DocumentID: c.DocumentID(),
		Text:       c.Text(),
		Score:      p.Score,
		Relevance:  p.Relevance,
		Source:     c.Source(),
		Subject:    c.Subject(),
		Unit:       c.Unit(),
	}
}

func questionToResponse(q question.Question) QuestionResponse {
	prov := q.Provenance()
	resp := QuestionResponse{
		ID:            q.ID(),
		Question:      q.Stem(),
		Options:       q.Options(),
		CorrectAnswer: q.Correct() + 1,
		Explanation:   q.Explanation(),
		Hints:         q.Hints(),
		Difficulty:    string(q.Difficulty()),
		Type:          string(q.Kind()),
		Subject:       q.Subject(),
		Unit:          q.Unit(),
		Tags:          q.Tags(),
		ChunkIDs:      prov.ChunkIDs,
		Model:         prov.Model,
		GeneratedAt:   prov.GeneratedAt.UTC(),
	}
	if a := q.Assessment(); !a.IsZero() {
		resp.Quality = &QualityResponse{Scores: a.Scores(), Average: a.Average(), Summary: a.Summary()}
	}
	return resp
}

func batchToResponse(b question.BatchResult) GenerateResponse {
	resp := GenerateResponse{
		ID:        b.ID,
		Questions: make([]QuestionResponse, len(b.Questions)),
		Failures:  make([]FailureResponse, len(b.Failures)),
		Stats: StatsResponse{
			Requested:     b.Stats.Requested,
			Generated:     b.Stats.Generated,
			Failed:        b.Stats.Failed,
			Regenerations: b.Stats.Regenerations,
			ByDifficulty:  make(map[string]int, len(b.Stats.ByDifficulty)),
			BySubject:     b.Stats.BySubject,
			ByUnit:        b.Stats.ByUnit,
		},
	}
	for i, q := range b.Questions {
		resp.Questions[i] = questionToResponse(q)
	}
	for i, f := range b.Failures {
		resp.Failures[i] = FailureResponse{
			Position:   f.Position,
			Difficulty: string(f.Difficulty),
			Code:       errorCode(f.Err),
			Reason:     f.Reason,
		}
	}
	for d, n := range b.Stats.ByDifficulty {
		resp.Stats.ByDifficulty[string(d)] = n
	}
	return resp
}
