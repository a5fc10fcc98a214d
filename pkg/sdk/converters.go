package quizrag

import domret "github.com/kailas-cloud/quizrag/internal/domain/retrieval"

func fromInternalPassage(p domret.Passage) Passage {
	c := p.Chunk
	return Passage{
		ChunkID:    c.ID(),
		DocumentID: c.DocumentID(),
		Text:       c.Text(),
		Source:     c.Source(),
		Subject:    c.Subject(),
		Unit:       c.Unit(),
		Start:      c.Start(),
		End:        c.End(),
		Score:      p.Score,
		Relevance:  p.Relevance,
	}
}
