package postgres

import (
	"github.com/pgvector/pgvector-go"

	domchunk "github.com/kailas-cloud/quizrag/internal/domain/chunk"
	"github.com/kailas-cloud/quizrag/internal/domain/index"
)

// recordRow is the named-parameter shape of one upserted chunk.
type recordRow struct {
	ID        string          `db:"id"`
	DocID     string          `db:"doc_id"`
	Pos       int             `db:"pos"`
	Start     int             `db:"start_rune"`
	End       int             `db:"end_rune"`
	Content   string          `db:"content"`
	Source    string          `db:"source"`
	Subject   string          `db:"subject"`
	Unit      string          `db:"unit"`
	Model     string          `db:"model"`
	Embedding pgvector.Vector `db:"embedding"`
}

func toRecordRow(rec domchunk.Record) recordRow {
	c := rec.Chunk()
	return recordRow{
		ID:        c.ID(),
		DocID:     c.DocumentID(),
		Pos:       c.Seq(),
		Start:     c.Start(),
		End:       c.End(),
		Content:   c.Text(),
		Source:    c.Source(),
		Subject:   c.Subject(),
		Unit:      c.Unit(),
		Model:     rec.Model(),
		Embedding: pgvector.NewVector(rec.Vector()),
	}
}

// hitRow is one KNN result row.
type hitRow struct {
	ID      string  `db:"id"`
	DocID   string  `db:"doc_id"`
	Pos     int     `db:"pos"`
	Start   int     `db:"start_rune"`
	End     int     `db:"end_rune"`
	Content string  `db:"content"`
	Source  string  `db:"source"`
	Subject string  `db:"subject"`
	Unit    string  `db:"unit"`
	Seq     int64   `db:"seq"`
	Score   float64 `db:"score"`
}

func (h hitRow) toHit() index.Hit {
	return index.Hit{
		Chunk: domchunk.Reconstruct(h.ID, h.DocID, h.Pos, h.Start, h.End, h.Content, h.Source, h.Subject, h.Unit),
		Score: h.Score,
		Seq:   h.Seq,
	}
}
