package chunk

import (
	"fmt"
	"slices"

	"github.com/kailas-cloud/quizrag/internal/domain/filter"
)

// Chunk is an ordered rune span of a document (immutable value object).
// Offsets are rune offsets into the document text, End exclusive.
type Chunk struct {
	id      string
	docID   string
	seq     int
	start   int
	end     int
	text    string
	source  string
	subject string
	unit    string
}

// ID derives the stable chunk identifier from a document ID and sequence index.
func ID(docID string, seq int) string {
	return fmt.Sprintf("%s-c%04d", docID, seq)
}

// New creates a Chunk and derives its ID.
func New(docID string, seq, start, end int, text, source, subject, unit string) Chunk {
	return Chunk{
		id: ID(docID, seq), docID: docID, seq: seq,
		start: start, end: end, text: text,
		source: source, subject: subject, unit: unit,
	}
}

// Reconstruct hydrates a Chunk from storage, keeping the stored ID.
func Reconstruct(id, docID string, seq, start, end int, text, source, subject, unit string) Chunk {
	return Chunk{
		id: id, docID: docID, seq: seq,
		start: start, end: end, text: text,
		source: source, subject: subject, unit: unit,
	}
}

// ID returns the stable chunk identifier.
func (c Chunk) ID() string { return c.id }

// DocumentID returns the owning document identifier.
func (c Chunk) DocumentID() string { return c.docID }

// Seq returns the position of the chunk within its document.
func (c Chunk) Seq() int { return c.seq }

// Start returns the inclusive rune offset.
func (c Chunk) Start() int { return c.start }

// End returns the exclusive rune offset.
func (c Chunk) End() int { return c.end }

// Text returns the chunk text.
func (c Chunk) Text() string { return c.text }

// Source returns the document origin.
func (c Chunk) Source() string { return c.source }

// Subject returns the inherited subject tag.
func (c Chunk) Subject() string { return c.subject }

// Unit returns the inherited unit tag.
func (c Chunk) Unit() string { return c.unit }

// Tag returns the filterable metadata value for key, or "" for unknown keys.
func (c Chunk) Tag(key string) string {
	switch key {
	case filter.KeySubject:
		return c.subject
	case filter.KeyUnit:
		return c.unit
	case filter.KeyDocument:
		return c.docID
	default:
		return ""
	}
}

// Record is a chunk with its embedding, the unit stored in a vector index.
type Record struct {
	chunk  Chunk
	vector []float32
	model  string
}

// NewRecord creates a Record. The vector is copied.
func NewRecord(c Chunk, vector []float32, model string) Record {
	return Record{chunk: c, vector: slices.Clone(vector), model: model}
}

// Chunk returns the indexed chunk.
func (r Record) Chunk() Chunk { return r.chunk }

// ID returns the chunk identifier, the record key.
func (r Record) ID() string { return r.chunk.id }

// Vector returns the embedding. Callers must not mutate it.
func (r Record) Vector() []float32 { return r.vector }

// Model returns the embedding model that produced the vector.
func (r Record) Model() string { return r.model }
