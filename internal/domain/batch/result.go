// Package batch holds per-document outcomes of a multi-document ingest.
package batch

// ItemStatus is the wire status of one batch item.
type ItemStatus string

const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of ingesting one document. A failed document leaves
// none of its chunks in the index.
type Result struct {
	id     string
	chunks int
	err    error
}

// NewOK records a document indexed as chunks chunks.
func NewOK(id string, chunks int) Result { return Result{id: id, chunks: chunks} }

// NewError records a document that was rejected or rolled back.
func NewError(id string, err error) Result { return Result{id: id, err: err} }

func (r Result) ID() string  { return r.id }
func (r Result) Chunks() int { return r.chunks }
func (r Result) Err() error  { return r.err }
func (r Result) OK() bool    { return r.err == nil }

// Status maps the outcome to its wire value.
func (r Result) Status() ItemStatus {
	if r.OK() {
		return StatusOK
	}
	return StatusError
}

// Summary totals a batch.
type Summary struct {
	Succeeded int
	Failed    int
	Chunks    int
}

// Summarize counts successes, failures and indexed chunks.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		if r.OK() {
			s.Succeeded++
			s.Chunks += r.chunks
		} else {
			s.Failed++
		}
	}
	return s
}
