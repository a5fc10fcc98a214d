// Package chunker splits documents into overlapping rune windows.
package chunker

import (
	"fmt"
	"unicode"

	"github.com/kailas-cloud/quizrag/internal/domain"
	"github.com/kailas-cloud/quizrag/internal/domain/chunk"
	"github.com/kailas-cloud/quizrag/internal/domain/document"
)

// DefaultSize is the default number of runes per chunk.
const DefaultSize = 1000

// DefaultOverlap is the default number of overlapping runes.
const DefaultOverlap = 200

// Chunker splits documents into chunks of at most size runes where every
// adjacent pair shares exactly overlap runes. Safe for concurrent use.
type Chunker struct {
	size     int
	overlap  int
	lookback int
}

// Option configures the Chunker.
type Option func(*Chunker)

// WithLookback sets how many runes before a hard cut are searched for a
// natural boundary. Zero disables boundary search.
func WithLookback(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.lookback = n
		}
	}
}

// New creates a Chunker. The lookback defaults to size/4.
func New(size, overlap int, opts ...Option) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", size, domain.ErrInvalidConfiguration)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be non-negative, got %d: %w", overlap, domain.ErrInvalidConfiguration)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than size %d: %w", overlap, size, domain.ErrInvalidConfiguration)
	}

	c := &Chunker{size: size, overlap: overlap, lookback: size / 4}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Size returns the maximum chunk length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the shared rune count between adjacent chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits a document. Output is deterministic for the same text and
// parameters; the last partial window is always kept.
func (c *Chunker) Chunk(doc document.Document) []chunk.Chunk {
	runes := []rune(doc.Text())
	n := len(runes)
	if n == 0 {
		return nil
	}

	chunks := make([]chunk.Chunk, 0, n/(c.size-c.overlap)+1)
	start := 0
	for seq := 0; ; seq++ {
		end := min(start+c.size, n)
		if end < n {
			end = c.boundary(runes, start, end)
		}

		chunks = append(chunks, chunk.New(
			doc.ID(), seq, start, end, string(runes[start:end]),
			doc.Source(), doc.Subject(), doc.Unit(),
		))

		if end == n {
			return chunks
		}
		start = end - c.overlap
	}
}

// Boundary classes, strongest first.
const (
	classNone = iota
	classSpace
	classSentence
	classParagraph
)

// boundary pulls a hard cut back to the strongest natural break within the
// lookback window. The cut stays strictly after start+overlap so the next
// window always advances.
func (c *Chunker) boundary(runes []rune, start, end int) int {
	if c.lookback == 0 {
		return end
	}
	floor := max(end-c.lookback, start+c.overlap)

	best, bestClass := end, classNone
	for p := end; p > floor; p-- {
		cls := classify(runes, p)
		if cls > bestClass {
			best, bestClass = p, cls
			if cls == classParagraph {
				break
			}
		}
	}
	return best
}

// classify rates cutting before runes[p], i.e. right after runes[p-1].
func classify(runes []rune, p int) int {
	r := runes[p-1]
	switch {
	case r == '\n' && p >= 2 && runes[p-2] == '\n':
		return classParagraph
	case r == '.' || r == '!' || r == '?' || r == '。' || r == '\n':
		return classSentence
	case unicode.IsSpace(r):
		return classSpace
	default:
		return classNone
	}
}
