package retrieval

import "github.com/kailas-cloud/quizrag/internal/domain/chunk"

// Passage is a retrieved chunk with its similarity score.
type Passage struct {
	Chunk chunk.Chunk
	Score float64
	// Relevance is the reranker score in [0, 1]. Zero when not reranked.
	Relevance float64
}

// Result is an ordered retrieval result with unique chunk IDs: descending
// relevance when reranked, descending score otherwise.
type Result struct {
	Passages []Passage
}

// Empty reports whether nothing cleared the threshold.
func (r Result) Empty() bool { return len(r.Passages) == 0 }

// ChunkIDs returns the chunk IDs in rank order.
func (r Result) ChunkIDs() []string {
	ids := make([]string, len(r.Passages))
	for i, p := range r.Passages {
		ids[i] = p.Chunk.ID()
	}
	return ids
}
