package index

import (
	"math"
	"sort"

	"github.com/kailas-cloud/quizrag/internal/domain/chunk"
)

// Hit is a single vector index match.
// Score is cosine similarity in [-1, 1]; Seq is the insertion sequence used to break ties.
type Hit struct {
	Chunk chunk.Chunk
	Score float64
	Seq   int64
}

// Cosine returns the cosine similarity of two equal-length vectors.
// A zero vector has similarity 0 with everything.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank orders hits by descending score, earlier insertion first on ties,
// and truncates to k.
func Rank(hits []Hit, k int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Seq < hits[j].Seq
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
