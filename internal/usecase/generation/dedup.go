package generation

import (
	"strings"
	"sync"

	"github.com/kailas-cloud/quizrag/internal/domain/question"
)

// Similarity is the Jaccard index of the character bigram sets of two stems
// after normalization with whitespace removed.
func Similarity(a, b string) float64 {
	sa, sb := bigrams(a), bigrams(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	inter := 0
	for g := range sa {
		if _, ok := sb[g]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

func bigrams(s string) map[string]struct{} {
	r := []rune(strings.Join(strings.Fields(question.Normalize(s)), ""))
	out := make(map[string]struct{}, len(r))
	if len(r) == 1 {
		out[string(r)] = struct{}{}
	}
	for i := 0; i+1 < len(r); i++ {
		out[string(r[i:i+2])] = struct{}{}
	}
	return out
}

// stemRegistry holds the stems accepted so far in one batch.
type stemRegistry struct {
	mu        sync.Mutex
	threshold float64
	stems     []string
}

// admit registers stem unless it is too close to an accepted one, in which
// case it returns the closest earlier stem and false. force always registers.
func (r *stemRegistry) admit(stem string, force bool) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var closest string
	best := -1.0
	for _, s := range r.stems {
		if sim := Similarity(stem, s); sim >= r.threshold && sim > best {
			best, closest = sim, s
		}
	}
	if best < 0 || force {
		r.stems = append(r.stems, stem)
	}
	return closest, best < 0
}
