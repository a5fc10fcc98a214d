package question

import (
	"fmt"

	"github.com/kailas-cloud/quizrag/internal/domain"
)

// MaxCount bounds a single batch request.
const MaxCount = 100

// Spec describes a batch of questions to generate.
type Spec struct {
	Count   int
	Mix     Mix
	Subject string
	Unit    string
	// Topic overrides the varied per-position retrieval queries when set.
	Topic string
	Hints bool
}

// Validate checks the request shape.
func (s Spec) Validate() error {
	if s.Count <= 0 || s.Count > MaxCount {
		return fmt.Errorf("count must be in 1..%d: %w", MaxCount, domain.ErrInvalidConfiguration)
	}
	return s.Mix.Validate()
}

// Failure is one manifest entry: a question position that produced no question.
type Failure struct {
	Position   int
	Difficulty Difficulty
	Reason     string
	Err        error
}

// Error implements error so a failure can be wrapped and matched with errors.Is.
func (f Failure) Error() string {
	return fmt.Sprintf("question %d (%s): %s", f.Position, f.Difficulty, f.Reason)
}

// Unwrap returns the underlying cause.
func (f Failure) Unwrap() error { return f.Err }

// Stats summarizes a batch.
type Stats struct {
	Requested     int
	Generated     int
	Failed        int
	Regenerations int
	ByDifficulty  map[Difficulty]int
	BySubject     map[string]int
	ByUnit        map[string]int
}

// BatchResult is the ordered outcome of a batch: questions in (bucket, sequence)
// order plus a failure manifest. Failures never void successful questions.
type BatchResult struct {
	ID        string
	Questions []Question
	Failures  []Failure
	Stats     Stats
}

// NewStats computes statistics for questions generated out of requested.
func NewStats(requested int, questions []Question, failures []Failure, regenerations int) Stats {
	st := Stats{
		Requested:     requested,
		Generated:     len(questions),
		Failed:        len(failures),
		Regenerations: regenerations,
		ByDifficulty:  make(map[Difficulty]int),
		BySubject:     make(map[string]int),
		ByUnit:        make(map[string]int),
	}
	for _, q := range questions {
		st.ByDifficulty[q.Difficulty()]++
		if q.Subject() != "" {
			st.BySubject[q.Subject()]++
		}
		if q.Unit() != "" {
			st.ByUnit[q.Unit()]++
		}
	}
	return st
}
