package question

import (
	"fmt"
	"maps"
)

// Assessment criteria, each scored from MinScore to MaxScore.
const (
	CriterionRelevance   = "relevance"
	CriterionClarity     = "clarity"
	CriterionCorrectness = "correctness"
	CriterionDistractors = "distractor_plausibility"
	CriterionDifficulty  = "difficulty_alignment"
)

// Criteria lists every criterion an assessment must score, in report order.
var Criteria = []string{
	CriterionRelevance, CriterionClarity, CriterionCorrectness, CriterionDistractors, CriterionDifficulty,
}

const (
	MinScore = 1
	MaxScore = 5
)

// Assessment is a model-graded review of a validated question.
type Assessment struct {
	scores  map[string]int
	reasons map[string]string
	summary string
}

// NewAssessment requires a score in range for every criterion. Extra criteria are dropped.
func NewAssessment(scores map[string]int, reasons map[string]string, summary string) (Assessment, error) {
	a := Assessment{
		scores:  make(map[string]int, len(Criteria)),
		reasons: make(map[string]string, len(Criteria)),
		summary: summary,
	}
	for _, c := range Criteria {
		s, ok := scores[c]
		if !ok {
			return Assessment{}, fmt.Errorf("assessment is missing %q", c)
		}
		if s < MinScore || s > MaxScore {
			return Assessment{}, fmt.Errorf("%s score %d out of range %d-%d", c, s, MinScore, MaxScore)
		}
		a.scores[c] = s
		if r := reasons[c]; r != "" {
			a.reasons[c] = r
		}
	}
	return a, nil
}

// IsZero reports whether the question was not assessed.
func (a Assessment) IsZero() bool { return len(a.scores) == 0 }

// Scores returns the per-criterion scores.
func (a Assessment) Scores() map[string]int { return maps.Clone(a.scores) }

// Reason returns the grader's reason for criterion c.
func (a Assessment) Reason(c string) string { return a.reasons[c] }

// Summary returns the grader's overall remark.
func (a Assessment) Summary() string { return a.summary }

// Average is the mean score over all criteria, zero when not assessed.
func (a Assessment) Average() float64 {
	if a.IsZero() {
		return 0
	}
	total := 0
	for _, s := range a.scores {
		total += s
	}
	return float64(total) / float64(len(a.scores))
}

// Weakest returns the lowest scored criterion; ties go to the earlier criterion.
func (a Assessment) Weakest() (string, int) {
	worst, score := "", MaxScore+1
	for _, c := range Criteria {
		if s, ok := a.scores[c]; ok && s < score {
			worst, score = c, s
		}
	}
	return worst, score
}
