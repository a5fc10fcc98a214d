package question

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// OptionCount is the fixed number of answer options.
const OptionCount = 5

// TagNearDuplicate marks a question whose stem stayed close to an earlier one after regeneration.
const TagNearDuplicate = "near-duplicate"

// Normalize maps text to its comparison form: NFC, case-folded, single-spaced.
func Normalize(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(norm.NFC.String(s))), " ")
}

// Draft is the structured content produced by the generative model.
// Correct is a 0-based option index.
type Draft struct {
	Stem        string
	Options     []string
	Correct     int
	Explanation string
}

// Provenance records where a question came from.
type Provenance struct {
	ChunkIDs    []string
	Model       string
	GeneratedAt time.Time
}

// Question is a validated multiple-choice item (immutable value object).
type Question struct {
	id          string
	stem        string
	options     []string
	correct     int
	explanation string
	hints       []string
	tags        []string
	difficulty  Difficulty
	kind        Kind
	subject     string
	unit        string
	provenance  Provenance
	assessment  Assessment
}

// Meta carries the classification attached to a question.
type Meta struct {
	Difficulty Difficulty
	Kind       Kind
	Subject    string
	Unit       string
}

// New validates the structural invariants and creates a Question:
// non-empty stem, exactly five distinct non-empty options, correct index in range.
func New(id string, d Draft, meta Meta, prov Provenance) (Question, error) {
	if id == "" {
		return Question{}, fmt.Errorf("question ID is required")
	}
	if err := CheckStructure(d); err != nil {
		return Question{}, err
	}
	opts := make([]string, len(d.Options))
	for i, o := range d.Options {
		opts[i] = strings.TrimSpace(o)
	}
	prov.ChunkIDs = slices.Clone(prov.ChunkIDs)
	return Question{
		id:          id,
		stem:        strings.TrimSpace(d.Stem),
		options:     opts,
		correct:     d.Correct,
		explanation: strings.TrimSpace(d.Explanation),
		difficulty:  meta.Difficulty,
		kind:        meta.Kind,
		subject:     meta.Subject,
		unit:        meta.Unit,
		provenance:  prov,
	}, nil
}

// CheckStructure reports the first structural defect of a draft.
func CheckStructure(d Draft) error {
	if strings.TrimSpace(d.Stem) == "" {
		return fmt.Errorf("stem is empty")
	}
	if len(d.Options) != OptionCount {
		return fmt.Errorf("expected %d options, got %d", OptionCount, len(d.Options))
	}
	seen := make(map[string]int, OptionCount)
	for i, o := range d.Options {
		n := Normalize(o)
		if n == "" {
			return fmt.Errorf("option %d is empty", i+1)
		}
		if j, dup := seen[n]; dup {
			return fmt.Errorf("options %d and %d are identical", j+1, i+1)
		}
		seen[n] = i
	}
	if d.Correct < 0 || d.Correct >= OptionCount {
		return fmt.Errorf("correct answer index %d out of range", d.Correct)
	}
	return nil
}

// WithHints returns a copy carrying the given hints.
func (q Question) WithHints(hints []string) Question {
	q.hints = slices.Clone(hints)
	return q
}

// WithTag returns a copy with tag appended, if not already present.
func (q Question) WithTag(tag string) Question {
	if slices.Contains(q.tags, tag) {
		return q
	}
	q.tags = append(slices.Clone(q.tags), tag)
	return q
}

// WithAssessment returns a copy carrying the quality review.
func (q Question) WithAssessment(a Assessment) Question {
	q.assessment = a
	return q
}

// ID returns the question identifier.
func (q Question) ID() string { return q.id }

// Stem returns the question text.
func (q Question) Stem() string { return q.stem }

// Options returns the five answer options.
func (q Question) Options() []string { return slices.Clone(q.options) }

// Correct returns the 0-based index of the correct option.
func (q Question) Correct() int { return q.correct }

// CorrectOption returns the text of the correct option.
func (q Question) CorrectOption() string { return q.options[q.correct] }

// Explanation returns the answer explanation.
func (q Question) Explanation() string { return q.explanation }

// Hints returns the optional hints.
func (q Question) Hints() []string { return slices.Clone(q.hints) }

// Tags returns the question tags.
func (q Question) Tags() []string { return slices.Clone(q.tags) }

// Difficulty returns the assigned difficulty.
func (q Question) Difficulty() Difficulty { return q.difficulty }

// Kind returns the question kind.
func (q Question) Kind() Kind { return q.kind }

// Subject returns the subject tag.
func (q Question) Subject() string { return q.subject }

// Unit returns the unit tag.
func (q Question) Unit() string { return q.unit }

// Provenance returns the source chunks and model.
func (q Question) Provenance() Provenance {
	p := q.provenance
	p.ChunkIDs = slices.Clone(p.ChunkIDs)
	return p
}

// Assessment returns the quality review; IsZero when the pass is disabled.
func (q Question) Assessment() Assessment { return q.assessment }
