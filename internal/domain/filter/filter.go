package filter

import (
	"fmt"
	"slices"

	"github.com/kailas-cloud/quizrag/internal/domain"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 16

// Filterable chunk metadata keys.
const (
	KeySubject  = "subject"
	KeyUnit     = "unit"
	KeyDocument = "doc_id"
)

var knownKeys = []string{KeySubject, KeyUnit, KeyDocument}

// Expression is an exact-match filter: every must condition holds and no must_not condition holds.
type Expression struct {
	must    []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d): %w", MaxConditionsPerGroup, domain.ErrInvalidQuery)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d): %w", MaxConditionsPerGroup, domain.ErrInvalidQuery)
	}
	return Expression{must: must, mustNot: mustNot}, nil
}

// Scope builds the common subject/unit filter. Empty values are skipped.
func Scope(subject, unit string) (Expression, error) {
	var must []Condition
	for _, kv := range [][2]string{{KeySubject, subject}, {KeyUnit, unit}} {
		if kv[1] == "" {
			continue
		}
		c, err := NewMatch(kv[0], kv[1])
		if err != nil {
			return Expression{}, err
		}
		must = append(must, c)
	}
	return NewExpression(must, nil)
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.mustNot) == 0
}

// Matches evaluates the expression against metadata looked up by key.
func (e Expression) Matches(lookup func(key string) string) bool {
	for _, c := range e.must {
		if lookup(c.key) != c.match {
			return false
		}
	}
	for _, c := range e.mustNot {
		if lookup(c.key) == c.match {
			return false
		}
	}
	return true
}

// Condition is a single exact tag match.
type Condition struct {
	key   string
	match string
}

// NewMatch creates an exact tag match condition on a known metadata key.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required: %w", domain.ErrInvalidQuery)
	}
	if !slices.Contains(knownKeys, key) {
		return Condition{}, fmt.Errorf("unknown filter key %q: %w", key, domain.ErrInvalidQuery)
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q: %w", key, domain.ErrInvalidQuery)
	}
	return Condition{key: key, match: match}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }
