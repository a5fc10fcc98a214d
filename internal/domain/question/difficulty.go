package question

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/quizrag/internal/domain"
)

// Difficulty is the requested difficulty level of a question.
type Difficulty string

// Difficulty levels, in bucket order.
const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties lists all levels in bucket order.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// ParseDifficulty parses a difficulty level name.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Difficulties, d) {
		return "", fmt.Errorf("unknown difficulty %q: %w", s, domain.ErrInvalidConfiguration)
	}
	return d, nil
}

// Kind is the cognitive type of a question.
type Kind string

// Question kinds, assigned round-robin across a batch.
const (
	Concept     Kind = "concept"
	Application Kind = "application"
	Inference   Kind = "inference"
)

// Kinds lists all kinds in assignment order.
var Kinds = []Kind{Concept, Application, Inference}

// Mix is a difficulty distribution expressed as non-negative weights.
// Weights are ratios; Allocate scales them to a concrete count.
type Mix struct {
	Easy   int `json:"easy" yaml:"easy"`
	Medium int `json:"medium" yaml:"medium"`
	Hard   int `json:"hard" yaml:"hard"`
}

var presets = map[string]Mix{
	"balanced": {Easy: 3, Medium: 4, Hard: 3},
	"easy":     {Easy: 7, Medium: 2, Hard: 1},
	"medium":   {Easy: 2, Medium: 6, Hard: 2},
	"hard":     {Easy: 1, Medium: 2, Hard: 7},
}

// Preset returns a named difficulty mix: balanced, easy, medium or hard.
func Preset(name string) (Mix, error) {
	m, ok := presets[strings.ToLower(name)]
	if !ok {
		return Mix{}, fmt.Errorf("unknown difficulty preset %q: %w", name, domain.ErrInvalidConfiguration)
	}
	return m, nil
}

func (m Mix) weights() []int { return []int{m.Easy, m.Medium, m.Hard} }

// Validate checks that weights are non-negative and not all zero.
func (m Mix) Validate() error {
	total := 0
	for _, w := range m.weights() {
		if w < 0 {
			return fmt.Errorf("negative difficulty weight: %w", domain.ErrInvalidConfiguration)
		}
		total += w
	}
	if total == 0 {
		return fmt.Errorf("difficulty mix is empty: %w", domain.ErrInvalidConfiguration)
	}
	return nil
}

// Bucket is the number of questions allocated to one difficulty.
type Bucket struct {
	Difficulty Difficulty
	Count      int
}

// Allocate splits count across difficulties by the largest remainder method.
// Leftover units go to the largest fractional remainders; ties prefer the
// bucket with the larger weight, then bucket order. Buckets sum to count.
func (m Mix) Allocate(count int) ([]Bucket, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("negative question count: %w", domain.ErrInvalidConfiguration)
	}

	w := m.weights()
	total := 0
	for _, v := range w {
		total += v
	}

	buckets := make([]Bucket, len(Difficulties))
	rems := make([]int, len(Difficulties))
	assigned := 0
	for i, d := range Difficulties {
		n := count * w[i]
		buckets[i] = Bucket{Difficulty: d, Count: n / total}
		rems[i] = n % total
		assigned += buckets[i].Count
	}

	order := []int{0, 1, 2}
	slices.SortStableFunc(order, func(a, b int) int {
		if rems[a] != rems[b] {
			return rems[b] - rems[a]
		}
		return w[b] - w[a]
	})
	for i := 0; assigned < count; i++ {
		buckets[order[i%len(order)]].Count++
		assigned++
	}
	return buckets, nil
}
