package generation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/quizrag/internal/domain/question"
)

// ParseResult is either Parsed or Malformed.
type ParseResult interface {
	isParseResult()
}

// Parsed carries a draft decoded from a model reply. Draft.Correct is 0-based.
type Parsed struct {
	Draft question.Draft
}

// Malformed explains why a reply could not be decoded.
type Malformed struct {
	Reason string
}

func (Parsed) isParseResult()    {}
func (Malformed) isParseResult() {}

// wireDraft is the JSON shape requested from the model. correct_answer is 1-based.
// Optional echo fields are accepted and ignored; anything else is rejected.
type wireDraft struct {
	Question      *string         `json:"question"`
	Options       []string        `json:"options"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	Explanation   *string         `json:"explanation"`

	Hint       string `json:"hint"`
	Difficulty string `json:"difficulty"`
	Type       string `json:"type"`
	Subject    string `json:"subject"`
	Unit       string `json:"unit"`
}

// ParseDraft decodes a question draft from a raw model reply. Markdown code
// fences and text around the JSON object are tolerated.
func ParseDraft(raw string) ParseResult {
	obj, ok := extractObject(raw)
	if !ok {
		return Malformed{Reason: "reply contains no JSON object"}
	}

	dec := json.NewDecoder(bytes.NewReader(obj))
	dec.DisallowUnknownFields()
	var w wireDraft
	if err := dec.Decode(&w); err != nil {
		return Malformed{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	switch {
	case w.Question == nil:
		return Malformed{Reason: `missing field "question"`}
	case w.Options == nil:
		return Malformed{Reason: `missing field "options"`}
	case len(w.CorrectAnswer) == 0:
		return Malformed{Reason: `missing field "correct_answer"`}
	case w.Explanation == nil:
		return Malformed{Reason: `missing field "explanation"`}
	}

	var correct int
	if err := json.Unmarshal(w.CorrectAnswer, &correct); err != nil {
		return Malformed{Reason: fmt.Sprintf("correct_answer must be an integer 1-%d", question.OptionCount)}
	}

	return Parsed{Draft: question.Draft{
		Stem:        *w.Question,
		Options:     w.Options,
		Correct:     correct - 1,
		Explanation: *w.Explanation,
	}}
}

type wireHints struct {
	Hints []string `json:"hints"`
}

// ParseHints decodes {"hints": [...]} from a raw model reply.
func ParseHints(raw string) ([]string, error) {
	obj, ok := extractObject(raw)
	if !ok {
		return nil, fmt.Errorf("reply contains no JSON object")
	}
	var w wireHints
	if err := json.Unmarshal(obj, &w); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	hints := make([]string, 0, len(w.Hints))
	for _, h := range w.Hints {
		if h = strings.TrimSpace(h); h != "" {
			hints = append(hints, h)
		}
	}
	return hints, nil
}

type wireAssessment struct {
	Scores map[string]struct {
		Score  *float64 `json:"score"`
		Reason string   `json:"reason"`
	} `json:"scores"`
	Summary string `json:"summary"`
}

// ParseAssessment decodes a quality review. The reply's own overall score is
// ignored; the average is recomputed from the criteria.
func ParseAssessment(raw string) (question.Assessment, error) {
	obj, ok := extractObject(raw)
	if !ok {
		return question.Assessment{}, fmt.Errorf("reply contains no JSON object")
	}
	var w wireAssessment
	if err := json.Unmarshal(obj, &w); err != nil {
		return question.Assessment{}, fmt.Errorf("invalid JSON: %w", err)
	}
	scores := make(map[string]int, len(w.Scores))
	reasons := make(map[string]string, len(w.Scores))
	for c, v := range w.Scores {
		if v.Score == nil {
			return question.Assessment{}, fmt.Errorf("criterion %q has no score", c)
		}
		if *v.Score != math.Trunc(*v.Score) {
			return question.Assessment{}, fmt.Errorf("criterion %q score %v is not an integer", c, *v.Score)
		}
		scores[c] = int(*v.Score)
		reasons[c] = strings.TrimSpace(v.Reason)
	}
	return question.NewAssessment(scores, reasons, strings.TrimSpace(w.Summary))
}

// extractObject strips code fences and returns the outermost {...} span.
func extractObject(raw string) ([]byte, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return nil, false
	}
	return []byte(s[start : end+1]), true
}
