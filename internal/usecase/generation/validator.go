package generation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/quizrag/internal/domain/question"
)

// MinStemRunes is the shortest acceptable question stem.
const MinStemRunes = 10

// reject describes why a draft failed validation; the text is fed back to the model.
type reject struct {
	reason string
}

func (r *reject) Error() string { return r.reason }

// validateDraft checks structure and content quality of a parsed draft.
func validateDraft(d question.Draft, minExplanation int) error {
	if err := question.CheckStructure(d); err != nil {
		return &reject{reason: err.Error()}
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(d.Stem)); n < MinStemRunes {
		return &reject{reason: fmt.Sprintf("stem is too short (%d < %d characters)", n, MinStemRunes)}
	}
	expl := strings.TrimSpace(d.Explanation)
	if n := utf8.RuneCountInString(expl); n < minExplanation {
		return &reject{reason: fmt.Sprintf("explanation is too short (%d < %d characters)", n, minExplanation)}
	}
	if !references(expl, d.Options[d.Correct]) {
		return &reject{reason: "explanation does not mention the correct option"}
	}
	return nil
}

// references reports whether text contains the option or one of its
// content tokens of at least two runes.
func references(text, option string) bool {
	t := question.Normalize(text)
	o := question.Normalize(option)
	if strings.Contains(t, o) {
		return true
	}
	for _, tok := range tokens(o) {
		if utf8.RuneCountInString(tok) >= 2 && strings.Contains(t, tok) {
			return true
		}
	}
	return false
}

func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// filterHints drops hints that give away the correct option.
func filterHints(hints []string, correct string) []string {
	answer := question.Normalize(correct)
	kept := make([]string, 0, len(hints))
	for _, h := range hints {
		if answer != "" && strings.Contains(question.Normalize(h), answer) {
			continue
		}
		kept = append(kept, h)
	}
	return kept
}
