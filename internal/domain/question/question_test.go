package question

import (
	"errors"
	"testing"
	"time"
)

func validDraft() Draft {
	return Draft{
		Stem:        "일차함수 y = 2x + 3 의 기울기는?",
		Options:     []string{"1", "2", "3", "4", "5"},
		Correct:     1,
		Explanation: "y = ax + b 에서 a 가 기울기이므로 답은 2 이다.",
	}
}

func TestNew_Valid(t *testing.T) {
	now := time.Now()
	q, err := New("q-1", validDraft(), Meta{Difficulty: Easy, Kind: Concept, Subject: "수학", Unit: "일차함수"},
		Provenance{ChunkIDs: []string{"doc-c0000"}, Model: "gpt", GeneratedAt: now})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.CorrectOption() != "2" {
		t.Errorf("CorrectOption() = %q", q.CorrectOption())
	}
	if len(q.Options()) != OptionCount {
		t.Errorf("Options() len = %d", len(q.Options()))
	}
	if q.Provenance().ChunkIDs[0] != "doc-c0000" || !q.Provenance().GeneratedAt.Equal(now) {
		t.Errorf("unexpected provenance: %+v", q.Provenance())
	}
}

func TestNew_StructuralDefects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Draft)
	}{
		{"empty stem", func(d *Draft) { d.Stem = "  " }},
		{"four options", func(d *Draft) { d.Options = d.Options[:4] }},
		{"six options", func(d *Draft) { d.Options = append(d.Options, "6") }},
		{"blank option", func(d *Draft) { d.Options[2] = " " }},
		{"duplicate after folding", func(d *Draft) { d.Options = []string{"Alpha", "alpha ", "b", "c", "d"} }},
		{"index low", func(d *Draft) { d.Correct = -1 }},
		{"index high", func(d *Draft) { d.Correct = 5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			d.Options = append([]string(nil), d.Options...)
			tt.mutate(&d)
			if _, err := New("q", d, Meta{}, Provenance{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestQuestion_CopiesAreIndependent(t *testing.T) {
	q, _ := New("q", validDraft(), Meta{}, Provenance{})
	tagged := q.WithTag(TagNearDuplicate).WithTag(TagNearDuplicate)
	if len(q.Tags()) != 0 {
		t.Error("WithTag must not mutate the receiver")
	}
	if len(tagged.Tags()) != 1 {
		t.Errorf("Tags() = %v", tagged.Tags())
	}
	opts := q.Options()
	opts[0] = "changed"
	if q.Options()[0] == "changed" {
		t.Error("Options() must return a copy")
	}
	withHints := q.WithHints([]string{"기울기를 보라"})
	if len(q.Hints()) != 0 || len(withHints.Hints()) != 1 {
		t.Error("WithHints must copy")
	}
}

func TestNormalize(t *testing.T) {
	// Decomposed and precomposed Hangul must compare equal.
	if Normalize("\u1100\u1161") != Normalize("\uac00") {
		t.Error("expected NFC equivalence")
	}
	if Normalize("  Hello\tWORLD ") != "hello world" {
		t.Errorf("Normalize = %q", Normalize("  Hello\tWORLD "))
	}
}

func TestFailure_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	f := Failure{Position: 2, Difficulty: Hard, Reason: "provider", Err: cause}
	if !errors.Is(f, cause) {
		t.Error("Failure must unwrap to its cause")
	}
}

func TestNewStats(t *testing.T) {
	q1, _ := New("a", validDraft(), Meta{Difficulty: Easy, Subject: "수학", Unit: "함수"}, Provenance{})
	q2, _ := New("b", validDraft(), Meta{Difficulty: Hard, Subject: "수학"}, Provenance{})
	st := NewStats(3, []Question{q1, q2}, []Failure{{Position: 2}}, 1)
	if st.Generated != 2 || st.Failed != 1 || st.Requested != 3 || st.Regenerations != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if st.ByDifficulty[Easy] != 1 || st.ByDifficulty[Hard] != 1 || st.BySubject["수학"] != 2 || st.ByUnit["함수"] != 1 {
		t.Errorf("unexpected breakdown: %+v", st)
	}
}

func TestSpec_Validate(t *testing.T) {
	if err := (Spec{Count: 10, Mix: Mix{3, 4, 3}}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Spec{Count: 0, Mix: Mix{3, 4, 3}}).Validate(); err == nil {
		t.Error("expected error for zero count")
	}
}
