package db

import "testing"

func chunkSchema(spec VectorSpec) *IndexBuilder {
	return NewIndex("quizrag:chunks").
		Prefix("quizrag:chunk:").
		Tag("subject").
		Tag("unit").
		Numeric("seq").
		Vector("vector", spec)
}

func TestIndexBuilder_ChunkSchema(t *testing.T) {
	idx, err := chunkSchema(VectorSpec{Algorithm: VectorHNSW, Dim: 1536, M: 16, EFConstruction: 200}).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.Fields) != 4 {
		t.Fatalf("fields count = %d, want 4", len(idx.Fields))
	}
	if f := idx.Fields[0]; f.Kind != FieldTag || !f.CaseSensitive {
		t.Errorf("field[0] = %+v, want case-sensitive TAG", f)
	}
	v, ok := idx.VectorField()
	if !ok {
		t.Fatal("expected a vector field")
	}
	if v.Vector.Algorithm != VectorHNSW || v.Vector.Dim != 1536 || v.Vector.Distance != DistanceCosine {
		t.Errorf("vector spec = %+v", *v.Vector)
	}
}

func TestIndexBuilder_BuildCopies(t *testing.T) {
	b := chunkSchema(VectorSpec{Algorithm: VectorFlat, Dim: 8})
	first, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.Numeric("extra")
	if len(first.Fields) != 4 {
		t.Errorf("built definition changed after further builder calls: %d fields", len(first.Fields))
	}
}

func TestIndexBuilder_Validation(t *testing.T) {
	tests := []struct {
		name string
		b    *IndexBuilder
	}{
		{"empty name", NewIndex("").Tag("a")},
		{"invalid name", NewIndex("bad name").Tag("a")},
		{"dotted name", NewIndex("a.b").Tag("a")},
		{"no fields", NewIndex("idx")},
		{"duplicate field", NewIndex("idx").Tag("a").Numeric("a")},
		{"zero dim", NewIndex("idx").Vector("v", VectorSpec{Algorithm: VectorHNSW})},
		{"unknown algorithm", NewIndex("idx").Vector("v", VectorSpec{Algorithm: "IVF", Dim: 4})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.b.Build(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFieldKind_String(t *testing.T) {
	if FieldVector.String() != "VECTOR" || FieldKind(9).String() != "FieldKind(9)" {
		t.Errorf("unexpected names: %s %s", FieldVector, FieldKind(9))
	}
}
