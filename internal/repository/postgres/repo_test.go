package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/kailas-cloud/quizrag/internal/domain"
	domchunk "github.com/kailas-cloud/quizrag/internal/domain/chunk"
	"github.com/kailas-cloud/quizrag/internal/domain/filter"
)

// lazyDB opens a pool without dialing; tests below must fail before any query.
func lazyDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("pgx", "postgres://quizrag@127.0.0.1:1/none?connect_timeout=1")
	if err != nil {
		t.Fatalf("sqlx.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_TableName(t *testing.T) {
	db := lazyDB(t)
	tests := []struct {
		table   string
		wantErr bool
	}{
		{"", false},
		{"math_chunks", false},
		{"_x1", false},
		{"Chunks", true},
		{"chunks; drop table users", true},
		{"1chunks", true},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			r, err := New(db, Config{Dimensions: 3, Table: tt.table})
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidConfiguration) {
					t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if tt.table == "" && r.cfg.Table != DefaultTable {
				t.Errorf("default table: got %q", r.cfg.Table)
			}
			if r.cfg.HNSW.M != 16 || r.cfg.HNSW.EFConstruct != 64 {
				t.Errorf("hnsw defaults: %+v", r.cfg.HNSW)
			}
		})
	}
}

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements(Config{Dimensions: 768, Table: "c", HNSW: HNSWConfig{M: 8, EFConstruct: 100}})
	if len(stmts) != 5 {
		t.Fatalf("expected 5 statements, got %d", len(stmts))
	}
	all := strings.Join(stmts, "\n")
	for _, want := range []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		"embedding  vector(768)",
		"seq        BIGSERIAL",
		"USING hnsw (embedding vector_cosine_ops) WITH (m = 8, ef_construction = 100)",
		"ON c (doc_id)",
	} {
		if !strings.Contains(all, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}

func TestUpsertStatement_KeepsSeq(t *testing.T) {
	q := upsertStatement("c")
	if !strings.Contains(q, "ON CONFLICT (id) DO UPDATE") {
		t.Error("upsert must overwrite on id conflict")
	}
	if strings.Contains(q, "seq") {
		t.Error("upsert must never write seq")
	}
}

func TestWhereClause(t *testing.T) {
	must := func(k, v string) filter.Condition {
		c, err := filter.NewMatch(k, v)
		if err != nil {
			t.Fatalf("NewMatch: %v", err)
		}
		return c
	}

	empty, _ := filter.NewExpression(nil, nil)
	where, args, err := whereClause(empty, 2)
	if err != nil || where != "" || args != nil {
		t.Fatalf("empty filter: %q %v %v", where, args, err)
	}

	expr, err := filter.NewExpression(
		[]filter.Condition{must(filter.KeySubject, "수학"), must(filter.KeyUnit, "일차함수")},
		[]filter.Condition{must(filter.KeyDocument, "old-doc")},
	)
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}
	where, args, err = whereClause(expr, 2)
	if err != nil {
		t.Fatalf("whereClause: %v", err)
	}
	want := "\nWHERE subject = $2 AND unit = $3 AND doc_id <> $4"
	if where != want {
		t.Errorf("where:\n got %q\nwant %q", where, want)
	}
	if fmt.Sprint(args) != "[수학 일차함수 old-doc]" {
		t.Errorf("args: %v", args)
	}
}

func TestQuery_ValidatesBeforeDB(t *testing.T) {
	r, err := New(lazyDB(t), Config{Dimensions: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if _, err := r.Query(ctx, []float32{1, 0, 0}, 0, filter.Expression{}); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("k=0: expected ErrInvalidQuery, got %v", err)
	}
	if _, err := r.Query(ctx, []float32{1, 0}, 5, filter.Expression{}); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("short vector: expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestUpsert_DimMismatch(t *testing.T) {
	r, err := New(lazyDB(t), Config{Dimensions: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := domchunk.NewRecord(domchunk.New("doc", 0, 0, 4, "text", "", "", ""), []float32{1, 0}, "m")
	if err := r.Upsert(context.Background(), []domchunk.Record{rec}); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
	if err := r.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("empty upsert: %v", err)
	}
	if err := r.Delete(context.Background(), nil); err != nil {
		t.Fatalf("empty delete: %v", err)
	}
}

func TestUpsert_ModelMismatch(t *testing.T) {
	r, err := New(lazyDB(t), Config{Dimensions: 2, Model: "model-a"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := domchunk.NewRecord(domchunk.New("doc", 0, 0, 4, "text", "", "", ""), []float32{0, 1}, "model-b")
	err = r.Upsert(context.Background(), []domchunk.Record{rec})
	if !errors.Is(err, domain.ErrInvalidConfiguration) || errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected a model ErrInvalidConfiguration before any query, got %v", err)
	}
}

func TestPruneStatement(t *testing.T) {
	q, args, err := pruneStatement("c", "doc", []string{"doc-c0000", "doc-c0001"})
	if err != nil {
		t.Fatalf("pruneStatement: %v", err)
	}
	if q != "DELETE FROM c WHERE doc_id = ? AND id NOT IN (?, ?)" {
		t.Errorf("unexpected statement %q", q)
	}
	if fmt.Sprint(args) != "[doc doc-c0000 doc-c0001]" {
		t.Errorf("args: %v", args)
	}

	q, args, err = pruneStatement("c", "doc", nil)
	if err != nil || q != "DELETE FROM c WHERE doc_id = ?" || len(args) != 1 {
		t.Errorf("no kept ids must delete the whole document: %q %v %v", q, args, err)
	}
	if got := sqlx.Rebind(sqlx.DOLLAR, "DELETE FROM c WHERE doc_id = ? AND id NOT IN (?, ?)"); !strings.Contains(got, "$3") {
		t.Errorf("expected dollar placeholders, got %q", got)
	}
}

func TestEnsureSchema_NeedsDimensions(t *testing.T) {
	r, err := New(lazyDB(t), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.EnsureSchema(context.Background()); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestIsUndefinedTable(t *testing.T) {
	wrapped := fmt.Errorf("select: %w", &pgconn.PgError{Code: "42P01"})
	if !isUndefinedTable(wrapped) {
		t.Error("42P01 must count as undefined table")
	}
	if isUndefinedTable(&pgconn.PgError{Code: "23505"}) {
		t.Error("unique violation is not undefined table")
	}
	if isUndefinedTable(errors.New("boom")) {
		t.Error("plain error is not undefined table")
	}
}

func TestRowConversions(t *testing.T) {
	c := domchunk.New("doc-1", 2, 10, 20, "본문", "a.md", "수학", "함수")
	row := toRecordRow(domchunk.NewRecord(c, []float32{0.5, 0.5}, "emb"))
	if row.ID != c.ID() || row.Pos != 2 || row.Start != 10 || row.End != 20 || row.Model != "emb" {
		t.Errorf("record row: %+v", row)
	}
	if got := row.Embedding.Slice(); len(got) != 2 || got[0] != 0.5 {
		t.Errorf("embedding: %v", got)
	}

	hit := hitRow{ID: c.ID(), DocID: "doc-1", Pos: 2, Start: 10, End: 20, Content: "본문",
		Source: "a.md", Subject: "수학", Unit: "함수", Seq: 7, Score: 0.9}.toHit()
	if hit.Chunk != c || hit.Seq != 7 || hit.Score != 0.9 {
		t.Errorf("hit: %+v", hit)
	}
}
