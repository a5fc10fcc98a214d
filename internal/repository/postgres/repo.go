// Package postgres stores chunk records in PostgreSQL with the pgvector
// extension and answers KNN queries with its cosine distance operator.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/quizrag/internal/domain"
	domchunk "github.com/kailas-cloud/quizrag/internal/domain/chunk"
	"github.com/kailas-cloud/quizrag/internal/domain/filter"
	"github.com/kailas-cloud/quizrag/internal/domain/index"
)

const (
	DefaultTable = "quizrag_chunks"

	codeUndefinedTable = "42P01"
)

// HNSWConfig holds pgvector HNSW build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Config describes the chunk table.
type Config struct {
	Dimensions int
	// Model is the embedding model every record must carry. Empty skips the check.
	Model string
	Table string
	HNSW  HNSWConfig
}

// Repo is a pgvector-backed vector index keyed by chunk ID.
type Repo struct {
	db  *sqlx.DB
	cfg Config
}

// Open connects with the pgx driver and pings the server.
func Open(ctx context.Context, dsn string, cfg Config) (*Repo, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	r, err := New(db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return r, nil
}

// New wraps an open database. The table name is checked because it is
// interpolated into SQL.
func New(db *sqlx.DB, cfg Config) (*Repo, error) {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if !tableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("table name %q: %w", cfg.Table, domain.ErrInvalidConfiguration)
	}
	if cfg.HNSW.M <= 0 {
		cfg.HNSW.M = 16
	}
	if cfg.HNSW.EFConstruct <= 0 {
		cfg.HNSW.EFConstruct = 64
	}
	return &Repo{db: db, cfg: cfg}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() error { return r.db.Close() }

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates the extension, table and indexes when missing.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if r.cfg.Dimensions <= 0 {
		return fmt.Errorf("chunk table needs positive dimensions, got %d: %w",
			r.cfg.Dimensions, domain.ErrInvalidConfiguration)
	}
	for _, stmt := range schemaStatements(r.cfg) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema %s: %w", r.cfg.Table, err)
		}
	}
	return nil
}

// Upsert writes records in one transaction; an overwritten record keeps its seq.
func (r *Repo) Upsert(ctx context.Context, records []domchunk.Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]recordRow, len(records))
	for i, rec := range records {
		if err := r.checkDim(len(rec.Vector())); err != nil {
			return fmt.Errorf("record %s: %w", rec.ID(), err)
		}
		if r.cfg.Model != "" && rec.Model() != r.cfg.Model {
			return fmt.Errorf("record %s embedded with %q, table expects %q: %w",
				rec.ID(), rec.Model(), r.cfg.Model, domain.ErrInvalidConfiguration)
		}
		rows[i] = toRecordRow(rec)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareNamedContext(ctx, upsertStatement(r.cfg.Table))
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", row.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert of %d chunks: %w", len(rows), err)
	}
	return nil
}

// Query returns up to k chunks nearest to vector that match f. A missing
// table is an empty index.
func (r *Repo) Query(ctx context.Context, vector []float32, k int, f filter.Expression) ([]index.Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidQuery)
	}
	if err := r.checkDim(len(vector)); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	where, args, err := whereClause(f, 2)
	if err != nil {
		return nil, err
	}
	args = append([]any{pgvector.NewVector(vector)}, args...)
	args = append(args, k)
	q := fmt.Sprintf(`SELECT id, doc_id, pos, start_rune, end_rune, content, source, subject, unit, seq,
	1 - (embedding <=> $1) AS score
FROM %s%s
ORDER BY embedding <=> $1, seq
LIMIT $%d`, r.cfg.Table, where, len(args))

	var rows []hitRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("knn query %s: %w", r.cfg.Table, err)
	}

	hits := make([]index.Hit, len(rows))
	for i, row := range rows {
		hits[i] = row.toHit()
	}
	return index.Rank(hits, k), nil
}

// Delete removes records by chunk ID. Missing IDs are ignored.
func (r *Repo) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(fmt.Sprintf(`DELETE FROM %s WHERE id IN (?)`, r.cfg.Table), ids)
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...); err != nil {
		if isUndefinedTable(err) {
			return nil
		}
		return fmt.Errorf("delete %d chunks: %w", len(ids), err)
	}
	return nil
}

// PruneDocument deletes the rows of docID whose IDs are not in keep and
// returns how many were removed.
func (r *Repo) PruneDocument(ctx context.Context, docID string, keep []string) (int, error) {
	q, args, err := pruneStatement(r.cfg.Table, docID, keep)
	if err != nil {
		return 0, fmt.Errorf("build prune: %w", err)
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("prune chunks of %s: %w", docID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune chunks of %s: %w", docID, err)
	}
	return int(n), nil
}

func pruneStatement(table, docID string, keep []string) (string, []any, error) {
	if len(keep) == 0 {
		return fmt.Sprintf(`DELETE FROM %s WHERE doc_id = ?`, table), []any{docID}, nil
	}
	return sqlx.In(fmt.Sprintf(`DELETE FROM %s WHERE doc_id = ? AND id NOT IN (?)`, table), docID, keep)
}

// Count returns the number of stored chunks.
func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, fmt.Sprintf(`SELECT count(*) FROM %s`, r.cfg.Table)); err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("count %s: %w", r.cfg.Table, err)
	}
	return n, nil
}

func (r *Repo) checkDim(n int) error {
	if n == 0 || (r.cfg.Dimensions > 0 && n != r.cfg.Dimensions) {
		return fmt.Errorf("vector has %d dims, table has %d: %w", n, r.cfg.Dimensions, domain.ErrVectorDimMismatch)
	}
	return nil
}

// whereClause renders f with positional parameters starting at $first.
func whereClause(f filter.Expression, first int) (string, []any, error) {
	if f.IsEmpty() {
		return "", nil, nil
	}
	var (
		parts []string
		args  []any
	)
	add := func(c filter.Condition, op string) error {
		col, ok := filterColumns[c.Key()]
		if !ok {
			return fmt.Errorf("filter key %q: %w", c.Key(), domain.ErrInvalidQuery)
		}
		args = append(args, c.Match())
		parts = append(parts, fmt.Sprintf("%s %s $%d", col, op, first+len(args)-1))
		return nil
	}
	for _, c := range f.Must() {
		if err := add(c, "="); err != nil {
			return "", nil, err
		}
	}
	for _, c := range f.MustNot() {
		if err := add(c, "<>"); err != nil {
			return "", nil, err
		}
	}
	return "\nWHERE " + strings.Join(parts, " AND "), args, nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable
}
