package postgres

import (
	"fmt"
	"regexp"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// filterColumns maps filter keys to columns. Keys outside this map never reach SQL.
var filterColumns = map[string]string{
	"subject": "subject",
	"unit":    "unit",
	"doc_id":  "doc_id",
}

// schemaStatements returns the idempotent DDL for the chunk table. seq is the
// insertion sequence; upserts never touch it, so overwrites keep their rank
// on score ties.
func schemaStatements(cfg Config) []string {
	t := cfg.Table
	hnsw := fmt.Sprintf("m = %d, ef_construction = %d", cfg.HNSW.M, cfg.HNSW.EFConstruct)
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id         TEXT PRIMARY KEY,
	doc_id     TEXT NOT NULL,
	pos        INTEGER NOT NULL,
	start_rune INTEGER NOT NULL,
	end_rune   INTEGER NOT NULL,
	content    TEXT NOT NULL,
	source     TEXT NOT NULL DEFAULT '',
	subject    TEXT NOT NULL DEFAULT '',
	unit       TEXT NOT NULL DEFAULT '',
	model      TEXT NOT NULL DEFAULT '',
	embedding  vector(%d) NOT NULL,
	seq        BIGSERIAL
)`, t, cfg.Dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx ON %[1]s USING hnsw (embedding vector_cosine_ops) WITH (%[2]s)`, t, hnsw),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_tags_idx ON %[1]s (subject, unit)`, t),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_doc_idx ON %[1]s (doc_id)`, t),
	}
}

func upsertStatement(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (id, doc_id, pos, start_rune, end_rune, content, source, subject, unit, model, embedding)
VALUES (:id, :doc_id, :pos, :start_rune, :end_rune, :content, :source, :subject, :unit, :model, :embedding)
ON CONFLICT (id) DO UPDATE SET
	doc_id = EXCLUDED.doc_id,
	pos = EXCLUDED.pos,
	start_rune = EXCLUDED.start_rune,
	end_rune = EXCLUDED.end_rune,
	content = EXCLUDED.content,
	source = EXCLUDED.source,
	subject = EXCLUDED.subject,
	unit = EXCLUDED.unit,
	model = EXCLUDED.model,
	embedding = EXCLUDED.embedding`, table)
}
