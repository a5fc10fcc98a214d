package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/quizrag/internal/db"
)

// CreateIndex issues FT.CREATE ... ON HASH for def.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	args := createArgs(def)

	err := s.do(ctx, s.b().Arbitrary("FT.CREATE").Args(args...).Build()).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, "index already exists"):
		return db.ErrIndexExists
	default:
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
}

// IndexExists reports whether FT.INFO knows the index.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.do(ctx, s.b().Arbitrary("FT.INFO").Args(name).Build()).Error()
	switch {
	case err == nil:
		return true, nil
	case isRedisErr(err, "unknown index name"):
		return false, nil
	default:
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
}

// createArgs renders everything after FT.CREATE; def must be valid.
func createArgs(def *db.IndexDefinition) []string {
	args := []string{def.Name, "ON", "HASH"}
	if n := len(def.Prefixes); n > 0 {
		args = append(args, "PREFIX", strconv.Itoa(n))
		args = append(args, def.Prefixes...)
	}
	args = append(args, "SCHEMA")
	for _, f := range def.Fields {
		args = append(args, fieldArgs(f)...)
	}
	return args
}

func fieldArgs(f db.IndexField) []string {
	switch f.Kind {
	case db.FieldTag:
		if f.CaseSensitive {
			return []string{f.Name, "TAG", "CASESENSITIVE"}
		}
		return []string{f.Name, "TAG"}
	case db.FieldNumeric:
		return []string{f.Name, "NUMERIC", "SORTABLE"}
	default:
		return vectorArgs(f.Name, *f.Vector)
	}
}

// vectorArgs renders "name VECTOR ALGO nattrs attrs..." as FT.CREATE expects.
func vectorArgs(name string, v db.VectorSpec) []string {
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(v.Dim),
		"DISTANCE_METRIC", string(v.Distance),
	}
	if v.Algorithm == db.VectorHNSW {
		if v.M > 0 {
			attrs = append(attrs, "M", strconv.Itoa(v.M))
		}
		if v.EFConstruction > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(v.EFConstruction))
		}
	} else if v.BlockSize > 0 {
		attrs = append(attrs, "BLOCK_SIZE", strconv.Itoa(v.BlockSize))
	}
	return append([]string{name, "VECTOR", string(v.Algorithm), strconv.Itoa(len(attrs))}, attrs...)
}
