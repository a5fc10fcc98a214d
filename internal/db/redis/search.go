package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/quizrag/internal/db"
	"github.com/kailas-cloud/quizrag/internal/domain/filter"
)

const scoreField = "__vector_score"

// SearchKNN runs a filtered KNN query. Entries come back nearest first with
// Score set to cosine similarity.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, errors.New("knn: index name is required")
	case len(q.Vector) == 0:
		return nil, errors.New("knn: query vector is empty")
	case q.K <= 0:
		return nil, fmt.Errorf("knn: k must be positive, got %d", q.K)
	}

	args := []string{q.IndexName, knnQuery(q.Filters, q.K)}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)+1))
		args = append(args, q.ReturnFields...)
		args = append(args, scoreField)
	}
	k := strconv.Itoa(q.K)
	args = append(args,
		"SORTBY", scoreField, "ASC",
		"LIMIT", "0", k,
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	raw, err := s.search(ctx, args)
	if err != nil {
		return nil, err
	}
	return parseKNNResult(raw)
}

// SearchCount returns the number of documents matching query.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	raw, err := s.search(ctx, []string{index, query, "LIMIT", "0", "0"})
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

// SearchKeys returns up to limit document keys matching f.
func (s *Store) SearchKeys(ctx context.Context, index string, f filter.Expression, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("search keys: limit must be positive, got %d", limit)
	}
	query := buildFilter(f)
	if query == "" {
		query = "*"
	}
	raw, err := s.search(ctx, []string{index, query, "NOCONTENT", "LIMIT", "0", strconv.Itoa(limit), "DIALECT", "2"})
	if err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, nil
	}
	keys := make([]string, 0, len(raw)-1)
	for _, m := range raw[1:] {
		if key, err := m.ToString(); err == nil {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *Store) search(ctx context.Context, args []string) ([]rueidis.RedisMessage, error) {
	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index name") {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return raw, nil
}

func knnQuery(expr filter.Expression, k int) string {
	pre := buildFilter(expr)
	if pre == "" {
		pre = "*"
	} else {
		pre = "(" + pre + ")"
	}
	return fmt.Sprintf("%s=>[KNN %d @vector $BLOB AS %s]", pre, k, scoreField)
}

// parseKNNResult reads the RESP2 reply [total, key1, fields1, key2, fields2, ...].
// Malformed pairs are skipped.
func parseKNNResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	res := &db.SearchResult{Total: int(total)}
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		pairs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		entry := db.SearchEntry{Key: key, Fields: parseFieldPairs(pairs)}
		if dist, ok := entry.Fields[scoreField]; ok {
			if d, err := strconv.ParseFloat(dist, 64); err == nil {
				entry.Score = 1 - d
			}
			delete(entry.Fields, scoreField)
		}
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

func parseFieldPairs(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for j := 0; j+1 < len(pairs); j += 2 {
		name, err := pairs[j].ToString()
		if err != nil {
			continue
		}
		if value, err := pairs[j+1].ToString(); err == nil {
			m[name] = value
		}
	}
	return m
}

// buildFilter renders the expression as space-joined TAG clauses; negated
// clauses get a leading "-".
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}
	var sb strings.Builder
	clause := func(neg bool, c filter.Condition) {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		if neg {
			sb.WriteByte('-')
		}
		sb.WriteByte('@')
		sb.WriteString(c.Key())
		sb.WriteString(":{")
		sb.WriteString(escapeTag(c.Match()))
		sb.WriteByte('}')
	}
	for _, c := range expr.Must() {
		clause(false, c)
	}
	for _, c := range expr.MustNot() {
		clause(true, c)
	}
	return sb.String()
}

// escapeTag backslash-escapes ASCII punctuation and spaces. Non-ASCII text
// such as Hangul passes through unchanged.
func escapeTag(v string) string {
	var sb strings.Builder
	sb.Grow(len(v))
	for _, r := range v {
		if r < 0x80 && r != '_' && !isASCIIAlnum(r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// vectorToBytes encodes v as little-endian FLOAT32, the BLOB format FT.SEARCH expects.
func vectorToBytes(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return string(buf)
}
