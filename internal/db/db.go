// Package db defines the storage contract behind the Redis chunk index and
// embedding cache. Consumers declare the narrow slice they need.
package db

import (
	"context"
	"time"

	"github.com/kailas-cloud/quizrag/internal/domain/filter"
)

// Store is everything the redis driver provides.
//
//nolint:interfacebloat // facade; consumers use narrow sub-interfaces (ISP)
type Store interface {
	Ping(ctx context.Context) error
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// HashSetItem is one key and its fields for a pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore holds chunk records.
type HashStore interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HGetMulti returns one field of many hashes; missing keys yield "".
	HGetMulti(ctx context.Context, keys []string, field string) ([]string, error)
	DelMulti(ctx context.Context, keys []string) error
}

// KVStore backs the embedding cache and the chunk sequence counter.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// IncrBy atomically increments a counter and returns the new value.
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
}

// IndexManager creates the FT index on first use.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher runs FT.SEARCH queries.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	// SearchKeys returns up to limit keys matching f, without their fields.
	SearchKeys(ctx context.Context, index string, f filter.Expression, limit int) ([]string, error)
}
