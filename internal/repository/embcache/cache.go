package embcache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/quizrag/internal/db"
	"github.com/kailas-cloud/quizrag/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "emb_cache:"

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache keeps embeddings in a shared Redis/Valkey key-value store so several
// quizrag processes can reuse each other's vectors.
type Cache struct {
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
}

// New creates a store-backed embedding cache.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(s store, ttl time.Duration, cacheTotal *prometheus.CounterVec) *Cache {
	return &Cache{store: s, ttl: ttl, cacheTotal: cacheTotal}
}

// Get returns the cached vector for key. A missing key is a plain miss.
func (c *Cache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.store.Get(ctx, cacheKeyPrefix+key)
	if err != nil {
		c.incCache("miss")
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cached embedding: %w", err)
	}
	if len(data) == 0 {
		c.incCache("miss")
		return nil, false, nil
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.incCache("miss")
		return nil, false, err
	}

	c.incCache("hit")
	return vec, true, nil
}

// Put stores vec under key with the configured TTL.
func (c *Cache) Put(ctx context.Context, key string, vec []float32) error {
	if err := c.store.SetWithTTL(ctx, cacheKeyPrefix+key, vectorToCacheBytes(vec), c.ttl); err != nil {
		return fmt.Errorf("cache embedding: %w", err)
	}
	return nil
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
