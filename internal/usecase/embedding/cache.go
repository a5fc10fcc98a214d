package embedding

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
)

// LRUCache is an in-process LRU cache for embeddings with optional expiry.
// No lock is held across provider calls.
type LRUCache struct {
	lru        *expirable.LRU[string, []float32]
	cacheTotal *prometheus.CounterVec
}

// NewLRUCache creates a cache holding up to capacity vectors.
// A zero ttl keeps entries until evicted. cacheTotal (label "result") may be nil.
func NewLRUCache(capacity int, ttl time.Duration, cacheTotal *prometheus.CounterVec) *LRUCache {
	return &LRUCache{
		lru:        expirable.NewLRU[string, []float32](max(capacity, 1), nil, ttl),
		cacheTotal: cacheTotal,
	}
}

// Get returns a copy of the cached vector if present and not expired.
func (c *LRUCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	vec, ok := c.lru.Get(key)
	if !ok {
		c.inc("miss")
		return nil, false, nil
	}
	c.inc("hit")
	return slices.Clone(vec), true, nil
}

// Put stores a copy of vec, evicting the least recently used entry when full.
func (c *LRUCache) Put(_ context.Context, key string, vec []float32) error {
	c.lru.Add(key, slices.Clone(vec))
	return nil
}

// Len returns the number of cached vectors.
func (c *LRUCache) Len() int { return c.lru.Len() }

func (c *LRUCache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
