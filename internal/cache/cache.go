// Package cache wraps ristretto as a small TTL response cache.
package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// Cache is a TTL-bounded byte cache keyed by string.
type Cache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

// New creates a cache holding up to maxCost bytes with a fixed TTL.
func New(maxCost int64, ttl time.Duration) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, ttl: ttl}, nil
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache) Get(key string) ([]byte, bool) {
	v, ok := c.c.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

// Set stores val under key, costed by its length.
func (c *Cache) Set(key string, val []byte) {
	c.c.SetWithTTL(key, val, int64(len(val)), c.ttl)
}

// Del removes key.
func (c *Cache) Del(key string) { c.c.Del(key) }
