package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// RistrettoCache is an in-process L1 cache backed by ristretto.
type RistrettoCache struct {
	c *ristretto.Cache[string, []byte]
}

const minCounters = 1000

// NewRistrettoCache creates a ristretto cache bounded by maxCostBytes of values.
func NewRistrettoCache(maxCostBytes int64) (*RistrettoCache, error) {
	counters := maxCostBytes / 100 * 10 // ~10x expected items
	if counters < minCounters {
		counters = minCounters
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoCache{c: c}, nil
}

// Get retrieves a value from the cache.
func (c *RistrettoCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value with the given TTL. Writes are applied before Set returns
// so a following Get observes them.
func (c *RistrettoCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	c.c.Wait()
	return nil
}

// Delete removes a value from the cache.
func (c *RistrettoCache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Close shuts down the cache and releases resources.
func (c *RistrettoCache) Close() {
	c.c.Close()
}
