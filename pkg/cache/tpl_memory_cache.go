package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache is an in-memory TTL map. Expired entries are hidden from reads
// immediately and removed by a background sweep so the map stays bounded
// without read traffic.
type MemoryCache[V any] struct {
	mu      sync.RWMutex
	data    map[string]memoryEntry[V]
	now     func() time.Time
	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

type memoryEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewMemoryCache creates a cache that sweeps expired entries every
// sweepInterval. A non-positive interval disables the sweeper.
func NewMemoryCache[V any](sweepInterval time.Duration) *MemoryCache[V] {
	c := &MemoryCache[V]{
		data: make(map[string]memoryEntry[V]),
		now:  time.Now,
		stop: make(chan struct{}),
	}
	if sweepInterval > 0 {
		c.wg.Add(1)
		go c.sweepLoop(sweepInterval)
	}
	return c
}

// Get returns the live value for key
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(entry.expiresAt) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores value for ttl. Last writer wins.
func (c *MemoryCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	c.data[key] = memoryEntry[V]{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes key
func (c *MemoryCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
}

// DeletePrefix removes every key starting with prefix and returns the count
func (c *MemoryCache[V]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not
func (c *MemoryCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Sweep removes expired entries and returns how many were dropped
func (c *MemoryCache[V]) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.data {
		if !now.Before(e.expiresAt) {
			delete(c.data, k)
			n++
		}
	}
	return n
}

func (c *MemoryCache[V]) sweepLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stop:
			return
		}
	}
}

// Close stops the sweeper. Safe to call more than once.
func (c *MemoryCache[V]) Close() {
	c.stopped.Do(func() {
		close(c.stop)
	})
	c.wg.Wait()
}

// ByteCache adapts a MemoryCache to the context-aware []byte cache port.
type ByteCache struct {
	m *MemoryCache[[]byte]
}

// NewByteCache creates an in-memory []byte cache
func NewByteCache(sweepInterval time.Duration) *ByteCache {
	return &ByteCache{m: NewMemoryCache[[]byte](sweepInterval)}
}

func (c *ByteCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.m.Get(key)
	return v, ok, nil
}

func (c *ByteCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.m.Set(key, value, ttl)
	return nil
}

func (c *ByteCache) Delete(_ context.Context, key string) error {
	c.m.Delete(key)
	return nil
}

// Close stops the sweeper
func (c *ByteCache) Close() {
	c.m.Close()
}
