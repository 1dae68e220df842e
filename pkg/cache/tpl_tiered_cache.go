package cache

import (
	"context"
	"fmt"
	"time"

	"template_server/core/port/out"
)

// Publisher announces a changed key to the other holders of an L1.
type Publisher interface {
	Publish(ctx context.Context, key string) error
}

// TieredCache combines an L1 (in-process) and L2 (remote) cache.
// Get checks L1 first, then L2 (backfilling L1 on L2 hit).
// Set and Delete operate on both levels and, with a publisher attached,
// evict the key from every other replica's L1.
type TieredCache struct {
	l1        out.Cache
	l2        out.Cache
	l1TTL     time.Duration
	publisher Publisher
}

// NewTieredCache creates a tiered cache. l1TTL bounds how long L2 backfills
// live in L1.
func NewTieredCache(l1, l2 out.Cache, l1TTL time.Duration) *TieredCache {
	return &TieredCache{l1: l1, l2: l2, l1TTL: l1TTL}
}

// WithPublisher attaches the cross-replica eviction channel.
func (c *TieredCache) WithPublisher(p Publisher) *TieredCache {
	c.publisher = p
	return c
}

// EvictLocal drops key from L1 only. It is the receiving side of a publish.
func (c *TieredCache) EvictLocal(key string) {
	_ = c.l1.Delete(context.Background(), key)
}

// Get checks L1, then L2.
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	_ = c.l1.Set(ctx, key, val, c.l1TTL)
	return val, true, nil
}

// Set writes to both levels. L1 never outlives the requested ttl.
func (c *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l1TTL := c.l1TTL
	if ttl < l1TTL {
		l1TTL = ttl
	}
	if err := c.l1.Set(ctx, key, value, l1TTL); err != nil {
		return err
	}
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.publish(ctx, key)
}

// Delete removes from both levels.
func (c *TieredCache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	if err := c.l2.Delete(ctx, key); err != nil {
		return err
	}
	return c.publish(ctx, key)
}

func (c *TieredCache) publish(ctx context.Context, key string) error {
	if c.publisher == nil {
		return nil
	}
	if err := c.publisher.Publish(ctx, key); err != nil {
		return fmt.Errorf("publish l1 eviction: %w", err)
	}
	return nil
}
