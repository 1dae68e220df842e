package cache

import (
	"context"
	"testing"
	"time"

	"template_server/core/domain"
	"template_server/core/port/out"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCompliance runs the shared behaviour suite against any out.Cache.
func runCompliance(t *testing.T, c out.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k1", []byte("v1"), time.Minute))
		val, found, err := c.Get(ctx, "k1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "v1", string(val))
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "del", []byte("x"), time.Minute)
		require.NoError(t, c.Delete(ctx, "del"))
		_, found, err := c.Get(ctx, "del")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		assert.NoError(t, c.Delete(ctx, "never-existed"))
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "ow", []byte("v1"), time.Minute)
		_ = c.Set(ctx, "ow", []byte("v2"), time.Minute)
		val, found, err := c.Get(ctx, "ow")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "v2", string(val))
	})
}

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestByteCache_Compliance(t *testing.T) {
	c := NewByteCache(0)
	defer c.Close()
	runCompliance(t, c)
}

func TestRedisCache_Compliance(t *testing.T) {
	_, client := newMiniredisClient(t)
	runCompliance(t, NewRedisCache(client, "test:"))
}

func TestRistrettoCache_Compliance(t *testing.T) {
	c, err := NewRistrettoCache(1 << 20)
	require.NoError(t, err)
	defer c.Close()
	runCompliance(t, c)
}

func TestTieredCache_Compliance(t *testing.T) {
	l1 := NewByteCache(0)
	defer l1.Close()
	_, client := newMiniredisClient(t)
	runCompliance(t, NewTieredCache(l1, NewRedisCache(client, "tier:"), time.Minute))
}

func TestRedisCache_PrefixAndTTL(t *testing.T) {
	mr, client := newMiniredisClient(t)
	c := NewRedisCache(client, "template:")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "abc", []byte("{}"), time.Hour))
	assert.True(t, mr.Exists("template:abc"))

	ttl, err := c.TTL(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)

	mr.FastForward(time.Hour + time.Second)
	_, found, err := c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTieredCache_BackfillsL1(t *testing.T) {
	l1 := NewByteCache(0)
	defer l1.Close()
	l2 := NewByteCache(0)
	defer l2.Close()
	c := NewTieredCache(l1, l2, time.Minute)
	ctx := context.Background()

	require.NoError(t, l2.Set(ctx, "k", []byte("from-l2"), time.Hour))

	val, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "from-l2", string(val))

	val, found, _ = l1.Get(ctx, "k")
	assert.True(t, found)
	assert.Equal(t, "from-l2", string(val))
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache[domain.ValidationResult](0)
	defer c.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", domain.ValidationResult{Valid: true}, time.Minute)
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.True(t, got.Valid)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry must expire exactly at its TTL")
	assert.Equal(t, 1, c.Len(), "reads do not delete")

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_BackgroundSweep(t *testing.T) {
	c := NewMemoryCache[int](5 * time.Millisecond)
	defer c.Close()

	c.Set("short", 1, time.Millisecond)
	c.Set("long", 2, time.Hour)

	assert.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)
	v, ok := c.Get("long")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestMemoryCache_DeletePrefix(t *testing.T) {
	c := NewMemoryCache[int](0)
	defer c.Close()

	c.Set("validation:t1:a", 1, time.Minute)
	c.Set("validation:t1:b", 2, time.Minute)
	c.Set("validation:t2:a", 3, time.Minute)

	assert.Equal(t, 2, c.DeletePrefix("validation:t1:"))
	_, ok := c.Get("validation:t2:a")
	assert.True(t, ok)
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	c := NewMemoryCache[int](time.Millisecond)
	c.Close()
	c.Close()
}

func TestRistrettoCache_TinyBudget(t *testing.T) {
	for _, budget := range []int64{1, 50, 99} {
		c, err := NewRistrettoCache(budget)
		require.NoError(t, err, "budget %d", budget)
		_, found, err := c.Get(context.Background(), "k")
		require.NoError(t, err)
		assert.False(t, found)
		c.Close()
	}
}

// newReplica builds one process's view: a private L1 in front of the shared
// Redis L2, subscribed to the shared eviction channel.
func newReplica(t *testing.T, client *redis.Client) (*TieredCache, *ByteCache) {
	t.Helper()
	l1 := NewByteCache(0)
	t.Cleanup(l1.Close)

	tiered := NewTieredCache(l1, NewRedisCache(client, "tpl:"), time.Minute)
	inv, err := NewRedisInvalidator(context.Background(), client, "", tiered.EvictLocal)
	require.NoError(t, err)
	t.Cleanup(inv.Close)
	return tiered.WithPublisher(inv), l1
}

func TestTieredCache_EvictionReachesOtherReplicas(t *testing.T) {
	_, client := newMiniredisClient(t)
	ctx := context.Background()

	a, aL1 := newReplica(t, client)
	b, bL1 := newReplica(t, client)

	require.NoError(t, a.Set(ctx, "template:1", []byte("v1"), time.Hour))
	val, found, err := b.Get(ctx, "template:1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v1", string(val))

	// b now holds v1 in its L1; a overwrites.
	require.NoError(t, a.Set(ctx, "template:1", []byte("v2"), time.Hour))
	assert.Eventually(t, func() bool {
		_, inL1, _ := bL1.Get(ctx, "template:1")
		return !inL1
	}, time.Second, 5*time.Millisecond)

	val, _, err = b.Get(ctx, "template:1")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(val))

	require.NoError(t, a.Delete(ctx, "template:1"))
	assert.Eventually(t, func() bool {
		_, found, _ := b.Get(ctx, "template:1")
		return !found
	}, time.Second, 5*time.Millisecond)

	// The publisher keeps its own fresh L1 entry.
	require.NoError(t, a.Set(ctx, "template:2", []byte("own"), time.Hour))
	time.Sleep(20 * time.Millisecond)
	_, inL1, _ := aL1.Get(ctx, "template:2")
	assert.True(t, inL1)
}

func TestRedisInvalidator_CloseIsIdempotent(t *testing.T) {
	_, client := newMiniredisClient(t)
	inv, err := NewRedisInvalidator(context.Background(), client, "chan", func(string) {})
	require.NoError(t, err)
	inv.Close()
	inv.Close()
}
