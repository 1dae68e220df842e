package template

import (
	"context"
	"testing"
	"time"

	"template_server/adapter/out/memory"
	"template_server/core/domain"
	"template_server/pkg/apperr"
	"template_server/pkg/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newReplicaManager builds a manager the way one process of a multi-replica
// deployment does: shared store, shared Redis tier, private ristretto L1.
func newReplicaManager(t *testing.T, store *memory.TemplateStore, client *redis.Client) *Manager {
	t.Helper()

	l1, err := cache.NewRistrettoCache(1 << 20)
	require.NoError(t, err)
	t.Cleanup(l1.Close)

	tiered := cache.NewTieredCache(l1, cache.NewRedisCache(client, "tpl:"), time.Minute)
	inv, err := cache.NewRedisInvalidator(context.Background(), client, cache.DefaultInvalidationChannel, tiered.EvictLocal)
	require.NoError(t, err)
	t.Cleanup(inv.Close)

	m := NewManager(Config{}, Deps{
		Store:  store,
		Cache:  tiered.WithPublisher(inv),
		Logger: zerolog.Nop(),
	})
	t.Cleanup(m.Close)
	return m
}

func TestManager_ReplicasSeeEachOthersWrites(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := memory.NewTemplateStore()
	a := newReplicaManager(t, store, client)
	b := newReplicaManager(t, store, client)
	ctx := context.Background()

	created, err := a.CreateTemplate(ctx, welcomeInput(), "T1", "u")
	require.NoError(t, err)

	got, err := b.GetTemplate(ctx, created.ID, "T1")
	require.NoError(t, err)
	assert.Equal(t, "Hi {firstName}!", got.Content)

	_, err = a.UpdateTemplate(ctx, created.ID, &domain.TemplateInput{Content: strPtr("Hello {firstName}")}, "T1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, err := b.GetTemplate(ctx, created.ID, "T1")
		return err == nil && got.Content == "Hello {firstName}" && got.Version == 2
	}, time.Second, 5*time.Millisecond, "replica b must observe the update")

	require.NoError(t, a.DeleteTemplate(ctx, created.ID, "T1"))

	assert.Eventually(t, func() bool {
		_, err := b.GetTemplate(ctx, created.ID, "T1")
		return apperr.HasCode(err, apperr.CodeNotFound)
	}, time.Second, 5*time.Millisecond, "replica b must stop serving the deleted template")
}
