package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"template_server/core/domain"
	"template_server/core/port/out"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTemplate(id, tenant, name string, created time.Time) *domain.Template {
	return &domain.Template{
		ID:        id,
		TenantID:  tenant,
		Name:      name,
		Content:   "Hi",
		Version:   1,
		IsActive:  true,
		Category:  "general",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func insert(t *testing.T, s *TemplateStore, tpl *domain.Template) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), func(tx out.TemplateTx) error {
		return tx.Insert(context.Background(), tpl)
	}))
}

func TestTemplateStore_InsertAndGet(t *testing.T) {
	s := NewTemplateStore()
	ctx := context.Background()
	insert(t, s, newTemplate("t1", "A", "welcome", time.Now()))

	got, err := s.GetByID(ctx, "A", "t1")
	require.NoError(t, err)
	assert.Equal(t, "welcome", got.Name)

	_, err = s.GetByID(ctx, "B", "t1")
	assert.ErrorIs(t, err, out.ErrNotFound)
}

func TestTemplateStore_DuplicateNamePerTenant(t *testing.T) {
	s := NewTemplateStore()
	insert(t, s, newTemplate("t1", "A", "welcome", time.Now()))

	err := s.WithTx(context.Background(), func(tx out.TemplateTx) error {
		return tx.Insert(context.Background(), newTemplate("t2", "A", "welcome", time.Now()))
	})
	assert.ErrorIs(t, err, out.ErrConflict)

	// Same name under another tenant is fine
	insert(t, s, newTemplate("t3", "B", "welcome", time.Now()))
	assert.Equal(t, 2, s.Len())
}

func TestTemplateStore_RollbackOnError(t *testing.T) {
	s := NewTemplateStore()
	boom := errors.New("boom")

	err := s.WithTx(context.Background(), func(tx out.TemplateTx) error {
		if err := tx.Insert(context.Background(), newTemplate("t1", "A", "a", time.Now())); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Len())
}

func TestTemplateStore_UpdateScopedAndVersioned(t *testing.T) {
	s := NewTemplateStore()
	ctx := context.Background()
	insert(t, s, newTemplate("t1", "A", "welcome", time.Now()))

	foreign := newTemplate("t1", "B", "welcome", time.Now())
	err := s.WithTx(ctx, func(tx out.TemplateTx) error { return tx.Update(ctx, foreign, nil) })
	assert.ErrorIs(t, err, out.ErrNotFound)

	upd := newTemplate("t1", "A", "welcome", time.Now())
	upd.Content = "Hello"
	require.NoError(t, s.WithTx(ctx, func(tx out.TemplateTx) error { return tx.Update(ctx, upd, nil) }))
	assert.Equal(t, 2, upd.Version)

	stale := 1
	err = s.WithTx(ctx, func(tx out.TemplateTx) error { return tx.Update(ctx, upd.Clone(), &stale) })
	assert.ErrorIs(t, err, out.ErrConflict)

	got, err := s.GetByID(ctx, "A", "t1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Content)
	assert.Equal(t, 2, got.Version)
}

func TestTemplateStore_ListFiltersAndPages(t *testing.T) {
	s := NewTemplateStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		tpl := newTemplate(name, "A", name, base.Add(time.Duration(i)*time.Minute))
		if name == "e" {
			tpl.IsActive = false
		}
		insert(t, s, tpl)
	}
	insert(t, s, newTemplate("x", "B", "x", base))

	page, total, err := s.List(ctx, "A", &domain.TemplateFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "e", page[0].ID) // newest first

	active := true
	page, total, err = s.List(ctx, "A", &domain.TemplateFilter{IsActive: &active, Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].ID)

	page, _, err = s.List(ctx, "A", &domain.TemplateFilter{Page: 10, Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestTemplateStore_Delete(t *testing.T) {
	s := NewTemplateStore()
	ctx := context.Background()
	insert(t, s, newTemplate("t1", "A", "welcome", time.Now()))

	assert.ErrorIs(t, s.Delete(ctx, "B", "t1"), out.ErrNotFound)
	require.NoError(t, s.Delete(ctx, "A", "t1"))
	assert.ErrorIs(t, s.Delete(ctx, "A", "t1"), out.ErrNotFound)
}
