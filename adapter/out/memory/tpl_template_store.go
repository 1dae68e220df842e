// Package memory provides in-process implementations of the outbound ports,
// used when no database is configured and as test doubles.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"template_server/core/domain"
	"template_server/core/port/out"
)

// TemplateStore is a map-backed TemplateStore. Transactions hold the write lock
// for their whole duration and stage writes until fn returns nil.
type TemplateStore struct {
	mu   sync.RWMutex
	rows map[string]*domain.Template
	now  func() time.Time
}

// NewTemplateStore creates an empty store.
func NewTemplateStore() *TemplateStore {
	return &TemplateStore{
		rows: make(map[string]*domain.Template),
		now:  time.Now,
	}
}

var _ out.TemplateStore = (*TemplateStore)(nil)

// WithTx runs fn against a staged view. fn must not call other store methods.
func (s *TemplateStore) WithTx(ctx context.Context, fn func(tx out.TemplateTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, staged: make(map[string]*domain.Template)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, t := range tx.staged {
		s.rows[id] = t
	}
	return nil
}

func (s *TemplateStore) GetByID(_ context.Context, tenantID, id string) (*domain.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.rows[id]
	if !ok || t.TenantID != tenantID {
		return nil, out.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *TemplateStore) CountByTenant(_ context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.rows {
		if t.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (s *TemplateStore) List(_ context.Context, tenantID string, filter *domain.TemplateFilter) ([]*domain.Template, int, error) {
	f := domain.TemplateFilter{}
	if filter != nil {
		f = *filter
	}
	f.Normalize()

	s.mu.RLock()
	matched := make([]*domain.Template, 0)
	for _, t := range s.rows {
		if t.TenantID != tenantID {
			continue
		}
		if f.Category != nil && t.Category != *f.Category {
			continue
		}
		if f.IsActive != nil && t.IsActive != *f.IsActive {
			continue
		}
		matched = append(matched, t.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := f.Offset()
	if start >= total {
		return []*domain.Template{}, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *TemplateStore) Delete(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.rows[id]
	if !ok || t.TenantID != tenantID {
		return out.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *TemplateStore) Ping(_ context.Context) error {
	return nil
}

// Len returns the number of stored templates across tenants.
func (s *TemplateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

type memoryTx struct {
	store  *TemplateStore
	staged map[string]*domain.Template
}

func (tx *memoryTx) lookup(id string) (*domain.Template, bool) {
	if t, ok := tx.staged[id]; ok {
		return t, true
	}
	t, ok := tx.store.rows[id]
	return t, ok
}

func (tx *memoryTx) nameTaken(tenantID, name, exceptID string) bool {
	check := func(t *domain.Template) bool {
		return t.ID != exceptID && t.TenantID == tenantID && t.Name == name
	}
	for id, t := range tx.store.rows {
		if staged, ok := tx.staged[id]; ok {
			t = staged
		}
		if check(t) {
			return true
		}
	}
	for id, t := range tx.staged {
		if _, ok := tx.store.rows[id]; !ok && check(t) {
			return true
		}
	}
	return false
}

func (tx *memoryTx) Insert(_ context.Context, t *domain.Template) error {
	if _, exists := tx.lookup(t.ID); exists {
		return out.ErrConflict
	}
	if tx.nameTaken(t.TenantID, t.Name, t.ID) {
		return out.ErrConflict
	}
	tx.staged[t.ID] = t.Clone()
	return nil
}

func (tx *memoryTx) Update(_ context.Context, t *domain.Template, expectedVersion *int) error {
	current, ok := tx.lookup(t.ID)
	if !ok || current.TenantID != t.TenantID {
		return out.ErrNotFound
	}
	if expectedVersion != nil && current.Version != *expectedVersion {
		return out.ErrConflict
	}
	if tx.nameTaken(t.TenantID, t.Name, t.ID) {
		return out.ErrConflict
	}

	t.Version = current.Version + 1
	t.UpdatedAt = tx.store.now().UTC()
	t.CreatedAt = current.CreatedAt
	t.CreatedBy = current.CreatedBy
	tx.staged[t.ID] = t.Clone()
	return nil
}
