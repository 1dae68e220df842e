package out

import (
	"context"
	"errors"

	"template_server/core/domain"
)

// Store outcome sentinels. Adapters wrap or return these so callers can
// branch with errors.Is.
var (
	ErrNotFound = errors.New("template not found")
	ErrConflict = errors.New("template conflict")
)

// TemplateStore defines the outbound port for the authoritative template store.
// Every read and write is scoped by tenant.
type TemplateStore interface {
	// WithTx runs fn inside a single transaction. The transaction commits when
	// fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx TemplateTx) error) error

	GetByID(ctx context.Context, tenantID, id string) (*domain.Template, error)
	CountByTenant(ctx context.Context, tenantID string) (int, error)
	List(ctx context.Context, tenantID string, filter *domain.TemplateFilter) ([]*domain.Template, int, error)
	Delete(ctx context.Context, tenantID, id string) error

	Ping(ctx context.Context) error
}

// TemplateTx is the transactional write surface of a TemplateStore.
type TemplateTx interface {
	// Insert persists a new template. Returns ErrConflict when the tenant
	// already owns a template with the same name.
	Insert(ctx context.Context, t *domain.Template) error

	// Update overwrites the row matching t.ID AND t.TenantID, increments the
	// version by one and refreshes updated_at. The new version and timestamp
	// are written back into t. When expectedVersion is non-nil the row must
	// currently carry that version, otherwise ErrConflict is returned.
	Update(ctx context.Context, t *domain.Template, expectedVersion *int) error
}
