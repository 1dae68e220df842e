package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"template_server/core/domain"
	"template_server/core/port/out"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

const uniqueViolation = "23505"

const templateColumns = `id, tenant_id, creator_id, name, content, variables, category,
	metadata, version, is_active, created_at, updated_at`

// TemplateAdapter implements out.TemplateStore using PostgreSQL.
type TemplateAdapter struct {
	db *sqlx.DB
}

// NewTemplateAdapter creates a new TemplateAdapter.
func NewTemplateAdapter(db *sqlx.DB) *TemplateAdapter {
	return &TemplateAdapter{db: db}
}

var _ out.TemplateStore = (*TemplateAdapter)(nil)

// templateRow represents the database row for message templates.
type templateRow struct {
	ID        string    `db:"id"`
	TenantID  string    `db:"tenant_id"`
	CreatorID string    `db:"creator_id"`
	Name      string    `db:"name"`
	Content   string    `db:"content"`
	Variables []byte    `db:"variables"`
	Category  string    `db:"category"`
	Metadata  []byte    `db:"metadata"`
	Version   int       `db:"version"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *templateRow) toDomain() (*domain.Template, error) {
	t := &domain.Template{
		ID:        r.ID,
		TenantID:  r.TenantID,
		CreatedBy: r.CreatorID,
		Name:      r.Name,
		Content:   r.Content,
		Category:  r.Category,
		Version:   r.Version,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Variables: []domain.VariableDeclaration{},
		Metadata:  map[string]any{},
	}

	if len(r.Variables) > 0 {
		if err := json.Unmarshal(r.Variables, &t.Variables); err != nil {
			return nil, fmt.Errorf("decode variables of %s: %w", r.ID, err)
		}
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", r.ID, err)
		}
	}
	return t, nil
}

func encodeJSON(t *domain.Template) (variables, metadata []byte, err error) {
	vars := t.Variables
	if vars == nil {
		vars = []domain.VariableDeclaration{}
	}
	if variables, err = json.Marshal(vars); err != nil {
		return nil, nil, fmt.Errorf("encode variables: %w", err)
	}
	meta := t.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	if metadata, err = json.Marshal(meta); err != nil {
		return nil, nil, fmt.Errorf("encode metadata: %w", err)
	}
	return variables, metadata, nil
}

// translateError maps driver errors to store sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return out.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", out.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// WithTx runs fn in a single transaction.
func (a *TemplateAdapter) WithTx(ctx context.Context, fn func(tx out.TemplateTx) error) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&templateTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID retrieves a template by ID within a tenant.
func (a *TemplateAdapter) GetByID(ctx context.Context, tenantID, id string) (*domain.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM message_templates WHERE id = $1 AND tenant_id = $2`

	var row templateRow
	if err := a.db.QueryRowxContext(ctx, query, id, tenantID).StructScan(&row); err != nil {
		return nil, translateError(err)
	}
	return row.toDomain()
}

// CountByTenant returns how many templates a tenant owns.
func (a *TemplateAdapter) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := a.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM message_templates WHERE tenant_id = $1`, tenantID).Scan(&n)
	return n, err
}

// List lists templates with filters.
func (a *TemplateAdapter) List(ctx context.Context, tenantID string, filter *domain.TemplateFilter) ([]*domain.Template, int, error) {
	f := domain.TemplateFilter{}
	if filter != nil {
		f = *filter
	}
	f.Normalize()

	baseQuery := `FROM message_templates WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	argIdx := 2

	if f.Category != nil {
		baseQuery += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, *f.Category)
		argIdx++
	}
	if f.IsActive != nil {
		baseQuery += fmt.Sprintf(` AND is_active = $%d`, argIdx)
		args = append(args, *f.IsActive)
		argIdx++
	}

	var total int
	if err := a.db.QueryRowxContext(ctx, `SELECT COUNT(*) `+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	selectQuery := fmt.Sprintf(`SELECT %s %s ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d`,
		templateColumns, baseQuery, argIdx, argIdx+1)
	args = append(args, f.Limit, f.Offset())

	rows, err := a.db.QueryxContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	templates := make([]*domain.Template, 0, f.Limit)
	for rows.Next() {
		var row templateRow
		if err := rows.StructScan(&row); err != nil {
			return nil, 0, err
		}
		t, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		templates = append(templates, t)
	}
	return templates, total, rows.Err()
}

// Delete deletes a template within a tenant.
func (a *TemplateAdapter) Delete(ctx context.Context, tenantID, id string) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM message_templates WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return out.ErrNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (a *TemplateAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

type templateTx struct {
	tx *sqlx.Tx
}

// Insert creates a new template row.
func (t *templateTx) Insert(ctx context.Context, tpl *domain.Template) error {
	variables, metadata, err := encodeJSON(tpl)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO message_templates (
			id, tenant_id, creator_id, name, content, variables,
			category, metadata, version, is_active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12
		)`

	_, err = t.tx.ExecContext(ctx, query,
		tpl.ID,
		tpl.TenantID,
		tpl.CreatedBy,
		tpl.Name,
		tpl.Content,
		variables,
		tpl.Category,
		metadata,
		tpl.Version,
		tpl.IsActive,
		tpl.CreatedAt,
		tpl.UpdatedAt,
	)
	return translateError(err)
}

// Update overwrites a template row scoped by id and tenant and bumps its version.
func (t *templateTx) Update(ctx context.Context, tpl *domain.Template, expectedVersion *int) error {
	variables, metadata, err := encodeJSON(tpl)
	if err != nil {
		return err
	}

	query := `
		UPDATE message_templates SET
			name = $1,
			content = $2,
			variables = $3,
			category = $4,
			metadata = $5,
			is_active = $6,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $7 AND tenant_id = $8`
	args := []interface{}{
		tpl.Name,
		tpl.Content,
		variables,
		tpl.Category,
		metadata,
		tpl.IsActive,
		tpl.ID,
		tpl.TenantID,
	}
	if expectedVersion != nil {
		query += ` AND version = $9`
		args = append(args, *expectedVersion)
	}
	query += ` RETURNING version, creator_id, created_at, updated_at`

	err = t.tx.QueryRowxContext(ctx, query, args...).
		Scan(&tpl.Version, &tpl.CreatedBy, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) || expectedVersion == nil {
		return translateError(err)
	}

	// Distinguish a stale version from a missing row
	var exists bool
	err = t.tx.QueryRowxContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM message_templates WHERE id = $1 AND tenant_id = $2)`,
		tpl.ID, tpl.TenantID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return out.ErrConflict
	}
	return out.ErrNotFound
}
