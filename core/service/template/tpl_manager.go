package template

import (
	"context"
	"errors"
	"strings"
	"time"

	"template_server/core/domain"
	"template_server/core/port/in"
	"template_server/core/port/out"
	"template_server/pkg/apperr"
	"template_server/pkg/metrics"
	"template_server/pkg/resilience"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Operation names used for logging and latency stats.
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpGet      = "get"
	OpDelete   = "delete"
	OpList     = "list"
	OpValidate = "validate"
)

// Audit actions
const (
	AuditCreated = "template.created"
	AuditUpdated = "template.updated"
	AuditDeleted = "template.deleted"
)

const templateKeyPrefix = "template:"

// Config holds the manager's admission and caching limits.
type Config struct {
	MaxTemplatesPerTenant int
	RateLimitRequests     int
	RateLimitWindow       time.Duration
	CacheTTL              time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxTemplatesPerTenant: 1000,
		RateLimitRequests:     100,
		RateLimitWindow:       time.Minute,
		CacheTTL:              time.Hour,
	}
}

// Deps are the collaborators of a Manager. Limiter, Audit and Latency are
// optional. A nil Breaker gets the default store breaker.
type Deps struct {
	Store     out.TemplateStore
	Cache     out.Cache
	Limiter   out.RateLimiter
	Validator *Validator
	Breaker   *resilience.Breaker
	Audit     out.AuditSink
	Latency   *metrics.LatencyRegistry
	Logger    zerolog.Logger
}

// Manager owns the template lifecycle for all tenants.
type Manager struct {
	cfg       Config
	store     out.TemplateStore
	cache     out.Cache
	limiter   out.RateLimiter
	validator *Validator
	breaker   *resilience.Breaker
	audit     out.AuditSink
	latency   *metrics.LatencyRegistry
	log       zerolog.Logger

	now   func() time.Time
	newID func() string
}

var _ in.TemplateService = (*Manager)(nil)

// NewManager wires a manager.
func NewManager(cfg Config, deps Deps) *Manager {
	def := DefaultConfig()
	if cfg.MaxTemplatesPerTenant <= 0 {
		cfg.MaxTemplatesPerTenant = def.MaxTemplatesPerTenant
	}
	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = def.RateLimitRequests
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = def.RateLimitWindow
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}

	breaker := deps.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(StoreBreakerConfig(resilience.DefaultBreakerConfig("template-store")))
	}
	validator := deps.Validator
	if validator == nil {
		validator = NewValidator(ValidatorConfig{}, nil)
	}
	latency := deps.Latency
	if latency == nil {
		latency = metrics.NewLatencyRegistry(1000)
	}

	return &Manager{
		cfg:       cfg,
		store:     deps.Store,
		cache:     deps.Cache,
		limiter:   deps.Limiter,
		validator: validator,
		breaker:   breaker,
		audit:     deps.Audit,
		latency:   latency,
		log:       deps.Logger.With().Str("component", "template_manager").Logger(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// StoreBreakerConfig marks expected store outcomes as breaker successes.
func StoreBreakerConfig(cfg *resilience.BreakerConfig) *resilience.BreakerConfig {
	cfg.IsSuccessful = IsExpectedStoreError
	return cfg
}

// IsExpectedStoreError reports whether err is a normal store outcome rather
// than a store failure.
func IsExpectedStoreError(err error) bool {
	return errors.Is(err, out.ErrNotFound) || errors.Is(err, out.ErrConflict)
}

// =============================================================================
// Lifecycle
// =============================================================================

// CreateTemplate validates and persists a new template for tenantID.
func (m *Manager) CreateTemplate(ctx context.Context, input *domain.TemplateInput, tenantID, userID string) (tpl *domain.Template, err error) {
	start := time.Now()
	defer func() { m.observe(OpCreate, tenantID, templateID(tpl), start, err) }()

	if err := m.admit(ctx, tenantID); err != nil {
		return nil, err
	}

	var count int
	err = m.breaker.Execute(ctx, func(ctx context.Context) error {
		var e error
		count, e = m.store.CountByTenant(ctx, tenantID)
		return e
	})
	if err != nil {
		return nil, storeError("count templates", err)
	}
	if count >= m.cfg.MaxTemplatesPerTenant {
		return nil, apperr.QuotaExceeded(m.cfg.MaxTemplatesPerTenant)
	}

	if fieldErrs := checkInput(input, true); len(fieldErrs) > 0 {
		return nil, apperr.ValidationFailed("invalid template input", fieldErrs)
	}

	draft := newDraft(input)
	draft.TenantID = tenantID
	draft.CreatedBy = userID

	result := m.validator.Validate(ctx, draft, domain.ValidateOptions{})
	if !result.Valid {
		return nil, validationError(result)
	}

	now := m.now().UTC()
	draft.ID = m.newID()
	draft.CreatedAt = now
	draft.UpdatedAt = now

	err = m.breaker.Execute(ctx, func(ctx context.Context) error {
		return m.store.WithTx(ctx, func(tx out.TemplateTx) error {
			return tx.Insert(ctx, draft)
		})
	})
	if err != nil {
		return nil, storeError("create template", err)
	}

	m.cachePut(ctx, draft)
	m.record(ctx, AuditCreated, draft, userID)
	return draft.Clone(), nil
}

// UpdateTemplate merges input into the tenant's template and persists it with
// the version incremented by one.
func (m *Manager) UpdateTemplate(ctx context.Context, id string, input *domain.TemplateInput, tenantID string) (tpl *domain.Template, err error) {
	start := time.Now()
	defer func() { m.observe(OpUpdate, tenantID, id, start, err) }()

	if err := m.admit(ctx, tenantID); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, apperr.BadRequest("request body is required")
	}

	current, err := m.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if fieldErrs := checkInput(input, false); len(fieldErrs) > 0 {
		return nil, apperr.ValidationFailed("invalid template input", fieldErrs)
	}

	merged := merge(current, input)
	result := m.validator.Validate(ctx, merged, domain.ValidateOptions{})
	if !result.Valid {
		return nil, validationError(result)
	}

	err = m.breaker.Execute(ctx, func(ctx context.Context) error {
		return m.store.WithTx(ctx, func(tx out.TemplateTx) error {
			return tx.Update(ctx, merged, input.ExpectedVersion)
		})
	})
	if err != nil {
		if errors.Is(err, out.ErrConflict) && input.ExpectedVersion != nil {
			return nil, apperr.Conflict("template was modified concurrently").
				WithDetail("expected_version", *input.ExpectedVersion)
		}
		return nil, storeError("update template", err)
	}

	m.cachePut(ctx, merged)
	m.validator.Invalidate(id)
	m.record(ctx, AuditUpdated, merged, "")
	return merged.Clone(), nil
}

// GetTemplate returns the tenant's template, reading through the cache.
func (m *Manager) GetTemplate(ctx context.Context, id, tenantID string) (tpl *domain.Template, err error) {
	start := time.Now()
	defer func() { m.observe(OpGet, tenantID, id, start, err) }()

	if cached, ok := m.cacheGet(ctx, id); ok {
		if cached.TenantID != tenantID {
			return nil, apperr.NotFound("template")
		}
		return cached, nil
	}

	tpl, err = m.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	m.cachePut(ctx, tpl)
	return tpl, nil
}

// DeleteTemplate removes the tenant's template and evicts every cached
// projection of it.
func (m *Manager) DeleteTemplate(ctx context.Context, id, tenantID string) (err error) {
	start := time.Now()
	defer func() { m.observe(OpDelete, tenantID, id, start, err) }()

	if err := m.admit(ctx, tenantID); err != nil {
		return err
	}

	err = m.breaker.Execute(ctx, func(ctx context.Context) error {
		return m.store.Delete(ctx, tenantID, id)
	})
	if err != nil {
		return storeError("delete template", err)
	}

	m.cacheEvict(ctx, id)
	m.validator.Invalidate(id)
	m.record(ctx, AuditDeleted, &domain.Template{ID: id, TenantID: tenantID}, "")
	return nil
}

// ListTemplates returns one page of the tenant's templates.
func (m *Manager) ListTemplates(ctx context.Context, tenantID string, filter *domain.TemplateFilter) (page *domain.TemplatePage, err error) {
	start := time.Now()
	defer func() { m.observe(OpList, tenantID, "", start, err) }()

	f := domain.TemplateFilter{}
	if filter != nil {
		f = *filter
	}
	f.Normalize()

	var (
		templates []*domain.Template
		total     int
	)
	err = m.breaker.Execute(ctx, func(ctx context.Context) error {
		var e error
		templates, total, e = m.store.List(ctx, tenantID, &f)
		return e
	})
	if err != nil {
		return nil, storeError("list templates", err)
	}
	if templates == nil {
		templates = []*domain.Template{}
	}

	return &domain.TemplatePage{
		Templates: templates,
		Total:     total,
		Page:      f.Page,
		Limit:     f.Limit,
	}, nil
}

// =============================================================================
// Validation
// =============================================================================

// ValidateTemplate validates a stored template without mutating it.
func (m *Manager) ValidateTemplate(ctx context.Context, id, tenantID string, opts domain.ValidateOptions) (*domain.ValidationResult, error) {
	tpl, err := m.GetTemplate(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := m.validator.Validate(ctx, tpl, opts)
	m.observe(OpValidate, tenantID, id, start, nil)
	return &result, nil
}

// ValidateDraft validates unsaved input as if it were being created.
func (m *Manager) ValidateDraft(ctx context.Context, input *domain.TemplateInput, opts domain.ValidateOptions) (*domain.ValidationResult, error) {
	if input == nil {
		return nil, apperr.BadRequest("request body is required")
	}

	start := time.Now()
	result := m.validator.Validate(ctx, newDraft(input), opts)
	m.observe(OpValidate, "", "", start, nil)
	return &result, nil
}

// =============================================================================
// Health
// =============================================================================

// ManagerStats is a snapshot of breaker state and per-operation latency.
type ManagerStats struct {
	Breaker    resilience.BreakerStats         `json:"breaker"`
	Operations map[string]metrics.LatencyStats `json:"operations"`
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		Breaker:    m.breaker.Stats(),
		Operations: m.latency.AllStats(),
	}
}

// Ping checks the store directly, bypassing the breaker.
func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

// Close releases the validation cache and any closable template cache.
func (m *Manager) Close() {
	m.validator.Close()
	if c, ok := m.cache.(interface{ Close() }); ok {
		c.Close()
	}
}

// =============================================================================
// Internals
// =============================================================================

// admit applies the per-tenant rate limit. Limiter failures admit the request.
func (m *Manager) admit(ctx context.Context, tenantID string) error {
	if m.limiter == nil {
		return nil
	}
	ok, err := m.limiter.Allow(ctx, "templates:"+tenantID, m.cfg.RateLimitRequests, m.cfg.RateLimitWindow)
	if err != nil {
		m.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("rate limiter unavailable, admitting request")
		return nil
	}
	if !ok {
		return apperr.RateLimited(tenantID)
	}
	return nil
}

// load reads the tenant's template from the store. Foreign and missing rows
// are both NOT_FOUND.
func (m *Manager) load(ctx context.Context, tenantID, id string) (*domain.Template, error) {
	var tpl *domain.Template
	err := m.breaker.Execute(ctx, func(ctx context.Context) error {
		var e error
		tpl, e = m.store.GetByID(ctx, tenantID, id)
		return e
	})
	if err != nil {
		return nil, storeError("get template", err)
	}
	return tpl, nil
}

func (m *Manager) cacheGet(ctx context.Context, id string) (*domain.Template, bool) {
	if m.cache == nil {
		return nil, false
	}
	raw, ok, err := m.cache.Get(ctx, templateKeyPrefix+id)
	if err != nil {
		m.log.Warn().Err(err).Str("template_id", id).Msg("template cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var tpl domain.Template
	if err := json.Unmarshal(raw, &tpl); err != nil {
		m.log.Warn().Err(err).Str("template_id", id).Msg("discarding undecodable cache entry")
		m.cacheEvict(ctx, id)
		return nil, false
	}
	return &tpl, true
}

// cachePut overwrites the cached copy. Failures are logged; the store
// remains authoritative.
func (m *Manager) cachePut(ctx context.Context, tpl *domain.Template) {
	if m.cache == nil || tpl == nil {
		return
	}
	raw, err := json.Marshal(tpl)
	if err != nil {
		m.log.Warn().Err(err).Str("template_id", tpl.ID).Msg("template cache encode failed")
		return
	}
	if err := m.cache.Set(ctx, templateKeyPrefix+tpl.ID, raw, m.cfg.CacheTTL); err != nil {
		m.log.Warn().Err(err).Str("template_id", tpl.ID).Msg("template cache write failed")
	}
}

func (m *Manager) cacheEvict(ctx context.Context, id string) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Delete(ctx, templateKeyPrefix+id); err != nil {
		m.log.Warn().Err(err).Str("template_id", id).Msg("template cache evict failed")
	}
}

func (m *Manager) record(ctx context.Context, action string, tpl *domain.Template, userID string) {
	if m.audit == nil {
		return
	}
	event := out.AuditEvent{
		Action:     action,
		TenantID:   tpl.TenantID,
		UserID:     userID,
		TemplateID: tpl.ID,
		Version:    tpl.Version,
		Timestamp:  m.now().UTC(),
	}
	if err := m.audit.Record(context.WithoutCancel(ctx), event); err != nil {
		m.log.Warn().Err(err).Str("action", action).Str("template_id", tpl.ID).Msg("audit record failed")
	}
}

// observe logs the outcome of an operation and records its latency.
func (m *Manager) observe(op, tenantID, id string, start time.Time, err error) {
	elapsed := time.Since(start)
	m.latency.Record(op, elapsed, err != nil && apperr.GetHTTPStatus(err) >= 500)

	var ev *zerolog.Event
	switch {
	case err == nil:
		ev = m.log.Info()
	case apperr.GetHTTPStatus(err) < 500:
		ev = m.log.Warn().Str("code", apperr.AsAppError(err).Code)
	default:
		ev = m.log.Error().Err(err).Str("code", apperr.AsAppError(err).Code)
	}
	ev.Str("operation", op).
		Str("tenant_id", tenantID).
		Str("template_id", id).
		Float64("duration_ms", float64(elapsed.Microseconds())/1000).
		Msg("template operation")
}

func templateID(t *domain.Template) string {
	if t == nil {
		return ""
	}
	return t.ID
}

// storeError converts a breaker-wrapped store error into an AppError.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return apperr.ServiceUnavailable(op, err)
	case errors.Is(err, out.ErrNotFound):
		return apperr.NotFound("template")
	case errors.Is(err, out.ErrConflict):
		return apperr.Conflict("a template with this name already exists")
	case errors.Is(err, resilience.ErrCallTimeout):
		return apperr.Timeout(op)
	}
	return apperr.DatabaseError(op, err)
}

// checkInput enforces schema-level field constraints before business validation.
func checkInput(input *domain.TemplateInput, create bool) []apperr.FieldError {
	if input == nil {
		return []apperr.FieldError{{Field: "body", Code: domain.ErrCodeInvalidTemplate, Message: "request body is required"}}
	}

	var errs []apperr.FieldError
	if create {
		if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
			errs = append(errs, apperr.FieldError{Field: "name", Path: []string{"name"}, Code: domain.ErrCodeInvalidTemplate, Message: "name is required"})
		}
		if input.Content == nil {
			errs = append(errs, apperr.FieldError{Field: "content", Path: []string{"content"}, Code: domain.ErrCodeInvalidTemplate, Message: "content is required"})
		}
	}
	if input.Metadata != nil {
		if v, ok := input.Metadata[domain.MetadataContextKey]; ok && v != nil {
			if _, isString := v.(string); !isString {
				errs = append(errs, apperr.FieldError{
					Field:   "metadata.context",
					Path:    []string{"metadata", domain.MetadataContextKey},
					Code:    domain.ErrCodeInvalidTemplate,
					Message: "metadata.context must be a string",
				})
			}
		}
	}
	if input.ExpectedVersion != nil && *input.ExpectedVersion < 1 {
		errs = append(errs, apperr.FieldError{Field: "expectedVersion", Path: []string{"expectedVersion"}, Code: domain.ErrCodeInvalidTemplate, Message: "expectedVersion must be positive"})
	}
	return errs
}

// newDraft builds the provisional template for input.
func newDraft(input *domain.TemplateInput) *domain.Template {
	t := &domain.Template{
		Variables: []domain.VariableDeclaration{},
		Metadata:  map[string]any{},
		Version:   1,
		IsActive:  true,
	}
	if input.Name != nil {
		t.Name = strings.TrimSpace(*input.Name)
	}
	if input.Content != nil {
		t.Content = *input.Content
	}
	if input.Variables != nil {
		t.Variables = cloneVariables(*input.Variables)
	}
	if input.Category != nil {
		t.Category = *input.Category
	}
	if input.Metadata != nil {
		for k, v := range input.Metadata {
			t.Metadata[k] = v
		}
	}
	if input.IsActive != nil {
		t.IsActive = *input.IsActive
	}
	return t
}

// merge applies the non-nil fields of input to a copy of current.
func merge(current *domain.Template, input *domain.TemplateInput) *domain.Template {
	t := current.Clone()
	if input.Name != nil {
		t.Name = strings.TrimSpace(*input.Name)
	}
	if input.Content != nil {
		t.Content = *input.Content
	}
	if input.Variables != nil {
		t.Variables = cloneVariables(*input.Variables)
	}
	if input.Category != nil {
		t.Category = *input.Category
	}
	if input.Metadata != nil {
		t.Metadata = make(map[string]any, len(input.Metadata))
		for k, v := range input.Metadata {
			t.Metadata[k] = v
		}
	}
	if input.IsActive != nil {
		t.IsActive = *input.IsActive
	}
	return t
}

func cloneVariables(vars []domain.VariableDeclaration) []domain.VariableDeclaration {
	cloned := make([]domain.VariableDeclaration, len(vars))
	for i, v := range vars {
		cloned[i] = v.Clone()
	}
	return cloned
}

func validationError(result domain.ValidationResult) error {
	errs := make([]apperr.FieldError, len(result.Errors))
	for i, e := range result.Errors {
		msg := e.LocalizedMessage
		if msg == "" {
			msg = e.Message
		}
		errs[i] = apperr.FieldError{
			Field:   e.Field,
			Message: msg,
			Code:    e.Code,
			Details: e.Details,
			Path:    e.Path,
		}
	}
	return apperr.ValidationFailed("template validation failed", errs)
}
