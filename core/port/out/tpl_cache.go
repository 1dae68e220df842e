package out

import (
	"context"
	"time"

	"template_server/core/domain"
)

// Cache defines the outbound port for a TTL key-value cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ResultCache memoizes validation results in process.
type ResultCache interface {
	Get(key string) (domain.ValidationResult, bool)
	Set(key string, value domain.ValidationResult, ttl time.Duration)
	Delete(key string)
	DeletePrefix(prefix string) int
}

// RateLimiter defines the outbound port for rate limiting.
type RateLimiter interface {
	// Allow records one request for key and reports whether it fits within
	// limit requests per sliding window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Reset clears the recorded requests for a key.
	Reset(ctx context.Context, key string) error
}

// AuditEvent describes a template lifecycle change
type AuditEvent struct {
	Action     string    `json:"action"`
	TenantID   string    `json:"tenant_id"`
	UserID     string    `json:"user_id,omitempty"`
	TemplateID string    `json:"template_id"`
	Version    int       `json:"version,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// AuditSink receives lifecycle events. Recording failures must not fail the
// operation that produced the event.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}
