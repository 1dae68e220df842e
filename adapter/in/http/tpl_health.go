package http

import (
	"context"
	"time"

	"template_server/core/service/template"
	"template_server/infra/database"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// StatsProvider exposes manager statistics.
type StatsProvider interface {
	Stats() template.ManagerStats
}

type HealthHandler struct {
	store   HealthChecker
	stats   StatsProvider
	db      *sqlx.DB
	redis   *redis.Client
	timeout time.Duration
	log     zerolog.Logger
}

// NewHealthHandler reports only a status word per dependency; failure
// details go to log.
func NewHealthHandler(store HealthChecker, stats StatsProvider, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		store:   store,
		stats:   stats,
		timeout: 5 * time.Second,
		log:     log.With().Str("component", "health").Logger(),
	}
}

// WithDeps attaches the optional database and redis clients.
func (h *HealthHandler) WithDeps(db *sqlx.DB, rdb *redis.Client) *HealthHandler {
	h.db = db
	h.redis = rdb
	return h
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
}

// Health reports dependency status, breaker state and operation latency.
// It answers 503 when the store is unreachable or the breaker is open.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	checks, healthy := h.check(c.UserContext())

	body := fiber.Map{
		"status":    "ok",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.stats != nil {
		stats := h.stats.Stats()
		body["breaker"] = stats.Breaker
		body["operations"] = stats.Operations
		if stats.Breaker.State == "open" {
			healthy = false
		}
	}
	if h.db != nil {
		body["pool"] = database.GetPoolStats(h.db)
	}
	if h.redis != nil {
		body["redis_pool"] = database.GetRedisStats(h.redis)
	}

	statusCode := fiber.StatusOK
	if !healthy {
		body["status"] = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}
	return c.Status(statusCode).JSON(body)
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	checks, healthy := h.check(c.UserContext())

	status := "ready"
	statusCode := fiber.StatusOK
	if !healthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) check(parent context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(parent, h.timeout)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	// Check template store
	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Msg("store health check failed")
			checks["store"] = "unhealthy"
			allHealthy = false
		} else {
			checks["store"] = "healthy"
		}
	} else {
		checks["store"] = "not configured"
	}

	// Check Redis. Reported only, never fails readiness.
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			h.log.Warn().Err(err).Msg("redis health check failed")
			checks["redis"] = "unhealthy"
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "not configured"
	}

	return checks, allHealthy
}
