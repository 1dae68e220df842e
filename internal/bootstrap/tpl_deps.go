package bootstrap

import (
	"context"
	"time"

	"template_server/adapter/out/audit"
	"template_server/adapter/out/memory"
	"template_server/adapter/out/persistence"
	"template_server/config"
	"template_server/core/domain"
	"template_server/core/port/out"
	"template_server/core/service/template"
	"template_server/infra/database"
	"template_server/pkg/cache"
	"template_server/pkg/metrics"
	"template_server/pkg/ratelimit"
	"template_server/pkg/resilience"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	connectTimeout     = 10 * time.Second
	latencyWindow      = 1000
	l1TTL              = time.Minute
	redisCachePrefix   = "tpl:"
	limiterRetention   = time.Hour
	limiterCleanupTick = time.Minute
)

type Dependencies struct {
	Config *config.Config
	Log    zerolog.Logger

	SQLDB *sqlx.DB      // nil when running on the in-memory store
	Redis *redis.Client // nil when REDIS_URL is unset

	Store     out.TemplateStore
	Cache     out.Cache
	Limiter   out.RateLimiter
	Audit     out.AuditSink
	Breaker   *resilience.Breaker
	Validator *template.Validator
	Latency   *metrics.LatencyRegistry

	TemplateService *template.Manager
}

func NewDependencies(cfg *config.Config, log zerolog.Logger) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg, Log: log}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	// Template store
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL, database.DefaultPostgresConfig())
		if err != nil {
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { db.Close() })

		if err := database.RunMigrations(ctx, db.DB); err != nil {
			cleanup()
			return nil, nil, err
		}
		if v, err := database.MigrationVersion(ctx, db.DB); err == nil {
			log.Info().Int64("schema_version", v).Msg("database migrated")
		}

		deps.SQLDB = db
		deps.Store = persistence.NewTemplateAdapter(db)
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory template store")
		deps.Store = memory.NewTemplateStore()
	}

	// Redis backed cache, limiter and audit stream
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedis(ctx, cfg.RedisURL, database.DefaultRedisConfig())
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { rdb.Close() })
		deps.Redis = rdb

		var templateCache out.Cache = cache.NewRedisCache(rdb, redisCachePrefix)
		if cfg.L1CacheMaxBytes > 0 {
			l1, err := cache.NewRistrettoCache(cfg.L1CacheMaxBytes)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			cleanups = append(cleanups, l1.Close)
			tiered := cache.NewTieredCache(l1, templateCache, l1TTL)

			// Every replica drops its L1 copy when another one writes or deletes
			inv, err := cache.NewRedisInvalidator(ctx, rdb, cache.DefaultInvalidationChannel, tiered.EvictLocal)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			cleanups = append(cleanups, inv.Close)
			templateCache = tiered.WithPublisher(inv)
		}
		deps.Cache = templateCache
		deps.Limiter = ratelimit.NewRedisLimiter(rdb)
		deps.Audit = audit.NewStreamSink(rdb, cfg.AuditStream)
	} else {
		log.Warn().Msg("REDIS_URL not set, using in-process cache and rate limiter")
		// Closed by the manager
		deps.Cache = cache.NewByteCache(cfg.ValidationSweepInterval)

		limiter := ratelimit.NewMemoryLimiter(limiterCleanupTick, max(limiterRetention, cfg.RateLimitWindow))
		cleanups = append(cleanups, limiter.Close)
		deps.Limiter = limiter
		deps.Audit = audit.NewLogSink(log)
	}

	// Store circuit breaker
	breakerCfg := template.StoreBreakerConfig(resilience.DefaultBreakerConfig("template-store"))
	breakerCfg.ConsecutiveFailures = cfg.BreakerFailures
	breakerCfg.FailureRatio = cfg.BreakerFailureRatio
	breakerCfg.MinRequests = cfg.BreakerMinRequests
	breakerCfg.ResetTimeout = cfg.BreakerResetTimeout
	breakerCfg.HalfOpenMaxRequests = cfg.BreakerHalfOpenMaxRequests
	breakerCfg.CallTimeout = cfg.StoreTimeout
	breakerCfg.OnStateChange = func(name, from, to string) {
		log.Warn().Str("breaker", name).Str("from", from).Str("to", to).Msg("circuit breaker state changed")
	}
	deps.Breaker = resilience.NewBreaker(breakerCfg)

	// Validation engine with its in-process result cache
	deps.Validator = template.NewValidator(template.ValidatorConfig{
		SupportedLocales:  cfg.SupportedLocales,
		FinancialContexts: cfg.FinancialContexts,
		CacheTTL:          cfg.ValidationCacheTTL,
	}, cache.NewMemoryCache[domain.ValidationResult](cfg.ValidationSweepInterval))

	deps.Latency = metrics.NewLatencyRegistry(latencyWindow)

	deps.TemplateService = template.NewManager(template.Config{
		MaxTemplatesPerTenant: cfg.MaxTemplatesPerTenant,
		RateLimitRequests:     cfg.RateLimitRequests,
		RateLimitWindow:       cfg.RateLimitWindow,
		CacheTTL:              cfg.TemplateCacheTTL,
	}, template.Deps{
		Store:     deps.Store,
		Cache:     deps.Cache,
		Limiter:   deps.Limiter,
		Validator: deps.Validator,
		Breaker:   deps.Breaker,
		Audit:     deps.Audit,
		Latency:   deps.Latency,
		Logger:    log,
	})
	cleanups = append(cleanups, deps.TemplateService.Close)

	return deps, cleanup, nil
}
