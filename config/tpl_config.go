package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Backing services. Empty URLs select the in-process fallbacks.
	DatabaseURL string
	RedisURL    string

	// Template manager
	MaxTemplatesPerTenant int
	RateLimitRequests     int
	RateLimitWindow       time.Duration
	TemplateCacheTTL      time.Duration
	L1CacheMaxBytes       int64

	// Validation
	ValidationCacheTTL      time.Duration
	ValidationSweepInterval time.Duration
	SupportedLocales        []string
	FinancialContexts       []string

	// Store circuit breaker
	StoreTimeout               time.Duration
	BreakerFailures            uint32
	BreakerFailureRatio        float64
	BreakerMinRequests         uint32
	BreakerResetTimeout        time.Duration
	BreakerHalfOpenMaxRequests uint32

	// Audit
	AuditStream string

	// HTTP
	BodyLimit       int
	ShutdownTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")

	v.SetDefault("max_templates_per_tenant", 1000)
	v.SetDefault("rate_limit_requests", 100)
	v.SetDefault("rate_limit_window", "1m")
	v.SetDefault("template_cache_ttl", "1h")
	v.SetDefault("l1_cache_max_bytes", 0)

	v.SetDefault("validation_cache_ttl", "5m")
	v.SetDefault("validation_sweep_interval", "1m")
	v.SetDefault("supported_locales", "en,es,fr")
	v.SetDefault("financial_contexts", "invoice,payment,pricing")

	v.SetDefault("store_timeout", "5s")
	v.SetDefault("breaker_consecutive_failures", 5)
	v.SetDefault("breaker_failure_ratio", 0.6)
	v.SetDefault("breaker_min_requests", 10)
	v.SetDefault("breaker_reset_timeout", "30s")
	v.SetDefault("breaker_half_open_max_requests", 1)

	v.SetDefault("audit_stream", "template:audit")

	v.SetDefault("body_limit", 64*1024)
	v.SetDefault("shutdown_timeout", "10s")
}

// Load reads configuration from the environment. Keys are the upper-case
// forms of the defaults above, e.g. DATABASE_URL.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:        v.GetString("port"),
		Environment: v.GetString("env"),
		LogLevel:    v.GetString("log_level"),

		DatabaseURL: v.GetString("database_url"),
		RedisURL:    v.GetString("redis_url"),

		MaxTemplatesPerTenant: v.GetInt("max_templates_per_tenant"),
		RateLimitRequests:     v.GetInt("rate_limit_requests"),
		RateLimitWindow:       v.GetDuration("rate_limit_window"),
		TemplateCacheTTL:      v.GetDuration("template_cache_ttl"),
		L1CacheMaxBytes:       v.GetInt64("l1_cache_max_bytes"),

		ValidationCacheTTL:      v.GetDuration("validation_cache_ttl"),
		ValidationSweepInterval: v.GetDuration("validation_sweep_interval"),
		SupportedLocales:        splitList(v.GetString("supported_locales")),
		FinancialContexts:       splitList(v.GetString("financial_contexts")),

		StoreTimeout:               v.GetDuration("store_timeout"),
		BreakerFailures:            v.GetUint32("breaker_consecutive_failures"),
		BreakerFailureRatio:        v.GetFloat64("breaker_failure_ratio"),
		BreakerMinRequests:         v.GetUint32("breaker_min_requests"),
		BreakerResetTimeout:        v.GetDuration("breaker_reset_timeout"),
		BreakerHalfOpenMaxRequests: v.GetUint32("breaker_half_open_max_requests"),

		AuditStream: v.GetString("audit_stream"),

		BodyLimit:       v.GetInt("body_limit"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.MaxTemplatesPerTenant <= 0:
		return fmt.Errorf("MAX_TEMPLATES_PER_TENANT must be positive, got %d", c.MaxTemplatesPerTenant)
	case c.RateLimitRequests <= 0:
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.RateLimitRequests)
	case c.RateLimitWindow <= 0:
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	case c.TemplateCacheTTL <= 0:
		return fmt.Errorf("TEMPLATE_CACHE_TTL must be positive, got %s", c.TemplateCacheTTL)
	case c.L1CacheMaxBytes < 0:
		return fmt.Errorf("L1_CACHE_MAX_BYTES must not be negative, got %d", c.L1CacheMaxBytes)
	case c.StoreTimeout <= 0:
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	case c.BreakerFailureRatio < 0 || c.BreakerFailureRatio > 1:
		return fmt.Errorf("BREAKER_FAILURE_RATIO must be within [0,1], got %v", c.BreakerFailureRatio)
	case len(c.SupportedLocales) == 0:
		return fmt.Errorf("SUPPORTED_LOCALES must name at least one locale")
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
