package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 1000, cfg.MaxTemplatesPerTenant)
	assert.Equal(t, 100, cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, time.Hour, cfg.TemplateCacheTTL)
	assert.Equal(t, int64(0), cfg.L1CacheMaxBytes)
	assert.Equal(t, 5*time.Minute, cfg.ValidationCacheTTL)
	assert.Equal(t, []string{"en", "es", "fr"}, cfg.SupportedLocales)
	assert.Equal(t, []string{"invoice", "payment", "pricing"}, cfg.FinancialContexts)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, uint32(5), cfg.BreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.BreakerResetTimeout)
	assert.Equal(t, "template:audit", cfg.AuditStream)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("MAX_TEMPLATES_PER_TENANT", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("SUPPORTED_LOCALES", " en , de ,")
	t.Setenv("L1_CACHE_MAX_BYTES", "1048576")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 5, cfg.MaxTemplatesPerTenant)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, []string{"en", "de"}, cfg.SupportedLocales)
	assert.Equal(t, int64(1<<20), cfg.L1CacheMaxBytes)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"MAX_TEMPLATES_PER_TENANT", "0"},
		{"RATE_LIMIT_REQUESTS", "-1"},
		{"STORE_TIMEOUT", "0s"},
		{"BREAKER_FAILURE_RATIO", "1.5"},
		{"SUPPORTED_LOCALES", " , "},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
