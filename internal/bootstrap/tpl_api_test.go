package bootstrap

import (
	"bytes"
	"context"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"template_server/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func createWelcome(t *testing.T, app *fiber.App) int {
	t.Helper()
	body := []byte(`{"name":"welcome","content":"Hello {firstName}!","variables":[{"name":"firstName","type":"TEXT","required":true}]}`)
	req := httptest.NewRequest(nethttp.MethodPost, "/api/v1/templates", bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Tenant-ID", "T1")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestNewAPI_InMemoryFallback(t *testing.T) {
	cfg := loadTestConfig(t)

	app, cleanup, err := NewAPI(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer cleanup()

	resp, err := app.Test(httptest.NewRequest(nethttp.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	assert.Equal(t, fiber.StatusCreated, createWelcome(t, app))
}

func TestNewDependencies_RedisBacked(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := loadTestConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.L1CacheMaxBytes = 1 << 20

	deps, cleanup, err := NewDependencies(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, deps.Redis)
	assert.Nil(t, deps.SQLDB)

	app := newApp(deps)
	assert.Equal(t, fiber.StatusCreated, createWelcome(t, app))

	n, err := deps.Redis.XLen(context.Background(), cfg.AuditStream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNewDependencies_BadRedisURL(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.RedisURL = "not-a-url://"

	_, _, err := NewDependencies(cfg, zerolog.Nop())
	assert.Error(t, err)
}
