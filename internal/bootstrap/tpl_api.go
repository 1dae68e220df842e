package bootstrap

import (
	"template_server/adapter/in/http"
	"template_server/config"
	"template_server/infra/middleware"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/rs/zerolog"
)

func NewAPI(cfg *config.Config, log zerolog.Logger) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize dependencies")
		return nil, nil, err
	}

	app := newApp(deps)
	log.Info().
		Bool("postgres", deps.SQLDB != nil).
		Bool("redis", deps.Redis != nil).
		Msg("API server initialized")

	return app, cleanup, nil
}

func newApp(deps *Dependencies) *fiber.App {
	cfg := deps.Config
	log := deps.Log

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(log),
		DisableStartupMessage: cfg.IsProduction(),

		// go-json for request and response bodies
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:          cfg.BodyLimit,
		ServerHeader:       "",
		DisableDefaultDate: true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover(log))       // 1. Panic recovery
	app.Use(middleware.RequestID())        // 2. Request ID
	app.Use(middleware.SecurityHeaders())  // 3. Security headers
	app.Use(middleware.RequestLogger(log)) // 4. Request logging
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Health check (no identity required)
	http.NewHealthHandler(deps.TemplateService, deps.TemplateService, log).
		WithDeps(deps.SQLDB, deps.Redis).
		Register(app)

	api := app.Group("/api/v1")
	api.Use(middleware.TenantIdentity())
	api.Use(middleware.RequireJSON())
	api.Use(middleware.MaxBodySize(cfg.BodyLimit))

	http.NewTemplateHandler(deps.TemplateService).Register(api)

	return app
}
