package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"template_server/config"
	"template_server/internal/bootstrap"
	"template_server/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	logCfg := logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "template-server",
		Console: cfg.IsDevelopment(),
	}
	logger.Init(logCfg)
	log := logger.New(logCfg)
	if envErr != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	app, cleanup, err := bootstrap.NewAPI(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize API")
	}
	defer cleanup()

	// Graceful shutdown with timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down API server")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(ctx); err != nil {
			log.Error().Err(err).Msg("error shutting down")
		} else {
			log.Info().Msg("API server shut down gracefully")
		}
	}()

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Msg("starting API server")
	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}
