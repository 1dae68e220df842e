// Package logger builds the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog levels so callers do not import zerolog for config.
type Level = zerolog.Level

const (
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
	LevelFatal = zerolog.FatalLevel
)

// ParseLevel parses a string level to Level
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Config for logger
type Config struct {
	Level   Level
	Output  io.Writer
	Service string
	Console bool // human readable output for local development
}

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger. Only the first call has an effect.
func Init(cfg Config) {
	once.Do(func() {
		defaultLogger = New(cfg)
	})
}

// New creates a new logger instance
func New(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Service == "" {
		cfg.Service = "template-server"
	}
	out := cfg.Output
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.DurationFieldInteger = false
	return zerolog.New(out).
		Level(cfg.Level).
		With().
		Timestamp().
		Str("service", cfg.Service).
		Logger()
}

// Default returns the default logger
func Default() *zerolog.Logger {
	once.Do(func() {
		defaultLogger = New(Config{Level: LevelInfo})
	})
	return &defaultLogger
}

// Package-level helpers using the default logger
func Debug() *zerolog.Event { return Default().Debug() }
func Info() *zerolog.Event  { return Default().Info() }
func Warn() *zerolog.Event  { return Default().Warn() }
func Error() *zerolog.Event { return Default().Error() }
func Fatal() *zerolog.Event { return Default().Fatal() }

// WithComponent returns a child of the default logger tagged with a component name
func WithComponent(name string) zerolog.Logger {
	return Default().With().Str("component", name).Logger()
}
