package log

import (
	"log/slog"
	"strings"
)

// Config represents logging configuration.
type Config struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"` // "text" or "json"
}

// DefaultConfig returns default logging configuration. The shell flips
// to text output for interactive use.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "text",
	}
}

// ParseLevel parses string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Configure sets up the logger based on config.
func Configure(cfg Config) {
	level := ParseLevel(cfg.Level)

	var logger Logger
	switch strings.ToLower(cfg.Format) {
	case "text":
		logger = NewTextLogger(level)
	case "json":
		logger = NewJSONLogger(level)
	default:
		logger = NewJSONLogger(level)
	}

	SetDefault(logger)
}
