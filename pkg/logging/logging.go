// Package logging builds the slog loggers used by txnsearch.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats accepted by NewConfig.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds logging configuration options.
type Config struct {
	// Level is the minimum log level to output.
	Level slog.Level
	// JSON selects the JSON handler instead of the text handler.
	JSON bool
	// Output is the writer to write logs to. Defaults to os.Stderr.
	Output io.Writer
}

// NewConfig builds a Config from a level name and a format name as they
// appear in TXNSEARCH_LOG_LEVEL and TXNSEARCH_LOG_FORMAT. Empty values mean
// INFO and text.
func NewConfig(level, format string) (Config, error) {
	cfg := Config{Level: slog.LevelInfo, Output: os.Stderr}

	if level != "" {
		l, err := ParseLevel(level)
		if err != nil {
			return Config{}, err
		}
		cfg.Level = l
	}

	switch strings.ToLower(format) {
	case "", FormatText:
	case FormatJSON:
		cfg.JSON = true
	default:
		return Config{}, fmt.Errorf("unknown log format %q, want %q or %q", format, FormatText, FormatJSON)
	}
	return cfg, nil
}

// ParseLevel converts a level name (DEBUG, INFO, WARN, ERROR, any case) to
// slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// New builds a logger for cfg without touching the process default.
func New(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: cfg.Level,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	return slog.New(handler).With("app", "txnsearch")
}

// Setup initializes the default slog logger with the given configuration.
func Setup(cfg Config) *slog.Logger {
	logger := New(cfg)
	slog.SetDefault(logger)
	return logger
}
