// Package logging builds the daemon's structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sweeney/motion-detector/internal/config"
)

// New creates a logger from cfg. Every record carries the service name and
// version.
func New(cfg config.LoggingConfig, version string) *slog.Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	default:
		output = os.Stderr
	}
	return NewWithWriter(output, cfg, version)
}

// NewWithWriter is New with an explicit destination, used by the console to
// keep log lines off the prompt.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "motion-detector"),
		slog.String("version", version),
	})
	return slog.New(handler)
}

// ParseLevel converts a level name to slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
