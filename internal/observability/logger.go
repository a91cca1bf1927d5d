// Package observability provides structured logging and Prometheus metrics
// for the delivery pipeline.
package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggingConfig selects the level, handler format, and destination for the
// delivery pipeline's logs.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// NewLogger builds the slog logger shared by the pipeline components.
// JSON to stdout is the default, which is what the log shippers in front of
// the service expect; text output is for local runs.
func NewLogger(config LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(config.Level),
	}
	out := outputWriter(config.Output)

	if strings.ToLower(config.Format) == "text" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

func parseLevel(level string) slog.Level {
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

func outputWriter(output string) io.Writer {
	if strings.ToLower(output) == "stderr" {
		return os.Stderr
	}
	return os.Stdout
}
