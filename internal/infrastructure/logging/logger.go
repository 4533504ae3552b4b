package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/karolbe/ha-cp-ups/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "pwrstat-mqtt"

// Logger wraps slog.Logger with the service defaults. It satisfies the small
// Logger interfaces declared by the mqtt, publisher, history, ups and
// process packages.
//
// Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds the service logger from configuration. Unknown formats fall
// back to JSON, unknown outputs to stdout and unknown levels to info.
func New(cfg config.LoggingConfig, version string) *Logger {
	return newLogger(cfg, version, outputFor(cfg.Output))
}

func newLogger(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler.WithAttrs([]slog.Attr{
			slog.String("service", serviceName),
			slog.String("version", version),
		})),
	}
}

func outputFor(name string) io.Writer {
	if strings.EqualFold(name, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// parseLevel accepts debug, info, warn (or warning) and error in any case.
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

// With returns a child logger carrying extra attributes, typically
// "component".
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the JSON info logger used until configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

// Discard returns a logger that drops every entry.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
