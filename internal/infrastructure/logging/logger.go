package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Gowrisankar10354/ac-remote-final/internal/infrastructure/config"
)

// serviceName is attached to every entry as the "service" field.
const serviceName = "acremote"

// Logger is the process-wide structured logger. Every entry carries the
// service and version fields. Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger writing to the stream named by cfg.Output
// ("stderr", anything else means stdout).
//
// Parameters:
//   - cfg: The logging section of the acremote config
//   - version: Build version, stamped on every entry
//
// Returns:
//   - *Logger: Logger with service and version fields attached
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}
	return NewWithWriter(output, cfg, version)
}

// NewWithWriter creates a Logger that writes to w, ignoring cfg.Output.
//
// The interactive console uses this to route log lines through the line
// editor so they do not corrupt the prompt.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// parseLevel maps logging.level to a slog level. Unknown names log at info.
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

// With derives a component logger, e.g. With("component", "mqtt").
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Default is the bootstrap logger used until the config is loaded:
// JSON, info, stderr.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stderr",
	}, "dev")
}
