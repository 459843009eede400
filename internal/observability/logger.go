package observability

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// LogConfig is the subset of service configuration the logger needs.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	File   string // appended to alongside stdout; empty disables the file sink
}

// NewLogger builds a slog.Logger writing to stdout and, when configured, a
// run log file. Opening the file is best-effort: a pipeline run should not
// die because the log directory is missing, so failures fall back to
// stdout-only and are reported on the returned logger.
func NewLogger(cfg LogConfig) *slog.Logger {
	var out io.Writer = os.Stdout
	var fileErr error

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			fileErr = err
		} else if f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
			fileErr = err
		} else {
			out = io.MultiWriter(os.Stdout, f)
		}
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	if fileErr != nil {
		logger.Warn("log file unavailable, logging to stdout only", "path", cfg.File, "error", fileErr)
	}
	return logger
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
