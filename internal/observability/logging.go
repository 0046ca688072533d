package observability

import (
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/climate-anomaly-etl/internal/config"
)

// NewLogger builds the service logger from config: a JSON or text slog
// handler at the configured level, writing to stdout. Unknown levels fall
// back to info rather than failing startup over a typo.
func NewLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
