package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. JSON output is used when LOG_FORMAT
// asks for it or the process runs in production; local runs stay
// human-readable. Every record carries the app name so siteproc and its
// worker are distinguishable in shared log streams.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("app", "siteproc"))
}
