package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger writes to stdout. Records carry service=agrodistri and the
// environment. Debug records are dropped in production.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true, Level: slog.LevelDebug}
	env := "development"
	if cfg != nil && cfg.AppEnv != "" {
		env = cfg.AppEnv
	}
	if cfg.IsProduction() {
		opts.Level = slog.LevelInfo
	}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if cfg != nil && cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With(slog.String("service", "agrodistri"), slog.String("env", env))
}
