package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a configured slog.Logger based on configuration.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(cfg, os.Stdout)
}

// NewWorkerLogger returns the worker's logger.
func NewWorkerLogger(cfg *WorkerConfig) *slog.Logger {
	if cfg == nil {
		return buildLogger(true, "", "worker", os.Stdout)
	}
	return buildLogger(cfg.IsProduction(), cfg.LogFormat, "worker", os.Stdout)
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	if cfg == nil {
		return buildLogger(true, "", "backoffice", w)
	}
	return buildLogger(cfg.IsProduction(), cfg.LogFormat, "backoffice", w)
}

func buildLogger(production bool, format, service string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if !production {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("service", service))
}
