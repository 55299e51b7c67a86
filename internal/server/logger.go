// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"io"
	"log/slog"
	"os"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/config"
	"github.com/lmittmann/tint"
)

// serviceName is attached to every log record.
const serviceName = "helpdesk-recovery"

// setupLogger configures the global slog logger.
func setupLogger(cfg config.LogConfig) {
	slog.SetDefault(slog.New(newLogHandler(os.Stdout, cfg)))
}

func newLogHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.DateTime, NoColor: w != os.Stdout})
	}

	return handler.WithAttrs([]slog.Attr{slog.String("service", serviceName)})
}
