// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// parseLevel accepts the slog level names; anything else is info.
func parseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// newLogHandler writes JSON lines for "json" and colored text otherwise.
// Debug logs carry the source position.
func newLogHandler(w io.Writer, level, format string) slog.Handler {
	lvl := parseLevel(level)
	debug := lvl <= slog.LevelDebug

	if format == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, AddSource: debug})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		AddSource:  debug,
		TimeFormat: time.DateTime,
	})
}

func setupLogger(level, format string) {
	slog.SetDefault(slog.New(newLogHandler(os.Stdout, level, format)))
}
