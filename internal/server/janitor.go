// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"log/slog"
	"time"
)

// DefaultJanitorInterval is used when no interval is configured.
const DefaultJanitorInterval = 10 * time.Minute

// runJanitor purges spent codes and expired sessions every interval until
// ctx is done.
func runJanitor(ctx context.Context, app *App, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge(ctx, app)
		}
	}
}

func purge(ctx context.Context, app *App) {
	codes, err := app.Codes.Purge(ctx)
	if err != nil {
		slog.Error("purge_codes_failed", "error", err)
	}
	sessions, err := app.Tokens.Purge(ctx)
	if err != nil {
		slog.Error("purge_sessions_failed", "error", err)
	}
	if codes > 0 || sessions > 0 {
		slog.Info("purge_complete", "codes", codes, "sessions", sessions)
	}
}
