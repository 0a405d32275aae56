// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"

	"codeberg.org/oliverandrich/go-auth-service/internal/config"
	"codeberg.org/oliverandrich/go-auth-service/internal/handlers"
	"codeberg.org/oliverandrich/go-auth-service/internal/metrics"
	"codeberg.org/oliverandrich/go-auth-service/internal/repository"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/auth"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/codes"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/session"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/token"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vinovest/sqlx"
)

// App holds the wired services of one instance.
type App struct {
	Repo     *repository.Repository
	Codes    *codes.Issuer
	Tokens   *token.Service
	Auth     *auth.Service
	Cookies  *session.Manager
	Registry *prometheus.Registry
}

// NewApp wires the services on top of db.
func NewApp(cfg *config.Config, db *sqlx.DB, mailer auth.Mailer) (*App, error) {
	repo := repository.New(db)

	tokens, err := token.NewService(repo, &cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	issuer := codes.NewIssuer(repo, &cfg.Auth)

	svc, err := auth.NewService(repo, issuer, tokens, mailer, &cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}

	cookies, err := session.NewManager(&cfg.Session, tokens.RefreshTTL(), cfg.SecureCookies())
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie manager: %w", err)
	}

	return &App{
		Repo:     repo,
		Codes:    issuer,
		Tokens:   tokens,
		Auth:     svc,
		Cookies:  cookies,
		Registry: metrics.NewRegistry(),
	}, nil
}

// NewEcho builds the echo instance serving app.
func NewEcho(cfg *config.Config, app *App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, cfg)
	Register(e, Routes(app))
	return e
}
