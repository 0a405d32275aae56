// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"net/http"

	"codeberg.org/oliverandrich/go-auth-service/internal/handlers"
	"codeberg.org/oliverandrich/go-auth-service/internal/middleware"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route is one entry of the route table. Middleware runs in order before
// Handler.
type Route struct {
	Method     string
	Path       string
	Middleware []echo.MiddlewareFunc
	Handler    echo.HandlerFunc
}

// Routes builds the route table of the API.
func Routes(app *App) []Route {
	h := handlers.New(app.Repo)
	a := handlers.NewAuth(app.Auth, app.Cookies)
	requireToken := middleware.RequireToken(app.Tokens)
	metricsHandler := echo.WrapHandler(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))

	return []Route{
		{http.MethodPost, "/register", pipe(middleware.Validate[handlers.RegisterRequest]()), a.Register},
		{http.MethodPost, "/verify", pipe(middleware.Validate[handlers.VerifyRequest]()), a.Verify},
		{http.MethodPost, "/verify/resend", pipe(middleware.Validate[handlers.EmailRequest]()), a.ResendVerification},
		{http.MethodPost, "/login", pipe(middleware.Validate[handlers.LoginRequest]()), a.Login},
		{http.MethodPost, "/logout", pipe(requireToken), a.Logout},
		{http.MethodPost, "/refresh", pipe(middleware.Validate[handlers.RefreshRequest]()), a.Refresh},
		{http.MethodPost, "/forgotPsw", pipe(middleware.Validate[handlers.EmailRequest]()), a.ForgotPassword},
		{http.MethodPost, "/password/reset-code", pipe(middleware.Validate[handlers.EmailRequest]()), a.RequestPasswordReset},
		{http.MethodPost, "/password/reset", pipe(middleware.Validate[handlers.ResetPasswordRequest]()), a.ResetPassword},
		{http.MethodGet, "/health", nil, h.Health},
		{http.MethodGet, "/metrics", nil, metricsHandler},
	}
}

// Register adds every route of the table to e.
func Register(e *echo.Echo, routes []Route) {
	for _, r := range routes {
		e.Add(r.Method, r.Path, r.Handler, r.Middleware...)
	}
}

func pipe(stages ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	return stages
}
