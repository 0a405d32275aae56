// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/go-auth-service/internal/appcontext"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/token"
	"github.com/labstack/echo/v4"
)

// ErrMissingToken is returned when a protected route is called without a
// bearer token.
var ErrMissingToken = errors.New("missing bearer token")

// TokenValidator checks a raw token of the given type.
type TokenValidator interface {
	Validate(ctx context.Context, raw, typ string) (*token.Claims, error)
}

// RequireToken rejects requests without a valid access token and stores the
// claims on the request context.
func RequireToken(tokens TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return ErrMissingToken
			}

			claims, err := tokens.Validate(c.Request().Context(), raw, token.TypeAccess)
			if err != nil {
				slog.Debug("token_rejected", "path", c.Path(), "error", err)
				return err
			}

			cc := appcontext.From(c)
			cc.Claims = claims
			cc.AccessToken = raw
			return next(cc)
		}
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
