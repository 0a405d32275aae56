// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package appcontext provides the custom Echo context shared by the
// middleware pipeline and the handlers.
package appcontext

import (
	"codeberg.org/oliverandrich/go-auth-service/internal/services/token"
	"github.com/labstack/echo/v4"
)

// Context is a custom Echo context carrying what earlier pipeline stages
// established about the request.
type Context struct {
	echo.Context
	Payload     any           // validated request body, nil until validated
	Claims      *token.Claims // nil if not authenticated
	AccessToken string
}

// From returns c as *Context, wrapping it when an upstream middleware did not.
func From(c echo.Context) *Context {
	if cc, ok := c.(*Context); ok {
		return cc
	}
	return &Context{Context: c}
}

// IsAuthenticated returns true if a valid access token was presented.
func (c *Context) IsAuthenticated() bool {
	return c.Claims != nil
}

// Payload returns the validated request body stored on c.
func Payload[T any](c echo.Context) (*T, bool) {
	p, ok := From(c).Payload.(*T)
	return p, ok
}

// Middleware wraps every request in a *Context.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(From(c))
		}
	}
}
