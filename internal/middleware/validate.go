// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware holds the per-route stages of the request pipeline.
package middleware

import (
	"fmt"

	"codeberg.org/oliverandrich/go-auth-service/internal/appcontext"
	"github.com/labstack/echo/v4"
)

// Validatable is implemented by request bodies.
type Validatable interface {
	Validate() error
}

// RequestError describes a malformed request. MessageID and Data select the
// localized message shown to the client.
type RequestError struct {
	MessageID string
	Data      map[string]any
	Err       error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.MessageID, e.Err)
	}
	return e.MessageID
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// FieldRequired reports a missing request field.
func FieldRequired(field string) *RequestError {
	return &RequestError{MessageID: "error_field_required", Data: map[string]any{"Field": field}}
}

// Validate binds the JSON body into a new T, runs its Validate method and
// stores it as the payload of the request context.
func Validate[T any, PT interface {
	*T
	Validatable
}]() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			body := PT(new(T))
			if err := (&echo.DefaultBinder{}).BindBody(c, body); err != nil {
				return &RequestError{MessageID: "error_invalid_request", Err: err}
			}
			if err := body.Validate(); err != nil {
				return err
			}

			cc := appcontext.From(c)
			cc.Payload = body
			return next(cc)
		}
	}
}
