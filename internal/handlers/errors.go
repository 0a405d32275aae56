// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/go-auth-service/internal/i18n"
	"codeberg.org/oliverandrich/go-auth-service/internal/middleware"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// problem is an error translated for the client.
type problem struct {
	status    int
	messageID string
	data      map[string]any
	text      string   // used as is when messageID is empty
	details   []string // password policy violations
}

// ErrorHandler is the echo HTTPErrorHandler. It maps errors to a status code
// and a localized message and logs internal failures with their full chain.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	p := classify(err)
	ctx := c.Request().Context()

	if p.status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request_failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"error", err,
		)
	}

	body := map[string]any{"error": p.message(c)}
	if len(p.details) > 0 {
		details := make([]string, len(p.details))
		for i, id := range p.details {
			details[i] = i18n.TData(ctx, id, map[string]any{"MinLength": auth.MinPasswordLength})
		}
		body["details"] = details
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(p.status)
	} else {
		writeErr = c.JSON(p.status, body)
	}
	if writeErr != nil {
		slog.ErrorContext(ctx, "error_response_failed", "error", writeErr)
	}
}

func (p problem) message(c echo.Context) string {
	if p.messageID == "" {
		return p.text
	}
	return i18n.TData(c.Request().Context(), p.messageID, p.data)
}

func classify(err error) problem {
	var reqErr *middleware.RequestError
	if errors.As(err, &reqErr) {
		return problem{status: http.StatusBadRequest, messageID: reqErr.MessageID, data: reqErr.Data}
	}
	if errors.Is(err, middleware.ErrMissingToken) {
		return problem{status: http.StatusUnauthorized, messageID: "error_missing_token"}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		text := http.StatusText(httpErr.Code)
		if msg, ok := httpErr.Message.(string); ok && msg != "" {
			text = msg
		}
		if httpErr.Code >= http.StatusInternalServerError {
			text = http.StatusText(httpErr.Code)
		}
		return problem{status: httpErr.Code, text: text}
	}

	switch auth.KindOf(err) {
	case auth.KindValidation:
		return validationProblem(err)
	case auth.KindConflict:
		if errors.Is(err, auth.ErrAlreadyVerified) {
			return problem{status: http.StatusBadRequest, messageID: "error_already_verified"}
		}
		return problem{status: http.StatusBadRequest, messageID: "error_user_exists"}
	case auth.KindNotFound:
		return problem{status: http.StatusNotFound, messageID: "error_user_not_found"}
	case auth.KindInvalid:
		return problem{status: http.StatusBadRequest, messageID: "error_invalid_code"}
	case auth.KindUnauthorized:
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return problem{status: http.StatusUnauthorized, messageID: "error_invalid_credentials"}
		}
		return problem{status: http.StatusUnauthorized, messageID: "error_invalid_token"}
	case auth.KindForbidden:
		return problem{status: http.StatusForbidden, messageID: "error_not_verified"}
	default:
		return problem{status: http.StatusInternalServerError, messageID: "error_internal"}
	}
}

func validationProblem(err error) problem {
	var pwErr *auth.PasswordValidationError
	switch {
	case errors.As(err, &pwErr):
		p := problem{status: http.StatusBadRequest, messageID: "error_invalid_request"}
		for i, e := range pwErr.Errors {
			id := passwordMessageID(e.Code)
			if i == 0 {
				p.messageID = id
				p.data = map[string]any{"MinLength": auth.MinPasswordLength}
			}
			p.details = append(p.details, id)
		}
		return p
	case errors.Is(err, auth.ErrInvalidEmail):
		return problem{status: http.StatusBadRequest, messageID: "error_invalid_email"}
	case errors.Is(err, auth.ErrInvalidRole):
		return problem{status: http.StatusBadRequest, messageID: "error_invalid_role"}
	case errors.Is(err, auth.ErrInvalidFullName):
		return problem{status: http.StatusBadRequest, messageID: "error_invalid_full_name"}
	default:
		return problem{status: http.StatusBadRequest, messageID: "error_invalid_request"}
	}
}

func passwordMessageID(code string) string {
	return fmt.Sprintf("password_%s", code)
}
