// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/go-auth-service/internal/appcontext"
	"codeberg.org/oliverandrich/go-auth-service/internal/i18n"
	"codeberg.org/oliverandrich/go-auth-service/internal/middleware"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/auth"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/session"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/token"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains handlers for authentication.
type AuthHandlers struct {
	auth    *auth.Service
	cookies *session.Manager
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(svc *auth.Service, cookies *session.Manager) *AuthHandlers {
	return &AuthHandlers{
		auth:    svc,
		cookies: cookies,
	}
}

// Register creates an account and mails a verification code.
func (h *AuthHandlers) Register(c echo.Context) error {
	req, err := payload[RegisterRequest](c)
	if err != nil {
		return err
	}

	user, err := h.auth.Register(c.Request().Context(), auth.RegisterParams{
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"message": i18n.T(c.Request().Context(), "register_success"),
		"user":    user,
	})
}

// Verify confirms an email address with the mailed code.
func (h *AuthHandlers) Verify(c echo.Context) error {
	req, err := payload[VerifyRequest](c)
	if err != nil {
		return err
	}

	if err := h.auth.Verify(c.Request().Context(), req.Email, req.Code); err != nil {
		return err
	}
	return message(c, http.StatusOK, "verify_success")
}

// ResendVerification mails a fresh verification code.
func (h *AuthHandlers) ResendVerification(c echo.Context) error {
	req, err := payload[EmailRequest](c)
	if err != nil {
		return err
	}

	if err := h.auth.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return message(c, http.StatusOK, "verification_resent")
}

// Login issues a token pair. The refresh token is also set as a cookie.
func (h *AuthHandlers) Login(c echo.Context) error {
	req, err := payload[LoginRequest](c)
	if err != nil {
		return err
	}

	pair, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.tokens(c, pair, "login_success")
}

// Refresh rotates a refresh token taken from the body or the cookie.
func (h *AuthHandlers) Refresh(c echo.Context) error {
	req, err := payload[RefreshRequest](c)
	if err != nil {
		return err
	}

	raw := req.RefreshToken
	if raw == "" {
		raw, _ = h.cookies.Read(c.Request())
	}
	if raw == "" {
		return middleware.ErrMissingToken
	}

	pair, err := h.auth.Refresh(c.Request().Context(), raw)
	if err != nil {
		c.SetCookie(h.cookies.Clear())
		return err
	}
	return h.tokens(c, pair, "token_refreshed")
}

// Logout revokes the session of the presented access token.
func (h *AuthHandlers) Logout(c echo.Context) error {
	cc := appcontext.From(c)
	if !cc.IsAuthenticated() {
		return middleware.ErrMissingToken
	}

	if err := h.auth.Logout(c.Request().Context(), cc.AccessToken); err != nil {
		return err
	}

	c.SetCookie(h.cookies.Clear())
	return message(c, http.StatusOK, "logout_success")
}

// ForgotPassword replaces the password with a generated one and mails it.
func (h *AuthHandlers) ForgotPassword(c echo.Context) error {
	req, err := payload[EmailRequest](c)
	if err != nil {
		return err
	}

	if err := h.auth.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return message(c, http.StatusCreated, "forgot_password_success")
}

// RequestPasswordReset mails a reset code.
func (h *AuthHandlers) RequestPasswordReset(c echo.Context) error {
	req, err := payload[EmailRequest](c)
	if err != nil {
		return err
	}

	if err := h.auth.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return message(c, http.StatusCreated, "reset_code_sent")
}

// ResetPassword sets a new password after checking the reset code.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	req, err := payload[ResetPasswordRequest](c)
	if err != nil {
		return err
	}

	if err := h.auth.ResetPassword(c.Request().Context(), req.Email, req.Code, req.NewPassword); err != nil {
		return err
	}
	return message(c, http.StatusOK, "password_reset_success")
}

func (h *AuthHandlers) tokens(c echo.Context, pair token.Pair, messageID string) error {
	cookie, err := h.cookies.Create(pair.RefreshToken)
	if err != nil {
		return err
	}
	c.SetCookie(cookie)

	return c.JSON(http.StatusOK, map[string]any{
		"message": i18n.T(c.Request().Context(), messageID),
		"tokens":  pair,
	})
}

// payload returns the body stored by middleware.Validate. A route wired
// without that stage is a programming error and fails the request.
func payload[T any](c echo.Context) (*T, error) {
	p, ok := appcontext.Payload[T](c)
	if !ok {
		return nil, &middleware.RequestError{MessageID: "error_invalid_request"}
	}
	return p, nil
}

func message(c echo.Context, status int, messageID string) error {
	return c.JSON(status, map[string]string{
		"message": i18n.T(c.Request().Context(), messageID),
	})
}
