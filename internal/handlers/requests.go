// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"strings"

	"codeberg.org/oliverandrich/go-auth-service/internal/middleware"
)

// Request bodies only check field presence. Format rules (email syntax,
// password policy, role) belong to the auth service.

type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r *RegisterRequest) Validate() error {
	return required(
		field{"fullName", r.FullName},
		field{"email", r.Email},
		field{"password", r.Password},
	)
}

type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (r *VerifyRequest) Validate() error {
	return required(field{"email", r.Email}, field{"code", r.Code})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	return required(field{"email", r.Email}, field{"password", r.Password})
}

// EmailRequest is the body of endpoints that only take an address.
type EmailRequest struct {
	Email string `json:"email"`
}

func (r *EmailRequest) Validate() error {
	return required(field{"email", r.Email})
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

func (r *ResetPasswordRequest) Validate() error {
	return required(
		field{"email", r.Email},
		field{"code", r.Code},
		field{"newPassword", r.NewPassword},
	)
}

// RefreshRequest may be empty; the refresh cookie is used then.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r *RefreshRequest) Validate() error {
	return nil
}

type field struct {
	name  string
	value string
}

func required(fields ...field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return middleware.FieldRequired(f.name)
		}
	}
	return nil
}
