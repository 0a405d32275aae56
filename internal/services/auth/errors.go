// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"errors"

	"codeberg.org/oliverandrich/go-auth-service/internal/services/codes"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/token"
)

var (
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidFullName    = errors.New("full name is required")
	ErrUserExists         = errors.New("user already exists")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCode        = codes.ErrInvalidCode
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = token.ErrInvalidToken
	ErrNotVerified        = errors.New("email not verified")
)

// Kind classifies errors returned by the Service.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindInvalid
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// KindOf returns the kind of err. Errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	var pwErr *PasswordValidationError
	switch {
	case err == nil:
		return KindInternal
	case errors.As(err, &pwErr),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrInvalidFullName):
		return KindValidation
	case errors.Is(err, ErrUserExists), errors.Is(err, ErrAlreadyVerified):
		return KindConflict
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidCode):
		return KindInvalid
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return KindUnauthorized
	case errors.Is(err, ErrNotVerified):
		return KindForbidden
	default:
		return KindInternal
	}
}
