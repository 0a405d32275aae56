// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth implements account registration, email verification, login,
// logout and password recovery on top of the repository, the code issuer and
// the token service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/config"
	"codeberg.org/oliverandrich/go-auth-service/internal/metrics"
	"codeberg.org/oliverandrich/go-auth-service/internal/models"
	"codeberg.org/oliverandrich/go-auth-service/internal/repository"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/codes"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/token"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultOperationTimeout bounds every Service operation.
	DefaultOperationTimeout = 10 * time.Second
	// DefaultPasswordLength is the length of passwords made by ForgotPassword.
	DefaultPasswordLength = 16
)

// Mailer delivers the account emails.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, code string) error
	SendResetCode(ctx context.Context, to, code string) error
	SendNewPassword(ctx context.Context, to, password string) error
}

type Service struct {
	repo              *repository.Repository
	codes             *codes.Issuer
	tokens            *token.Service
	mailer            Mailer
	passwordValidator *PasswordValidator
	locks             *keyLock
	bcryptCost        int
	passwordLength    int
	timeout           time.Duration
	// dummyHash is used for constant-time login to prevent timing attacks
	dummyHash []byte
}

func NewService(
	repo *repository.Repository,
	issuer *codes.Issuer,
	tokens *token.Service,
	mailer Mailer,
	cfg *config.AuthConfig,
) (*Service, error) {
	s := &Service{
		repo:              repo,
		codes:             issuer,
		tokens:            tokens,
		mailer:            mailer,
		passwordValidator: DefaultPasswordValidator(),
		locks:             newKeyLock(),
		bcryptCost:        cfg.BcryptCost,
		passwordLength:    cfg.PasswordLength,
		timeout:           cfg.OperationTimeout,
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	if s.bcryptCost < bcrypt.MinCost || s.bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if s.passwordLength <= 0 {
		s.passwordLength = DefaultPasswordLength
	}
	if s.timeout <= 0 {
		s.timeout = DefaultOperationTimeout
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	s.dummyHash = dummy

	return s, nil
}

// RegisterParams holds the parameters for user registration
type RegisterParams struct {
	Email    string
	FullName string
	Password string
	Role     string
}

// Register creates an unverified account and mails a verification code.
func (s *Service) Register(ctx context.Context, params RegisterParams) (view *models.UserView, err error) {
	defer observe("register", &err)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	email, err := parseEmail(params.Email)
	if err != nil {
		return nil, err
	}

	role := models.RoleUser
	if strings.TrimSpace(params.Role) != "" {
		var ok bool
		if role, ok = models.ParseRole(params.Role); !ok {
			return nil, ErrInvalidRole
		}
	}

	fullName := strings.TrimSpace(params.FullName)
	if fullName == "" {
		return nil, ErrInvalidFullName
	}

	validation := s.passwordValidator.Validate(params.Password, email, fullName)
	if !validation.Valid {
		return nil, &PasswordValidationError{Errors: validation.Errors}
	}

	unlock, err := s.locks.Lock(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer unlock()

	// Check if user already exists
	_, err = s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	passwordHash, err := s.hashPassword(ctx, params.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		Role:         role,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("register_success", "user_id", user.ID, "email", email, "role", role)

	// The account exists at this point; a lost email is recovered through
	// ResendVerification.
	if err := s.sendVerification(ctx, user); err != nil {
		slog.Error("email_send_failed", "user_id", user.ID, "email", email, "kind", "verification", "error", err)
	}

	return user.View(), nil
}

// Verify consumes a verification code and marks the account verified.
func (s *Service) Verify(ctx context.Context, email, code string) (err error) {
	defer observe("verify", &err)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}

	err = s.codes.ConsumeThen(ctx, user.ID, models.PurposeVerify, code, func(tx *repository.Repository) error {
		if err := tx.MarkUserVerified(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to mark user verified: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, codes.ErrInvalidCode) {
			slog.Warn("verify_failed", "user_id", user.ID, "reason", "invalid_code")
		}
		return err
	}

	slog.Info("verify_success", "user_id", user.ID)
	return nil
}

// ResendVerification replaces the verification code of an unverified account.
func (s *Service) ResendVerification(ctx context.Context, email string) (err error) {
	defer observe("resend_verification", &err)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.Verified {
		return ErrAlreadyVerified
	}

	return s.sendVerification(ctx, user)
}

func (s *Service) sendVerification(ctx context.Context, user *models.User) error {
	code, err := s.codes.Issue(ctx, user.ID, models.PurposeVerify)
	if err != nil {
		return fmt.Errorf("failed to issue verification code: %w", err)
	}
	if err := s.mailer.SendVerificationCode(ctx, user.Email, code); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

// Login checks the credentials of a verified account and opens a session.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (pair token.Pair, err error) {
	defer observe("login", &err)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = s.comparePassword(ctx, s.dummyHash, password)
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return token.Pair{}, ErrInvalidCredentials
		}
		return token.Pair{}, fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.comparePassword(ctx, []byte(user.PasswordHash), password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			slog.Warn("login_failed", "email", email, "reason", "invalid_password")
			return token.Pair{}, ErrInvalidCredentials
		}
		return token.Pair{}, err
	}

	if !user.Verified {
		slog.Warn("login_failed", "user_id", user.ID, "reason", "not_verified")
		return token.Pair{}, ErrNotVerified
	}

	pair, err = s.tokens.Issue(ctx, user)
	if err != nil {
		return token.Pair{}, err
	}

	slog.Info("login_success", "user_id", user.ID, "email", user.Email)
	return pair, nil
}

// Logout revokes the session of an access token together with its refresh
// token. A token that no longer validates yields ErrInvalidToken.
func (s *Service) Logout(ctx context.Context, accessToken string) (err error) {
	defer observe("logout", &err)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	claims, err := s.tokens.Validate(ctx, accessToken, token.TypeAccess)
	if err != nil {
		return err
	}

	if err := s.tokens.Revoke(ctx, claims.SessionID); err != nil {
		return err
	}

	slog.Info("logout_success", "user_id", claims.Subject, "session_id", claims.SessionID)
	return nil
}

// Refresh exchanges a refresh token for a new token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (pair token.Pair, err error) {
	defer observe("refresh", &err)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.tokens.Refresh(ctx, refreshToken)
}

// ForgotPassword replaces the password with a generated one, signs the user
// out everywhere and mails the new password.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	defer observe("forgot_password", &err)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	normalized := models.NormalizeEmail(email)
	unlock, err := s.locks.Lock(ctx, normalized)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer unlock()

	user, err := s.userByEmail(ctx, normalized)
	if err != nil {
		return err
	}

	password, err := GeneratePassword(s.passwordLength)
	if err != nil {
		return fmt.Errorf("failed to generate password: %w", err)
	}
	passwordHash, err := s.hashPassword(ctx, password)
	if err != nil {
		return err
	}

	// a failed mail rolls the new password back
	var revoked int64
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		n, err := resetPassword(ctx, tx, user.ID, passwordHash)
		if err != nil {
			return err
		}
		revoked = n
		if err := s.mailer.SendNewPassword(ctx, user.Email, password); err != nil {
			return fmt.Errorf("failed to send new password: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	sessionsRevoked(user.ID, revoked)
	slog.Info("password_reset", "user_id", user.ID, "method", "generated")
	return nil
}

// RequestPasswordReset mails a reset code to the account owner.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (err error) {
	defer observe("request_password_reset", &err)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := s.codes.Issue(ctx, user.ID, models.PurposeReset)
	if err != nil {
		return fmt.Errorf("failed to issue reset code: %w", err)
	}
	if err := s.mailer.SendResetCode(ctx, user.Email, code); err != nil {
		return fmt.Errorf("failed to send reset code: %w", err)
	}
	return nil
}

// ResetPassword sets a password chosen by the user after checking a reset
// code, and signs the user out everywhere.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) (err error) {
	defer observe("reset_password", &err)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	normalized := models.NormalizeEmail(email)
	unlock, err := s.locks.Lock(ctx, normalized)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer unlock()

	user, err := s.userByEmail(ctx, normalized)
	if err != nil {
		return err
	}

	validation := s.passwordValidator.Validate(newPassword, user.Email, user.FullName)
	if !validation.Valid {
		return &PasswordValidationError{Errors: validation.Errors}
	}

	passwordHash, err := s.hashPassword(ctx, newPassword)
	if err != nil {
		return err
	}

	var revoked int64
	err = s.codes.ConsumeThen(ctx, user.ID, models.PurposeReset, code, func(tx *repository.Repository) error {
		n, err := resetPassword(ctx, tx, user.ID, passwordHash)
		revoked = n
		return err
	})
	if err != nil {
		return err
	}

	sessionsRevoked(user.ID, revoked)
	slog.Info("password_reset", "user_id", user.ID, "method", "code")
	return nil
}

// resetPassword stores a new password hash and revokes every session of the user.
func resetPassword(ctx context.Context, tx *repository.Repository, userID int64, passwordHash string) (int64, error) {
	revoked, err := tx.ResetUserPassword(ctx, userID, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("failed to update password: %w", err)
	}
	return revoked, nil
}

func sessionsRevoked(userID, count int64) {
	metrics.SessionsRevokedTotal.WithLabelValues("password_reset").Add(float64(count))
	slog.Info("sessions_revoked", "user_id", userID, "count", count)
}

func (s *Service) userByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// hashPassword runs bcrypt but gives up when ctx ends.
func (s *Service) hashPassword(ctx context.Context, password string) (string, error) {
	hash, err := withContext(ctx, func() ([]byte, error) {
		return bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	})
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) comparePassword(ctx context.Context, hash []byte, password string) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		return struct{}{}, bcrypt.CompareHashAndPassword(hash, []byte(password))
	})
	return err
}

// withContext runs fn in a goroutine and returns early with ctx.Err() when
// ctx ends first. fn keeps running to completion in the background.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn()
		done <- result{val, err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// parseEmail validates a bare address and returns it normalized.
func parseEmail(raw string) (string, error) {
	email := models.NormalizeEmail(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func observe(op string, err *error) {
	metrics.AuthOperationsTotal.WithLabelValues(op, KindLabel(*err)).Inc()
}

// KindLabel returns "success" for nil and the error kind otherwise.
func KindLabel(err error) string {
	if err == nil {
		return metrics.ResultSuccess
	}
	return KindOf(err).String()
}
