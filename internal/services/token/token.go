// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues, validates and revokes access/refresh token pairs.
//
// Tokens are HS256 JWTs bound to a session row. Validation checks the
// signature, then expiry, then the session row, and stops at the first
// failure. The session row is read on every validation, so a revocation is
// seen by the next validation of the same token.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/config"
	"codeberg.org/oliverandrich/go-auth-service/internal/metrics"
	"codeberg.org/oliverandrich/go-auth-service/internal/models"
	"codeberg.org/oliverandrich/go-auth-service/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the typ claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

const (
	// DefaultAccessTTL is the lifetime of access tokens.
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRefreshTTL is the lifetime of refresh tokens and their session.
	DefaultRefreshTTL = 7 * 24 * time.Hour
	// minSecretLength is the minimum HMAC key size in bytes.
	minSecretLength = 32
)

var (
	// ErrInvalidToken is returned for any token that must not authorize a request.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for a well-signed token past its expiry.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
	// ErrTokenRevoked is returned for a token whose session was revoked.
	ErrTokenRevoked = fmt.Errorf("%w: revoked", ErrInvalidToken)
)

// Claims are the JWT claims of access and refresh tokens. The JWT ID of a
// refresh token is the session's current refresh id.
type Claims struct {
	Type      string      `json:"typ"`
	SessionID string      `json:"sid"`
	Role      models.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Pair is an access token plus the refresh token that renews it.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Service manages token pairs and their sessions.
type Service struct {
	repo       *repository.Repository
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewService creates a token service. The secret is read as hex from cfg; an
// empty secret is replaced by a random one, which invalidates all tokens on
// restart.
func NewService(repo *repository.Repository, cfg *config.AuthConfig) (*Service, error) {
	secret, err := decodeSecret(cfg.TokenSecret)
	if err != nil {
		return nil, err
	}

	s := &Service{
		repo:       repo,
		secret:     secret,
		issuer:     cfg.TokenIssuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTTL
	}
	return s, nil
}

func decodeSecret(hexSecret string) ([]byte, error) {
	if hexSecret == "" {
		secret := make([]byte, minSecretLength)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
		slog.Warn("token secret not configured, using a random one; tokens will not survive a restart")
		return secret, nil
	}

	secret, err := hex.DecodeString(hexSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid token secret (must be hex-encoded): %w", err)
	}
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes, got %d", minSecretLength, len(secret))
	}
	return secret, nil
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// AccessTTL returns the lifetime of access tokens.
func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}

// RefreshTTL returns the lifetime of refresh tokens.
func (s *Service) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// Issue opens a new session for user and returns its token pair.
func (s *Service) Issue(ctx context.Context, user *models.User) (pair Pair, err error) {
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues("issue", metrics.Result(err)).Inc()
	}()

	now := s.now().UTC()
	sess := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		RefreshID: uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return Pair{}, fmt.Errorf("failed to create session: %w", err)
	}

	pair, err = s.sign(user.ID, user.Role, sess, now)
	if err != nil {
		return Pair{}, err
	}

	slog.Info("tokens_issued", "session_id", sess.ID, "user_id", user.ID)
	return pair, nil
}

// Validate checks raw as a token of type typ and returns its claims.
func (s *Service) Validate(ctx context.Context, raw, typ string) (*Claims, error) {
	claims, err := s.parse(raw, typ)
	if err != nil {
		return nil, err
	}

	sess, err := s.session(ctx, claims)
	if err != nil {
		return nil, err
	}
	if typ == TypeRefresh && claims.ID != sess.RefreshID {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new pair of the same session. The
// presented refresh token is spent; presenting it again revokes the session.
func (s *Service) Refresh(ctx context.Context, raw string) (pair Pair, err error) {
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues("refresh", metrics.Result(err)).Inc()
	}()

	claims, err := s.parse(raw, TypeRefresh)
	if err != nil {
		return Pair{}, err
	}
	sess, err := s.session(ctx, claims)
	if err != nil {
		return Pair{}, err
	}

	now := s.now().UTC()
	oldRefreshID := sess.RefreshID
	sess.RefreshID = uuid.NewString()
	sess.ExpiresAt = now.Add(s.refreshTTL)

	err = s.repo.RotateSessionRefresh(ctx, sess.ID, claims.ID, sess.RefreshID, sess.ExpiresAt)
	if errors.Is(err, repository.ErrNotFound) {
		if claims.ID != oldRefreshID {
			s.revokeReused(ctx, sess)
		}
		return Pair{}, ErrTokenRevoked
	}
	if err != nil {
		return Pair{}, fmt.Errorf("failed to rotate session: %w", err)
	}

	pair, err = s.sign(sess.UserID, claims.Role, sess, now)
	if err != nil {
		return Pair{}, err
	}

	slog.Info("tokens_refreshed", "session_id", sess.ID, "user_id", sess.UserID)
	return pair, nil
}

func (s *Service) revokeReused(ctx context.Context, sess *models.Session) {
	err := s.repo.RevokeSession(ctx, sess.ID, s.now())
	if err != nil && !errors.Is(err, repository.ErrAlreadyRevoked) {
		slog.Error("session_revoke_failed", "session_id", sess.ID, "error", err)
		return
	}
	metrics.SessionsRevokedTotal.WithLabelValues("refresh_reuse").Inc()
	slog.Warn("refresh_token_reused", "session_id", sess.ID, "user_id", sess.UserID)
}

// Revoke revokes a session and with it both of its tokens. Revoking a session
// that is unknown or already revoked yields ErrTokenRevoked.
func (s *Service) Revoke(ctx context.Context, sessionID string) error {
	err := s.repo.RevokeSession(ctx, sessionID, s.now())
	if errors.Is(err, repository.ErrAlreadyRevoked) || errors.Is(err, repository.ErrNotFound) {
		return ErrTokenRevoked
	}
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	metrics.SessionsRevokedTotal.WithLabelValues("logout").Inc()
	return nil
}

// Purge deletes sessions past their expiry.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx, s.now())
}

// parse verifies signature, algorithm, issuer and type, then expiry.
func (s *Service) parse(raw, typ string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Type != typ || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// session loads the session behind claims and checks it still authorizes.
func (s *Service) session(ctx context.Context, claims *Claims) (*models.Session, error) {
	sess, err := s.repo.GetSession(ctx, claims.SessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTokenRevoked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	userID, err := claims.UserID()
	if err != nil || userID != sess.UserID {
		return nil, ErrInvalidToken
	}
	if !sess.ActiveAt(s.now()) {
		return nil, ErrTokenRevoked
	}
	return sess, nil
}

func (s *Service) sign(userID int64, role models.Role, sess *models.Session, now time.Time) (Pair, error) {
	subject := strconv.FormatInt(userID, 10)

	access, err := s.signClaims(Claims{
		Type:      TypeAccess,
		SessionID: sess.ID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})
	if err != nil {
		return Pair{}, err
	}

	refresh, err := s.signClaims(Claims{
		Type:      TypeRefresh,
		SessionID: sess.ID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        sess.RefreshID,
		},
	})
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *Service) signClaims(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
