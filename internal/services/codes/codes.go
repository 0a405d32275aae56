// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package codes issues and checks the one-time codes mailed for email
// verification and password resets.
package codes

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/config"
	"codeberg.org/oliverandrich/go-auth-service/internal/models"
	"codeberg.org/oliverandrich/go-auth-service/internal/repository"
)

const (
	// CodeLength is the length of each code (without dashes).
	CodeLength = 8
	// DefaultVerifyTTL is the lifetime of a verify code.
	DefaultVerifyTTL = 15 * time.Minute
	// DefaultResetTTL is the lifetime of a reset code.
	DefaultResetTTL = 10 * time.Minute
	// DefaultMaxAttempts is the number of wrong guesses that burn a code.
	DefaultMaxAttempts = 5
)

// alphabet for codes (lowercase + digits, excluding confusing chars: 0, o, l, 1).
const alphabet = "23456789abcdefghjkmnpqrstuvwxyz"

// ErrInvalidCode is returned when no live code matches.
var ErrInvalidCode = errors.New("invalid or expired code")

// Issuer generates codes and tracks them in the repository.
type Issuer struct {
	repo        *repository.Repository
	ttl         map[models.Purpose]time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewIssuer creates an Issuer. Zero values in cfg fall back to the defaults.
func NewIssuer(repo *repository.Repository, cfg *config.AuthConfig) *Issuer {
	i := &Issuer{
		repo: repo,
		ttl: map[models.Purpose]time.Duration{
			models.PurposeVerify: DefaultVerifyTTL,
			models.PurposeReset:  DefaultResetTTL,
		},
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
	if cfg != nil {
		if cfg.VerifyCodeTTL > 0 {
			i.ttl[models.PurposeVerify] = cfg.VerifyCodeTTL
		}
		if cfg.ResetCodeTTL > 0 {
			i.ttl[models.PurposeReset] = cfg.ResetCodeTTL
		}
		if cfg.CodeMaxAttempts > 0 {
			i.maxAttempts = cfg.CodeMaxAttempts
		}
	}
	return i
}

// SetClock replaces the time source.
func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}

// TTL returns the lifetime of codes for purpose.
func (i *Issuer) TTL(purpose models.Purpose) time.Duration {
	return i.ttl[purpose]
}

// Issue creates a new code for the user and purpose, retiring any code that
// is still live. The returned code is formatted for display (e.g. "a2b3-c4d5").
func (i *Issuer) Issue(ctx context.Context, userID int64, purpose models.Purpose) (string, error) {
	ttl, ok := i.ttl[purpose]
	if !ok {
		return "", fmt.Errorf("unknown code purpose %q", purpose)
	}

	code, err := generateCode(CodeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	err = i.repo.ReplaceVerificationCode(ctx, &models.VerificationCode{
		UserID:    userID,
		Purpose:   purpose,
		CodeHash:  HashCode(code),
		ExpiresAt: i.now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store code: %w", err)
	}

	return formatCode(code), nil
}

// Consume checks code against the live code of the user and purpose and marks
// it consumed on a match. A missing, expired or wrong code yields
// ErrInvalidCode; every wrong guess counts against the code's attempt budget.
func (i *Issuer) Consume(ctx context.Context, userID int64, purpose models.Purpose, code string) error {
	return i.ConsumeThen(ctx, userID, purpose, code, nil)
}

// ConsumeThen is Consume with a follow-up step. Checking the code, marking it
// consumed and then run in one transaction: when then fails, the code stays
// live. Wrong guesses are recorded even though ErrInvalidCode is returned.
func (i *Issuer) ConsumeThen(
	ctx context.Context,
	userID int64,
	purpose models.Purpose,
	code string,
	then func(tx *repository.Repository) error,
) error {
	invalid := false
	err := i.repo.InTx(ctx, func(tx *repository.Repository) error {
		active, err := tx.GetActiveVerificationCode(ctx, userID, purpose)
		if errors.Is(err, repository.ErrNotFound) {
			invalid = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load code: %w", err)
		}

		if active.IsExpiredAt(i.now()) {
			invalid = true
			return nil
		}

		if !matches(active.CodeHash, code) {
			burned, err := tx.RecordFailedAttempt(ctx, active.ID, i.maxAttempts)
			if err != nil {
				return fmt.Errorf("failed to record attempt: %w", err)
			}
			if burned {
				slog.Warn("code_burned", "user_id", userID, "purpose", purpose)
			}
			invalid = true
			return nil
		}

		if err := tx.ConsumeVerificationCode(ctx, active.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				invalid = true
				return nil
			}
			return fmt.Errorf("failed to consume code: %w", err)
		}

		if then != nil {
			return then(tx)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if invalid {
		return ErrInvalidCode
	}
	return nil
}

// Purge deletes consumed and expired codes.
func (i *Issuer) Purge(ctx context.Context) (int64, error) {
	return i.repo.DeleteStaleVerificationCodes(ctx, i.now())
}

// HashCode computes the SHA256 hash of a normalized code.
func HashCode(code string) string {
	hash := sha256.Sum256([]byte(NormalizeCode(code)))
	return hex.EncodeToString(hash[:])
}

// NormalizeCode removes dashes and whitespace and converts to lowercase.
func NormalizeCode(code string) string {
	code = strings.ReplaceAll(code, "-", "")
	code = strings.Join(strings.Fields(code), "")
	return strings.ToLower(code)
}

func matches(hash, code string) bool {
	return subtle.ConstantTimeCompare([]byte(hash), []byte(HashCode(code))) == 1
}

// generateCode generates a random code of the specified length. Bytes at or
// above the largest multiple of len(alphabet) are rejected to keep the
// distribution uniform.
func generateCode(length int) (string, error) {
	limit := byte(256 - 256%len(alphabet))
	out := make([]byte, 0, length)
	buf := make([]byte, length)

	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

// formatCode formats a code with dashes for readability (e.g., "a2b3-c4d5").
func formatCode(code string) string {
	var parts []string
	for i := 0; i < len(code); i += 4 {
		end := min(i+4, len(code))
		parts = append(parts, code[i:end])
	}
	return strings.Join(parts, "-")
}
