// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/models"
)

// ReplaceVerificationCode retires any live code of the same user and purpose
// and stores code as the only live one.
func (r *Repository) ReplaceVerificationCode(ctx context.Context, code *models.VerificationCode) error {
	return r.InTx(ctx, func(tx *Repository) error {
		if _, err := tx.exec(ctx,
			`UPDATE verification_codes SET consumed = 1
			 WHERE user_id = ? AND purpose = ? AND consumed = 0`,
			code.UserID, code.Purpose); err != nil {
			return err
		}

		now := time.Now().UTC()
		res, err := tx.q.ExecContext(ctx,
			`INSERT INTO verification_codes (user_id, purpose, code_hash, attempts, consumed, expires_at, created_at)
			 VALUES (?, ?, ?, 0, 0, ?, ?)`,
			code.UserID, code.Purpose, code.CodeHash, code.ExpiresAt.UTC(), now)
		if err != nil {
			return wrapError(err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		code.ID = id
		code.CreatedAt = now
		code.Attempts = 0
		code.Consumed = false
		return nil
	})
}

// GetActiveVerificationCode returns the live code for a user and purpose.
func (r *Repository) GetActiveVerificationCode(ctx context.Context, userID int64, purpose models.Purpose) (*models.VerificationCode, error) {
	var code models.VerificationCode
	err := r.get(ctx, &code,
		`SELECT * FROM verification_codes WHERE user_id = ? AND purpose = ? AND consumed = 0`,
		userID, purpose)
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// ConsumeVerificationCode marks a live code consumed. It returns ErrNotFound
// when the code was consumed concurrently.
func (r *Repository) ConsumeVerificationCode(ctx context.Context, id int64) error {
	n, err := r.exec(ctx,
		`UPDATE verification_codes SET consumed = 1 WHERE id = ? AND consumed = 0`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordFailedAttempt counts a wrong guess against a live code and burns the
// code once maxAttempts is reached. It reports whether the code was burned.
func (r *Repository) RecordFailedAttempt(ctx context.Context, id int64, maxAttempts int) (bool, error) {
	if _, err := r.exec(ctx,
		`UPDATE verification_codes
		 SET attempts = attempts + 1,
		     consumed = CASE WHEN attempts + 1 >= ? THEN 1 ELSE consumed END
		 WHERE id = ? AND consumed = 0`,
		maxAttempts, id); err != nil {
		return false, err
	}

	var consumed bool
	if err := r.get(ctx, &consumed, `SELECT consumed FROM verification_codes WHERE id = ?`, id); err != nil {
		return false, err
	}
	return consumed, nil
}

// DeleteStaleVerificationCodes removes consumed codes and codes that expired before t.
func (r *Repository) DeleteStaleVerificationCodes(ctx context.Context, t time.Time) (int64, error) {
	return r.exec(ctx,
		`DELETE FROM verification_codes WHERE consumed = 1 OR expires_at < ?`, t.UTC())
}
