// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/models"
)

// CreateSession stores a new session.
func (r *Repository) CreateSession(ctx context.Context, s *models.Session) error {
	_, err := r.exec(ctx,
		`INSERT INTO sessions (id, user_id, refresh_id, issued_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.RefreshID, s.IssuedAt.UTC(), s.ExpiresAt.UTC())
	return err
}

// GetSession retrieves a session by ID.
func (r *Repository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	if err := r.get(ctx, &s, `SELECT * FROM sessions WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// RotateSessionRefresh swaps the accepted refresh id. The swap only happens if
// oldRefreshID is still current and the session is not revoked; otherwise
// ErrNotFound is returned.
func (r *Repository) RotateSessionRefresh(ctx context.Context, id, oldRefreshID, newRefreshID string, expiresAt time.Time) error {
	n, err := r.exec(ctx,
		`UPDATE sessions SET refresh_id = ?, expires_at = ?
		 WHERE id = ? AND refresh_id = ? AND revoked_at IS NULL`,
		newRefreshID, expiresAt.UTC(), id, oldRefreshID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeSession revokes one session. Revoking twice yields ErrAlreadyRevoked,
// an unknown id ErrNotFound.
func (r *Repository) RevokeSession(ctx context.Context, id string, at time.Time) error {
	return r.InTx(ctx, func(tx *Repository) error {
		n, err := tx.exec(ctx,
			`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
			at.UTC(), id)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if _, err := tx.GetSession(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyRevoked
	})
}

// RevokeUserSessions revokes every live session of a user.
func (r *Repository) RevokeUserSessions(ctx context.Context, userID int64, at time.Time) (int64, error) {
	return r.exec(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`,
		at.UTC(), userID)
}

// DeleteExpiredSessions removes sessions that expired before t.
func (r *Repository) DeleteExpiredSessions(ctx context.Context, t time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM sessions WHERE expires_at < ?`, t.UTC())
}
