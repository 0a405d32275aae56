// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Session backs one access/refresh token pair. Its ID is the token id carried
// in both tokens; RefreshID is the jti of the only refresh token still accepted.
type Session struct { //nolint:govet // fieldalignment: readability over optimization
	ID        string     `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	RefreshID string     `db:"refresh_id" json:"-"`
	IssuedAt  time.Time  `db:"issued_at" json:"issued_at"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// Revoked reports whether the session was revoked.
func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}

// ActiveAt reports whether the session may authorize requests at t.
func (s *Session) ActiveAt(t time.Time) bool {
	return !s.Revoked() && t.Before(s.ExpiresAt)
}
