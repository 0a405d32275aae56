// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Purpose distinguishes what a verification code proves.
type Purpose string

const (
	PurposeVerify Purpose = "verify"
	PurposeReset  Purpose = "reset"
)

// VerificationCode stores a hashed one-time code.
type VerificationCode struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Purpose   Purpose   `db:"purpose" json:"purpose"`
	CodeHash  string    `db:"code_hash" json:"-"` // SHA256 hash
	Attempts  int       `db:"attempts" json:"attempts"`
	Consumed  bool      `db:"consumed" json:"consumed"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsExpiredAt reports whether the code is past its expiry at t.
func (c *VerificationCode) IsExpiredAt(t time.Time) bool {
	return !t.Before(c.ExpiresAt)
}
