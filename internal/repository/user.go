// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/models"
)

// CreateUser inserts a user and fills in its ID and timestamps. The email is
// stored normalized; a second account with the same address yields ErrDuplicate.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.Email = models.NormalizeEmail(user.Email)

	res, err := r.q.ExecContext(ctx,
		`INSERT INTO users (email, full_name, password_hash, role, verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Email, user.FullName, user.PasswordHash, user.Role, user.Verified, now, now)
	if err != nil {
		return wrapError(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.get(ctx, &user, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.get(ctx, &user, `SELECT * FROM users WHERE email = ?`, models.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// MarkUserVerified sets the verified flag.
func (r *Repository) MarkUserVerified(ctx context.Context, id int64) error {
	n, err := r.exec(ctx,
		`UPDATE users SET verified = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserPassword replaces a user's password hash.
func (r *Repository) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	n, err := r.exec(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetUserPassword replaces the password hash and revokes every session of
// the user in one transaction, so no token minted under the old password
// survives the change.
func (r *Repository) ResetUserPassword(ctx context.Context, id int64, passwordHash string) (revoked int64, err error) {
	err = r.InTx(ctx, func(tx *Repository) error {
		if err := tx.UpdateUserPassword(ctx, id, passwordHash); err != nil {
			return err
		}
		n, err := tx.RevokeUserSessions(ctx, id, time.Now().UTC())
		revoked = n
		return err
	})
	return revoked, err
}

// CountUsers returns the total number of users.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.get(ctx, &count, `SELECT COUNT(*) FROM users`)
	return count, err
}
