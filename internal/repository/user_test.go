// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/models"
	"codeberg.org/oliverandrich/go-auth-service/internal/repository"
	"codeberg.org/oliverandrich/go-auth-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := &models.User{
		Email:        "  Alice@Example.com ",
		FullName:     "Alice",
		PasswordHash: "hash",
		Role:         models.RoleAdmin,
	}
	require.NoError(t, repo.CreateUser(ctx, user))

	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotZero(t, user.CreatedAt)

	stored, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.Equal(t, "Alice", stored.FullName)
	assert.Equal(t, models.RoleAdmin, stored.Role)
	assert.False(t, stored.Verified)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestUser(t, repo, "bob@example.com", false)

	err := repo.CreateUser(ctx, &models.User{
		Email:        "BOB@example.com",
		FullName:     "Bob",
		PasswordHash: "hash",
		Role:         models.RoleUser,
	})

	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	created := testutil.NewTestUser(t, repo, "carol@example.com", false)

	found, err := repo.GetUserByEmail(ctx, "Carol@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestGetUser_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	_, err := repo.GetUserByID(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMarkUserVerified(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "dave@example.com", false)
	require.NoError(t, repo.MarkUserVerified(ctx, user.ID))

	stored, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Verified)

	assert.ErrorIs(t, repo.MarkUserVerified(ctx, 999), repository.ErrNotFound)
}

func TestUpdateUserPassword(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "erin@example.com", true)
	require.NoError(t, repo.UpdateUserPassword(ctx, user.ID, "new-hash"))

	stored, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", stored.PasswordHash)

	assert.ErrorIs(t, repo.UpdateUserPassword(ctx, 999, "x"), repository.ErrNotFound)
}

func TestResetUserPassword_RevokesSessions(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()

	user := testutil.NewTestUser(t, repo, "frank@example.com", true)
	for _, id := range []string{"s1", "s2"} {
		require.NoError(t, repo.CreateSession(ctx, &models.Session{
			ID: id, UserID: user.ID, RefreshID: "r-" + id,
			IssuedAt: now, ExpiresAt: now.Add(time.Hour),
		}))
	}

	revoked, err := repo.ResetUserPassword(ctx, user.ID, "reset-hash")
	require.NoError(t, err)
	assert.Equal(t, int64(2), revoked)

	stored, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "reset-hash", stored.PasswordHash)

	for _, id := range []string{"s1", "s2"} {
		sess, err := repo.GetSession(ctx, id)
		require.NoError(t, err)
		assert.True(t, sess.Revoked())
	}
}

func TestResetUserPassword_UnknownUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.ResetUserPassword(context.Background(), 999, "hash")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}
