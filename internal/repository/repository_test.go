// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"errors"
	"testing"

	"codeberg.org/oliverandrich/go-auth-service/internal/repository"
	"codeberg.org/oliverandrich/go-auth-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	db, repo := testutil.NewTestDB(t)

	assert.NotNil(t, repo)
	assert.Same(t, db, repo.DB())
}

func TestInTx_RollsBackOnError(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.InTx(ctx, func(tx *repository.Repository) error {
		testutil.NewTestUser(t, tx, "rollback@example.com", false)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = repo.GetUserByEmail(ctx, "rollback@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInTx_Commits(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	err := repo.InTx(ctx, func(tx *repository.Repository) error {
		testutil.NewTestUser(t, tx, "commit@example.com", false)
		// nested calls share the transaction
		return tx.InTx(ctx, func(inner *repository.Repository) error {
			_, err := inner.GetUserByEmail(ctx, "commit@example.com")
			return err
		})
	})
	require.NoError(t, err)

	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
