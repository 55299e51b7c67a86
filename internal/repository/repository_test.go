// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"errors"
	"testing"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/repository"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	db, repo := testutil.NewTestDB(t)

	assert.NotNil(t, repo)
	assert.Same(t, db, repo.DB())
}

func TestWithTx_Commit(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx *repository.Repository) error {
		return tx.CreateUser(ctx, &models.User{Email: "a@example.com", PasswordHash: "x"})
	})
	require.NoError(t, err)

	exists, err := repo.UserExistsByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WithTx(ctx, func(tx *repository.Repository) error {
		require.NoError(t, tx.CreateUser(ctx, &models.User{Email: "a@example.com", PasswordHash: "x"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	exists, err := repo.UserExistsByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWithTx_Nested(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx *repository.Repository) error {
		return tx.WithTx(ctx, func(inner *repository.Repository) error {
			assert.Same(t, tx, inner)
			return inner.CreateUser(ctx, &models.User{Email: "a@example.com", PasswordHash: "x"})
		})
	})
	require.NoError(t, err)

	_, err = repo.GetUserByEmail(ctx, "a@example.com")
	assert.NoError(t, err)
}
