//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/auth/postgres"
	"github.com/passgate/passgate/internal/store"
)

// startPostgres starts a PostgreSQL container, applies migrations, and
// returns a connected pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("passgate_test"),
		tcpostgres.WithUsername("passgate"),
		tcpostgres.WithPassword("passgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := store.NewMigrator(connStr)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	pool, err := store.Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func TestStore_Integration_AccountRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	s := postgres.NewStore(pool)

	email := "alice@example.com"
	account := &auth.Account{
		Username:  "alice",
		Email:     &email,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	require.NoError(t, s.Accounts().Create(ctx, account))
	require.NotZero(t, account.ID)

	byID, err := s.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byName, err := s.Accounts().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, account.ID, byName.ID)

	// Email lookup folds case.
	byEmail, err := s.Accounts().GetByEmail(ctx, "ALICE@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, account.ID, byEmail.ID)

	// Username lookup does not.
	_, err = s.Accounts().GetByUsername(ctx, "ALICE")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestStore_Integration_UniqueConstraints(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	s := postgres.NewStore(pool)

	email := "bob@example.com"
	first := &auth.Account{Username: "bob", Email: &email, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	require.NoError(t, s.Accounts().Create(ctx, first))

	t.Run("duplicate username", func(t *testing.T) {
		dup := &auth.Account{Username: "bob", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
		err := s.Accounts().Create(ctx, dup)
		assert.ErrorIs(t, err, auth.ErrValidation)
	})

	t.Run("duplicate email ignoring case", func(t *testing.T) {
		upper := "BOB@EXAMPLE.COM"
		dup := &auth.Account{Username: "bob2", Email: &upper, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
		err := s.Accounts().Create(ctx, dup)
		assert.ErrorIs(t, err, auth.ErrValidation)
	})

	t.Run("duplicate protocol per account", func(t *testing.T) {
		cred := &auth.Credential{
			AccountID: first.ID,
			Protocol:  auth.ProtocolLocal,
			Password:  "$2b$10$hash",
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		require.NoError(t, s.Credentials().Create(ctx, cred))

		dup := &auth.Credential{
			AccountID: first.ID,
			Protocol:  auth.ProtocolLocal,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		err := s.Credentials().Create(ctx, dup)
		assert.ErrorIs(t, err, auth.ErrValidation)
	})
}

func TestStore_Integration_CredentialRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	s := postgres.NewStore(pool)

	account := &auth.Account{Username: "carol", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	require.NoError(t, s.Accounts().Create(ctx, account))

	cred := &auth.Credential{
		AccountID:   account.ID,
		Protocol:    auth.ProtocolLocal,
		Password:    "$2b$10$hash",
		AccessToken: "token-carol",
		Tokens:      map[string]string{"refresh": "xyz"},
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.Credentials().Create(ctx, cred))
	require.NotZero(t, cred.ID)

	got, err := s.Credentials().GetByAccountProtocol(ctx, account.ID, auth.ProtocolLocal)
	require.NoError(t, err)
	assert.Equal(t, "$2b$10$hash", got.Password)
	assert.Equal(t, map[string]string{"refresh": "xyz"}, got.Tokens)

	byToken, err := s.Credentials().GetByAccessToken(ctx, "token-carol")
	require.NoError(t, err)
	assert.Equal(t, cred.ID, byToken.ID)

	require.NoError(t, s.Credentials().UpdatePassword(ctx, cred.ID, "$2b$10$newhash"))
	got, err = s.Credentials().GetByAccountProtocol(ctx, account.ID, auth.ProtocolLocal)
	require.NoError(t, err)
	assert.Equal(t, "$2b$10$newhash", got.Password)
}

func TestStore_Integration_CascadeDelete(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	s := postgres.NewStore(pool)

	account := &auth.Account{Username: "dave", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	require.NoError(t, s.Accounts().Create(ctx, account))
	require.NoError(t, s.Credentials().Create(ctx, &auth.Credential{
		AccountID: account.ID,
		Protocol:  auth.ProtocolLocal,
		Password:  "$2b$10$hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}))

	require.NoError(t, s.Accounts().Delete(ctx, account.ID))

	_, err := s.Credentials().GetByAccountProtocol(ctx, account.ID, auth.ProtocolLocal)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestStore_Integration_WithinTxRollback(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	s := postgres.NewStore(pool)

	err := s.WithinTx(ctx, func(accounts auth.AccountRepository, credentials auth.CredentialRepository) error {
		account := &auth.Account{Username: "erin", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
		if err := accounts.Create(ctx, account); err != nil {
			return err
		}
		// Force a failure after the account insert.
		return credentials.Create(ctx, &auth.Credential{
			AccountID: account.ID + 1000,
			Protocol:  auth.ProtocolLocal,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		})
	})
	require.Error(t, err)

	// The account insert rolled back with the failed credential.
	_, err = s.Accounts().GetByUsername(ctx, "erin")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
