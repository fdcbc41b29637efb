// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/auth/memory"
)

// newTestLifecycle wires a Lifecycle to the given store with real hashing
// and token issuance, so these tests cover the full registration and login
// flow end to end.
func newTestLifecycle(t *testing.T, store *memory.Store) *auth.Lifecycle {
	t.Helper()

	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	issuer, err := auth.NewRandomTokenIssuer(0)
	require.NoError(t, err)

	l, err := auth.NewLifecycle(store.Accounts(), store.Credentials(), hasher, issuer)
	require.NoError(t, err)
	return l
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(t, store)
	ctx := context.Background()

	account, err := l.Register(ctx, auth.AccountDraft{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct horse battery staple",
	})
	require.NoError(t, err)
	require.NotZero(t, account.ID)

	byUsername, err := l.Login(ctx, "alice", "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, account.ID, byUsername.Account.ID)

	byEmail, err := l.Login(ctx, "ALICE@EXAMPLE.COM", "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, account.ID, byEmail.Account.ID)

	assert.NotEqual(t, "correct horse battery staple", byUsername.Credential.Password,
		"stored credential must hold a hash, never the plaintext")

	byToken, err := l.AuthenticateToken(ctx, byUsername.Credential.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID, byToken.Account.ID)
}

func TestLogin_WrongPasswordRejected(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(t, store)
	ctx := context.Background()

	_, err := l.Register(ctx, auth.AccountDraft{Username: "alice", Password: "right password"})
	require.NoError(t, err)

	_, err = l.Login(ctx, "alice", "wrong password")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestRegister_DuplicateEmailLeavesOneAccount(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(t, store)
	ctx := context.Background()

	_, err := l.Register(ctx, auth.AccountDraft{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "pw-one",
	})
	require.NoError(t, err)

	// Email uniqueness is case-insensitive.
	_, err = l.Register(ctx, auth.AccountDraft{
		Username: "alice2",
		Email:    "ALICE@example.com",
		Password: "pw-two",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrValidation)

	assert.Equal(t, 1, store.CountAccounts())
	assert.Equal(t, 1, store.CountCredentials())
}

func TestRegister_RollbackLeavesNoOrphan(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(t, store)
	ctx := context.Background()

	store.FailNextCredentialCreate = errors.New("simulated credential failure")

	_, err := l.Register(ctx, auth.AccountDraft{Username: "alice", Password: "pw"})
	require.Error(t, err)

	assert.Zero(t, store.CountAccounts(), "failed registration must not leave an account behind")
	assert.Zero(t, store.CountCredentials())
}

func TestUpdateCredential_RotatesPassword(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(t, store)
	ctx := context.Background()

	account, err := l.Register(ctx, auth.AccountDraft{Username: "alice", Password: "old password"})
	require.NoError(t, err)

	_, err = l.UpdateCredential(ctx, auth.AccountPartial{ID: account.ID, Password: "new password"})
	require.NoError(t, err)

	_, err = l.Login(ctx, "alice", "old password")
	require.Error(t, err, "old password must stop working after rotation")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = l.Login(ctx, "alice", "new password")
	require.NoError(t, err)
}

func TestConnect_IdempotentUpsert(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(t, store)
	ctx := context.Background()

	// An account created without a local credential, as a third-party
	// registration would leave it.
	account := &auth.Account{Username: "carol"}
	require.NoError(t, store.Accounts().Create(ctx, account))

	first, err := l.Connect(ctx, account, "linked password")
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	second, err := l.Connect(ctx, account, "a different password")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "second connect must return the existing credential")
	assert.Equal(t, 1, store.CountCredentials())

	_, err = l.Login(ctx, "carol", "linked password")
	require.NoError(t, err, "the first connect's password stays authoritative")
}

func TestDisconnect_RemovesLocalLogin(t *testing.T) {
	store := memory.NewStore()
	l := newTestLifecycle(t, store)
	ctx := context.Background()

	account, err := l.Register(ctx, auth.AccountDraft{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, l.Disconnect(ctx, account.ID))
	assert.Zero(t, store.CountCredentials())

	_, err = l.Login(ctx, "alice", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
