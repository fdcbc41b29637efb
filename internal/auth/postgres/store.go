// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
)

// Store bundles the PostgreSQL repositories and provides transactions.
type Store struct {
	db          DB
	accounts    *AccountRepository
	credentials *CredentialRepository
}

// NewStore creates a Store over a connection pool.
func NewStore(db DB) *Store {
	return &Store{
		db:          db,
		accounts:    NewAccountRepository(db),
		credentials: NewCredentialRepository(db),
	}
}

// Accounts returns the account repository bound to the pool.
func (s *Store) Accounts() auth.AccountRepository { return s.accounts }

// Credentials returns the credential repository bound to the pool.
func (s *Store) Credentials() auth.CredentialRepository { return s.credentials }

// WithinTx runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(accounts auth.AccountRepository, credentials auth.CredentialRepository) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return oops.Code("STORE_TX_BEGIN_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(NewAccountRepository(tx), NewCredentialRepository(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("STORE_TX_COMMIT_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.TxStore = (*Store)(nil)
