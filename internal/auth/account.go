// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"context"
	"time"

	"github.com/samber/oops"
)

// Account is the end-user identity record, independent of how the user
// authenticates. IDs are numeric surrogates assigned by the store.
type Account struct {
	ID        int64
	Username  string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountDraft is the registration input. Password is plaintext and is
// extracted by the lifecycle before the account is persisted; it never
// reaches account storage.
type AccountDraft struct {
	Username string
	Email    string
	Password string
}

// normalize applies the default-username rule and validates the draft.
// When Username is empty it defaults to Email, matching the account
// creation contract.
func (d *AccountDraft) normalize() error {
	if d.Username == "" {
		d.Username = d.Email
	}
	if d.Username == "" {
		return oops.Code("ACCOUNT_IDENTIFIER_MISSING").
			Wrapf(ErrValidation, "either username or email is required")
	}
	if d.Email != "" && ClassifyIdentifier(d.Email) != IdentifierEmail {
		return oops.Code("ACCOUNT_EMAIL_INVALID").
			With("email", d.Email).
			Wrapf(ErrValidation, "email is not a well-formed address")
	}
	return nil
}

// AccountPartial identifies an account for credential updates, by ID when
// present, otherwise by username. Password, when non-empty, is the new
// plaintext password to rotate in.
type AccountPartial struct {
	ID       int64
	Username string
	Password string
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account and assigns its ID.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id int64) (*Account, error)

	// GetByUsername retrieves an account by username (case-sensitive).
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Update updates an existing account.
	Update(ctx context.Context, account *Account) error

	// Delete removes an account. Owned credentials cascade.
	Delete(ctx context.Context, id int64) error
}
