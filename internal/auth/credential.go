// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"context"
	"time"
)

// ProtocolLocal tags password-based credentials. Any other protocol value
// names a third-party provider.
const ProtocolLocal = "local"

// Credential is a protocol-tagged secret record owned by exactly one account.
//
// For local credentials, Password holds the hashed secret (never plaintext
// once a write completes) and AccessToken holds the opaque random token
// issued at creation for stateless API authentication. Provider, Identifier,
// and Tokens are reserved for third-party protocols and unused here.
type Credential struct {
	ID          int64
	AccountID   int64
	Protocol    string
	Password    string
	AccessToken string
	Provider    string
	Identifier  string
	Tokens      map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsLocal reports whether this is a password-based credential.
func (c *Credential) IsLocal() bool {
	return c.Protocol == ProtocolLocal
}

// CredentialRepository manages credential persistence.
type CredentialRepository interface {
	// Create stores a new credential and assigns its ID. A duplicate
	// (account, protocol) pair fails with ErrValidation.
	Create(ctx context.Context, credential *Credential) error

	// GetByAccountProtocol retrieves the account's credential for a protocol.
	GetByAccountProtocol(ctx context.Context, accountID int64, protocol string) (*Credential, error)

	// GetByAccessToken retrieves a credential by its access token.
	GetByAccessToken(ctx context.Context, token string) (*Credential, error)

	// UpdatePassword persists only the (already hashed) password field.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// Delete removes a credential.
	Delete(ctx context.Context, id int64) error
}

// TxStore is an optional store capability: it runs fn against repositories
// bound to a single transaction, committing when fn returns nil and rolling
// back otherwise. The lifecycle uses it to make registration's two writes
// atomic; stores without transactions fall back to a compensating delete.
type TxStore interface {
	WithinTx(ctx context.Context, fn func(accounts AccountRepository, credentials CredentialRepository) error) error
}
