// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
)

// CredentialRepository implements auth.CredentialRepository on PostgreSQL.
type CredentialRepository struct {
	db Querier
}

// NewCredentialRepository creates a CredentialRepository over a pool or
// transaction.
func NewCredentialRepository(db Querier) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create stores a new credential. The UNIQUE (account_id, protocol)
// constraint surfaces duplicates as auth.ErrValidation.
func (r *CredentialRepository) Create(ctx context.Context, credential *auth.Credential) error {
	var tokensJSON []byte
	if credential.Tokens != nil {
		var err error
		tokensJSON, err = json.Marshal(credential.Tokens)
		if err != nil {
			return oops.Code("CREDENTIAL_CREATE_FAILED").
				With("operation", "marshal provider tokens").
				Wrap(err)
		}
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO credentials (
			account_id, protocol, password, access_token,
			provider, identifier, tokens, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		credential.AccountID,
		credential.Protocol,
		nullable(credential.Password),
		nullable(credential.AccessToken),
		nullable(credential.Provider),
		nullable(credential.Identifier),
		tokensJSON,
		credential.CreatedAt,
		credential.UpdatedAt,
	).Scan(&credential.ID)
	if err != nil {
		return oops.Code("CREDENTIAL_CREATE_FAILED").
			With("operation", "insert credential").
			With("account_id", credential.AccountID).
			With("protocol", credential.Protocol).
			Wrap(constraintError(err))
	}
	return nil
}

// GetByAccountProtocol retrieves the account's credential for a protocol.
func (r *CredentialRepository) GetByAccountProtocol(ctx context.Context, accountID int64, protocol string) (*auth.Credential, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, account_id, protocol, password, access_token,
		       provider, identifier, tokens, created_at, updated_at
		FROM credentials
		WHERE account_id = $1 AND protocol = $2
	`, accountID, protocol)

	credential, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").
			With("account_id", accountID).
			With("protocol", protocol).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CREDENTIAL_GET_FAILED").
			With("operation", "get credential by account and protocol").
			With("account_id", accountID).
			Wrap(err)
	}
	return credential, nil
}

// GetByAccessToken retrieves a credential by its access token.
func (r *CredentialRepository) GetByAccessToken(ctx context.Context, token string) (*auth.Credential, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, account_id, protocol, password, access_token,
		       provider, identifier, tokens, created_at, updated_at
		FROM credentials
		WHERE access_token = $1
	`, token)

	credential, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// The token itself never goes into error context or logs.
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CREDENTIAL_GET_FAILED").
			With("operation", "get credential by access token").
			Wrap(err)
	}
	return credential, nil
}

// UpdatePassword persists only the password field.
func (r *CredentialRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE credentials SET password = $2, updated_at = $3
		WHERE id = $1
	`, id, passwordHash, time.Now().UTC())
	if err != nil {
		return oops.Code("CREDENTIAL_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREDENTIAL_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a credential.
func (r *CredentialRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM credentials WHERE id = $1
	`, id)
	if err != nil {
		return oops.Code("CREDENTIAL_DELETE_FAILED").
			With("operation", "delete credential").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREDENTIAL_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanCredential scans a single row into a Credential. Callers handle
// pgx.ErrNoRows.
func scanCredential(row pgx.Row) (*auth.Credential, error) {
	var (
		credential  auth.Credential
		password    *string
		accessToken *string
		provider    *string
		identifier  *string
		tokensJSON  []byte
	)
	err := row.Scan(
		&credential.ID,
		&credential.AccountID,
		&credential.Protocol,
		&password,
		&accessToken,
		&provider,
		&identifier,
		&tokensJSON,
		&credential.CreatedAt,
		&credential.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
	}

	credential.Password = fromNullable(password)
	credential.AccessToken = fromNullable(accessToken)
	credential.Provider = fromNullable(provider)
	credential.Identifier = fromNullable(identifier)

	if len(tokensJSON) > 0 {
		if err := json.Unmarshal(tokensJSON, &credential.Tokens); err != nil {
			return nil, oops.Code("CREDENTIAL_INVALID_TOKENS").
				With("operation", "unmarshal provider tokens").
				Wrap(err)
		}
	}
	return &credential, nil
}

// Compile-time interface check.
var _ auth.CredentialRepository = (*CredentialRepository)(nil)
