// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// MetricsRecorder receives lifecycle outcome counts. The observability
// package provides the Prometheus-backed implementation.
type MetricsRecorder interface {
	RecordRegistration()
	RecordLogin(result string)
	RecordTokenAuth(result string)
}

// Login result labels reported to the MetricsRecorder.
const (
	LoginResultSuccess  = "success"
	LoginResultRejected = "rejected"
	LoginResultError    = "error"
)

// LoginResult is the success outcome of Login and AuthenticateToken: the
// account together with the credential that authenticated it.
type LoginResult struct {
	Account    *Account
	Credential *Credential
}

// Lifecycle coordinates accounts and credentials through explicitly injected
// dependencies. All operations are safe for concurrent use as long as the
// injected store and hasher are.
type Lifecycle struct {
	accounts    AccountRepository
	credentials CredentialRepository
	hasher      PasswordHasher
	tokens      TokenIssuer
	tx          TxStore
	metrics     MetricsRecorder
	logger      *slog.Logger
}

// Option configures optional Lifecycle collaborators.
type Option func(*Lifecycle)

// WithTxStore makes registration's two writes run in one store transaction
// instead of relying on the compensating-delete fallback.
func WithTxStore(tx TxStore) Option {
	return func(l *Lifecycle) { l.tx = tx }
}

// WithLogger sets the structured logger used for non-fatal anomalies.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Lifecycle) { l.logger = logger }
}

// WithMetrics sets the recorder for registration and login counters.
func WithMetrics(m MetricsRecorder) Option {
	return func(l *Lifecycle) { l.metrics = m }
}

// NewLifecycle creates a Lifecycle. The four core dependencies are required.
func NewLifecycle(accounts AccountRepository, credentials CredentialRepository, hasher PasswordHasher, tokens TokenIssuer, opts ...Option) (*Lifecycle, error) {
	if accounts == nil {
		return nil, oops.Code("LIFECYCLE_INVALID_DEPS").Errorf("accounts repository is required")
	}
	if credentials == nil {
		return nil, oops.Code("LIFECYCLE_INVALID_DEPS").Errorf("credentials repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("LIFECYCLE_INVALID_DEPS").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("LIFECYCLE_INVALID_DEPS").Errorf("token issuer is required")
	}

	l := &Lifecycle{
		accounts:    accounts,
		credentials: credentials,
		hasher:      hasher,
		tokens:      tokens,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		return nil, oops.Code("LIFECYCLE_INVALID_DEPS").Errorf("logger cannot be nil")
	}
	return l, nil
}

// hashCredential is the explicit hashing step that runs before any store
// write carrying a password. If the password is non-empty it is replaced with
// its hash; on failure the field is scrubbed so plaintext can never leak into
// storage or logs, and the write must not proceed. Empty passwords pass
// through untouched (non-local credentials never carry one).
func (l *Lifecycle) hashCredential(c *Credential) error {
	if c.Password == "" {
		return nil
	}
	hashed, err := l.hasher.Hash(c.Password)
	if err != nil {
		c.Password = ""
		return oops.Code("CREDENTIAL_HASH_FAILED").
			With("protocol", c.Protocol).
			Wrap(err)
	}
	c.Password = hashed
	return nil
}

// Register creates an account and its local credential.
//
// The plaintext password is removed from the draft before the account is
// persisted. When the store supports transactions (WithTxStore) both writes
// share one transaction; otherwise a failed credential create triggers a
// compensating delete of the fresh account so no orphan remains. Uniqueness
// and format violations surface as ErrValidation.
func (l *Lifecycle) Register(ctx context.Context, draft AccountDraft) (*Account, error) {
	password := draft.Password
	draft.Password = ""

	if err := draft.normalize(); err != nil {
		return nil, err
	}

	token, err := l.tokens.Issue()
	if err != nil {
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "issue access token").
			Wrap(err)
	}

	now := time.Now().UTC()
	account := &Account{
		Username:  draft.Username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if draft.Email != "" {
		email := draft.Email
		account.Email = &email
	}

	credential := &Credential{
		Protocol:    ProtocolLocal,
		Password:    password,
		AccessToken: token,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.hashCredential(credential); err != nil {
		return nil, err
	}

	if l.tx != nil {
		err = l.tx.WithinTx(ctx, func(accounts AccountRepository, credentials CredentialRepository) error {
			if err := accounts.Create(ctx, account); err != nil {
				return err
			}
			credential.AccountID = account.ID
			return credentials.Create(ctx, credential)
		})
	} else {
		err = l.registerCompensating(ctx, account, credential)
	}
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, oops.Code("REGISTER_VALIDATION_FAILED").
				With("username", account.Username).
				Wrap(err)
		}
		return nil, oops.Code("REGISTER_FAILED").
			With("username", account.Username).
			Wrap(err)
	}

	if l.metrics != nil {
		l.metrics.RecordRegistration()
	}
	return account, nil
}

// registerCompensating performs the two writes without a transaction,
// deleting the freshly created account when the credential create fails.
// A process crash between the two writes can still orphan an account; the
// transactional path does not have that window.
func (l *Lifecycle) registerCompensating(ctx context.Context, account *Account, credential *Credential) error {
	if err := l.accounts.Create(ctx, account); err != nil {
		return err
	}
	credential.AccountID = account.ID
	if err := l.credentials.Create(ctx, credential); err != nil {
		if delErr := l.accounts.Delete(ctx, account.ID); delErr != nil {
			l.logger.Error("rollback of account after credential failure did not complete",
				"account_id", account.ID,
				"error", delErr)
		}
		return err
	}
	return nil
}

// UpdateCredential resolves an account by ID (preferred) or username and,
// when a new password is supplied, rotates the local credential's password
// through the same hashing step as registration. Without a new password no
// credential mutation occurs.
func (l *Lifecycle) UpdateCredential(ctx context.Context, partial AccountPartial) (*Account, error) {
	password := partial.Password
	partial.Password = ""

	var (
		account *Account
		err     error
	)
	if partial.ID != 0 {
		account, err = l.accounts.GetByID(ctx, partial.ID)
	} else {
		account, err = l.accounts.GetByUsername(ctx, partial.Username)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("ACCOUNT_NOT_FOUND").
				With("id", partial.ID).
				With("username", partial.Username).
				Wrap(err)
		}
		return nil, oops.Code("UPDATE_CREDENTIAL_FAILED").
			With("operation", "resolve account").
			Wrap(err)
	}

	if password == "" {
		return account, nil
	}

	credential, err := l.credentials.GetByAccountProtocol(ctx, account.ID, ProtocolLocal)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Registration creates exactly one local credential, so a miss
			// here means the store is inconsistent, not that the caller erred.
			return nil, oops.Code("CREDENTIAL_STATE_INCONSISTENT").
				With("account_id", account.ID).
				Errorf("password update requested but no local credential exists")
		}
		return nil, oops.Code("UPDATE_CREDENTIAL_FAILED").
			With("operation", "resolve local credential").
			Wrap(err)
	}

	replacement := &Credential{Protocol: ProtocolLocal, Password: password}
	if err := l.hashCredential(replacement); err != nil {
		return nil, err
	}
	if err := l.credentials.UpdatePassword(ctx, credential.ID, replacement.Password); err != nil {
		return nil, oops.Code("UPDATE_CREDENTIAL_FAILED").
			With("operation", "persist password").
			With("credential_id", credential.ID).
			Wrap(err)
	}
	return account, nil
}

// Connect is an idempotent upsert of a local credential: an account that
// registered through a third-party protocol gains a password. An existing
// local credential is returned unchanged; rotation is UpdateCredential's job.
func (l *Lifecycle) Connect(ctx context.Context, account *Account, password string) (*Credential, error) {
	if account == nil || account.ID == 0 {
		return nil, oops.Code("CONNECT_INVALID_ACCOUNT").Errorf("account with assigned ID is required")
	}

	existing, err := l.credentials.GetByAccountProtocol(ctx, account.ID, ProtocolLocal)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("CONNECT_FAILED").
			With("operation", "resolve local credential").
			With("account_id", account.ID).
			Wrap(err)
	}

	token, err := l.tokens.Issue()
	if err != nil {
		return nil, oops.Code("CONNECT_FAILED").
			With("operation", "issue access token").
			Wrap(err)
	}

	now := time.Now().UTC()
	credential := &Credential{
		AccountID:   account.ID,
		Protocol:    ProtocolLocal,
		Password:    password,
		AccessToken: token,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.hashCredential(credential); err != nil {
		return nil, err
	}

	if err := l.credentials.Create(ctx, credential); err != nil {
		// A concurrent Connect can win the (account, protocol) uniqueness
		// race; the surviving credential is the correct result.
		if errors.Is(err, ErrValidation) {
			if existing, getErr := l.credentials.GetByAccountProtocol(ctx, account.ID, ProtocolLocal); getErr == nil {
				return existing, nil
			}
		}
		return nil, oops.Code("CONNECT_FAILED").
			With("operation", "create local credential").
			With("account_id", account.ID).
			Wrap(err)
	}
	return credential, nil
}

// Login validates an identifier/password pair. The identifier is classified
// as an email or username and the account is looked up by that field.
//
// Misses return ErrNotFound with a code distinguishing email from username
// lookups; a wrong password or missing local credential returns
// ErrInvalidCredentials; hashing-primitive failures are fatal errors.
func (l *Lifecycle) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	result, err := l.login(ctx, identifier, password)
	if l.metrics != nil {
		switch {
		case err == nil:
			l.metrics.RecordLogin(LoginResultSuccess)
		case errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrNotFound):
			l.metrics.RecordLogin(LoginResultRejected)
		default:
			l.metrics.RecordLogin(LoginResultError)
		}
	}
	return result, err
}

func (l *Lifecycle) login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	var (
		account *Account
		err     error
	)
	kind := ClassifyIdentifier(identifier)
	if kind == IdentifierEmail {
		account, err = l.accounts.GetByEmail(ctx, identifier)
	} else {
		account, err = l.accounts.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			code := "AUTH_USERNAME_NOT_FOUND"
			if kind == IdentifierEmail {
				code = "AUTH_EMAIL_NOT_FOUND"
			}
			return nil, oops.Code(code).Wrap(err)
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "resolve account").
			Wrap(err)
	}

	credential, err := l.credentials.GetByAccountProtocol(ctx, account.ID, ProtocolLocal)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_NO_LOCAL_CREDENTIAL").
				With("account_id", account.ID).
				Wrap(ErrInvalidCredentials)
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "resolve local credential").
			Wrap(err)
	}

	valid, err := l.hasher.Verify(password, credential.Password)
	if err != nil {
		return nil, oops.Code("AUTH_VERIFY_FAILED").
			With("account_id", account.ID).
			Wrap(err)
	}
	if !valid {
		return nil, oops.Code("AUTH_WRONG_PASSWORD").Wrap(ErrInvalidCredentials)
	}

	l.maybeUpgradeHash(ctx, credential, password)

	return &LoginResult{Account: account, Credential: credential}, nil
}

// maybeUpgradeHash transparently re-hashes the verified password when the
// stored hash predates the configured algorithm or cost. Best effort: login
// succeeds regardless.
func (l *Lifecycle) maybeUpgradeHash(ctx context.Context, credential *Credential, password string) {
	if !l.hasher.NeedsUpgrade(credential.Password) {
		return
	}
	hashed, err := l.hasher.Hash(password)
	if err != nil {
		return
	}
	if err := l.credentials.UpdatePassword(ctx, credential.ID, hashed); err != nil {
		l.logger.Warn("hash upgrade after login did not persist",
			"credential_id", credential.ID,
			"error", err)
		return
	}
	credential.Password = hashed
}

// AuthenticateToken resolves an account by a credential's access token, for
// stateless API authentication independent of session cookies. Unknown or
// empty tokens return ErrInvalidCredentials.
func (l *Lifecycle) AuthenticateToken(ctx context.Context, token string) (*LoginResult, error) {
	result, err := l.authenticateToken(ctx, token)
	if l.metrics != nil {
		switch {
		case err == nil:
			l.metrics.RecordTokenAuth(LoginResultSuccess)
		case errors.Is(err, ErrInvalidCredentials):
			l.metrics.RecordTokenAuth(LoginResultRejected)
		default:
			l.metrics.RecordTokenAuth(LoginResultError)
		}
	}
	return result, err
}

func (l *Lifecycle) authenticateToken(ctx context.Context, token string) (*LoginResult, error) {
	if token == "" {
		return nil, oops.Code("AUTH_TOKEN_EMPTY").Wrap(ErrInvalidCredentials)
	}

	credential, err := l.credentials.GetByAccessToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_TOKEN_UNKNOWN").Wrap(ErrInvalidCredentials)
		}
		return nil, oops.Code("AUTH_TOKEN_FAILED").
			With("operation", "resolve credential by token").
			Wrap(err)
	}

	account, err := l.accounts.GetByID(ctx, credential.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("CREDENTIAL_STATE_INCONSISTENT").
				With("credential_id", credential.ID).
				Errorf("credential exists without its owning account")
		}
		return nil, oops.Code("AUTH_TOKEN_FAILED").
			With("operation", "resolve owning account").
			Wrap(err)
	}

	return &LoginResult{Account: account, Credential: credential}, nil
}

// Disconnect removes an account's local credential, e.g. when the user
// reverts to third-party-only authentication.
func (l *Lifecycle) Disconnect(ctx context.Context, accountID int64) error {
	credential, err := l.credentials.GetByAccountProtocol(ctx, accountID, ProtocolLocal)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("CREDENTIAL_NOT_FOUND").
				With("account_id", accountID).
				Wrap(err)
		}
		return oops.Code("DISCONNECT_FAILED").
			With("operation", "resolve local credential").
			Wrap(err)
	}
	if err := l.credentials.Delete(ctx, credential.ID); err != nil {
		return oops.Code("DISCONNECT_FAILED").
			With("operation", "delete local credential").
			With("credential_id", credential.ID).
			Wrap(err)
	}
	return nil
}
