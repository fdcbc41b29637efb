// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package memory provides an in-memory account/credential store. It backs
// unit tests and local development; it deliberately does not implement
// auth.TxStore so the lifecycle's compensating-rollback path stays exercised.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
)

// Store holds accounts and credentials behind one mutex. Safe for concurrent
// use; entities are copied on the way in and out.
type Store struct {
	mu sync.Mutex

	accounts    map[int64]*auth.Account
	credentials map[int64]*auth.Credential

	nextAccountID    int64
	nextCredentialID int64

	// FailNextCredentialCreate, when non-nil, makes the next credential
	// create fail with this error. Used to test registration rollback.
	FailNextCredentialCreate error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts:    make(map[int64]*auth.Account),
		credentials: make(map[int64]*auth.Credential),
	}
}

// Accounts returns the store's auth.AccountRepository view.
func (s *Store) Accounts() auth.AccountRepository { return (*accountRepo)(s) }

// Credentials returns the store's auth.CredentialRepository view.
func (s *Store) Credentials() auth.CredentialRepository { return (*credentialRepo)(s) }

// CountAccounts reports the number of stored accounts.
func (s *Store) CountAccounts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// CountCredentials reports the number of stored credentials.
func (s *Store) CountCredentials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.credentials)
}

type accountRepo Store

func (r *accountRepo) Create(_ context.Context, account *auth.Account) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.Username == account.Username {
			return oops.Code("ACCOUNT_DUPLICATE_USERNAME").
				With("username", account.Username).
				Wrap(auth.ErrValidation)
		}
		if account.Email != nil && existing.Email != nil &&
			strings.EqualFold(*existing.Email, *account.Email) {
			return oops.Code("ACCOUNT_DUPLICATE_EMAIL").
				With("email", *account.Email).
				Wrap(auth.ErrValidation)
		}
	}

	s.nextAccountID++
	account.ID = s.nextAccountID
	s.accounts[account.ID] = copyAccount(account)
	return nil
}

func (r *accountRepo) GetByID(_ context.Context, id int64) (*auth.Account, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return copyAccount(account), nil
}

func (r *accountRepo) GetByUsername(_ context.Context, username string) (*auth.Account, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		if account.Username == username {
			return copyAccount(account), nil
		}
	}
	return nil, oops.Code("ACCOUNT_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
}

func (r *accountRepo) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		if account.Email != nil && strings.EqualFold(*account.Email, email) {
			return copyAccount(account), nil
		}
	}
	return nil, oops.Code("ACCOUNT_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
}

func (r *accountRepo) Update(_ context.Context, account *auth.Account) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", account.ID).Wrap(auth.ErrNotFound)
	}
	s.accounts[account.ID] = copyAccount(account)
	return nil
}

func (r *accountRepo) Delete(_ context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	delete(s.accounts, id)
	// Cascade, mirroring the database's ON DELETE CASCADE.
	for credID, cred := range s.credentials {
		if cred.AccountID == id {
			delete(s.credentials, credID)
		}
	}
	return nil
}

type credentialRepo Store

func (r *credentialRepo) Create(_ context.Context, credential *auth.Credential) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.FailNextCredentialCreate; err != nil {
		s.FailNextCredentialCreate = nil
		return err
	}

	for _, existing := range s.credentials {
		if existing.AccountID == credential.AccountID && existing.Protocol == credential.Protocol {
			return oops.Code("CREDENTIAL_DUPLICATE_PROTOCOL").
				With("account_id", credential.AccountID).
				With("protocol", credential.Protocol).
				Wrap(auth.ErrValidation)
		}
	}

	s.nextCredentialID++
	credential.ID = s.nextCredentialID
	s.credentials[credential.ID] = copyCredential(credential)
	return nil
}

func (r *credentialRepo) GetByAccountProtocol(_ context.Context, accountID int64, protocol string) (*auth.Credential, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, credential := range s.credentials {
		if credential.AccountID == accountID && credential.Protocol == protocol {
			return copyCredential(credential), nil
		}
	}
	return nil, oops.Code("CREDENTIAL_NOT_FOUND").
		With("account_id", accountID).
		With("protocol", protocol).
		Wrap(auth.ErrNotFound)
}

func (r *credentialRepo) GetByAccessToken(_ context.Context, token string) (*auth.Credential, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, credential := range s.credentials {
		if credential.AccessToken != "" && credential.AccessToken == token {
			return copyCredential(credential), nil
		}
	}
	return nil, oops.Code("CREDENTIAL_NOT_FOUND").Wrap(auth.ErrNotFound)
}

func (r *credentialRepo) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	credential, ok := s.credentials[id]
	if !ok {
		return oops.Code("CREDENTIAL_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	credential.Password = passwordHash
	return nil
}

func (r *credentialRepo) Delete(_ context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[id]; !ok {
		return oops.Code("CREDENTIAL_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	delete(s.credentials, id)
	return nil
}

func copyAccount(a *auth.Account) *auth.Account {
	dup := *a
	if a.Email != nil {
		email := *a.Email
		dup.Email = &email
	}
	return &dup
}

func copyCredential(c *auth.Credential) *auth.Credential {
	dup := *c
	if c.Tokens != nil {
		dup.Tokens = make(map[string]string, len(c.Tokens))
		for k, v := range c.Tokens {
			dup.Tokens[k] = v
		}
	}
	return &dup
}

// Compile-time interface checks.
var (
	_ auth.AccountRepository    = (*accountRepo)(nil)
	_ auth.CredentialRepository = (*credentialRepo)(nil)
)
