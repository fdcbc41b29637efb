// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package auth implements the local authentication protocol and the
// credential lifecycle: registration, password rotation, account-to-credential
// linking, and login verification.
//
// Accounts describe who a user is; credentials describe how they
// authenticate. A credential is tagged with a protocol ("local" for
// password-based credentials, a provider name otherwise) and owned by exactly
// one account. The Lifecycle service coordinates the two through explicitly
// injected AccountRepository, CredentialRepository, PasswordHasher, and
// TokenIssuer dependencies; it never reaches for ambient state.
package auth
