// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import "errors"

var (
	// ErrNotFound is returned when a requested account or credential does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when a create or update violates a uniqueness
	// or format constraint. Store implementations wrap their native constraint
	// errors with this sentinel so callers can test it with errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials is returned for expected authentication failures:
	// a wrong password, a missing local credential, or an unknown access
	// token. It is distinct from ErrNotFound and from fatal errors so callers
	// can present uniform "invalid credentials" messaging without leaking
	// which check failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
