// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/samber/oops"
)

// TokenMinBytes is the minimum entropy for issued access tokens.
const TokenMinBytes = 48

// TokenIssuer produces opaque tokens for stateless API authentication.
// Tokens are unrelated to password hashes; they are random identifiers, not
// derived secrets.
type TokenIssuer interface {
	Issue() (string, error)
}

// RandomTokenIssuer issues URL-safe base64 tokens (no padding) read from
// crypto/rand.
type RandomTokenIssuer struct {
	size int
}

// NewRandomTokenIssuer creates a RandomTokenIssuer drawing size bytes of
// entropy per token. A zero size selects TokenMinBytes; smaller sizes are
// rejected.
func NewRandomTokenIssuer(size int) (*RandomTokenIssuer, error) {
	if size == 0 {
		size = TokenMinBytes
	}
	if size < TokenMinBytes {
		return nil, oops.Code("TOKEN_SIZE_TOO_SMALL").
			With("size", size).
			With("min", TokenMinBytes).
			Errorf("token entropy below minimum")
	}
	return &RandomTokenIssuer{size: size}, nil
}

// Issue returns a fresh opaque token.
func (i *RandomTokenIssuer) Issue() (string, error) {
	buf := make([]byte, i.size)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", i.size).
			Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
