// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passgate/passgate/pkg/errutil"
)

func TestNewRandomTokenIssuer(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{name: "zero selects minimum", size: 0},
		{name: "minimum accepted", size: TokenMinBytes},
		{name: "larger accepted", size: 64},
		{name: "below minimum rejected", size: 32, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer, err := NewRandomTokenIssuer(tt.size)
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "TOKEN_SIZE_TOO_SMALL")
				return
			}
			require.NoError(t, err)
			require.NotNil(t, issuer)
		})
	}
}

func TestRandomTokenIssuer_Issue(t *testing.T) {
	issuer, err := NewRandomTokenIssuer(0)
	require.NoError(t, err)

	token, err := issuer.Issue()
	require.NoError(t, err)

	// 48 bytes of entropy encode to 64 base64 characters without padding.
	assert.Len(t, token, 64)
	assert.NotContains(t, token, "=", "tokens must not carry padding")

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err, "token must be URL-safe base64")
	assert.Len(t, decoded, TokenMinBytes)
}

func TestRandomTokenIssuer_Uniqueness(t *testing.T) {
	issuer, err := NewRandomTokenIssuer(0)
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for range 100 {
		token, issueErr := issuer.Issue()
		require.NoError(t, issueErr)

		_, dup := seen[token]
		require.False(t, dup, "issued a duplicate token")
		seen[token] = struct{}{}
	}
}
