// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/auth/postgres"
	"github.com/passgate/passgate/internal/config"
)

// buildHasher constructs the configured password hasher.
func buildHasher(cfg config.Config) (auth.PasswordHasher, error) {
	switch cfg.Auth.Hasher {
	case "argon2id":
		return auth.NewArgon2idHasher(), nil
	case "bcrypt", "":
		return auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("hasher", cfg.Auth.Hasher).
			Errorf("unknown hasher %q", cfg.Auth.Hasher)
	}
}

// buildLifecycle wires a credential lifecycle over a postgres store.
func buildLifecycle(cfg config.Config, s *postgres.Store, logger *slog.Logger, opts ...auth.Option) (*auth.Lifecycle, error) {
	hasher, err := buildHasher(cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewRandomTokenIssuer(cfg.Auth.TokenBytes)
	if err != nil {
		return nil, err
	}

	opts = append([]auth.Option{auth.WithTxStore(s), auth.WithLogger(logger)}, opts...)
	return auth.NewLifecycle(s.Accounts(), s.Credentials(), hasher, tokens, opts...)
}
