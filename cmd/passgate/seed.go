// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/auth/postgres"
	"github.com/passgate/passgate/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	username string
	email    string
	timeout  time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the initial admin account",
		Long: `Creates the initial admin account with a local credential. The password
is read from the PASSGATE_SEED_PASSWORD environment variable so it never
appears in shell history or process listings.

This command is idempotent - it will not create duplicates if run multiple times.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.username, "username", "admin", "username for the seed account")
	cmd.Flags().StringVar(&cfg.email, "email", "", "email for the seed account")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, seedCfg *seedConfig) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	password := os.Getenv("PASSGATE_SEED_PASSWORD")
	if password == "" {
		return oops.Code("CONFIG_INVALID").Errorf("PASSGATE_SEED_PASSWORD environment variable is required")
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals.
	ctx, cancel := context.WithTimeout(cmd.Context(), seedCfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	lifecycle, err := buildLifecycle(cfg, postgres.NewStore(pool), slog.Default())
	if err != nil {
		return err
	}

	account, err := lifecycle.Register(ctx, auth.AccountDraft{
		Username: seedCfg.username,
		Email:    seedCfg.email,
		Password: password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrValidation) {
			cmd.Println("Seed account already exists, skipping")
			slog.Info("seed account already present", "username", seedCfg.username)
			return nil
		}
		return oops.Code("SEED_FAILED").With("operation", "register seed account").Wrap(err)
	}

	cmd.Printf("Created seed account %q (id %d)\n", account.Username, account.ID)
	slog.Info("created seed account", "id", account.ID, "username", account.Username)
	return nil
}
