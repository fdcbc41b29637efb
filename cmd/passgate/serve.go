// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/auth/postgres"
	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/internal/logging"
	"github.com/passgate/passgate/internal/observability"
	"github.com/passgate/passgate/internal/store"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the passgate engine as a daemon",
		Long: `Connect to the database, optionally apply pending migrations, and keep
the credential lifecycle running with metrics and health probes exposed
on the observability address. The engine itself is embedded by host
applications; this process serves operational endpoints only.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logging.SetDefault("passgate", version, logging.Options{
		Format: cfg.Log.Format,
		Level:  cfg.Log.Level,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := autoMigrate(cfg); err != nil {
			return err
		}
	}

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Observability.Addr == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("serve requires observability.addr to be set")
	}

	obs := observability.NewServer(cfg.Observability.Addr, func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	})

	// Construct the lifecycle at startup so hasher and token configuration
	// problems surface here instead of inside an embedding host.
	if _, err := buildLifecycle(cfg, postgres.NewStore(pool), slog.Default(),
		auth.WithMetrics(obs.Metrics())); err != nil {
		return err
	}

	errCh, err := obs.Start()
	if err != nil {
		return err
	}

	slog.Info("passgate running", "observability_addr", obs.Addr())

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case serveErr := <-errCh:
		if serveErr != nil {
			return oops.Code("SERVE_FAILED").Wrap(serveErr)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return obs.Stop(stopCtx)
}

func autoMigrate(cfg config.Config) error {
	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close error is not actionable here

	if err := migrator.Up(); err != nil {
		return err
	}
	slog.Info("schema migrations applied")
	return nil
}
