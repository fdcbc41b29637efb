package main

import (
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the passgate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passgate",
		Short: "Passgate - local credential lifecycle engine",
		Long: `Passgate manages username/email+password accounts: registration,
credential rotation, find-or-create for third-party identities, and
login verification with opaque API tokens.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().String("database.url", "", "PostgreSQL connection URL (overrides config file)")
	cmd.PersistentFlags().String("log.format", "", "log format: json or text")
	cmd.PersistentFlags().String("log.level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewHashCmd())

	return cmd
}

// loadConfig builds the effective configuration for a command invocation:
// built-in defaults, then the --config file, then command-line flags. When
// --config is not given, the XDG config file is used if it exists.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := configFile
	if path == "" {
		if xdgPath, ok := xdg.DefaultConfigFile(); ok {
			path = xdgPath
		}
	}
	return config.Load(path, cmd.Flags())
}
