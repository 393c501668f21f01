package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the warden CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warden",
		Short: "warden - token authentication service",
		Long: `warden issues and validates bearer tokens, resolves request identity,
and runs the password reset flow over pluggable notification channels.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/warden/config.yaml if present)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCheckConfigCmd())

	return cmd
}

// loadConfig resolves the config file and layers flags from cmd over it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		if def, ok := xdg.ConfigFile(); ok {
			path = def
		}
	}
	return config.Load(path, cmd.Flags()) //nolint:wrapcheck // config errors carry codes
}
