// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/xdg"
)

// NewCheckConfigCmd creates the check-config subcommand.
func NewCheckConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the config file without starting the server",
		Long: `Checks the config file against the config schema, then loads it with
flags and environment applied and runs the same validation serve does.
Exits non-zero on the first problem.

Useful in CI pipelines:
  warden check-config --config deploy/config.yaml`,
		Args: cobra.NoArgs,
		RunE: runCheckConfig,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runCheckConfig(cmd *cobra.Command, _ []string) error {
	path := configFile
	if path == "" {
		if def, ok := xdg.ConfigFile(); ok {
			path = def
		}
	}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
		if err != nil {
			return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
		if err := config.ValidateDocument(data); err != nil {
			return oops.With("path", path).Wrap(err)
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err //nolint:wrapcheck // config errors carry codes
	}

	if path == "" {
		cmd.Println("No config file; defaults, flags and environment are valid")
		return nil
	}
	cmd.Printf("%s is valid\n", path)
	return nil
}
