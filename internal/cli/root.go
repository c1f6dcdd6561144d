// SPDX-License-Identifier: AGPL-3.0-or-later

/*

partcraft - a Go-based CLI that drives declarative multi-part build
lifecycles (pull, overlay, build, stage, prime) against a single work tree.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package cli wires together the partcraft root Cobra command and global CLI options.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"partcraft/internal/cli/commands"
)

// NewRootCommand constructs the partcraft root Cobra command, wiring the
// plan/run/clean subcommands (spec.md §6.1 "CLI").
//
// Feature: ARCH_OVERVIEW
// Spec: SPEC_FULL.md §6.1 "CLI"
func NewRootCommand() *cobra.Command {
	version := os.Getenv("PARTCRAFT_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:           "partcraft",
		Short:         "partcraft - declarative multi-part build lifecycle orchestration",
		Long:          "partcraft drives parts declared in partcraft.yml through pull, overlay, build, stage and prime, tracking per-part state so repeat runs only redo what changed.",
		SilenceUsage:  true, // don't dump usage on user errors
		SilenceErrors: true, // centralize error printing in main()
	}

	// Global flags - registered in lexicographic order for deterministic help output
	cmd.PersistentFlags().StringP("config", "c", "", "path to partcraft.yml")
	cmd.PersistentFlags().Bool("dry-run", false, "show actions without executing")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().String("work-dir", "", "work tree root (state, parts, stage, prime directories)")

	// Version command - simple and explicit.
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of partcraft",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "partcraft version %s\n", version)
		},
	})

	// Subcommands - keep registrations in lexicographic order by .Use
	// to ensure deterministic help output.
	cmd.AddCommand(commands.NewCleanCommand())
	cmd.AddCommand(commands.NewPlanCommand())
	cmd.AddCommand(commands.NewRunCommand())

	return cmd
}
