// SPDX-License-Identifier: AGPL-3.0-or-later

// Feature: CLI_GLOBAL_FLAGS
// Spec: SPEC_FULL.md §6.1 "CLI"

package commands

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"partcraft/pkg/config"
)

// ResolvedFlags holds the global flag values every subcommand needs,
// resolved with the same precedence teacher's CLI uses: flag > environment
// variable > built-in default.
type ResolvedFlags struct {
	Config  string
	WorkDir string
	Verbose bool
	DryRun  bool
}

// ResolveFlags resolves the root command's persistent flags.
func ResolveFlags(cmd *cobra.Command) (*ResolvedFlags, error) {
	configFlag, _ := cmd.Flags().GetString("config")
	workDirFlag, _ := cmd.Flags().GetString("work-dir")
	verboseFlag, _ := cmd.Flags().GetBool("verbose")
	dryRunFlag, _ := cmd.Flags().GetBool("dry-run")

	workDir := resolveString(workDirFlag, os.Getenv("PARTCRAFT_WORK_DIR"), ".partcraft")

	return &ResolvedFlags{
		Config:  resolveString(configFlag, os.Getenv("PARTCRAFT_CONFIG"), config.DefaultConfigPath()),
		WorkDir: workDir,
		Verbose: resolveBool(verboseFlag, parseBoolEnv(os.Getenv("PARTCRAFT_VERBOSE")), false),
		DryRun:  resolveBool(dryRunFlag, parseBoolEnv(os.Getenv("PARTCRAFT_DRY_RUN")), false),
	}, nil
}

func resolveString(flag, env, defaultValue string) string {
	if flag != "" {
		return flag
	}
	if env != "" {
		return env
	}
	return defaultValue
}

func resolveBool(flag, env, defaultValue bool) bool {
	if flag {
		return true
	}
	if env {
		return true
	}
	return defaultValue
}

func parseBoolEnv(value string) bool {
	if value == "" {
		return false
	}
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}
