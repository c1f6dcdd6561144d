// SPDX-License-Identifier: AGPL-3.0-or-later

// Feature: CLI_CLEAN
// Spec: SPEC_FULL.md §6.1 "CLI"

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"partcraft/internal/core/steps"
	"partcraft/pkg/logging"
)

// NewCleanCommand returns the `partcraft clean` command: it tears down
// persisted state and on-disk output for the named parts (or every
// declared part) from --step onward.
func NewCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean [parts...]",
		Short: "Remove persisted state and outputs from a step onward",
		Long:  "Removes the named parts' (or every declared part's) persisted state and on-disk output from --step onward, so the next run redoes that work.",
		RunE:  runClean,
	}
	cmd.Flags().String("step", steps.Pull.String(), "step to clean from (pull, overlay, build, stage, prime)")
	return cmd
}

func runClean(cmd *cobra.Command, args []string) error {
	flags, err := ResolveFlags(cmd)
	if err != nil {
		return err
	}

	stepName, _ := cmd.Flags().GetString("step")
	step, ok := steps.ParseStep(stepName)
	if !ok {
		return fmt.Errorf("invalid --step %q; must be one of pull, overlay, build, stage, prime", stepName)
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	m, err := buildManager(flags, cfg, logging.NewLogger(flags.Verbose))
	if err != nil {
		return err
	}

	if err := m.Clean(args, step); err != nil {
		return fmt.Errorf("cleaning: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), "clean complete")
	return err
}
