// SPDX-License-Identifier: AGPL-3.0-or-later

// Feature: CLI_RUN
// Spec: SPEC_FULL.md §6.1 "CLI"

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"partcraft/pkg/logging"
	"partcraft/pkg/render"
)

// NewRunCommand returns the `partcraft run` command: it drives the named
// parts (or every declared part) up to --target, executing whatever the
// plan calls for.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [parts...]",
		Short: "Run the build lifecycle up to a target step",
		Long:  "Brings the named parts (or every declared part) up to --target, pulling, overlaying, building, staging and priming as needed.",
		RunE:  runRun,
	}
	cmd.Flags().String("target", "prime", "target step (pull, overlay, build, stage, prime)")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	flags, err := ResolveFlags(cmd)
	if err != nil {
		return err
	}

	target, err := resolveTargetFlag(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	log := logging.NewLogger(flags.Verbose)
	m, err := buildManager(flags, cfg, log)
	if err != nil {
		return err
	}

	if flags.DryRun {
		plan, err := m.Plan(target, args)
		if err != nil {
			return fmt.Errorf("computing plan: %w", err)
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), render.Plan(plan))
		return err
	}

	executed, err := m.Run(cmd.Context(), target, args)
	if err != nil {
		return fmt.Errorf("running lifecycle: %w", err)
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), render.Plan(executed))
	return err
}
