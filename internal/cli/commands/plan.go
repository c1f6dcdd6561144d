// SPDX-License-Identifier: AGPL-3.0-or-later

// Feature: CLI_PLAN
// Spec: SPEC_FULL.md §6.1 "CLI"

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"partcraft/internal/core/steps"
	"partcraft/pkg/logging"
	"partcraft/pkg/render"
)

// NewPlanCommand returns the `partcraft plan` command: it shows the action
// list a `run` to the same target/parts would execute, without touching
// the filesystem.
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [parts...]",
		Short: "Show the actions a run would take, without executing them",
		Long:  "Computes and prints the ordered action list for bringing the named parts (or every declared part) up to --target, without running anything.",
		RunE:  runPlan,
	}
	cmd.Flags().String("target", steps.Prime.String(), "target step (pull, overlay, build, stage, prime)")
	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
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

	m, err := buildManager(flags, cfg, logging.NewLogger(flags.Verbose))
	if err != nil {
		return err
	}

	plan, err := m.Plan(target, args)
	if err != nil {
		return fmt.Errorf("computing plan: %w", err)
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), render.Plan(plan))
	return err
}

func resolveTargetFlag(cmd *cobra.Command) (steps.Step, error) {
	name, _ := cmd.Flags().GetString("target")
	step, ok := steps.ParseStep(name)
	if !ok {
		return 0, fmt.Errorf("invalid --target %q; must be one of pull, overlay, build, stage, prime", name)
	}
	return step, nil
}
