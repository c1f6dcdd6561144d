// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render formats a planned action list as a human-readable table
// for the CLI (spec.md §6.1 "CLI").
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"partcraft/internal/core/actions"
)

// Feature: CORE_PLAN_RENDER
// Spec: SPEC_FULL.md §6.1 "CLI"

var (
	partStyle = lipgloss.NewStyle().
			Width(16).
			Bold(true)

	stepStyle = lipgloss.NewStyle().
			Width(9).
			Foreground(lipgloss.Color("#5FAFD7"))

	typeStyle = lipgloss.NewStyle().
			Width(8).
			Foreground(lipgloss.Color("#87AF5F"))

	skipTypeStyle = typeStyle.Foreground(lipgloss.Color("#999999"))

	reasonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999"))
)

// Plan renders a sequencer-produced action list as one line per action,
// in the order the lifecycle manager will execute them.
func Plan(plan []actions.Action) string {
	if len(plan) == 0 {
		return "(nothing to do)\n"
	}

	var b strings.Builder
	for _, act := range plan {
		typ := typeStyle
		if act.Type == actions.Skip {
			typ = skipTypeStyle
		}
		fmt.Fprintf(&b, "%s %s %s %s\n",
			partStyle.Render(act.PartName),
			stepStyle.Render(act.Step.String()),
			typ.Render(string(act.Type)),
			reasonStyle.Render(act.Reason),
		)
	}
	return b.String()
}
