// SPDX-License-Identifier: AGPL-3.0-or-later

// Package actions defines the unit of work the sequencer plans and the
// lifecycle executor runs.
package actions

import "partcraft/internal/core/steps"

// Feature: CORE_ACTIONS
// Spec: SPEC_FULL.md §3 "ActionType", "Action"

// Type classifies how a step should be (re)executed.
type Type string

const (
	// Run executes the step fresh; no prior state exists.
	Run Type = "RUN"
	// Rerun clears prior state and outputs for the step (and everything
	// downstream of it), then runs.
	Rerun Type = "RERUN"
	// Update re-runs a source-update or incremental build, preserving
	// state metadata and marking downstream steps touched.
	Update Type = "UPDATE"
	// Reapply rebuilds just the overlay layer without invalidating
	// downstream state.
	Reapply Type = "REAPPLY"
	// Skip is a no-op: state already valid.
	Skip Type = "SKIP"
)

// Action is a single planned operation on a single part.
type Action struct {
	PartName string
	Step     steps.Step
	Type     Type

	// Reason is a short human-readable explanation, e.g. "already ran",
	// "requested step", "'overlay-packages' property changed",
	// "required to overlay 'foo'".
	Reason string

	// Properties carries any extra context a caller wants attached to the
	// action for reporting (never consulted by the sequencer or handler).
	Properties map[string]string
}

// String renders an action as "<part>:<step> <type>[ (<reason>)]", the
// format used by the seed end-to-end scenarios in spec.md §8.
func (a Action) String() string {
	s := a.PartName + ":" + a.Step.String() + " " + string(a.Type)
	if a.Reason != "" {
		s += " (" + a.Reason + ")"
	}
	return s
}
