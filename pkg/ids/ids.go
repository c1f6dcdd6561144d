// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ids generates the run identifiers attached to a lifecycle
// execution's log lines, so every action_executor entry for a single Run
// call can be correlated (spec.md §6.1 "Identifiers").
package ids

import "github.com/google/uuid"

// Feature: CORE_RUN_IDS
// Spec: SPEC_FULL.md §6.1 "Identifiers"

// NewRunID returns a fresh v4 UUID identifying one lifecycle.Manager.Run
// call. Two runs of an identical plan still get distinct IDs: unlike a
// content hash, a run identifier names an execution, not a plan.
func NewRunID() string {
	return uuid.NewString()
}
