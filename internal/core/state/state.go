// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package state persists the per-(part,step) StepState records every
// lifecycle step leaves behind, plus the separate overlay MigrationState
// records the squasher writes when migrating overlay content to stage or
// prime.
//
// Note: state is local-file-based and not safe for concurrent modification
// from multiple processes. A single lifecycle manager owns the work root at
// any time.
package state

import (
	"sort"

	"partcraft/internal/core/steps"
)

// Feature: CORE_STATE
// Spec: SPEC_FULL.md §3 "StepState (variant by step)"

// Contents is the (files, directories) pair a step records as having
// materialised under a shared area. Both slices are kept sorted so two
// canonical forms are byte-for-byte comparable (spec.md §4.1 "serialised
// fields must be deterministic").
type Contents struct {
	Files       []string `json:"files"`
	Directories []string `json:"directories"`
}

// NewContents builds a Contents from unordered sets, sorting both.
func NewContents(files, dirs map[string]struct{}) Contents {
	return Contents{Files: sortedKeys(files), Directories: sortedKeys(dirs)}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FileSet returns Files as a set, for arithmetic over migrated content
// (union/subtraction) in the migration package.
func (c Contents) FileSet() map[string]struct{} { return toSet(c.Files) }

// DirSet returns Directories as a set.
func (c Contents) DirSet() map[string]struct{} { return toSet(c.Directories) }

func toSet(ss []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		out[s] = struct{}{}
	}
	return out
}

// StepState is the trait every per-step state record exposes (spec.md §9
// "polymorphism over step state"). Step-specific fields live on the
// concrete types (PullState, OverlayState, BuildState, StageState,
// PrimeState); MigrationState is a separate variant, not a StepState.
type StepState interface {
	// Step identifies which lifecycle step produced this record.
	Step() steps.Step

	// PartProperties is the canonical part attribute snapshot recorded
	// when the step ran (spec.md §3).
	PartProperties() map[string]string

	// ProjectOptions is the canonical project-wide snapshot recorded when
	// the step ran.
	ProjectOptions() map[string]string

	// Contents returns the files/directories this step materialised for
	// the given partition, or ok=false if this step type does not track
	// per-partition shared-area contents (PullState, BuildState).
	Contents(partition string) (c Contents, ok bool)

	// RelevantFields lists the PartProperties keys whose change dirties
	// this step (spec.md §4.6 "field-change detection").
	RelevantFields() []string
}

// ChangedField compares a step state's recorded PartProperties against a
// part's current canonical properties, returning the first differing
// relevant field. ok is false when nothing relevant changed.
func ChangedField(st StepState, current map[string]string) (field string, ok bool) {
	stored := st.PartProperties()
	for _, f := range st.RelevantFields() {
		if stored[f] != current[f] {
			return f, true
		}
	}
	return "", false
}
