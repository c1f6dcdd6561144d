// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package state

import (
	"testing"

	"partcraft/internal/core/parts"
)

// Feature: CORE_STATE
// Spec: SPEC_FULL.md §3 "StepState (variant by step)"

func TestCoreStateFeatureAnchor_NewStoreNonNil(t *testing.T) {
	store := NewStore(parts.NewDirs(t.TempDir()))
	if store == nil {
		t.Fatal("expected NewStore to return non-nil store")
	}
}
