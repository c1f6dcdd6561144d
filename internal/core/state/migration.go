// SPDX-License-Identifier: AGPL-3.0-or-later

package state

// MigrationState records what the squasher migrated from an overlay
// partition into stage or prime (spec.md §4.5.1). It is not a StepState: it
// is keyed by (partition, target step), not by (part, step), since overlay
// content belongs to the shared layer, not to any one part.
type MigrationState struct {
	Contents Contents `json:"contents"`
}

// Empty reports whether this migration moved nothing.
func (m MigrationState) Empty() bool {
	return len(m.Contents.Files) == 0 && len(m.Contents.Directories) == 0
}
