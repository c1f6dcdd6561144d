// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sources defines the contract a part's PULL step delegates to
// (spec.md §6 "Source handler contract"), the registry a lifecycle manager
// looks source handlers up by type with, and the three built-in handlers
// every project gets without configuration: local, tar, and git.
package sources

import "fmt"

// Feature: SOURCE_CONTRACT
// Spec: SPEC_FULL.md §4.8 "Default collaborator implementations: pkg/sources"

// PullContext is everything a source handler needs to pull or update a
// part's source into its source directory.
type PullContext struct {
	PartName  string
	Source    string
	SourceDir string
	// Properties carries the part's source-* fields relevant to this
	// handler (source-branch, source-tag, source-commit, source-depth,
	// source-checksum, ...), keyed without the "source-" prefix.
	Properties map[string]string
}

// Source pulls or refreshes a part's source into its source directory, and
// reports whether a previously pulled source is now outdated.
type Source interface {
	// Pull fetches the source into ctx.SourceDir for the first time.
	Pull(ctx PullContext) error

	// Update refreshes an already-pulled source in place. The part
	// handler calls it for an UPDATE action on PULL and calls Pull for
	// every other action type.
	Update(ctx PullContext) error

	// CheckIfOutdated reports whether the source at ctx.SourceDir is
	// stale relative to its origin, consulting statePath (the part's
	// persisted pull state) for whatever the handler needs to compare
	// against (a remote ref, a remote mtime, ...).
	CheckIfOutdated(ctx PullContext, statePath string) (bool, error)

	// PullSnaps returns the snap names this source requires to be
	// pulled, if any (spec.md §6 "get_pull_snaps").
	PullSnaps(ctx PullContext) ([]string, error)
}

// ErrUnknownSourceType is returned when a part names a source type no
// registry collaborator provides.
var ErrUnknownSourceType = fmt.Errorf("unknown source type")
