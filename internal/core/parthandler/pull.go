// SPDX-License-Identifier: AGPL-3.0-or-later

package parthandler

import (
	"context"
	"fmt"

	"partcraft/internal/core/actions"
	"partcraft/internal/core/lifecycleerr"
	"partcraft/internal/core/parts"
	"partcraft/internal/core/state"
	"partcraft/internal/core/steps"
	"partcraft/pkg/sources"
)

// Feature: CORE_PARTHANDLER_PULL
// Spec: SPEC_FULL.md §4.5 "PULL"

// runPull fetches a part's source, resolves its stage packages/snaps, and
// records PullState. UPDATE refreshes an already-pulled source in place;
// RUN and RERUN (after the downstream clean already ran) pull fresh.
func (h *Handler) runPull(ctx context.Context, part *parts.Part, typ actions.Type) error {
	if err := h.makeDirs(part.Name); err != nil {
		return err
	}

	if part.Source == "" {
		return h.store.Write(part.Name, &state.PullState{
			PartProps:    part.CanonicalProperties(),
			ProjectProps: h.project.CanonicalProperties(),
		})
	}

	sourceType := part.SourceType
	if sourceType == "" {
		detected, err := sources.DetectType(part.Source)
		if err != nil {
			return lifecycleerr.Wrap(lifecycleerr.KindSourceError, part.Name, steps.Pull.String(),
				"detecting source type", err)
		}
		sourceType = detected
	}

	handler, err := h.sources.Get(sourceType)
	if err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindSourceError, part.Name, steps.Pull.String(),
			fmt.Sprintf("resolving source type %q", sourceType), err)
	}

	pullCtx := sources.PullContext{
		PartName:   part.Name,
		Source:     part.Source,
		SourceDir:  h.dirs.PartSrcDir(part.Name),
		Properties: sourceProperties(part),
	}

	if typ == actions.Update {
		if err := handler.Update(pullCtx); err != nil {
			return lifecycleerr.Wrap(lifecycleerr.KindSourceError, part.Name, steps.Pull.String(), "updating source", err)
		}
	} else if err := handler.Pull(pullCtx); err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindSourceError, part.Name, steps.Pull.String(), "pulling source", err)
	}

	snaps, err := handler.PullSnaps(pullCtx)
	if err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindSourceError, part.Name, steps.Pull.String(), "resolving pull snaps", err)
	}

	var stagePkgPaths []string
	if len(part.StagePackages) > 0 {
		if h.pkgs == nil {
			return lifecycleerr.New(lifecycleerr.KindStagePackageNotFound, part.Name, steps.Pull.String(),
				"stage-packages declared but no package repository is configured")
		}
		stagePkgPaths, err = h.pkgs.FetchStagePackages(ctx, h.dirs.PartPackagesDir(part.Name), part.StagePackages)
		if err != nil {
			return lifecycleerr.Wrap(lifecycleerr.KindStagePackageNotFound, part.Name, steps.Pull.String(),
				"fetching stage packages", err)
		}
	}

	return h.store.Write(part.Name, &state.PullState{
		PartProps:    part.CanonicalProperties(),
		ProjectProps: h.project.CanonicalProperties(),
		Assets: state.PullAssets{
			StagePackages: stagePkgPaths,
			StageSnaps:    snaps,
			SourceDetails: part.Source,
		},
	})
}

// sourceProperties carries a part's source-* fields to the handler, stripped
// of the "source-" prefix (spec.md §6 "Source handler contract").
func sourceProperties(part *parts.Part) map[string]string {
	props := make(map[string]string)
	for k, v := range part.CanonicalProperties() {
		const prefix = "source-"
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			props[k[len(prefix):]] = v
		}
	}
	return props
}
