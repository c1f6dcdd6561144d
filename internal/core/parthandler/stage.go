// SPDX-License-Identifier: AGPL-3.0-or-later

package parthandler

import (
	"context"

	"partcraft/internal/core/lifecycleerr"
	"partcraft/internal/core/parts"
	"partcraft/internal/core/state"
	"partcraft/internal/core/steps"
	"partcraft/pkg/migration"
)

// Feature: CORE_PARTHANDLER_STAGE
// Spec: SPEC_FULL.md §4.5 "STAGE"

// runStage migrates everything a part installed into the shared stage
// area, then squashes every overlay-declaring part's layer content into
// the same area (spec.md §4.5.1 "_migrate_overlay_files_to_stage").
// override-stage replaces the automatic migration with a custom scriptlet
// run against the stage directory instead (this data model has no stage
// fileset filter, so "migrate everything" is the only automatic
// behaviour there is to replace) — but the overlay squash still runs
// afterward, since it is not part of this part's own output.
func (h *Handler) runStage(ctx context.Context, part *parts.Part, allParts []string, overlayParts []OverlayPartRef) error {
	partition := h.defaultPartition()
	stageDir := h.dirs.StageDir(partition.Name, partition.IsDefault)
	if err := makeDir(stageDir); err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Stage.String(), "preparing stage dir", err)
	}

	if part.OverrideStage != "" {
		if err := h.runScript(ctx, part.Name, part.OverrideStage, stageDir, nil); err != nil {
			return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Stage.String(), "running override-stage", err)
		}
		if err := h.migrateOverlayToStage(partition, overlayParts, stageDir); err != nil {
			return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Stage.String(), "squashing overlay to stage", err)
		}
		return h.store.Write(part.Name, &state.StageState{
			PartProps:    part.CanonicalProperties(),
			ProjectProps: h.project.CanonicalProperties(),
		})
	}

	installDir := h.dirs.PartInstallDir(part.Name, partition.Name, partition.IsDefault)
	files, dirs, err := walkLayer(installDir)
	if err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Stage.String(), "listing install dir", err)
	}

	result, err := migration.MigrateFiles(migration.Options{
		Files:       toSlice(files),
		Dirs:        toSlice(dirs),
		SrcDir:      installDir,
		DestDir:     stageDir,
		MissingOK:   true,
		Permissions: part.Permissions,
	})
	if err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Stage.String(), "migrating to stage", err)
	}

	if err := h.migrateOverlayToStage(partition, overlayParts, stageDir); err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Stage.String(), "squashing overlay to stage", err)
	}

	hash := h.previousLayerHash(part.Name)

	return h.store.Write(part.Name, &state.StageState{
		PartProps:      part.CanonicalProperties(),
		ProjectProps:   h.project.CanonicalProperties(),
		Partitions:     map[string]state.Contents{partition.Name: state.NewContents(result.Files, result.Directories)},
		OverlayHashHex: hash.Hex(),
	})
}

func toSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
