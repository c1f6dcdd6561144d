// SPDX-License-Identifier: AGPL-3.0-or-later

package parthandler

import (
	"fmt"

	"partcraft/internal/core/parts"
	"partcraft/internal/core/state"
	"partcraft/internal/core/steps"
	"partcraft/pkg/migration"
)

// Feature: CORE_PARTHANDLER_SQUASH
// Spec: SPEC_FULL.md §4.5.1 "Squasher"

// migrateOverlayToStage squashes every overlay-declaring part's layer
// content into the shared stage area, topmost (last-declared) part first
// so a higher layer's content always wins over whatever a lower layer
// would otherwise have migrated underneath it (spec.md §4.5.1
// "_Squasher"). It runs at most once per partition: an exclusion marker
// recorded via store.WriteMigration stops a second overlay-declaring
// part's own STAGE step from re-running a squash the first one already
// did for every overlay part at once.
func (h *Handler) migrateOverlayToStage(partition parts.Partition, overlayParts []OverlayPartRef, stageDir string) error {
	if len(overlayParts) == 0 {
		return nil
	}
	if _, done, err := h.store.LoadMigration(partition.Name, partition.IsDefault, steps.Stage); err != nil {
		return fmt.Errorf("loading stage overlay migration state: %w", err)
	} else if done {
		return nil
	}

	migratedFiles := map[string]struct{}{}
	migratedDirs := map[string]struct{}{}

	for _, p := range overlayParts {
		visibleFiles, visibleDirs, err := migration.VisibleInLayer(p.LayerDir, stageDir)
		if err != nil {
			return fmt.Errorf("computing overlay visibility for %q: %w", p.Name, err)
		}
		for f := range migratedFiles {
			delete(visibleFiles, f)
		}
		for d := range migratedDirs {
			delete(visibleDirs, d)
		}

		result, err := migration.MigrateFiles(migration.Options{
			Files:          toSlice(visibleFiles),
			Dirs:           toSlice(visibleDirs),
			SrcDir:         p.LayerDir,
			DestDir:        stageDir,
			OCITranslation: true,
			Detector:       h.overlays,
		})
		if err != nil {
			return fmt.Errorf("squashing overlay layer %q into stage: %w", p.Name, err)
		}
		for f := range result.Files {
			migratedFiles[f] = struct{}{}
		}
		for d := range result.Directories {
			migratedDirs[d] = struct{}{}
		}
	}

	if len(migratedFiles) == 0 && len(migratedDirs) == 0 {
		return nil
	}
	return h.store.WriteMigration(partition.Name, partition.IsDefault, steps.Stage,
		state.MigrationState{Contents: state.NewContents(migratedFiles, migratedDirs)})
}

// migrateOverlayToPrime re-migrates exactly the names the STAGE squash
// placed into stage (loaded from its recorded MigrationState, not
// re-walked from the layer dirs) into the shared prime area, then drops
// whatever whiteout markers have no backing entry under the project's
// base layer (spec.md §4.5.1 "_migrate_overlay_files_to_prime", §4.3
// "filter_dangling_whiteouts"). Like the stage squash, it runs at most
// once per partition.
func (h *Handler) migrateOverlayToPrime(partition parts.Partition, overlayParts []OverlayPartRef, stageDir, primeDir, baseLayerDir string) error {
	if len(overlayParts) == 0 {
		return nil
	}
	if _, done, err := h.store.LoadMigration(partition.Name, partition.IsDefault, steps.Prime); err != nil {
		return fmt.Errorf("loading prime overlay migration state: %w", err)
	} else if done {
		return nil
	}

	stageMigration, ok, err := h.store.LoadMigration(partition.Name, partition.IsDefault, steps.Stage)
	if err != nil {
		return fmt.Errorf("loading stage overlay migration state: %w", err)
	}
	if !ok || stageMigration.Empty() {
		return nil
	}

	files := stageMigration.Contents.FileSet()
	dirs := stageMigration.Contents.DirSet()

	result, err := migration.MigrateFiles(migration.Options{
		Files:     toSlice(files),
		Dirs:      toSlice(dirs),
		SrcDir:    stageDir,
		DestDir:   primeDir,
		MissingOK: true,
	})
	if err != nil {
		return fmt.Errorf("squashing overlay content into prime: %w", err)
	}

	migration.FilterDanglingWhiteouts(result.Files, result.Directories, baseLayerDir)

	return h.store.WriteMigration(partition.Name, partition.IsDefault, steps.Prime,
		state.MigrationState{Contents: state.NewContents(result.Files, result.Directories)})
}
