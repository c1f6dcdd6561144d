// SPDX-License-Identifier: AGPL-3.0-or-later

package parthandler

import (
	"fmt"
	"os"

	"partcraft/internal/core/parts"
	"partcraft/internal/core/state"
	"partcraft/internal/core/steps"
	"partcraft/pkg/migration"
)

// Feature: CORE_PARTHANDLER_CLEAN
// Spec: SPEC_FULL.md §4.5.2 "clean_step"

// CleanStepAndDownstream is the exported entry point a lifecycle manager
// drives a "clean" operation through; it undoes step and every step after
// it for part, removing shared-area content this part contributed (but
// never content another part still claims) and deleting the recorded
// StepState, so a RERUN starts from a clean slate (spec.md §4.5.2).
// overlayParts lists every declared part that declares overlay parameters,
// needed to decide when part is the last one with overlay content still
// live in the shared areas.
func (h *Handler) CleanStepAndDownstream(part *parts.Part, allParts []string, overlayParts []OverlayPartRef, fromStep steps.Step) error {
	return h.cleanStepAndDownstream(part, allParts, overlayParts, fromStep)
}

func (h *Handler) cleanStepAndDownstream(part *parts.Part, allParts []string, overlayParts []OverlayPartRef, fromStep steps.Step) error {
	toClean := append([]steps.Step{fromStep}, fromStep.NextSteps()...)
	for i := len(toClean) - 1; i >= 0; i-- {
		if err := h.cleanStep(part, allParts, overlayParts, toClean[i]); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) cleanStep(part *parts.Part, allParts []string, overlayParts []OverlayPartRef, step steps.Step) error {
	partition := h.defaultPartition()

	switch step {
	case steps.Pull:
		for _, dir := range []string{
			h.dirs.PartSrcDir(part.Name),
			h.dirs.PartPackagesDir(part.Name),
			h.dirs.PartSnapsDir(part.Name),
		} {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("cleaning pull outputs for %q: %w", part.Name, err)
			}
		}
	case steps.Overlay:
		layerDir := h.dirs.PartLayerDir(part.Name, partition.Name, partition.IsDefault)
		if err := os.RemoveAll(layerDir); err != nil {
			return fmt.Errorf("cleaning overlay layer for %q: %w", part.Name, err)
		}
		if err := os.Remove(h.dirs.LayerHashPath(part.Name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("cleaning layer hash for %q: %w", part.Name, err)
		}
	case steps.Build:
		for _, dir := range []string{
			h.dirs.PartBuildDir(part.Name),
			h.dirs.PartInstallDir(part.Name, partition.Name, partition.IsDefault),
			h.dirs.PartExportDir(part.Name),
		} {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("cleaning build outputs for %q: %w", part.Name, err)
			}
		}
	case steps.Stage:
		stageDir := h.dirs.StageDir(partition.Name, partition.IsDefault)
		overlayContents := h.overlayMigrationContents(partition, steps.Stage)
		if err := migration.CleanSharedArea(part.Name, stageDir, allParts, h.stepContents(steps.Stage, partition.Name), overlayContents); err != nil {
			return fmt.Errorf("cleaning stage area for %q: %w", part.Name, err)
		}

		backstageContents := h.backstageContents()
		if err := migration.CleanBackstage(part.Name, h.dirs.BackstageDir(partition.Name, partition.IsDefault), allParts, backstageContents); err != nil {
			return fmt.Errorf("cleaning backstage for %q: %w", part.Name, err)
		}

		if err := h.cleanLastOverlayPart(part.Name, stageDir, allParts, overlayParts, partition, steps.Stage); err != nil {
			return err
		}
	case steps.Prime:
		primeDir := h.dirs.PrimeDir(partition.Name, partition.IsDefault)
		overlayContents := h.overlayMigrationContents(partition, steps.Prime)
		if err := migration.CleanSharedArea(part.Name, primeDir, allParts, h.stepContents(steps.Prime, partition.Name), overlayContents); err != nil {
			return fmt.Errorf("cleaning prime area for %q: %w", part.Name, err)
		}

		if err := h.cleanLastOverlayPart(part.Name, primeDir, allParts, overlayParts, partition, steps.Prime); err != nil {
			return err
		}
	}

	if err := h.store.Remove(part.Name, step); err != nil {
		return fmt.Errorf("removing %s state for %q: %w", step, part.Name, err)
	}
	return nil
}

// cleanLastOverlayPart tears down the shared overlay-migrated content and
// its migration-state marker once part is the last remaining part whose
// OVERLAY state is still recorded among overlayParts (spec.md §4.5.2 "the
// last remaining part with overlay"): every other overlay-declaring part
// has already had this step cleaned, so nothing else can still be relying
// on the squashed content sitting in sharedDir.
func (h *Handler) cleanLastOverlayPart(partName, sharedDir string, allParts []string, overlayParts []OverlayPartRef, partition parts.Partition, step steps.Step) error {
	isOverlayPart := false
	for _, p := range overlayParts {
		if p.Name == partName {
			isOverlayPart = true
			break
		}
	}
	if !isOverlayPart {
		return nil
	}

	remaining := false
	for _, p := range overlayParts {
		if p.Name == partName {
			continue
		}
		if h.store.Exists(p.Name, steps.Overlay) {
			remaining = true
			break
		}
	}
	if remaining {
		return nil
	}

	migrationState, ok, err := h.store.LoadMigration(partition.Name, partition.IsDefault, step)
	if err != nil {
		return fmt.Errorf("loading %s overlay migration state: %w", step, err)
	}
	if !ok {
		return nil
	}

	if err := migration.CleanSharedOverlay(sharedDir, allParts, migrationState.Contents.FileSet(), migrationState.Contents.DirSet(),
		h.stepContents(step, partition.Name)); err != nil {
		return fmt.Errorf("cleaning shared overlay content from %s: %w", step, err)
	}

	if err := h.store.RemoveMigration(partition.Name, partition.IsDefault, step); err != nil {
		return fmt.Errorf("removing %s overlay migration state: %w", step, err)
	}
	return nil
}

// overlayMigrationContents builds a migration.PartContents callback that
// always returns the same global overlay-squash contents for step,
// regardless of the partName it's asked about: the overlay migration
// state recorded by the squasher is not itself owned by any one part
// (spec.md §4.5.1), but clean_shared_area's per-part signature is reused
// as the simplest way to subtract it from a part's own cleanup.
func (h *Handler) overlayMigrationContents(partition parts.Partition, step steps.Step) migration.PartContents {
	return func(string) (files, dirs map[string]struct{}, ok bool) {
		st, found, err := h.store.LoadMigration(partition.Name, partition.IsDefault, step)
		if err != nil || !found || st.Empty() {
			return nil, nil, false
		}
		return st.Contents.FileSet(), st.Contents.DirSet(), true
	}
}

// backstageContents builds a migration.PartContents callback reading a
// part's StageState.Backstage entries. This data model has no stage-files
// filter (see stage.go), so Backstage stays empty; the callback exists so
// clean_backstage is wired and ready should that filter ever be added.
func (h *Handler) backstageContents() migration.PartContents {
	return func(partName string) (files, dirs map[string]struct{}, ok bool) {
		st, err := h.store.Load(partName, steps.Stage)
		if err != nil || st == nil {
			return nil, nil, false
		}
		ss, ok := st.(*state.StageState)
		if !ok {
			return nil, nil, false
		}
		return ss.Backstage.FileSet(), ss.Backstage.DirSet(), true
	}
}

// stepContents builds a migration.PartContents callback backed by this
// handler's state store, reading back whatever a part's StepState for step
// recorded for partition.
func (h *Handler) stepContents(step steps.Step, partition string) migration.PartContents {
	return func(partName string) (files, dirs map[string]struct{}, ok bool) {
		st, err := h.store.Load(partName, step)
		if err != nil || st == nil {
			return nil, nil, false
		}
		contents, ok := st.Contents(partition)
		if !ok {
			return nil, nil, false
		}
		return contents.FileSet(), contents.DirSet(), true
	}
}
