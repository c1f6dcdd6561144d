// SPDX-License-Identifier: AGPL-3.0-or-later

package parthandler

import (
	"context"
	"sort"

	"partcraft/internal/core/lifecycleerr"
	"partcraft/internal/core/parts"
	"partcraft/internal/core/state"
	"partcraft/internal/core/steps"
	"partcraft/pkg/migration"
)

// Feature: CORE_PARTHANDLER_PRIME
// Spec: SPEC_FULL.md §4.5 "PRIME"

// runPrime migrates a part's staged output into the shared prime area,
// stripping any whiteout marker that survived staging (spec.md §4.5.2
// "filter_all_whiteouts": nothing ships a whiteout into the final output),
// then squashes the overlay-declaring parts' stage content into prime
// (spec.md §4.5.1 "_migrate_overlay_files_to_prime").
func (h *Handler) runPrime(ctx context.Context, part *parts.Part, allParts []string, overlayParts []OverlayPartRef) error {
	partition := h.defaultPartition()
	primeDir := h.dirs.PrimeDir(partition.Name, partition.IsDefault)
	if err := makeDir(primeDir); err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Prime.String(), "preparing prime dir", err)
	}
	stageDir := h.dirs.StageDir(partition.Name, partition.IsDefault)
	baseLayerDir := h.dirs.OverlayEmptyDir(partition.Name, partition.IsDefault)

	if part.OverridePrime != "" {
		if err := h.runScript(ctx, part.Name, part.OverridePrime, primeDir, nil); err != nil {
			return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Prime.String(), "running override-prime", err)
		}
		if err := h.migrateOverlayToPrime(partition, overlayParts, stageDir, primeDir, baseLayerDir); err != nil {
			return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Prime.String(), "squashing overlay to prime", err)
		}
		return h.store.Write(part.Name, &state.PrimeState{
			PartProps:    part.CanonicalProperties(),
			ProjectProps: h.project.CanonicalProperties(),
		})
	}

	stageSt, err := h.store.Load(part.Name, steps.Stage)
	if err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Prime.String(), "loading stage state", err)
	}
	var files, dirs map[string]struct{}
	if stageSt != nil {
		if contents, ok := stageSt.Contents(partition.Name); ok {
			files, dirs = contents.FileSet(), contents.DirSet()
		}
	}
	if files == nil {
		files, dirs, err = walkLayer(stageDir)
		if err != nil {
			return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Prime.String(), "listing stage dir", err)
		}
	}
	migration.FilterAllWhiteouts(files)

	result, err := migration.MigrateFiles(migration.Options{
		Files:       toSlice(files),
		Dirs:        toSlice(dirs),
		SrcDir:      stageDir,
		DestDir:     primeDir,
		MissingOK:   true,
		Permissions: part.Permissions,
	})
	if err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Prime.String(), "migrating to prime", err)
	}

	if err := h.migrateOverlayToPrime(partition, overlayParts, stageDir, primeDir, baseLayerDir); err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Prime.String(), "squashing overlay to prime", err)
	}

	primedStagePackages := h.originStagePackages(ctx, result.Files)

	return h.store.Write(part.Name, &state.PrimeState{
		PartProps:           part.CanonicalProperties(),
		ProjectProps:        h.project.CanonicalProperties(),
		Partitions:          map[string]state.Contents{partition.Name: state.NewContents(result.Files, result.Directories)},
		PrimedStagePackages: primedStagePackages,
	})
}

// originStagePackages walks every file this part primed and asks the
// package repository's origin index which stage package, if any, unpacked
// it (spec.md §6 "ReadOriginStagePackage"), returning the deduplicated,
// sorted set of origin package names. Install, stage, and prime migration
// never rename files in this data model, so the names recorded against the
// install tree still match what ends up in the primed tree.
func (h *Handler) originStagePackages(ctx context.Context, primedFiles map[string]struct{}) []string {
	if h.pkgs == nil {
		return nil
	}
	seen := map[string]struct{}{}
	for name := range primedFiles {
		pkgName, ok, err := h.pkgs.ReadOriginStagePackage(ctx, name)
		if err != nil || !ok {
			continue
		}
		seen[pkgName] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
