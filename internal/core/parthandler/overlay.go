// SPDX-License-Identifier: AGPL-3.0-or-later

package parthandler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"partcraft/internal/core/layerhash"
	"partcraft/internal/core/lifecycleerr"
	"partcraft/internal/core/parts"
	"partcraft/internal/core/state"
	"partcraft/internal/core/steps"
	"partcraft/pkg/executil"
	"partcraft/pkg/logging"
	"partcraft/pkg/migration"
)

// Feature: CORE_PARTHANDLER_OVERLAY
// Spec: SPEC_FULL.md §4.5 "OVERLAY"

// runOverlay mounts this part's layer on top of belowLayerDirs, runs
// override-overlay (if declared) and installs overlay-packages into it,
// then unmounts and records the resulting contents and chained LayerHash.
//
// This implementation operates on the project's default partition only:
// non-default partitions would need belowLayerDirs computed per partition,
// which the lifecycle manager does not yet thread through (a documented
// scope simplification, see DESIGN.md).
func (h *Handler) runOverlay(ctx context.Context, part *parts.Part, belowLayerDirs []string) error {
	if err := h.makeDirs(part.Name); err != nil {
		return err
	}

	partition := h.defaultPartition()
	upper := h.dirs.PartLayerDir(part.Name, partition.Name, partition.IsDefault)
	if err := os.MkdirAll(upper, 0o755); err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindOverlayMountError, part.Name, steps.Overlay.String(),
			"preparing layer dir", err)
	}

	if len(part.OverlayPackages) > 0 {
		if err := h.overlays.InstallPackages(ctx, partition.Name, partition.IsDefault, part.OverlayPackages); err != nil {
			return lifecycleerr.Wrap(lifecycleerr.KindOverlayPackageNotFound, part.Name, steps.Overlay.String(),
				"installing overlay packages", err)
		}
	}

	mount, err := h.overlays.MountLayerAt(partition.Name, partition.IsDefault, belowLayerDirs, upper)
	if err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindOverlayMountError, part.Name, steps.Overlay.String(), "mounting layer", err)
	}
	defer mount.Close()

	if part.OverrideOverlay != "" {
		if err := h.runScript(ctx, part.Name, part.OverrideOverlay, mount.Mountpoint(), nil); err != nil {
			return lifecycleerr.Wrap(lifecycleerr.KindOverlayMountError, part.Name, steps.Overlay.String(),
				"running override-overlay", err)
		}
	}

	if len(part.OverlayFiles) > 0 {
		if err := applyOverlayFileFilter(upper, part.OverlayFiles); err != nil {
			return lifecycleerr.Wrap(lifecycleerr.KindOverlayMountError, part.Name, steps.Overlay.String(),
				"applying overlay-files filter", err)
		}
	}

	files, dirs, err := walkLayer(upper)
	if err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindOverlayMountError, part.Name, steps.Overlay.String(),
			"recording layer contents", err)
	}

	previous := layerhash.Zero
	if n := len(belowLayerDirs); n > 0 {
		// Layer dirs end in ".../<name>/layer", lowest first: the last one
		// belongs to the part immediately below this one.
		previous = h.previousLayerHash(filepath.Base(filepath.Dir(belowLayerDirs[n-1])))
	}
	hash := layerhash.ForPart(part, previous)
	if err := layerhash.Save(h.dirs, part.Name, hash); err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindOverlayMountError, part.Name, steps.Overlay.String(),
			"persisting layer hash", err)
	}

	return h.store.Write(part.Name, &state.OverlayState{
		PartProps:    part.CanonicalProperties(),
		ProjectProps: h.project.CanonicalProperties(),
		Partitions:   map[string]state.Contents{partition.Name: state.NewContents(files, dirs)},
		LayerHashHex: hash.Hex(),
	})
}

// previousLayerHash loads the layer hash recorded in partName's own last
// OverlayState, or Zero when none was recorded yet. runOverlay calls it
// for the part immediately below the one it runs; BUILD and STAGE call it
// for the part itself.
func (h *Handler) previousLayerHash(partName string) layerhash.Hash {
	st, err := h.store.Load(partName, steps.Overlay)
	if err != nil || st == nil {
		return layerhash.Zero
	}
	overlayState, ok := st.(*state.OverlayState)
	if !ok {
		return layerhash.Zero
	}
	hash, err := layerhash.FromHex(overlayState.LayerHashHex)
	if err != nil {
		return layerhash.Zero
	}
	return hash
}

// runScript executes an override scriptlet as "sh -c <script>" in workDir.
func (h *Handler) runScript(ctx context.Context, partName, script, workDir string, env map[string]string) error {
	_, err := h.runner.Run(ctx, executil.Command{
		Name: "sh",
		Args: []string{"-c", script},
		Dir:  workDir,
		Env:  env,
	})
	if err != nil {
		h.log.Error("scriptlet failed", logging.Field{Key: "part", Value: partName}, logging.Field{Key: "script", Value: script})
	}
	return err
}

// applyOverlayFileFilter deletes every entry under layerDir that does not
// match one of the overlay-files keep-glob patterns (spec.md §4.5 OVERLAY
// "overlay-files"), then prunes any directory left empty by that removal.
// OCI whiteout and opaque-directory markers are kept regardless of match:
// a whiteout records a deletion made by this layer, not content the
// keep-list is meant to select from.
func applyOverlayFileFilter(layerDir string, patterns []string) error {
	var removeFiles, dirs []string
	if err := filepathWalk(layerDir, func(rel string, isDir bool) {
		if rel == "." {
			return
		}
		if isDir {
			dirs = append(dirs, rel)
			return
		}
		if migration.IsOCIWhiteoutFile(rel) || migration.IsOCIOpaqueMarker(rel) {
			return
		}
		if !matchesAnyGlob(rel, patterns) {
			removeFiles = append(removeFiles, rel)
		}
	}); err != nil {
		return fmt.Errorf("walking layer dir %q: %w", layerDir, err)
	}

	for _, rel := range removeFiles {
		if err := os.Remove(filepath.Join(layerDir, rel)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing filtered entry %q: %w", rel, err)
		}
	}

	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, rel := range dirs {
		path := filepath.Join(layerDir, rel)
		entries, err := os.ReadDir(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("reading directory %q: %w", rel, err)
		}
		if len(entries) == 0 {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("removing emptied directory %q: %w", rel, err)
			}
		}
	}
	return nil
}

// matchesAnyGlob reports whether name (or its base name) matches any of
// patterns, using shell glob syntax (filter_permissions' "most specific
// wins" matching in pkg/migration uses the same filepath.Match primitive).
func matchesAnyGlob(name string, patterns []string) bool {
	base := filepath.Base(name)
	for _, pat := range patterns {
		pat = filepath.Clean(pat)
		if matched, err := filepath.Match(pat, name); err == nil && matched {
			return true
		}
		if matched, err := filepath.Match(pat, base); err == nil && matched {
			return true
		}
	}
	return false
}

// walkLayer records every regular file and directory under a mounted
// layer's upper directory, relative to it.
func walkLayer(root string) (files, dirs map[string]struct{}, err error) {
	files = map[string]struct{}{}
	dirs = map[string]struct{}{}

	err = filepathWalk(root, func(rel string, isDir bool) {
		if rel == "." {
			return
		}
		if isDir {
			dirs[rel] = struct{}{}
		} else {
			files[rel] = struct{}{}
		}
	})
	return files, dirs, err
}
