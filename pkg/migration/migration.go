// SPDX-License-Identifier: AGPL-3.0-or-later

// Package migration moves files and directories between the on-disk areas
// a part's lifecycle passes through (install -> stage -> prime), the same
// operation craft_parts.executor.migration performs between steps.
package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"partcraft/internal/core/parts"
)

// Feature: CORE_MIGRATION
// Spec: SPEC_FULL.md §4.5 "STAGE and PRIME migrate files between areas"

// whiteoutPrefix and opaqueMarker are the OCI naming convention for
// recording "this file was deleted here" and "this directory's lower
// contents are hidden" inside a plain directory tree, without a real
// overlayfs whiteout device node.
const (
	whiteoutPrefix = ".wh."
	opaqueMarker   = ".wh..wh..opq"
)

// WhiteoutDetector reports overlayfs-native whiteout/opaque-directory
// markers on a source-side path, so MigrateFiles can translate them into
// the portable OCI naming convention at the destination. Implemented by
// pkg/overlay's Manager; declared here (rather than imported) to avoid a
// package cycle, since pkg/overlay's fake driver already depends on this
// package for its own OCI bookkeeping.
type WhiteoutDetector interface {
	IsWhiteoutFile(path string) bool
	IsOpaqueDir(path string) bool
}

// Options bundles migrate_files' keyword arguments.
type Options struct {
	Files       []string
	Dirs        []string
	SrcDir      string
	DestDir     string
	MissingOK   bool
	Permissions []parts.Permission

	// OCITranslation converts an overlayfs-native whiteout char-device or
	// opaque-directory xattr found on the source side into the portable
	// ".wh.<name>" / ".wh..wh..opq" marker convention on the destination
	// side, instead of migrating it as ordinary content (spec.md §4.3,
	// §4.5.1 "Squasher"). Detector may be nil, in which case only an
	// already-OCI-named source entry is recognised.
	OCITranslation bool
	Detector       WhiteoutDetector
}

// Result is the set of entries MigrateFiles actually migrated, the same
// bookkeeping a StepState.Partitions entry records.
type Result struct {
	Files       map[string]struct{}
	Directories map[string]struct{}
}

// MigrateFiles hard-links (falling back to a copy across filesystems)
// files and re-creates directories from srcDir into destDir, returning
// the set of entries it actually migrated. A directory already present
// in destDir is kept, with its mode set to the source directory's (or to
// a matching Permissions entry); a file already present is replaced, unless
// it is itself a symlink (craft_parts leaves an existing symlink as-is
// rather than relinking through it).
func MigrateFiles(opts Options) (Result, error) {
	migratedFiles := make(map[string]struct{})
	migratedDirs := make(map[string]struct{})

	dirs := append([]string(nil), opts.Dirs...)
	sort.Strings(dirs)
	for _, name := range dirs {
		src := filepath.Join(opts.SrcDir, name)
		dst := filepath.Join(opts.DestDir, name)

		info, err := os.Lstat(src)
		if err != nil {
			if os.IsNotExist(err) && opts.MissingOK {
				continue
			}
			if os.IsNotExist(err) {
				continue
			}
			return Result{}, fmt.Errorf("migration: stat %q: %w", src, err)
		}

		mode := info.Mode().Perm()
		if perm, ok := matchPermission(name, opts.Permissions); ok {
			mode = perm
		}
		if err := os.MkdirAll(dst, mode); err != nil {
			return Result{}, fmt.Errorf("migration: creating directory %q: %w", dst, err)
		}
		if err := os.Chmod(dst, mode); err != nil {
			return Result{}, fmt.Errorf("migration: chmod %q: %w", dst, err)
		}
		migratedDirs[name] = struct{}{}

		if opts.OCITranslation && isOpaqueSource(src, opts.Detector) {
			marker := filepath.Join(name, opaqueMarker)
			if err := touchFile(filepath.Join(opts.DestDir, marker)); err != nil {
				return Result{}, fmt.Errorf("migration: marking opaque directory %q: %w", name, err)
			}
			migratedFiles[marker] = struct{}{}
		}
	}

	files := append([]string(nil), opts.Files...)
	sort.Strings(files)
	for _, name := range files {
		src := filepath.Join(opts.SrcDir, name)
		dst := filepath.Join(opts.DestDir, name)

		srcInfo, err := os.Lstat(src)
		if err != nil {
			if os.IsNotExist(err) && opts.MissingOK {
				continue
			}
			if os.IsNotExist(err) {
				continue
			}
			return Result{}, fmt.Errorf("migration: stat %q: %w", src, err)
		}

		if dstInfo, err := os.Lstat(dst); err == nil && dstInfo.Mode()&os.ModeSymlink != 0 {
			migratedFiles[name] = struct{}{}
			continue
		}
		_ = os.Remove(dst)

		if opts.OCITranslation && isWhiteoutSource(src, opts.Detector) {
			marker := filepath.Join(filepath.Dir(name), whiteoutPrefix+filepath.Base(name))
			if err := touchFile(filepath.Join(opts.DestDir, marker)); err != nil {
				return Result{}, fmt.Errorf("migration: marking whiteout %q: %w", name, err)
			}
			migratedFiles[marker] = struct{}{}
			continue
		}

		if err := linkOrCopy(src, dst, srcInfo); err != nil {
			return Result{}, fmt.Errorf("migration: migrating %q: %w", name, err)
		}
		if perm, ok := matchPermission(name, opts.Permissions); ok {
			if err := os.Chmod(dst, perm); err != nil {
				return Result{}, fmt.Errorf("migration: chmod %q: %w", dst, err)
			}
		}
		migratedFiles[name] = struct{}{}
	}

	return Result{Files: migratedFiles, Directories: migratedDirs}, nil
}

// linkOrCopy hard-links src to dst, falling back to a content copy when
// the two paths don't share a filesystem (or src is a symlink, which a
// hard link can't represent faithfully).
func linkOrCopy(src, dst string, info os.FileInfo) error {
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dst)
	}

	if err := os.Link(src, dst); err == nil {
		return nil
	}

	data, err := os.ReadFile(src) //nolint:gosec // G304: src walked from a trusted install/stage dir
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode().Perm())
}

// isWhiteoutSource reports whether src is a whiteout marker, either the
// overlayfs-native char-device form (via detector, which may be nil) or
// the already-OCI-named form (_is_whiteout_file).
func isWhiteoutSource(src string, detector WhiteoutDetector) bool {
	if detector != nil && detector.IsWhiteoutFile(src) {
		return true
	}
	return IsOCIWhiteoutFile(filepath.Base(src))
}

// isOpaqueSource reports whether src is an opaque directory, either the
// overlayfs-native xattr form (via detector) or the already-OCI-marked
// form (_is_opaque_dir).
func isOpaqueSource(src string, detector WhiteoutDetector) bool {
	if detector != nil && detector.IsOpaqueDir(src) {
		return true
	}
	return HasOCIOpaqueMarker(src)
}

// touchFile creates an empty file at path, including any missing parent
// directories, the same "touch" OCI whiteout/opaque markers are recorded
// as.
func touchFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // marker file, no sensitive contents
	if err != nil {
		return err
	}
	return f.Close()
}

// matchPermission returns the mode the last Permission entry matching
// name specifies, if any (later entries in the list win, mirroring
// filter_permissions' "most specific wins" intent).
func matchPermission(name string, perms []parts.Permission) (os.FileMode, bool) {
	var mode os.FileMode
	found := false
	for _, p := range perms {
		if p.Mode == "" {
			continue
		}
		matched, err := filepath.Match(p.Path, name)
		if err != nil || !matched {
			continue
		}
		parsed, err := strconv.ParseUint(p.Mode, 8, 32)
		if err != nil {
			continue
		}
		mode = os.FileMode(parsed)
		found = true
	}
	return mode, found
}

// PartContents looks up the files and directories partName contributed to
// a shared area for some step, reporting ok=false when that part has no
// recorded state there.
type PartContents func(partName string) (files, dirs map[string]struct{}, ok bool)

// CleanSharedArea removes partName's contribution to sharedDir, leaving
// behind anything another declared part (or the overlay migration, when
// overlayContents is non-nil) also claims (clean_shared_area): two parts
// that migrate the same file must not have one part's clean remove the
// other's copy.
func CleanSharedArea(partName, sharedDir string, allParts []string, contents, overlayContents PartContents) error {
	files, dirs, ok := contents(partName)
	if !ok {
		return nil
	}
	files = cloneSet(files)
	dirs = cloneSet(dirs)

	for _, other := range allParts {
		if other == partName {
			continue
		}
		otherFiles, otherDirs, ok := contents(other)
		if !ok {
			continue
		}
		for f := range otherFiles {
			delete(files, f)
		}
		for d := range otherDirs {
			delete(dirs, d)
		}
	}

	if overlayContents != nil {
		if overlayFiles, overlayDirs, ok := overlayContents(partName); ok {
			for f := range overlayFiles {
				delete(files, f)
			}
			for d := range overlayDirs {
				delete(dirs, d)
			}
		}
	}

	return removeMigratedFiles(files, dirs, sharedDir)
}

func removeMigratedFiles(files, dirs map[string]struct{}, dir string) error {
	for name := range files {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("migration: removing %q: %w", name, err)
		}
	}

	sorted := make([]string, 0, len(dirs))
	for name := range dirs {
		sorted = append(sorted, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))

	for _, name := range sorted {
		path := filepath.Join(dir, name)
		entries, err := os.ReadDir(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("migration: reading %q: %w", name, err)
		}
		if len(entries) == 0 {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("migration: removing directory %q: %w", name, err)
			}
		}
	}
	return nil
}

func cloneSet(s map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// FilterAllWhiteouts removes every OCI whiteout marker from files in
// place (filter_all_whiteouts): nothing ships a whiteout into a part's
// final primed output.
func FilterAllWhiteouts(files map[string]struct{}) {
	for name := range files {
		if IsOCIWhiteoutFile(name) {
			delete(files, name)
		}
	}
}

// IsOCIWhiteoutFile reports whether name is an OCI whiteout marker
// (".wh.<name>"), recording that <name> was deleted in this layer.
func IsOCIWhiteoutFile(name string) bool {
	base := filepath.Base(name)
	return len(base) > len(whiteoutPrefix) && base[:len(whiteoutPrefix)] == whiteoutPrefix && base != opaqueMarker
}

// IsOCIOpaqueMarker reports whether name is the OCI opaque-directory
// marker (".wh..wh..opq"), recording that this directory's lower
// contents are fully hidden.
func IsOCIOpaqueMarker(name string) bool {
	return filepath.Base(name) == opaqueMarker
}

// OCIWhitedOutName strips a whiteout marker's ".wh." prefix, returning
// the name of the entry it records as deleted.
func OCIWhitedOutName(name string) string {
	dir, base := filepath.Split(name)
	return filepath.Join(dir, base[len(whiteoutPrefix):])
}

// HasOCIOpaqueMarker reports whether dir already carries an OCI opaque-
// directory marker file (is_oci_opaque_dir): a higher layer has already
// recorded that dir's lower contents are fully hidden.
func HasOCIOpaqueMarker(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, opaqueMarker))
	return err == nil
}

// FilterDanglingWhiteouts removes whiteout markers and opaque-directory
// markers from files and dirs when no backing entry of the same name
// exists under baseDir (filter_dangling_whiteouts): a whiteout recorded
// for something that was never actually present below it is noise, not
// content PRIME should ship. An empty baseDir leaves files/dirs
// untouched and returns an empty set — whiteouts are meaningless to
// evaluate with no base layer to check against.
func FilterDanglingWhiteouts(files, dirs map[string]struct{}, baseDir string) map[string]struct{} {
	removed := map[string]struct{}{}
	if baseDir == "" {
		return removed
	}

	for name := range files {
		if !IsOCIWhiteoutFile(name) {
			continue
		}
		backing := filepath.Join(baseDir, OCIWhitedOutName(name))
		if _, err := os.Stat(backing); os.IsNotExist(err) {
			delete(files, name)
			removed[name] = struct{}{}
		}
	}

	for name := range dirs {
		marker := filepath.Join(name, opaqueMarker)
		if _, ok := files[marker]; !ok {
			continue
		}
		backing := filepath.Join(baseDir, name)
		if _, err := os.Stat(backing); os.IsNotExist(err) {
			delete(files, marker)
			removed[marker] = struct{}{}
		}
	}

	return removed
}

// VisibleInLayer determines the files and directories under srcDir that
// are not already present under destDir (visible_in_layer): the portion
// of an overlay layer a squash still needs to migrate, since anything
// already at destDir was put there by a higher layer and overlayfs
// stacking means the higher layer always wins. A directory already
// marked opaque at destDir is not descended into: its lower contents
// (under srcDir) are hidden by that higher layer regardless of what they
// contain.
func VisibleInLayer(srcDir, destDir string) (files, dirs map[string]struct{}, err error) {
	files = map[string]struct{}{}
	dirs = map[string]struct{}{}
	if _, statErr := os.Stat(srcDir); os.IsNotExist(statErr) {
		return files, dirs, nil
	}
	err = visibleInLayerWalk(srcDir, destDir, "", files, dirs)
	return files, dirs, err
}

func visibleInLayerWalk(srcDir, destDir, rel string, files, dirs map[string]struct{}) error {
	entries, err := os.ReadDir(filepath.Join(srcDir, rel))
	if err != nil {
		return fmt.Errorf("migration: reading %q: %w", filepath.Join(srcDir, rel), err)
	}

	for _, e := range entries {
		childRel := filepath.Join(rel, e.Name())
		srcPath := filepath.Join(srcDir, childRel)
		destPath := filepath.Join(destDir, childRel)

		lst, err := os.Lstat(srcPath)
		if err != nil {
			return fmt.Errorf("migration: lstat %q: %w", srcPath, err)
		}
		isSymlink := lst.Mode()&os.ModeSymlink != 0

		st, statErr := os.Stat(srcPath)
		isDirFollowed := statErr == nil && st.IsDir()

		_, destErr := os.Lstat(destPath)
		destExists := destErr == nil

		switch {
		case isDirFollowed && isSymlink:
			if !destExists {
				files[childRel] = struct{}{}
			}
		case isDirFollowed:
			if !destExists {
				dirs[childRel] = struct{}{}
				if err := visibleInLayerWalk(srcDir, destDir, childRel, files, dirs); err != nil {
					return err
				}
			} else if HasOCIOpaqueMarker(destPath) {
				// Overridden by a higher layer's opaque marker: don't descend.
				continue
			} else {
				if err := visibleInLayerWalk(srcDir, destDir, childRel, files, dirs); err != nil {
					return err
				}
			}
		default:
			if !destExists {
				files[childRel] = struct{}{}
			}
		}
	}
	return nil
}

// CleanSharedOverlay removes overlayFiles/overlayDirs from sharedDir,
// leaving behind anything a declared part's own step contents still
// claim (clean_shared_overlay). Called once, when cleaning the last
// remaining part that declares overlay parameters, so the content a
// squash put into a shared area outside any single part's own
// accounting is also torn down.
func CleanSharedOverlay(sharedDir string, allParts []string, overlayFiles, overlayDirs map[string]struct{}, contents PartContents) error {
	files := cloneSet(overlayFiles)
	dirs := cloneSet(overlayDirs)

	for _, name := range allParts {
		otherFiles, otherDirs, ok := contents(name)
		if !ok {
			continue
		}
		for f := range otherFiles {
			delete(files, f)
		}
		for d := range otherDirs {
			delete(dirs, d)
		}
	}

	return removeMigratedFiles(files, dirs, sharedDir)
}

// CleanBackstage removes partName's contribution to the backstage area,
// leaving behind anything another declared part's backstage contents
// still claim (clean_backstage).
func CleanBackstage(partName, backstageDir string, allParts []string, contents PartContents) error {
	files, dirs, ok := contents(partName)
	if !ok {
		return nil
	}
	files = cloneSet(files)
	dirs = cloneSet(dirs)

	for _, other := range allParts {
		if other == partName {
			continue
		}
		otherFiles, otherDirs, ok := contents(other)
		if !ok {
			continue
		}
		for f := range otherFiles {
			delete(files, f)
		}
		for d := range otherDirs {
			delete(dirs, d)
		}
	}

	return removeMigratedFiles(files, dirs, backstageDir)
}
