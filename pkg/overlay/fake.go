// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"partcraft/pkg/migration"
)

// Feature: OVERLAY_DRIVER
// Spec: SPEC_FULL.md §4.8 "fake in-memory overlay driver"

// FakeDriver simulates an overlay mount by actually materialising the
// merged view at mountpoint (copying lower layers bottom-up, then the
// upper layer on top, respecting OCI-style whiteouts), without requiring
// root or a real overlayfs. Whiteout/opaque detection is delegated to the
// OCI naming convention, since the fake never produces native overlayfs
// markers.
type FakeDriver struct {
	mu      sync.Mutex
	mounted map[string]bool
}

// NewFakeDriver returns a ready-to-use FakeDriver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{mounted: map[string]bool{}}
}

var _ Driver = (*FakeDriver)(nil)

func (f *FakeDriver) Mount(mountpoint string, lowerDirs []string, upperDir, _ string) error {
	if err := os.MkdirAll(mountpoint, 0o755); err != nil {
		return fmt.Errorf("preparing fake overlay mountpoint %q: %w", mountpoint, err)
	}

	for _, lower := range lowerDirs {
		if err := mergeInto(lower, mountpoint); err != nil {
			return fmt.Errorf("merging layer %q into %q: %w", lower, mountpoint, err)
		}
	}
	if err := mergeInto(upperDir, mountpoint); err != nil {
		return fmt.Errorf("merging upper dir %q into %q: %w", upperDir, mountpoint, err)
	}

	f.mu.Lock()
	f.mounted[mountpoint] = true
	f.mu.Unlock()
	return nil
}

func (f *FakeDriver) Unmount(mountpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.mounted[mountpoint] {
		return fmt.Errorf("unmounting %q: not mounted", mountpoint)
	}
	delete(f.mounted, mountpoint)
	return os.RemoveAll(mountpoint)
}

// IsWhiteoutFile recognises only the OCI naming convention and IsOpaqueDir
// always reports false: the fake driver never produces overlayfs-native
// markers.
func (f *FakeDriver) IsWhiteoutFile(path string) bool { return migration.IsOCIWhiteoutFile(path) }
func (f *FakeDriver) IsOpaqueDir(path string) bool     { return false }

// mergeInto walks src and applies each entry onto dst: a whiteout removes
// the corresponding dst entry, an opaque marker clears dst's existing
// contents for that directory first, and everything else is copied over.
func mergeInto(src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}

	var names []string
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		srcPath := filepath.Join(src, name)
		dstPath := filepath.Join(dst, name)

		if migration.IsOCIOpaqueMarker(name) {
			_ = os.RemoveAll(dstPath)
			continue
		}
		if migration.IsOCIWhiteoutFile(name) {
			_ = os.RemoveAll(filepath.Join(dst, migration.OCIWhitedOutName(name)))
			continue
		}

		info, err := os.Lstat(srcPath)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := os.MkdirAll(dstPath, info.Mode().Perm()); err != nil {
				return err
			}
			if err := mergeInto(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyEntry(srcPath, dstPath, info); err != nil {
			return err
		}
	}
	return nil
}

func copyEntry(src, dst string, info os.FileInfo) error {
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		_ = os.Remove(dst)
		return os.Symlink(target, dst)
	}

	data, err := os.ReadFile(src) //nolint:gosec // G304: src walked from a trusted layer dir
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode().Perm())
}
