// SPDX-License-Identifier: AGPL-3.0-or-later

// Package overlay mounts and unmounts the layered filesystem each part's
// OVERLAY step contributes to, and exposes native whiteout/opaque-directory
// detection to the migration package (spec.md §4.4).
package overlay

// Feature: OVERLAY_DRIVER
// Spec: SPEC_FULL.md §4.4 "OverlayManager"

// Driver mounts a stack of overlayfs layers and inspects on-disk entries
// for the overlayfs-native whiteout/opaque-directory markers. Two
// implementations exist: LinuxDriver, which calls the real mount(2)
// syscall, and FakeDriver, a stand-in used in tests that copies the layers
// into the mountpoint on disk.
type Driver interface {
	// Mount stacks lowerDirs (furthest from the merged view first) under
	// upperDir/workDir and exposes the result at mountpoint.
	Mount(mountpoint string, lowerDirs []string, upperDir, workDir string) error

	// Unmount tears down a previously mounted mountpoint.
	Unmount(mountpoint string) error

	// IsWhiteoutFile reports whether path is an overlayfs-native whiteout:
	// a character device with major/minor 0:0.
	IsWhiteoutFile(path string) bool

	// IsOpaqueDir reports whether path carries the overlayfs opaque-
	// directory xattr (trusted.overlay.opaque=y).
	IsOpaqueDir(path string) bool
}
