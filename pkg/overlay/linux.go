// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build linux

package overlay

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Feature: OVERLAY_DRIVER
// Spec: SPEC_FULL.md §4.4 "OverlayManager", GLOSSARY "overlayfs whiteout"

// LinuxDriver mounts real Linux overlayfs layer stacks.
type LinuxDriver struct{}

// NewLinuxDriver returns the native Linux overlayfs driver.
func NewLinuxDriver() *LinuxDriver { return &LinuxDriver{} }

var _ Driver = (*LinuxDriver)(nil)

func (LinuxDriver) Mount(mountpoint string, lowerDirs []string, upperDir, workDir string) error {
	// overlayfs lists lowerdir topmost first; lowerDirs is bottom-to-top.
	stack := make([]string, len(lowerDirs))
	for i, dir := range lowerDirs {
		stack[len(lowerDirs)-1-i] = dir
	}
	opts := fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", strings.Join(stack, ":"), upperDir, workDir)
	if err := unix.Mount("overlay", mountpoint, "overlay", 0, opts); err != nil {
		return fmt.Errorf("mounting overlay at %q: %w", mountpoint, err)
	}
	return nil
}

func (LinuxDriver) Unmount(mountpoint string) error {
	if err := unix.Unmount(mountpoint, 0); err != nil {
		return fmt.Errorf("unmounting overlay at %q: %w", mountpoint, err)
	}
	return nil
}

// IsWhiteoutFile reports whether path is a character device with major and
// minor number 0, the on-disk representation overlayfs uses to mark a file
// as deleted relative to the layer below it.
func (LinuxDriver) IsWhiteoutFile(path string) bool {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return false
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return false
	}
	return unix.Major(uint64(st.Rdev)) == 0 && unix.Minor(uint64(st.Rdev)) == 0
}

// IsOpaqueDir reports whether path carries the trusted.overlay.opaque=y
// xattr overlayfs uses to mark a directory opaque to lower layers.
func (LinuxDriver) IsOpaqueDir(path string) bool {
	buf := make([]byte, 8)
	n, err := unix.Lgetxattr(path, "trusted.overlay.opaque", buf)
	if err != nil {
		return false
	}
	return string(buf[:n]) == "y"
}
