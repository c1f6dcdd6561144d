// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !linux

package overlay

import "fmt"

// Feature: OVERLAY_DRIVER
// Spec: SPEC_FULL.md §4.4 "OverlayManager"

// LinuxDriver is unavailable on non-Linux hosts: overlayfs is a Linux
// kernel feature. Builds on other platforms get a driver that fails at
// mount time rather than at compile time. The OVERLAY step mounts a layer
// for every part, so on these hosts OVERLAY fails for every part.
type LinuxDriver struct{}

// NewLinuxDriver returns a driver that reports overlay support is
// unavailable on this platform.
func NewLinuxDriver() *LinuxDriver { return &LinuxDriver{} }

var _ Driver = (*LinuxDriver)(nil)

func (LinuxDriver) Mount(mountpoint string, _ []string, _, _ string) error {
	return fmt.Errorf("mounting overlay at %q: overlayfs is only available on linux", mountpoint)
}

func (LinuxDriver) Unmount(mountpoint string) error {
	return fmt.Errorf("unmounting overlay at %q: overlayfs is only available on linux", mountpoint)
}

func (LinuxDriver) IsWhiteoutFile(string) bool { return false }
func (LinuxDriver) IsOpaqueDir(string) bool     { return false }
