// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"context"
	"fmt"
	"os"

	"partcraft/internal/core/parts"
	"partcraft/pkg/logging"
)

// Feature: OVERLAY_MANAGER
// Spec: SPEC_FULL.md §4.4 "OverlayManager"

// PackageInstaller fetches and unpacks overlay packages into a layer's
// package-cache directory (spec.md §4.4 "refresh/fetch/install packages").
// Implemented by pkg/packages; declared here to avoid a package cycle.
type PackageInstaller interface {
	FetchAndUnpack(ctx context.Context, names []string, destDir string) error
}

// Manager owns the overlay mount lifecycle for a project's partitions.
type Manager struct {
	driver  Driver
	dirs    parts.Dirs
	pkgs    PackageInstaller
	log     logging.Logger
}

// NewManager builds an overlay Manager. pkgs may be nil for projects with
// no overlay-packages declared anywhere.
func NewManager(driver Driver, dirs parts.Dirs, pkgs PackageInstaller, log logging.Logger) *Manager {
	return &Manager{driver: driver, dirs: dirs, pkgs: pkgs, log: log}
}

// ScopedMount is a mount this process is responsible for tearing down. It
// records the PID that performed the mount: if Close is called from a
// different process (a fork survived past where it should have exited),
// unmounting here could race with the original owner still using the
// mount, so ScopedMount refuses and exits loudly instead of silently
// leaking or double-unmounting.
type ScopedMount struct {
	driver     Driver
	mountpoint string
	ownerPID   int
}

// Close unmounts the layer, or terminates the process if it is not the one
// that mounted it.
func (m *ScopedMount) Close() error {
	if pid := os.Getpid(); pid != m.ownerPID {
		fmt.Fprintf(os.Stderr, "overlay: mount %q owned by pid %d, refusing to unmount from pid %d\n", m.mountpoint, m.ownerPID, pid)
		os.Exit(1)
	}
	return m.driver.Unmount(m.mountpoint)
}

// Mountpoint is the path the merged layer view is exposed at.
func (m *ScopedMount) Mountpoint() string { return m.mountpoint }

// MountLayer mounts the stack of layer directories (in bottom-to-top order)
// for a partition at its OverlayMountDir, with the partition's overlay
// directory (OverlayPartitionDir) as the writable upper layer and
// OverlayWorkDir as the work directory.
func (m *Manager) MountLayer(partition string, isDefault bool, lowerDirs []string) (*ScopedMount, error) {
	return m.mount(partition, isDefault, lowerDirs,
		m.dirs.OverlayMountDir(partition, isDefault),
		m.dirs.OverlayPartitionDir(partition, isDefault),
		m.dirs.OverlayWorkDir(partition, isDefault))
}

// MountLayerAt is MountLayer with an explicit upper (writable) directory,
// used by PartHandler to mount a single part's own part_layer_dir as the
// writable layer on top of the partition's lower-dir stack, rather than the
// shared partition-wide upper directory MountLayer uses for the final
// squash (spec.md §4.5 OVERLAY: "part_layer_dir" is per-part).
func (m *Manager) MountLayerAt(partition string, isDefault bool, lowerDirs []string, upperDir string) (*ScopedMount, error) {
	mountpoint := upperDir + ".mount"
	work := upperDir + ".work"
	return m.mount(partition, isDefault, lowerDirs, mountpoint, upperDir, work)
}

func (m *Manager) mount(partition string, isDefault bool, lowerDirs []string, mountpoint, upper, work string) (*ScopedMount, error) {
	if err := os.MkdirAll(mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("preparing overlay mountpoint for partition %q: %w", partition, err)
	}
	if err := os.MkdirAll(upper, 0o755); err != nil {
		return nil, fmt.Errorf("preparing overlay upper dir for partition %q: %w", partition, err)
	}
	if err := os.MkdirAll(work, 0o755); err != nil {
		return nil, fmt.Errorf("preparing overlay workdir for partition %q: %w", partition, err)
	}

	base := lowerDirs
	if len(base) == 0 {
		base = []string{m.dirs.OverlayEmptyDir(partition, isDefault)}
		if err := os.MkdirAll(base[0], 0o755); err != nil {
			return nil, fmt.Errorf("preparing empty base layer for partition %q: %w", partition, err)
		}
	}

	if err := m.driver.Mount(mountpoint, base, upper, work); err != nil {
		return nil, err
	}
	m.log.Debug("mounted overlay layer", logging.Field{Key: "partition", Value: partition}, logging.Field{Key: "mountpoint", Value: mountpoint})

	return &ScopedMount{driver: m.driver, mountpoint: mountpoint, ownerPID: os.Getpid()}, nil
}

// MountPackageCache mounts a read-only package-cache layer for a partition
// on top of the same lower-dir stack, letting a part's overlay-packages
// installation reuse packages already fetched by an earlier part without
// duplicating the download.
func (m *Manager) MountPackageCache(partition string, isDefault bool, lowerDirs []string) (*ScopedMount, error) {
	cacheDir := m.dirs.OverlayPackagesDir(partition, isDefault)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("preparing overlay package cache for partition %q: %w", partition, err)
	}
	return m.MountLayer(partition, isDefault, append(lowerDirs, cacheDir))
}

// InstallPackages fetches and unpacks overlay packages into the partition's
// package-cache layer, so the next mount sees them.
func (m *Manager) InstallPackages(ctx context.Context, partition string, isDefault bool, names []string) error {
	if len(names) == 0 {
		return nil
	}
	if m.pkgs == nil {
		return fmt.Errorf("overlay-packages declared but no package installer is configured")
	}
	return m.pkgs.FetchAndUnpack(ctx, names, m.dirs.OverlayPackagesDir(partition, isDefault))
}

// IsWhiteoutFile delegates to the underlying driver, so migration can
// recognise native overlayfs whiteouts regardless of which driver is active.
func (m *Manager) IsWhiteoutFile(path string) bool { return m.driver.IsWhiteoutFile(path) }

// IsOpaqueDir delegates to the underlying driver.
func (m *Manager) IsOpaqueDir(path string) bool { return m.driver.IsOpaqueDir(path) }
