// SPDX-License-Identifier: AGPL-3.0-or-later

package packages

import (
	"context"
	"fmt"
	"os"
)

// Feature: PACKAGE_OVERLAY_INSTALLER
// Spec: SPEC_FULL.md §4.4 "OverlayManager" / §4.8 "pkg/packages"

// RepositoryInstaller adapts a Repository's two-phase fetch/unpack contract
// into the single FetchAndUnpack call overlay.Manager needs to populate an
// overlay package-cache layer. It satisfies overlay.PackageInstaller
// structurally; pkg/packages does not import pkg/overlay to avoid a cycle.
type RepositoryInstaller struct {
	Repo Repository
}

// FetchAndUnpack downloads names into a scratch cache directory, then
// unpacks them into destDir.
func (i RepositoryInstaller) FetchAndUnpack(ctx context.Context, names []string, destDir string) error {
	cacheDir, err := os.MkdirTemp("", "partcraft-overlay-packages-")
	if err != nil {
		return fmt.Errorf("creating scratch cache dir: %w", err)
	}
	defer os.RemoveAll(cacheDir)

	archives, err := i.Repo.FetchStagePackages(ctx, cacheDir, names)
	if err != nil {
		return fmt.Errorf("fetching overlay packages: %w", err)
	}
	if err := i.Repo.UnpackStagePackages(ctx, archives, destDir); err != nil {
		return fmt.Errorf("unpacking overlay packages: %w", err)
	}
	return nil
}
