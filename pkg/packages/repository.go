// SPDX-License-Identifier: AGPL-3.0-or-later

// Package packages defines the contract a part's BUILD/STAGE steps use to
// resolve stage/build/overlay packages (spec.md §6 "Package repository
// contract"), a registry lifecycle managers look repositories up by name
// with, and an OCI-backed reference implementation that treats package
// names as image references.
package packages

import "context"

// Feature: PACKAGE_CONTRACT
// Spec: SPEC_FULL.md §4.8 "Default collaborator implementations: pkg/packages"

// Repository resolves, fetches, and unpacks the packages a part or an
// overlay layer declares.
type Repository interface {
	// FetchStagePackages downloads names into cacheDir without unpacking
	// them, returning the cached artifact paths.
	FetchStagePackages(ctx context.Context, cacheDir string, names []string) ([]string, error)

	// UnpackStagePackages extracts the artifacts FetchStagePackages
	// produced at stagePackagesPath into installPath, recording each
	// extracted file's origin package in the index.
	UnpackStagePackages(ctx context.Context, stagePackagesPath []string, installPath string) error

	// RefreshBuildPackagesList refreshes whatever local package index
	// build-package resolution consults (e.g. an apt/package cache).
	RefreshBuildPackagesList(ctx context.Context) error

	// FetchPackages downloads build packages named by names, without
	// installing them.
	FetchPackages(ctx context.Context, names []string) error

	// InstallBuildPackages installs named build packages into the
	// current mounted view.
	InstallBuildPackages(ctx context.Context, names []string) error

	// InstalledPackages returns the packages currently considered
	// installed, for recording in a part's BuildState.
	InstalledPackages(ctx context.Context) ([]string, error)

	// PackagesForSourceType returns the packages a given source type
	// needs available to pull successfully (e.g. "git" needing the git
	// binary as a build package).
	PackagesForSourceType(sourceType string) ([]string, error)

	// ReadOriginStagePackage returns the stage package a previously
	// unpacked file came from, if the index has it (spec.md §4.5 PRIME's
	// primed_stage_packages).
	ReadOriginStagePackage(ctx context.Context, file string) (string, bool, error)
}
