// SPDX-License-Identifier: AGPL-3.0-or-later

package parts

import "path/filepath"

// Feature: CORE_DIRS
// Spec: SPEC_FULL.md §6 "Persisted state layout"
//
//   parts/<name>/src/           build/            install/          layer/
//   parts/<name>/state/<step>   state/layer_hash  state/stage_packages.bom
//   stage/   prime/   overlay/<partition>/{mount,work,packages,empty}
//   partitions/<partition>/{parts,stage,prime,overlay}   (aliases)

// Dirs resolves every derived per-part and shared directory spec.md §3
// names, rooted at a ProjectOptions.WorkRoot.
type Dirs struct {
	root string
}

// NewDirs builds a Dirs resolver rooted at workRoot.
func NewDirs(workRoot string) Dirs { return Dirs{root: workRoot} }

func (d Dirs) join(elem ...string) string {
	return filepath.Join(append([]string{d.root}, elem...)...)
}

// partRoot is the "parts/<name>" directory a part's private work dirs live
// under.
func (d Dirs) partRoot(partName string) string { return d.join("parts", partName) }

// PartSrcDir is "parts/<name>/src".
func (d Dirs) PartSrcDir(partName string) string { return filepath.Join(d.partRoot(partName), "src") }

// PartBuildDir is "parts/<name>/build".
func (d Dirs) PartBuildDir(partName string) string {
	return filepath.Join(d.partRoot(partName), "build")
}

// PartInstallDir is "parts/<name>/install" for the default partition, or
// "partitions/<partition>/parts/<name>/install" for a non-default one.
func (d Dirs) PartInstallDir(partName, partition string, isDefault bool) string {
	if isDefault {
		return filepath.Join(d.partRoot(partName), "install")
	}
	return d.join("partitions", partition, "parts", partName, "install")
}

// PartLayerDir is "parts/<name>/layer" for the default partition, or
// "partitions/<partition>/parts/<name>/layer" otherwise.
func (d Dirs) PartLayerDir(partName, partition string, isDefault bool) string {
	if isDefault {
		return filepath.Join(d.partRoot(partName), "layer")
	}
	return d.join("partitions", partition, "parts", partName, "layer")
}

// PartStateDir is "parts/<name>/state".
func (d Dirs) PartStateDir(partName string) string {
	return filepath.Join(d.partRoot(partName), "state")
}

// PartPackagesDir is "parts/<name>/packages" (fetched stage packages).
func (d Dirs) PartPackagesDir(partName string) string {
	return filepath.Join(d.partRoot(partName), "packages")
}

// PartSnapsDir is "parts/<name>/snaps" (fetched stage snaps).
func (d Dirs) PartSnapsDir(partName string) string {
	return filepath.Join(d.partRoot(partName), "snaps")
}

// PartExportDir is "parts/<name>/export", cleaned alongside the install
// dirs on a BUILD clean (spec.md §4.5.2).
func (d Dirs) PartExportDir(partName string) string {
	return filepath.Join(d.partRoot(partName), "export")
}

// StageDir is the shared "stage" directory for the default partition, or
// "partitions/<partition>/stage" otherwise.
func (d Dirs) StageDir(partition string, isDefault bool) string {
	if isDefault {
		return d.join("stage")
	}
	return d.join("partitions", partition, "stage")
}

// PrimeDir is the shared "prime" directory for the default partition, or
// "partitions/<partition>/prime" otherwise.
func (d Dirs) PrimeDir(partition string, isDefault bool) string {
	if isDefault {
		return d.join("prime")
	}
	return d.join("partitions", partition, "prime")
}

// BackstageDir is the shared "backstage" directory STAGE uses for
// artifacts not meant to reach PRIME.
func (d Dirs) BackstageDir(partition string, isDefault bool) string {
	if isDefault {
		return d.join("backstage")
	}
	return d.join("partitions", partition, "backstage")
}

// OverlayPartitionDir is "overlay/<partition>" (default) or
// "partitions/<partition>/overlay" otherwise.
func (d Dirs) OverlayPartitionDir(partition string, isDefault bool) string {
	if isDefault {
		return d.join("overlay", partition)
	}
	return d.join("partitions", partition, "overlay")
}

// OverlayMountDir is the overlay mountpoint for a partition.
func (d Dirs) OverlayMountDir(partition string, isDefault bool) string {
	return filepath.Join(d.OverlayPartitionDir(partition, isDefault), "mount")
}

// OverlayWorkDir is the overlayfs work directory for a partition.
func (d Dirs) OverlayWorkDir(partition string, isDefault bool) string {
	return filepath.Join(d.OverlayPartitionDir(partition, isDefault), "work")
}

// OverlayPackagesDir is the shared package-cache layer for a partition.
func (d Dirs) OverlayPackagesDir(partition string, isDefault bool) string {
	return filepath.Join(d.OverlayPartitionDir(partition, isDefault), "packages")
}

// OverlayEmptyDir is an always-empty directory used as a synthetic lower
// layer when no base layer is configured (spec.md §4.4 "empty_base").
func (d Dirs) OverlayEmptyDir(partition string, isDefault bool) string {
	return filepath.Join(d.OverlayPartitionDir(partition, isDefault), "empty")
}

// StateStepPath is "parts/<name>/state/<step>".
func (d Dirs) StateStepPath(partName, stepName string) string {
	return filepath.Join(d.PartStateDir(partName), stepName)
}

// LayerHashPath is "parts/<name>/state/layer_hash".
func (d Dirs) LayerHashPath(partName string) string {
	return filepath.Join(d.PartStateDir(partName), "layer_hash")
}

// OverlayMigrationStatePath is the well-known path a partition's overlay
// migration state is recorded at, keyed per target step (spec.md §3
// "MigrationState").
func (d Dirs) OverlayMigrationStatePath(partition string, isDefault bool, stepName string) string {
	return filepath.Join(d.OverlayPartitionDir(partition, isDefault), "migrated-"+stepName)
}

// AllPartDirs returns every directory PartHandler.makeDirs must create for
// a part across all partitions.
func (d Dirs) AllPartDirs(partName string, partitions []Partition) []string {
	out := []string{
		d.PartSrcDir(partName),
		d.PartBuildDir(partName),
		d.PartStateDir(partName),
		d.PartPackagesDir(partName),
		d.PartSnapsDir(partName),
	}
	for _, part := range partitions {
		out = append(out,
			d.PartInstallDir(partName, part.Name, part.IsDefault),
			d.PartLayerDir(partName, part.Name, part.IsDefault),
			d.StageDir(part.Name, part.IsDefault),
			d.PrimeDir(part.Name, part.IsDefault),
			d.BackstageDir(part.Name, part.IsDefault),
		)
	}
	return out
}
