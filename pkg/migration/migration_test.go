// SPDX-License-Identifier: AGPL-3.0-or-later

package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partcraft/internal/core/parts"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMigrateFilesHardLinksFilesAndRecreatesDirs(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, src, "bin/app", "#!/bin/sh\n")

	result, err := MigrateFiles(Options{
		Files:   []string{"bin/app"},
		Dirs:    []string{"bin"},
		SrcDir:  src,
		DestDir: dst,
	})
	require.NoError(t, err)

	assert.Contains(t, result.Files, "bin/app")
	assert.Contains(t, result.Directories, "bin")

	data, err := os.ReadFile(filepath.Join(dst, "bin/app"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(data))
}

func TestMigrateFilesSkipsMissingWhenMissingOK(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	result, err := MigrateFiles(Options{
		Files:     []string{"absent"},
		SrcDir:    src,
		DestDir:   dst,
		MissingOK: true,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Files)
}

func TestMigrateFilesLeavesExistingDestSymlinkAlone(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, src, "data", "new")
	require.NoError(t, os.Symlink("/somewhere", filepath.Join(dst, "data")))

	result, err := MigrateFiles(Options{
		Files:   []string{"data"},
		SrcDir:  src,
		DestDir: dst,
	})
	require.NoError(t, err)
	assert.Contains(t, result.Files, "data")

	target, err := os.Readlink(filepath.Join(dst, "data"))
	require.NoError(t, err)
	assert.Equal(t, "/somewhere", target)
}

func TestMigrateFilesAppliesMatchingPermission(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, src, "run.sh", "echo hi\n")

	_, err := MigrateFiles(Options{
		Files:       []string{"run.sh"},
		SrcDir:      src,
		DestDir:     dst,
		Permissions: []parts.Permission{{Path: "*.sh", Mode: "755"}},
	})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dst, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestCleanSharedAreaLeavesFilesClaimedByAnotherPart(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shared.txt", "x")
	writeFile(t, dir, "lib-only.txt", "y")

	contents := func(partName string) (map[string]struct{}, map[string]struct{}, bool) {
		switch partName {
		case "lib":
			return map[string]struct{}{"shared.txt": {}, "lib-only.txt": {}}, nil, true
		case "app":
			return map[string]struct{}{"shared.txt": {}}, nil, true
		default:
			return nil, nil, false
		}
	}

	err := CleanSharedArea("lib", dir, []string{"lib", "app"}, contents, nil)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "shared.txt"))
	assert.NoError(t, err, "file still claimed by app must survive")

	_, err = os.Stat(filepath.Join(dir, "lib-only.txt"))
	assert.True(t, os.IsNotExist(err), "file only lib claimed must be removed")
}

func TestCleanSharedAreaNoopsWithoutPartState(t *testing.T) {
	dir := t.TempDir()
	contents := func(string) (map[string]struct{}, map[string]struct{}, bool) { return nil, nil, false }
	assert.NoError(t, CleanSharedArea("app", dir, []string{"app"}, contents, nil))
}

func TestFilterAllWhiteoutsRemovesWhiteoutMarkers(t *testing.T) {
	files := map[string]struct{}{
		"bin/app":      {},
		".wh.removed":  {},
		"lib/.wh.gone": {},
	}
	FilterAllWhiteouts(files)
	assert.Contains(t, files, "bin/app")
	assert.NotContains(t, files, ".wh.removed")
	assert.NotContains(t, files, "lib/.wh.gone")
}

func TestIsOCIWhiteoutFile(t *testing.T) {
	assert.True(t, IsOCIWhiteoutFile(".wh.removed"))
	assert.True(t, IsOCIWhiteoutFile("lib/.wh.gone"))
	assert.False(t, IsOCIWhiteoutFile("lib/.wh..wh..opq"))
	assert.False(t, IsOCIWhiteoutFile("bin/app"))
}

func TestIsOCIOpaqueMarker(t *testing.T) {
	assert.True(t, IsOCIOpaqueMarker(".wh..wh..opq"))
	assert.True(t, IsOCIOpaqueMarker("lib/.wh..wh..opq"))
	assert.False(t, IsOCIOpaqueMarker(".wh.removed"))
}

func TestOCIWhitedOutName(t *testing.T) {
	assert.Equal(t, "removed", OCIWhitedOutName(".wh.removed"))
	assert.Equal(t, "lib/gone", OCIWhitedOutName("lib/.wh.gone"))
}
