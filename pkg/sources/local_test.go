// SPDX-License-Identifier: AGPL-3.0-or-later

package sources

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalSourcePullCopiesTree(t *testing.T) {
	srcRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(srcRoot, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "sub", "b.txt"), []byte("b"), 0o644))

	destDir := filepath.Join(t.TempDir(), "src")
	s := NewLocalSource()
	require.NoError(t, s.Pull(PullContext{PartName: "p", Source: srcRoot, SourceDir: destDir}))

	a, err := os.ReadFile(filepath.Join(destDir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "a", string(a))

	b, err := os.ReadFile(filepath.Join(destDir, "sub", "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "b", string(b))
}

func TestLocalSourcePullRejectsEmptySource(t *testing.T) {
	s := NewLocalSource()
	err := s.Pull(PullContext{PartName: "p", Source: "", SourceDir: t.TempDir()})
	require.Error(t, err)
}

func TestLocalSourceCheckIfOutdatedMissingState(t *testing.T) {
	s := NewLocalSource()
	outdated, err := s.CheckIfOutdated(
		PullContext{Source: t.TempDir()},
		filepath.Join(t.TempDir(), "does-not-exist"),
	)
	require.NoError(t, err)
	require.True(t, outdated)
}

func TestLocalSourceCheckIfOutdatedDetectsNewerSource(t *testing.T) {
	srcRoot := t.TempDir()
	statePath := filepath.Join(t.TempDir(), "pull")
	require.NoError(t, os.WriteFile(statePath, []byte("{}"), 0o644))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(statePath, old, old))

	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "new.txt"), []byte("x"), 0o644))

	s := NewLocalSource()
	outdated, err := s.CheckIfOutdated(PullContext{Source: srcRoot}, statePath)
	require.NoError(t, err)
	require.True(t, outdated)
}
