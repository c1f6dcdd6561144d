// SPDX-License-Identifier: AGPL-3.0-or-later

package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partcraft/internal/core/actions"
	"partcraft/internal/core/layerhash"
	"partcraft/internal/core/parts"
	"partcraft/internal/core/steps"
	"partcraft/pkg/executil"
	"partcraft/pkg/logging"
	"partcraft/pkg/overlay"
	"partcraft/pkg/plugins"
	"partcraft/pkg/sources"
)

func newTestManager(t *testing.T, declared []parts.Part) *Manager {
	t.Helper()
	m, err := New(Config{
		WorkRoot: t.TempDir(),
		Project:  parts.ProjectOptions{Arch: "amd64"},
		Parts:    declared,
		Plugins:  plugins.NewDefaultRegistry(),
		Sources:  sources.NewDefaultRegistry(),
		Driver:   overlay.NewFakeDriver(),
		Runner:   executil.NewRunner(),
		Log:      logging.NewNop(),
	})
	require.NoError(t, err)
	return m
}

func TestNewRejectsDuplicatePartNames(t *testing.T) {
	_, err := New(Config{
		WorkRoot: t.TempDir(),
		Parts: []parts.Part{
			{Name: "app", Plugin: "nil"},
			{Name: "app", Plugin: "nil"},
		},
		Plugins: plugins.NewDefaultRegistry(),
		Sources: sources.NewDefaultRegistry(),
		Driver:  overlay.NewFakeDriver(),
	})
	require.Error(t, err)
}

func TestNewRejectsUnknownAfterDependency(t *testing.T) {
	_, err := New(Config{
		WorkRoot: t.TempDir(),
		Parts:    []parts.Part{{Name: "app", Plugin: "nil", After: []string{"missing"}}},
		Plugins:  plugins.NewDefaultRegistry(),
		Sources:  sources.NewDefaultRegistry(),
		Driver:   overlay.NewFakeDriver(),
	})
	require.Error(t, err)
}

func TestPlanToStageForFreshPartIsAllRun(t *testing.T) {
	m := newTestManager(t, []parts.Part{{Name: "app", Plugin: "nil"}})

	plan, err := m.Plan(steps.Stage, nil)
	require.NoError(t, err)

	require.Len(t, plan, 4)
	for _, act := range plan {
		assert.Equal(t, actions.Run, act.Type)
	}
}

func TestRunExecutesPlanAndSecondRunSkipsEverything(t *testing.T) {
	m := newTestManager(t, []parts.Part{{Name: "app", Plugin: "nil"}})
	ctx := context.Background()

	executed, err := m.Run(ctx, steps.Build, nil)
	require.NoError(t, err)
	require.Len(t, executed, 3)
	assert.True(t, m.store.Exists("app", steps.Pull))
	assert.True(t, m.store.Exists("app", steps.Overlay))
	assert.True(t, m.store.Exists("app", steps.Build))

	executed, err = m.Run(ctx, steps.Build, nil)
	require.NoError(t, err)
	require.Len(t, executed, 3)
	for _, act := range executed {
		assert.Equal(t, actions.Skip, act.Type)
	}
}

func TestRunThreadsBelowLayerDirsAcrossDeclarationOrder(t *testing.T) {
	m := newTestManager(t, []parts.Part{
		{Name: "base", Plugin: "nil", OverlayPackages: []string{"pkg-a"}},
		{Name: "top", Plugin: "nil", OverlayPackages: []string{"pkg-b"}},
	})

	_, err := m.Run(context.Background(), steps.Overlay, nil)
	require.NoError(t, err)

	baseHash, err := layerhash.Load(m.dirs, "base")
	require.NoError(t, err)
	topHash, err := layerhash.Load(m.dirs, "top")
	require.NoError(t, err)

	assert.False(t, baseHash.Equal(topHash))
	assert.False(t, baseHash.Equal(layerhash.Zero))

	expectedTop := layerhash.ForPart(&m.parts[1], baseHash)
	assert.True(t, expectedTop.Equal(topHash))
}

func TestRunPullsLocalSourceThenSkipsWhenUnchanged(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "file"), []byte("x"), 0o644))

	m := newTestManager(t, []parts.Part{{Name: "app", Plugin: "dump", Source: srcDir, SourceType: "local"}})
	ctx := context.Background()

	executed, err := m.Run(ctx, steps.Pull, nil)
	require.NoError(t, err)
	require.Len(t, executed, 1)
	assert.Equal(t, actions.Run, executed[0].Type)

	executed, err = m.Run(ctx, steps.Pull, nil)
	require.NoError(t, err)
	require.Len(t, executed, 1)
	assert.Equal(t, actions.Skip, executed[0].Type)
}

func TestRunRestrictsToOnlyNamedParts(t *testing.T) {
	m := newTestManager(t, []parts.Part{
		{Name: "a", Plugin: "nil"},
		{Name: "b", Plugin: "nil"},
	})

	executed, err := m.Run(context.Background(), steps.Pull, []string{"a"})
	require.NoError(t, err)
	require.Len(t, executed, 1)
	assert.Equal(t, "a", executed[0].PartName)
	assert.False(t, m.store.Exists("b", steps.Pull))
}

func TestCleanRemovesPersistedStateForNamedPart(t *testing.T) {
	m := newTestManager(t, []parts.Part{{Name: "app", Plugin: "nil"}})
	ctx := context.Background()

	_, err := m.Run(ctx, steps.Build, nil)
	require.NoError(t, err)
	require.True(t, m.store.Exists("app", steps.Build))

	require.NoError(t, m.Clean([]string{"app"}, steps.Pull))

	assert.False(t, m.store.Exists("app", steps.Pull))
	assert.False(t, m.store.Exists("app", steps.Build))
}

func TestCleanRejectsUnknownPart(t *testing.T) {
	m := newTestManager(t, []parts.Part{{Name: "app", Plugin: "nil"}})
	err := m.Clean([]string{"missing"}, steps.Pull)
	require.Error(t, err)
}
