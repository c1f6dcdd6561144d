// SPDX-License-Identifier: AGPL-3.0-or-later

package parthandler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partcraft/internal/core/actions"
	"partcraft/internal/core/parts"
	"partcraft/internal/core/state"
	"partcraft/internal/core/steps"
)

func buildInstallDir(t *testing.T, h *Handler, partName string, files map[string]string) {
	t.Helper()
	installDir := h.dirs.PartInstallDir(partName, "default", true)
	require.NoError(t, os.MkdirAll(installDir, 0o755))
	for name, content := range files {
		full := filepath.Join(installDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func TestRunStageMigratesInstallDirContents(t *testing.T) {
	h, dirs := newTestHandler(t, nil)
	part := &parts.Part{Name: "app", Plugin: "dump"}
	buildInstallDir(t, h, "app", map[string]string{"bin/app": "binary"})

	err := h.Run(context.Background(), part, RunContext{AllParts: []string{"app"}}, actions.Action{
		PartName: "app", Step: steps.Stage, Type: actions.Run,
	})
	require.NoError(t, err)

	stageDir := dirs.StageDir("default", true)
	data, readErr := os.ReadFile(filepath.Join(stageDir, "bin", "app"))
	require.NoError(t, readErr)
	assert.Equal(t, "binary", string(data))

	st, err := h.store.Load("app", steps.Stage)
	require.NoError(t, err)
	stageState, ok := st.(*state.StageState)
	require.True(t, ok)
	contents, ok := stageState.Contents("default")
	require.True(t, ok)
	assert.Contains(t, contents.Files, "bin/app")
}

func TestRunStageOverrideStageBypassesMigration(t *testing.T) {
	h, dirs := newTestHandler(t, nil)
	part := &parts.Part{Name: "app", Plugin: "nil", OverrideStage: "touch staged.flag"}

	err := h.Run(context.Background(), part, RunContext{AllParts: []string{"app"}}, actions.Action{
		PartName: "app", Step: steps.Stage, Type: actions.Run,
	})
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dirs.StageDir("default", true), "staged.flag"))
	require.NoError(t, statErr)
}

func TestRunPrimeMigratesStagedContentsAndFiltersWhiteouts(t *testing.T) {
	pkgs := &fakeRepository{originStagePackages: map[string]string{"bin/app": "libfoo"}}
	h, dirs := newTestHandler(t, pkgs)
	part := &parts.Part{Name: "app", Plugin: "dump", StagePackages: []string{"libfoo"}}
	buildInstallDir(t, h, "app", map[string]string{"bin/app": "binary"})

	ctx := context.Background()
	require.NoError(t, h.Run(ctx, part, RunContext{AllParts: []string{"app"}}, actions.Action{
		PartName: "app", Step: steps.Stage, Type: actions.Run,
	}))

	whiteout := filepath.Join(dirs.StageDir("default", true), ".wh.removed")
	require.NoError(t, os.WriteFile(whiteout, nil, 0o644))

	st, err := h.store.Load("app", steps.Stage)
	require.NoError(t, err)
	stageState := st.(*state.StageState)
	contents := stageState.Partitions["default"]
	contents.Files = append(contents.Files, ".wh.removed")
	stageState.Partitions["default"] = contents
	require.NoError(t, h.store.Write("app", stageState))

	require.NoError(t, h.Run(ctx, part, RunContext{AllParts: []string{"app"}}, actions.Action{
		PartName: "app", Step: steps.Prime, Type: actions.Run,
	}))

	primeDir := dirs.PrimeDir("default", true)
	data, readErr := os.ReadFile(filepath.Join(primeDir, "bin", "app"))
	require.NoError(t, readErr)
	assert.Equal(t, "binary", string(data))

	_, statErr := os.Stat(filepath.Join(primeDir, ".wh.removed"))
	assert.True(t, os.IsNotExist(statErr))

	primeSt, err := h.store.Load("app", steps.Prime)
	require.NoError(t, err)
	primeState, ok := primeSt.(*state.PrimeState)
	require.True(t, ok)
	assert.Equal(t, []string{"libfoo"}, primeState.PrimedStagePackages)
}

func TestRunPrimeOverridePrimeBypassesMigration(t *testing.T) {
	h, dirs := newTestHandler(t, nil)
	part := &parts.Part{Name: "app", Plugin: "nil", OverridePrime: "touch primed.flag"}

	err := h.Run(context.Background(), part, RunContext{AllParts: []string{"app"}}, actions.Action{
		PartName: "app", Step: steps.Prime, Type: actions.Run,
	})
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dirs.PrimeDir("default", true), "primed.flag"))
	require.NoError(t, statErr)
}
