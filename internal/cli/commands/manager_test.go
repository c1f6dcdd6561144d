// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partcraft/internal/core/parts"
	"partcraft/pkg/config"
	"partcraft/pkg/logging"
)

func TestLoadConfigWrapsMissingFileError(t *testing.T) {
	flags := &ResolvedFlags{Config: filepath.Join(t.TempDir(), "absent.yml")}
	_, err := loadConfig(flags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partcraft config not found")
}

func TestLoadConfigParsesValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partcraft.yml")
	require.NoError(t, os.WriteFile(path, []byte("parts:\n  - name: app\n    plugin: nil\n"), 0o644))

	cfg, err := loadConfig(&ResolvedFlags{Config: path})
	require.NoError(t, err)
	require.Len(t, cfg.Parts, 1)
	assert.Equal(t, "app", cfg.Parts[0].Name)
}

func TestBuildManagerRejectsDuplicatePartNames(t *testing.T) {
	flags := &ResolvedFlags{WorkDir: t.TempDir()}
	cfg := &config.Config{
		Parts: []parts.Part{
			{Name: "app", Plugin: "nil"},
			{Name: "app", Plugin: "nil"},
		},
	}

	_, err := buildManager(flags, cfg, logging.NewNop())
	require.Error(t, err)
}
