// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "partcraft.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigPath(t *testing.T) {
	assert.Equal(t, "partcraft.yml", DefaultConfigPath())
}

func TestExistsReportsFalseForMissingFile(t *testing.T) {
	exists, err := Exists(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLoadMissingFileReturnsErrConfigNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadParsesPartsAndProjectOptions(t *testing.T) {
	path := writeConfig(t, `
arch: amd64
variables:
  version: "1.2.3"
parts:
  - name: lib
    plugin: dump
    source: ./lib
  - name: app
    plugin: make
    after: [lib]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Parts, 2)
	opts := cfg.ProjectOptions("/work")
	assert.Equal(t, "amd64", opts.Arch)
	assert.Equal(t, "/work", opts.WorkRoot)
	v, ok := opts.Get("version")
	require.True(t, ok)
	assert.Equal(t, "1.2.3", v)
}

func TestLoadRejectsEmptyPartsList(t *testing.T) {
	path := writeConfig(t, "parts: []\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsDuplicatePartNames(t *testing.T) {
	path := writeConfig(t, `
parts:
  - name: app
    plugin: nil
  - name: app
    plugin: nil
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownAfterDependency(t *testing.T) {
	path := writeConfig(t, `
parts:
  - name: app
    plugin: nil
    after: [missing]
`)
	_, err := Load(path)
	require.Error(t, err)
}
