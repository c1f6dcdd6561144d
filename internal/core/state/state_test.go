// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partcraft/internal/core/parts"
	"partcraft/internal/core/steps"
)

func TestStoreWriteLoadPull(t *testing.T) {
	dirs := parts.NewDirs(t.TempDir())
	store := NewStore(dirs)

	want := &PullState{
		PartProps:    map[string]string{"source": "./src", "source-type": "local"},
		ProjectProps: map[string]string{"arch": "amd64"},
		Assets:       PullAssets{StagePackages: []string{"libc6"}},
	}
	require.NoError(t, store.Write("p1", want))

	got, err := store.Load("p1", steps.Pull)
	require.NoError(t, err)
	require.NotNil(t, got)

	ps, ok := got.(*PullState)
	require.True(t, ok)
	assert.Equal(t, want.PartProps, ps.PartProperties())
	assert.Equal(t, want.Assets, ps.Assets)

	c, ok := got.Contents("default")
	assert.False(t, ok)
	assert.Empty(t, c.Files)
}

func TestStoreLoadMissingReturnsNil(t *testing.T) {
	dirs := parts.NewDirs(t.TempDir())
	store := NewStore(dirs)

	got, err := store.Load("absent", steps.Stage)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, store.Exists("absent", steps.Stage))
}

func TestStoreOverlayStateRoundTrip(t *testing.T) {
	dirs := parts.NewDirs(t.TempDir())
	store := NewStore(dirs)

	want := &OverlayState{
		PartProps:    map[string]string{"overlay-packages": "pkg-a"},
		ProjectProps: map[string]string{"arch": "amd64"},
		Partitions: map[string]Contents{
			"default": NewContents(
				map[string]struct{}{"bin/foo": {}},
				map[string]struct{}{"bin": {}},
			),
		},
		LayerHashHex: "abc123",
	}
	require.NoError(t, store.Write("p1", want))

	got, err := store.Load("p1", steps.Overlay)
	require.NoError(t, err)
	os, ok := got.(*OverlayState)
	require.True(t, ok)
	assert.Equal(t, "abc123", os.LayerHashHex)

	c, ok := os.Contents("default")
	require.True(t, ok)
	assert.Equal(t, []string{"bin/foo"}, c.Files)
	assert.Equal(t, []string{"bin"}, c.Directories)
}

func TestStoreRemove(t *testing.T) {
	dirs := parts.NewDirs(t.TempDir())
	store := NewStore(dirs)

	require.NoError(t, store.Write("p1", &BuildState{PartProps: map[string]string{}}))
	assert.True(t, store.Exists("p1", steps.Build))

	require.NoError(t, store.Remove("p1", steps.Build))
	assert.False(t, store.Exists("p1", steps.Build))

	// Removing an already-absent record is not an error.
	require.NoError(t, store.Remove("p1", steps.Build))
}

func TestStoreMigrationStateRoundTrip(t *testing.T) {
	dirs := parts.NewDirs(t.TempDir())
	store := NewStore(dirs)

	want := MigrationState{Contents: NewContents(
		map[string]struct{}{"etc/passwd": {}},
		map[string]struct{}{"etc": {}},
	)}
	require.NoError(t, store.WriteMigration("default", true, steps.Stage, want))

	got, ok, err := store.LoadMigration("default", true, steps.Stage)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.False(t, got.Empty())

	require.NoError(t, store.RemoveMigration("default", true, steps.Stage))
	_, ok, err = store.LoadMigration("default", true, steps.Stage)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChangedField(t *testing.T) {
	st := &PullState{PartProps: map[string]string{"source": "old", "source-type": "local"}}

	field, changed := ChangedField(st, map[string]string{"source": "new", "source-type": "local"})
	assert.True(t, changed)
	assert.Equal(t, "source", field)

	_, changed = ChangedField(st, map[string]string{"source": "old", "source-type": "local"})
	assert.False(t, changed)
}
