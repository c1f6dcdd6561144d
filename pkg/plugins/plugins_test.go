// SPDX-License-Identifier: AGPL-3.0-or-later

package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultRegistryHasBuiltins(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []string{"dump", "make", "nil"}, r.IDs())
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("absent")
	assert.ErrorIs(t, err, ErrUnknownPlugin)
}

func TestRegistryRegisterPanicsOnDuplicate(t *testing.T) {
	r := NewRegistry()
	r.Register(NewNilPlugin())
	assert.Panics(t, func() { r.Register(NewNilPlugin()) })
}

func TestNilPluginHasNoCommands(t *testing.T) {
	cmds, err := NewNilPlugin().BuildCommands(BuildContext{})
	require.NoError(t, err)
	assert.Empty(t, cmds)
}

func TestDumpPluginCopiesSourceToInstall(t *testing.T) {
	cmds, err := NewDumpPlugin().BuildCommands(BuildContext{SourceDir: "/src", InstallDir: "/install"})
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Contains(t, cmds[0], "/src")
	assert.Contains(t, cmds[0], "/install")
}

func TestMakePluginBuildsAndInstalls(t *testing.T) {
	cmds, err := NewMakePlugin().BuildCommands(BuildContext{
		InstallDir: "/install",
		Properties: map[string]string{"make-parameters": "CFLAGS=-O2"},
	})
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Contains(t, cmds[0], "CFLAGS=-O2")
	assert.Contains(t, cmds[1], "DESTDIR=")
	assert.Contains(t, cmds[1], "/install")
}

func TestShellQuoteEscapesSingleQuote(t *testing.T) {
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}
