// SPDX-License-Identifier: AGPL-3.0-or-later

package layerhash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partcraft/internal/core/parts"
)

func TestForPartIsDeterministic(t *testing.T) {
	p := &parts.Part{Name: "p1", OverlayPackages: []string{"b", "a"}, OverrideOverlay: "echo hi"}

	h1 := ForPart(p, Zero)
	h2 := ForPart(p, Zero)
	assert.True(t, h1.Equal(h2))
	assert.NotEmpty(t, h1.Hex())
}

func TestForPartChainsOnPrevious(t *testing.T) {
	p := &parts.Part{Name: "p1"}

	withZero := ForPart(p, Zero)
	withOther := ForPart(p, ForPart(&parts.Part{Name: "p0", OverlayPackages: []string{"x"}}, Zero))

	assert.False(t, withZero.Equal(withOther))
}

func TestForPartChangesWithOverlayParameters(t *testing.T) {
	base := &parts.Part{Name: "p1", OverlayPackages: []string{"a"}}
	changed := &parts.Part{Name: "p1", OverlayPackages: []string{"a", "b"}}

	assert.False(t, ForPart(base, Zero).Equal(ForPart(changed, Zero)))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dirs := parts.NewDirs(t.TempDir())
	h := ForPart(&parts.Part{Name: "p1", OverlayPackages: []string{"a"}}, Zero)

	require.NoError(t, Save(dirs, "p1", h))

	got, err := Load(dirs, "p1")
	require.NoError(t, err)
	assert.True(t, h.Equal(got))
}

func TestLoadMissingReturnsZero(t *testing.T) {
	dirs := parts.NewDirs(t.TempDir())
	got, err := Load(dirs, "absent")
	require.NoError(t, err)
	assert.True(t, got.Equal(Zero))
}
