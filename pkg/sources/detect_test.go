// SPDX-License-Identifier: AGPL-3.0-or-later

package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectType(t *testing.T) {
	cases := []struct {
		source string
		want   string
	}{
		{"https://example.com/project.git", "git"},
		{"git+ssh://git@example.com/project", "git"},
		{"ssh://git@example.com/project.git", "git"},
		{"https://example.com/archive.tar.gz", "tar"},
		{"https://example.com/archive.tgz", "tar"},
		{"./relative/archive.tar", "tar"},
		{"/opt/prebuilt-binary", "local"},
		{"../sibling-dir", "local"},
	}

	for _, tc := range cases {
		got, err := DetectType(tc.source)
		require.NoError(t, err)
		assert.Equalf(t, tc.want, got, "DetectType(%q)", tc.source)
	}
}

func TestDetectTypeRejectsEmpty(t *testing.T) {
	_, err := DetectType("")
	require.Error(t, err)
}
