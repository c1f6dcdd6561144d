// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRunFailsWhenConfigMissing(t *testing.T) {
	cmd := NewRunCommand()
	cmd.Flags().StringP("config", "c", "", "")
	cmd.Flags().String("work-dir", "", "")
	cmd.Flags().BoolP("verbose", "v", false, "")
	cmd.Flags().Bool("dry-run", false, "")

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partcraft config not found")
}
