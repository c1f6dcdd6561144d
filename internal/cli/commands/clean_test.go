// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCleanCommandHasStepFlagDefaultingToPull(t *testing.T) {
	cmd := NewCleanCommand()
	flag := cmd.Flags().Lookup("step")
	require.NotNil(t, flag)
	assert.Equal(t, "pull", flag.DefValue)
}

func TestRunCleanFailsWhenConfigMissing(t *testing.T) {
	cmd := NewCleanCommand()
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

func TestRunCleanFailsOnInvalidStep(t *testing.T) {
	cmd := NewCleanCommand()
	cmd.Flags().StringP("config", "c", "", "")
	cmd.Flags().String("work-dir", "", "")
	cmd.Flags().BoolP("verbose", "v", false, "")
	cmd.Flags().Bool("dry-run", false, "")
	require.NoError(t, cmd.Flags().Set("step", "bogus"))

	cmd.SetOut(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --step")
}
