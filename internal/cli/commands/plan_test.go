// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlanCommandHasTargetFlagDefaultingToPrime(t *testing.T) {
	cmd := NewPlanCommand()
	flag := cmd.Flags().Lookup("target")
	require.NotNil(t, flag)
	assert.Equal(t, "prime", flag.DefValue)
}

func TestRunPlanFailsWhenConfigMissing(t *testing.T) {
	cmd := NewPlanCommand()
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

func TestResolveTargetFlagRejectsUnknownStep(t *testing.T) {
	cmd := NewPlanCommand()
	require.NoError(t, cmd.Flags().Set("target", "bogus"))

	_, err := resolveTargetFlag(cmd)
	require.Error(t, err)
}
