// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagsTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringP("config", "c", "", "")
	cmd.Flags().String("work-dir", "", "")
	cmd.Flags().BoolP("verbose", "v", false, "")
	cmd.Flags().Bool("dry-run", false, "")
	return cmd
}

func TestResolveFlagsUsesBuiltInDefaultsWhenUnset(t *testing.T) {
	flags, err := ResolveFlags(newFlagsTestCommand())
	require.NoError(t, err)
	assert.Equal(t, "partcraft.yml", flags.Config)
	assert.Equal(t, ".partcraft", flags.WorkDir)
	assert.False(t, flags.Verbose)
	assert.False(t, flags.DryRun)
}

func TestResolveFlagsPrefersFlagOverEnv(t *testing.T) {
	t.Setenv("PARTCRAFT_CONFIG", "from-env.yml")
	cmd := newFlagsTestCommand()
	require.NoError(t, cmd.Flags().Set("config", "from-flag.yml"))

	flags, err := ResolveFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, "from-flag.yml", flags.Config)
}

func TestResolveFlagsFallsBackToEnvWhenFlagUnset(t *testing.T) {
	t.Setenv("PARTCRAFT_WORK_DIR", "/srv/work")
	flags, err := ResolveFlags(newFlagsTestCommand())
	require.NoError(t, err)
	assert.Equal(t, "/srv/work", flags.WorkDir)
}

func TestResolveFlagsParsesBoolEnvVars(t *testing.T) {
	t.Setenv("PARTCRAFT_VERBOSE", "true")
	t.Setenv("PARTCRAFT_DRY_RUN", "1")
	flags, err := ResolveFlags(newFlagsTestCommand())
	require.NoError(t, err)
	assert.True(t, flags.Verbose)
	assert.True(t, flags.DryRun)
}

func TestParseBoolEnvRejectsGarbage(t *testing.T) {
	assert.False(t, parseBoolEnv(""))
	assert.False(t, parseBoolEnv("not-a-bool"))
	assert.True(t, parseBoolEnv("true"))
}
