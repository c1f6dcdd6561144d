// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"partcraft/internal/core/actions"
	"partcraft/internal/core/steps"
)

func TestPlanRendersEmptyPlanAsNothingToDo(t *testing.T) {
	assert.Equal(t, "(nothing to do)\n", Plan(nil))
}

func TestPlanRendersOneLinePerAction(t *testing.T) {
	out := Plan([]actions.Action{
		{PartName: "app", Step: steps.Pull, Type: actions.Run, Reason: "requested step"},
		{PartName: "lib", Step: steps.Build, Type: actions.Skip, Reason: "already ran"},
	})

	assert.Contains(t, out, "app")
	assert.Contains(t, out, "pull")
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "requested step")
	assert.Contains(t, out, "lib")
	assert.Contains(t, out, "SKIP")
	assert.Contains(t, out, "already ran")
}
