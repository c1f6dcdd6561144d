// SPDX-License-Identifier: AGPL-3.0-or-later

package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partcraft/internal/core/actions"
	"partcraft/internal/core/parts"
	"partcraft/internal/core/state"
	"partcraft/internal/core/steps"
)

func newTestStore(t *testing.T) *state.Store {
	t.Helper()
	return state.NewStore(parts.NewDirs(t.TempDir()))
}

func findAction(t *testing.T, plan []actions.Action, partName string, step steps.Step) actions.Action {
	t.Helper()
	for _, a := range plan {
		if a.PartName == partName && a.Step == step {
			return a
		}
	}
	t.Fatalf("no action for %s:%s in plan", partName, step)
	return actions.Action{}
}

func hasAction(plan []actions.Action, partName string, step steps.Step) bool {
	for _, a := range plan {
		if a.PartName == partName && a.Step == step {
			return true
		}
	}
	return false
}

func runToState(t *testing.T, store *state.Store, p *parts.Part) {
	t.Helper()
	props := p.CanonicalProperties()

	require.NoError(t, store.Write(p.Name, &state.PullState{PartProps: props, ProjectProps: map[string]string{}}))
	require.NoError(t, store.Write(p.Name, &state.OverlayState{PartProps: props, ProjectProps: map[string]string{}}))
	require.NoError(t, store.Write(p.Name, &state.BuildState{PartProps: props, ProjectProps: map[string]string{}}))
	require.NoError(t, store.Write(p.Name, &state.StageState{PartProps: props, ProjectProps: map[string]string{}}))
	require.NoError(t, store.Write(p.Name, &state.PrimeState{PartProps: props, ProjectProps: map[string]string{}}))
}

func TestPlanFreshPartsAllRun(t *testing.T) {
	store := newTestStore(t)
	s := New(store, nil)

	declared := []parts.Part{{Name: "foo", Plugin: "dump"}}

	plan, err := s.Plan(declared, steps.Prime, nil)
	require.NoError(t, err)
	require.Len(t, plan, 5)

	for i, step := range steps.All {
		assert.Equal(t, step, plan[i].Step)
		assert.Equal(t, actions.Run, plan[i].Type)
	}
}

func TestPlanStepOrderIsNonDecreasingPerPart(t *testing.T) {
	store := newTestStore(t)
	s := New(store, nil)

	declared := []parts.Part{{Name: "a", Plugin: "dump"}, {Name: "b", Plugin: "dump"}}

	plan, err := s.Plan(declared, steps.Prime, nil)
	require.NoError(t, err)

	last := map[string]steps.Step{}
	seen := map[string]bool{}
	for _, act := range plan {
		if seen[act.PartName] {
			assert.GreaterOrEqual(t, act.Step.Index(), last[act.PartName].Index())
		}
		last[act.PartName] = act.Step
		seen[act.PartName] = true
	}
}

func TestPlanAgainstCleanStateSkipsExceptRequestedStep(t *testing.T) {
	store := newTestStore(t)
	p := parts.Part{Name: "foo", Plugin: "dump"}
	runToState(t, store, &p)

	s := New(store, nil)
	declared := []parts.Part{p}

	plan, err := s.Plan(declared, steps.Build, []string{"foo"})
	require.NoError(t, err)

	pull := findAction(t, plan, "foo", steps.Pull)
	assert.Equal(t, actions.Skip, pull.Type)
	assert.Equal(t, "already ran", pull.Reason)

	build := findAction(t, plan, "foo", steps.Build)
	assert.Equal(t, actions.Rerun, build.Type)
	assert.Equal(t, "requested step", build.Reason)

	overlay := findAction(t, plan, "foo", steps.Overlay)
	assert.Equal(t, actions.Skip, overlay.Type)
}

func TestPlanDirtyBuildPropertyRerunsBuildOnly(t *testing.T) {
	store := newTestStore(t)
	p := parts.Part{Name: "foo", Plugin: "dump", BuildPackages: []string{"gcc"}}
	runToState(t, store, &p)

	p.BuildPackages = []string{"gcc", "make"}

	s := New(store, nil)
	declared := []parts.Part{p}

	plan, err := s.Plan(declared, steps.Prime, nil)
	require.NoError(t, err)

	pull := findAction(t, plan, "foo", steps.Pull)
	assert.Equal(t, actions.Skip, pull.Type)

	build := findAction(t, plan, "foo", steps.Build)
	assert.Equal(t, actions.Rerun, build.Type)
	assert.Equal(t, "'build-packages' property changed", build.Reason)
}

func TestPlanUnknownPartReturnsError(t *testing.T) {
	store := newTestStore(t)
	s := New(store, nil)

	declared := []parts.Part{{Name: "foo", Plugin: "dump"}}
	_, err := s.Plan(declared, steps.Build, []string{"bogus"})
	assert.Error(t, err)
}

func TestPlanInvalidTargetReturnsError(t *testing.T) {
	store := newTestStore(t)
	s := New(store, nil)

	declared := []parts.Part{{Name: "foo", Plugin: "dump"}}
	_, err := s.Plan(declared, steps.Step(99), nil)
	assert.Error(t, err)
}

func TestPlanSourceOutdatedMarksPullUpdate(t *testing.T) {
	store := newTestStore(t)
	p := parts.Part{Name: "foo", Plugin: "dump", Source: "https://example.com/repo.git"}
	runToState(t, store, &p)

	checker := func(partName string) (bool, error) {
		return partName == "foo", nil
	}
	s := New(store, checker)
	declared := []parts.Part{p}

	plan, err := s.Plan(declared, steps.Prime, nil)
	require.NoError(t, err)

	pull := findAction(t, plan, "foo", steps.Pull)
	assert.Equal(t, actions.Update, pull.Type)
	assert.Equal(t, "upstream source changed", pull.Reason)
}

func TestPlanOverlayChangeCascadesReapplyAbove(t *testing.T) {
	store := newTestStore(t)

	below := parts.Part{Name: "base", Plugin: "dump", OverlayPackages: []string{"busybox"}}
	above := parts.Part{Name: "app", Plugin: "dump"}
	runToState(t, store, &below)
	runToState(t, store, &above)

	below.OverlayPackages = []string{"busybox", "curl"}

	s := New(store, nil)
	declared := []parts.Part{below, above}

	plan, err := s.Plan(declared, steps.Prime, nil)
	require.NoError(t, err)

	baseOverlay := findAction(t, plan, "base", steps.Overlay)
	assert.Equal(t, actions.Rerun, baseOverlay.Type)

	appOverlay := findAction(t, plan, "app", steps.Overlay)
	assert.Equal(t, actions.Reapply, appOverlay.Type)
	assert.Equal(t, "previous layer changed", appOverlay.Reason)

	appBuild := findAction(t, plan, "app", steps.Build)
	assert.Equal(t, actions.Skip, appBuild.Type)
}

func TestPlanAfterDependencyPullsInStageOfDependency(t *testing.T) {
	store := newTestStore(t)
	s := New(store, nil)

	declared := []parts.Part{
		{Name: "lib", Plugin: "dump"},
		{Name: "app", Plugin: "dump", After: []string{"lib"}},
	}

	plan, err := s.Plan(declared, steps.Build, []string{"app"})
	require.NoError(t, err)

	libStage := findAction(t, plan, "lib", steps.Stage)
	assert.Equal(t, actions.Run, libStage.Type)
	assert.Equal(t, "required to build 'app'", libStage.Reason)

	assert.False(t, hasAction(plan, "lib", steps.Prime))
}

func TestPlanOverlayVisibilityPullsInOverlayOfSiblings(t *testing.T) {
	store := newTestStore(t)
	s := New(store, nil)

	declared := []parts.Part{
		{Name: "viewer", Plugin: "dump", OverlayVisibility: true},
		{Name: "sibling", Plugin: "dump"},
	}

	plan, err := s.Plan(declared, steps.Build, []string{"viewer"})
	require.NoError(t, err)

	siblingOverlay := findAction(t, plan, "sibling", steps.Overlay)
	assert.Equal(t, actions.Run, siblingOverlay.Type)
	assert.Equal(t, "required to build 'viewer'", siblingOverlay.Reason)
}

func TestPlanOnlyRestrictsTargetSet(t *testing.T) {
	store := newTestStore(t)
	s := New(store, nil)

	declared := []parts.Part{{Name: "a", Plugin: "dump"}, {Name: "b", Plugin: "dump"}}

	plan, err := s.Plan(declared, steps.Prime, []string{"a"})
	require.NoError(t, err)

	for _, act := range plan {
		assert.Equal(t, "a", act.PartName)
	}
}
