// SPDX-License-Identifier: AGPL-3.0-or-later

// Package parthandler dispatches a planned action to the step-specific
// collaborator that actually performs it, and persists the resulting
// StepState (spec.md §4.5).
package parthandler

import (
	"context"
	"fmt"
	"os"

	"partcraft/internal/core/actions"
	"partcraft/internal/core/lifecycleerr"
	"partcraft/internal/core/parts"
	"partcraft/internal/core/state"
	"partcraft/internal/core/steps"
	"partcraft/pkg/executil"
	"partcraft/pkg/logging"
	"partcraft/pkg/overlay"
	"partcraft/pkg/packages"
	"partcraft/pkg/plugins"
	"partcraft/pkg/sources"
)

// Feature: CORE_PARTHANDLER
// Spec: SPEC_FULL.md §4.5 "PartHandler", §4.5.1 "Squasher", §4.5.2 "clean_step"

// Handler runs a single planned action against the real filesystem,
// dispatching to the collaborator registries for the step in question.
type Handler struct {
	dirs    parts.Dirs
	project parts.ProjectOptions
	store   *state.Store

	plugins  *plugins.Registry
	sources  *sources.Registry
	pkgs     packages.Repository
	overlays *overlay.Manager

	runner executil.Runner
	log    logging.Logger
}

// New builds a Handler. pkgs may be nil for projects that declare no
// stage/build/overlay packages anywhere.
func New(
	dirs parts.Dirs,
	project parts.ProjectOptions,
	store *state.Store,
	pluginRegistry *plugins.Registry,
	sourceRegistry *sources.Registry,
	pkgs packages.Repository,
	overlays *overlay.Manager,
	runner executil.Runner,
	log logging.Logger,
) *Handler {
	return &Handler{
		dirs: dirs, project: project, store: store,
		plugins: pluginRegistry, sources: sourceRegistry, pkgs: pkgs, overlays: overlays,
		runner: runner, log: log,
	}
}

// allowedTypes is the action-type dispatch table spec.md §4.5 defines: a
// step may only be asked to run an action type it knows how to satisfy.
var allowedTypes = map[steps.Step]map[actions.Type]bool{
	steps.Pull:    {actions.Run: true, actions.Rerun: true, actions.Update: true},
	steps.Overlay: {actions.Run: true, actions.Rerun: true, actions.Update: true, actions.Reapply: true},
	steps.Build:   {actions.Run: true, actions.Rerun: true, actions.Update: true},
	steps.Stage:   {actions.Run: true, actions.Rerun: true},
	steps.Prime:   {actions.Run: true, actions.Rerun: true},
}

// OverlayPartRef names a part that declares overlay parameters alongside
// its layer directory, the unit the STAGE/PRIME squash and clean_step's
// "last part with overlay" check both operate over (spec.md §4.5.1).
type OverlayPartRef struct {
	Name     string
	LayerDir string
}

// RunContext bundles the declaration-order context a single action needs
// beyond its own part: the full declared part name list (for clean_step's
// shared-area accounting), the layer directories of every part declared
// below this one (for OVERLAY's lower-dir stack, spec.md §4.4), and every
// overlay-declaring part in reverse declaration order (for the STAGE/PRIME
// squash and clean_step's overlay bookkeeping, spec.md §4.5.1).
type RunContext struct {
	AllParts               []string
	BelowLayerDirs         []string
	OverlayPartsDescending []OverlayPartRef
}

// Run dispatches a single planned action. SKIP actions are a no-op here:
// lifecycle.Manager records the SKIPs the sequencer plans without calling
// Run, and Run returns nil for one if it is passed anyway.
func (h *Handler) Run(ctx context.Context, part *parts.Part, rc RunContext, act actions.Action) error {
	if act.Type == actions.Skip {
		return nil
	}
	if !allowedTypes[act.Step][act.Type] {
		return lifecycleerr.New(lifecycleerr.KindInvalidAction, part.Name, act.Step.String(),
			fmt.Sprintf("action type %s is not valid for this step", act.Type))
	}

	if act.Type == actions.Rerun {
		if err := h.cleanStepAndDownstream(part, rc.AllParts, rc.OverlayPartsDescending, act.Step); err != nil {
			return err
		}
	}

	switch act.Step {
	case steps.Pull:
		return h.runPull(ctx, part, act.Type)
	case steps.Overlay:
		return h.runOverlay(ctx, part, rc.BelowLayerDirs)
	case steps.Build:
		return h.runBuild(ctx, part, act.Type)
	case steps.Stage:
		return h.runStage(ctx, part, rc.AllParts, rc.OverlayPartsDescending)
	case steps.Prime:
		return h.runPrime(ctx, part, rc.AllParts, rc.OverlayPartsDescending)
	default:
		return lifecycleerr.New(lifecycleerr.KindInvalidAction, part.Name, act.Step.String(), "unknown step")
	}
}

// defaultPartition returns the project's default partition descriptor.
func (h *Handler) defaultPartition() parts.Partition {
	return h.project.NormalizedPartitions()[0]
}

func (h *Handler) makeDirs(partName string) error {
	for _, dir := range h.dirs.AllPartDirs(partName, h.project.NormalizedPartitions()) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %q: %w", dir, err)
		}
	}
	return nil
}
