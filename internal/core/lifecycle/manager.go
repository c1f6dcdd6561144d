// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lifecycle wires every collaborator registry together into the
// single facade the CLI drives: declare a project's parts once, then Plan
// or Run them to any target step (spec.md §4.7 "LifecycleManager").
package lifecycle

import (
	"context"
	"fmt"

	"partcraft/internal/core/actions"
	"partcraft/internal/core/parthandler"
	"partcraft/internal/core/parts"
	"partcraft/internal/core/sequencer"
	"partcraft/internal/core/state"
	"partcraft/internal/core/steps"
	"partcraft/pkg/executil"
	"partcraft/pkg/ids"
	"partcraft/pkg/logging"
	"partcraft/pkg/overlay"
	"partcraft/pkg/packages"
	"partcraft/pkg/plugins"
	"partcraft/pkg/sources"
)

// Feature: CORE_LIFECYCLE
// Spec: SPEC_FULL.md §4.7 "LifecycleManager"

// Manager owns a declared parts list and drives it through its
// PULL/OVERLAY/BUILD/STAGE/PRIME lifecycle against a single on-disk work
// tree, the same role craft_parts.LifecycleManager plays in the system
// this module's domain is modeled on.
type Manager struct {
	dirs    parts.Dirs
	project parts.ProjectOptions
	parts   []parts.Part

	store   *state.Store
	seq     *sequencer.Sequencer
	handler *parthandler.Handler
	sources *sources.Registry

	log logging.Logger
}

// Config bundles every collaborator a Manager needs. Plugins and Sources
// must not be nil; Packages may be nil for projects that declare no
// stage/build/overlay packages anywhere (spec.md §4.8: a package
// repository is an optional collaborator).
type Config struct {
	WorkRoot string
	Project  parts.ProjectOptions
	Parts    []parts.Part

	Plugins  *plugins.Registry
	Sources  *sources.Registry
	Packages packages.Repository
	Driver   overlay.Driver
	Runner   executil.Runner
	Log      logging.Logger
}

// New validates cfg.Parts and builds a Manager ready to Plan or Run them.
func New(cfg Config) (*Manager, error) {
	if cfg.Plugins == nil {
		return nil, fmt.Errorf("lifecycle: plugin registry is required")
	}
	if cfg.Sources == nil {
		return nil, fmt.Errorf("lifecycle: source registry is required")
	}
	if cfg.Driver == nil {
		return nil, fmt.Errorf("lifecycle: overlay driver is required")
	}
	if cfg.Runner == nil {
		cfg.Runner = executil.NewRunner()
	}
	if cfg.Log == nil {
		cfg.Log = logging.NewNop()
	}

	seen := make(map[string]bool, len(cfg.Parts))
	for i := range cfg.Parts {
		p := &cfg.Parts[i]
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("lifecycle: %w", err)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("lifecycle: duplicate part name %q", p.Name)
		}
		seen[p.Name] = true
	}
	for _, p := range cfg.Parts {
		for _, dep := range p.After {
			if !seen[dep] {
				return nil, fmt.Errorf("lifecycle: part %q declares after %q, which is not declared", p.Name, dep)
			}
		}
	}

	dirs := parts.NewDirs(cfg.WorkRoot)
	store := state.NewStore(dirs)

	var installer overlay.PackageInstaller
	if cfg.Packages != nil {
		installer = packages.RepositoryInstaller{Repo: cfg.Packages}
	}
	overlayMgr := overlay.NewManager(cfg.Driver, dirs, installer, cfg.Log)

	handler := parthandler.New(dirs, cfg.Project, store, cfg.Plugins, cfg.Sources, cfg.Packages,
		overlayMgr, cfg.Runner, cfg.Log)

	m := &Manager{
		dirs:    dirs,
		project: cfg.Project,
		parts:   cfg.Parts,
		store:   store,
		handler: handler,
		sources: cfg.Sources,
		log:     cfg.Log,
	}
	m.seq = sequencer.New(store, m.checkSourceOutdated)
	return m, nil
}

// checkSourceOutdated backs the sequencer's PULL staleness check
// (spec.md §4.6 step 4): it asks the same source handler runPull would
// dispatch to whether the part's already-pulled source is stale.
func (m *Manager) checkSourceOutdated(partName string) (bool, error) {
	part := m.part(partName)
	if part == nil || part.Source == "" {
		return false, nil
	}

	sourceType := part.SourceType
	if sourceType == "" {
		detected, err := sources.DetectType(part.Source)
		if err != nil {
			return false, fmt.Errorf("lifecycle: detecting source type for %q: %w", partName, err)
		}
		sourceType = detected
	}

	handler, err := m.sources.Get(sourceType)
	if err != nil {
		return false, fmt.Errorf("lifecycle: resolving source type %q for %q: %w", sourceType, partName, err)
	}

	props := make(map[string]string)
	for k, v := range part.CanonicalProperties() {
		const prefix = "source-"
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			props[k[len(prefix):]] = v
		}
	}
	pullCtx := sources.PullContext{
		PartName:   part.Name,
		Source:     part.Source,
		SourceDir:  m.dirs.PartSrcDir(part.Name),
		Properties: props,
	}
	return handler.CheckIfOutdated(pullCtx, m.dirs.StateStepPath(part.Name, steps.Pull.String()))
}

func (m *Manager) part(name string) *parts.Part {
	for i := range m.parts {
		if m.parts[i].Name == name {
			return &m.parts[i]
		}
	}
	return nil
}

// names returns every declared part's name, in declaration order.
func (m *Manager) names() []string {
	out := make([]string, len(m.parts))
	for i, p := range m.parts {
		out[i] = p.Name
	}
	return out
}

// Plan computes the ordered action list bringing only (or every declared
// part, if only is empty) up to target, without running anything.
func (m *Manager) Plan(target steps.Step, only []string) ([]actions.Action, error) {
	return m.seq.Plan(m.parts, target, only)
}

// Run plans and then executes, in order, every action needed to bring only
// (or every declared part) up to target. It stops at the first action that
// fails, returning the actions already executed alongside the error.
func (m *Manager) Run(ctx context.Context, target steps.Step, only []string) ([]actions.Action, error) {
	plan, err := m.seq.Plan(m.parts, target, only)
	if err != nil {
		return nil, err
	}

	allNames := m.names()
	index := make(map[string]int, len(m.parts))
	for i, p := range m.parts {
		index[p.Name] = i
	}
	overlayParts := m.overlayPartsDescending()

	runLog := m.log.WithFields(logging.NewField("run_id", ids.NewRunID()))

	var executed []actions.Action
	for _, act := range plan {
		if act.Type == actions.Skip {
			executed = append(executed, act)
			continue
		}

		part := m.part(act.PartName)
		if part == nil {
			return executed, fmt.Errorf("lifecycle: planned action references undeclared part %q", act.PartName)
		}

		rc := parthandler.RunContext{AllParts: allNames, OverlayPartsDescending: overlayParts}
		if act.Step == steps.Overlay {
			rc.BelowLayerDirs = m.belowLayerDirs(index[part.Name])
		}

		runLog.Info("running action",
			logging.NewField("part", act.PartName),
			logging.NewField("step", act.Step.String()),
			logging.NewField("type", string(act.Type)),
			logging.NewField("reason", act.Reason),
		)

		if err := m.handler.Run(ctx, part, rc, act); err != nil {
			return executed, fmt.Errorf("lifecycle: running %s:%s: %w", act.PartName, act.Step, err)
		}
		executed = append(executed, act)
	}

	return executed, nil
}

// belowLayerDirs returns the default partition's layer directory for every
// part declared before partIndex, furthest-from-the-merged-view first
// (spec.md §4.4 "OVERLAY's lower-dir stack"): declaration order doubles as
// the overlay stacking order, every part contributing a layer regardless
// of whether it declares overlay parameters.
func (m *Manager) belowLayerDirs(partIndex int) []string {
	partition := m.defaultPartition()

	dirs := make([]string, 0, partIndex)
	for i := 0; i < partIndex; i++ {
		dirs = append(dirs, m.dirs.PartLayerDir(m.parts[i].Name, partition.Name, partition.IsDefault))
	}
	return dirs
}

// defaultPartition returns the project's default partition descriptor,
// falling back to the unnamed default partition for projects that declare
// none (spec.md §4.3).
func (m *Manager) defaultPartition() parts.Partition {
	if normalized := m.project.NormalizedPartitions(); len(normalized) > 0 {
		return normalized[0]
	}
	return parts.Partition{Name: parts.DefaultPartitionName, IsDefault: true}
}

// overlayPartsDescending returns every declared part that declares overlay
// parameters, in reverse declaration order, alongside its layer directory
// (spec.md §4.5.1 "_Squasher": topmost-declared part migrates first so its
// content wins over a lower layer's).
func (m *Manager) overlayPartsDescending() []parthandler.OverlayPartRef {
	partition := m.defaultPartition()
	var out []parthandler.OverlayPartRef
	for i := len(m.parts) - 1; i >= 0; i-- {
		p := &m.parts[i]
		if !p.HasOverlayParameters() {
			continue
		}
		out = append(out, parthandler.OverlayPartRef{
			Name:     p.Name,
			LayerDir: m.dirs.PartLayerDir(p.Name, partition.Name, partition.IsDefault),
		})
	}
	return out
}

// Clean tears down the persisted state and on-disk output of every
// declared part (or only, if non-empty) from step onward, the direct
// operation behind a "clean" CLI command.
func (m *Manager) Clean(only []string, step steps.Step) error {
	targets := only
	if len(targets) == 0 {
		targets = m.names()
	}

	for _, name := range targets {
		part := m.part(name)
		if part == nil {
			return fmt.Errorf("lifecycle: unknown part %q", name)
		}
		if err := m.handler.CleanStepAndDownstream(part, m.names(), m.overlayPartsDescending(), step); err != nil {
			return fmt.Errorf("lifecycle: cleaning %s from %s: %w", name, step, err)
		}
	}
	return nil
}
