// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sequencer expands a declared parts list into an ordered list of
// actions for a target step, classifying each required (part, step) pair
// as RUN/RERUN/UPDATE/REAPPLY/SKIP (spec.md §4.6).
package sequencer

import (
	"fmt"
	"sort"

	"partcraft/internal/core/actions"
	"partcraft/internal/core/layerhash"
	"partcraft/internal/core/parts"
	"partcraft/internal/core/state"
	"partcraft/internal/core/steps"
)

// Feature: CORE_SEQUENCER
// Spec: SPEC_FULL.md §4.6 "Sequencer"

// SourceOutdatedChecker reports whether a part's already-pulled source is
// stale relative to its origin (spec.md §4.6 step 4 "PULL: the source
// handler's check_if_outdated"). The sequencer takes this as a thin
// callback rather than depending on pkg/sources directly, keeping
// internal/core free of any dependency on the external collaborator
// packages (spec.md §1 "out of scope ... remain named-only collaborator
// contracts").
type SourceOutdatedChecker func(partName string) (bool, error)

// Sequencer computes ordered action lists against a persisted state store.
type Sequencer struct {
	store          *state.Store
	sourceOutdated SourceOutdatedChecker
}

// New builds a Sequencer backed by store. checker may be nil, in which
// case PULL is never classified UPDATE on staleness grounds alone.
func New(store *state.Store, checker SourceOutdatedChecker) *Sequencer {
	return &Sequencer{store: store, sourceOutdated: checker}
}

// requirement records why a (part, step) pair was pulled in beyond
// what its own target requirement would need.
type requirement struct {
	step   steps.Step
	reason string // empty when the requirement comes from the part's own target
}

// Plan computes the ordered action list for bringing every part in
// declared (declaration order) up to target, restricted to only (or every
// part, if only is empty).
func (s *Sequencer) Plan(declared []parts.Part, target steps.Step, only []string) ([]actions.Action, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("sequencer: invalid target step %v", target)
	}

	byName := make(map[string]*parts.Part, len(declared))
	index := make(map[string]int, len(declared))
	for i := range declared {
		p := &declared[i]
		byName[p.Name] = p
		index[p.Name] = i
	}

	targetSet := make(map[string]bool)
	if len(only) == 0 {
		for _, p := range declared {
			targetSet[p.Name] = true
		}
	} else {
		for _, n := range only {
			if _, ok := byName[n]; !ok {
				return nil, fmt.Errorf("sequencer: unknown part %q", n)
			}
			targetSet[n] = true
		}
	}

	required := make(map[string]requirement, len(declared))
	for name := range targetSet {
		required[name] = requirement{step: target}
	}

	if err := s.expandDependencies(declared, byName, index, required); err != nil {
		return nil, err
	}

	layerHashes := layerhash.ChainForParts(declared)

	// Only parts named in only are explicitly requested: their clean target
	// step is RERUN instead of SKIPped.
	requested := targetSet
	if len(only) == 0 {
		requested = nil
	}

	return s.classifyAll(declared, index, required, requested, target, layerHashes)
}

// expandDependencies applies spec.md §4.6 steps 1-3 to a fixed point:
// overlay dependency expansion, overlay-visibility expansion, and
// after-dependency expansion each can, in turn, pull in parts that
// trigger another round.
func (s *Sequencer) expandDependencies(
	declared []parts.Part,
	byName map[string]*parts.Part,
	index map[string]int,
	required map[string]requirement,
) error {
	for pass := 0; pass < len(declared)+1; pass++ {
		changed := false

		for name, req := range required {
			p := byName[name]

			if req.step >= steps.Overlay {
				for _, other := range declared {
					if index[other.Name] >= index[name] {
						continue
					}
					if bumped := bump(required, other.Name, steps.Overlay,
						fmt.Sprintf("required to overlay '%s'", name)); bumped {
						changed = true
					}
				}
			}

			if p.OverlayVisibility {
				if req.step >= steps.Build {
					for _, other := range declared {
						if other.Name == name {
							continue
						}
						if bump(required, other.Name, steps.Overlay,
							fmt.Sprintf("required to build '%s'", name)) {
							changed = true
						}
					}
				}
				if req.step >= steps.Stage {
					for _, other := range declared {
						if other.Name == name {
							continue
						}
						if bump(required, other.Name, steps.Overlay,
							fmt.Sprintf("required to stage '%s'", name)) {
							changed = true
						}
					}
				}
			}

			if req.step >= steps.Build {
				for _, dep := range p.After {
					if _, ok := byName[dep]; !ok {
						return fmt.Errorf("sequencer: part %q declares after %q, which is not declared", name, dep)
					}
					if bump(required, dep, steps.Stage,
						fmt.Sprintf("required to build '%s'", name)) {
						changed = true
					}
				}
			}
		}

		if !changed {
			break
		}
	}

	return nil
}

// bump raises required[name] to at least step, recording reason only if
// this addition goes beyond what name's own requirement already covered.
// Returns true if it changed anything (a signal to keep iterating).
func bump(required map[string]requirement, name string, step steps.Step, reason string) bool {
	cur, exists := required[name]
	if exists && cur.step >= step {
		return false
	}
	next := requirement{step: step}
	if !exists || cur.step < step {
		next.reason = reason
	}
	required[name] = next
	return true
}

// classifyAll walks every required (part, step) pair in step-major,
// then-declaration order, classifying each one.
//
// spec.md §4.6 step 5 describes inserting dependency-introduced actions
// immediately before the action that required them. This implementation
// instead orders step-major across all parts, which still satisfies
// invariant 1 (per-part step order is non-decreasing) and keeps the
// algorithm free of a second dependency graph just for display ordering;
// see DESIGN.md for the tradeoff.
func (s *Sequencer) classifyAll(
	declared []parts.Part,
	index map[string]int,
	required map[string]requirement,
	targetSet map[string]bool,
	target steps.Step,
	layerHashes map[string]layerhash.Hash,
) ([]actions.Action, error) {
	byName := make(map[string]*parts.Part, len(declared))
	for i := range declared {
		byName[declared[i].Name] = &declared[i]
	}

	rerunOverlay := make(map[string]bool)

	var out []actions.Action
	for _, step := range steps.All {
		names := make([]string, 0, len(required))
		for name, req := range required {
			if req.step >= step {
				names = append(names, name)
			}
		}
		sort.Slice(names, func(i, j int) bool { return index[names[i]] < index[names[j]] })

		for _, name := range names {
			p := byName[name]
			req := required[name]

			act, err := s.classifyOne(p, index[name], step, req, targetSet, target, layerHashes, index, rerunOverlay)
			if err != nil {
				return nil, err
			}
			if step == steps.Overlay && (act.Type == actions.Rerun || act.Type == actions.Run) {
				rerunOverlay[name] = true
			}
			out = append(out, act)
		}
	}

	return out, nil
}

func (s *Sequencer) classifyOne(
	p *parts.Part,
	partIndex int,
	step steps.Step,
	req requirement,
	targetSet map[string]bool,
	target steps.Step,
	layerHashes map[string]layerhash.Hash,
	index map[string]int,
	rerunOverlay map[string]bool,
) (actions.Action, error) {
	st, err := s.store.Load(p.Name, step)
	if err != nil {
		return actions.Action{}, fmt.Errorf("sequencer: loading state for %s:%s: %w", p.Name, step, err)
	}

	if st == nil {
		return actions.Action{PartName: p.Name, Step: step, Type: actions.Run, Reason: req.reason}, nil
	}

	current := p.CanonicalProperties()
	if field, dirty := state.ChangedField(st, current); dirty {
		reason := fmt.Sprintf("'%s' property changed", field)
		if req.reason != "" {
			reason = req.reason
		}
		return actions.Action{PartName: p.Name, Step: step, Type: actions.Rerun, Reason: reason}, nil
	}

	switch step {
	case steps.Pull:
		if s.sourceOutdated != nil {
			outdated, err := s.sourceOutdated(p.Name)
			if err != nil {
				return actions.Action{}, fmt.Errorf("sequencer: checking source staleness for %s: %w", p.Name, err)
			}
			if outdated {
				reason := "upstream source changed"
				if req.reason != "" {
					reason = req.reason
				}
				return actions.Action{PartName: p.Name, Step: step, Type: actions.Update, Reason: reason}, nil
			}
		}
	case steps.Build:
		if bs, ok := st.(*state.BuildState); ok {
			if hash := layerHashes[p.Name]; bs.OverlayHashHex != "" && bs.OverlayHashHex != hash.Hex() {
				reason := "overlay changed"
				if req.reason != "" {
					reason = req.reason
				}
				return actions.Action{PartName: p.Name, Step: step, Type: actions.Rerun, Reason: reason}, nil
			}
		}
	}

	if step == steps.Overlay && overlayBelowChanged(partIndex, index, rerunOverlay) {
		reason := "previous layer changed"
		if req.reason != "" {
			reason = req.reason
		}
		return actions.Action{PartName: p.Name, Step: step, Type: actions.Reapply, Reason: reason}, nil
	}

	if req.reason == "" && targetSet[p.Name] && step == target {
		return actions.Action{PartName: p.Name, Step: step, Type: actions.Rerun, Reason: "requested step"}, nil
	}

	reason := "already ran"
	if req.reason != "" {
		reason = req.reason
	}
	return actions.Action{PartName: p.Name, Step: step, Type: actions.Skip, Reason: reason}, nil
}

// overlayBelowChanged reports whether any part below partIndex in
// declaration order had its overlay RUN or RERUN this plan, meaning the
// part at partIndex must reapply its own overlay even though its own
// overlay inputs haven't changed (spec.md §4.6 step 4 "OVERLAY of a lower
// layer reran").
func overlayBelowChanged(partIndex int, index map[string]int, rerunOverlay map[string]bool) bool {
	for name, changed := range rerunOverlay {
		if changed && index[name] < partIndex {
			return true
		}
	}
	return false
}
