// SPDX-License-Identifier: AGPL-3.0-or-later

// Package parts holds the declarative Part and ProjectOptions data model
// and the derived on-disk directory layout described in spec.md §3 and §6.
package parts

import (
	"fmt"
	"sort"
	"strings"
)

// Feature: CORE_PARTS
// Spec: SPEC_FULL.md §3 "Part"

// Permission describes a filesystem permission override applied while
// migrating files (spec.md §4.3 migrate_files "permissions").
type Permission struct {
	Path  string `yaml:"path" json:"path"`
	Owner *int   `yaml:"owner,omitempty" json:"owner,omitempty"`
	Group *int   `yaml:"group,omitempty" json:"group,omitempty"`
	Mode  string `yaml:"mode,omitempty" json:"mode,omitempty"`
}

// Part is a single declared unit of work with its own pull/build/stage/prime
// lifecycle.
type Part struct {
	Name string `yaml:"name" json:"name"`

	Plugin           string            `yaml:"plugin" json:"plugin"`
	PluginProperties map[string]string `yaml:"plugin-properties,omitempty" json:"plugin_properties,omitempty"`

	Source     string `yaml:"source,omitempty" json:"source,omitempty"`
	SourceType string `yaml:"source-type,omitempty" json:"source_type,omitempty"`

	After []string `yaml:"after,omitempty" json:"after,omitempty"`

	BuildPackages   []string `yaml:"build-packages,omitempty" json:"build_packages,omitempty"`
	StagePackages   []string `yaml:"stage-packages,omitempty" json:"stage_packages,omitempty"`
	StageSnaps      []string `yaml:"stage-snaps,omitempty" json:"stage_snaps,omitempty"`
	OverlayPackages []string `yaml:"overlay-packages,omitempty" json:"overlay_packages,omitempty"`

	OverlayFiles      []string `yaml:"overlay-files,omitempty" json:"overlay_files,omitempty"`
	OverrideOverlay   string   `yaml:"override-overlay,omitempty" json:"override_overlay,omitempty"`
	OverlayVisibility bool     `yaml:"overlay-visibility,omitempty" json:"overlay_visibility,omitempty"`

	OverridePull  string `yaml:"override-pull,omitempty" json:"override_pull,omitempty"`
	OverrideBuild string `yaml:"override-build,omitempty" json:"override_build,omitempty"`
	OverrideStage string `yaml:"override-stage,omitempty" json:"override_stage,omitempty"`
	OverridePrime string `yaml:"override-prime,omitempty" json:"override_prime,omitempty"`

	// OrganizeFiles maps a source glob (relative to the install dir) to a
	// destination rename.
	OrganizeFiles     map[string]string `yaml:"organize,omitempty" json:"organize,omitempty"`
	BuildEnvironment  map[string]string `yaml:"build-environment,omitempty" json:"build_environment,omitempty"`
	Permissions       []Permission      `yaml:"permissions,omitempty" json:"permissions,omitempty"`
}

// HasOverlayParameters reports whether this part declares any overlay
// parameter (spec.md §4.6 step 2): overlay packages, an override-overlay
// scriptlet, an overlay file filter, or overlay visibility.
func (p *Part) HasOverlayParameters() bool {
	return len(p.OverlayPackages) > 0 ||
		p.OverrideOverlay != "" ||
		len(p.OverlayFiles) > 0 ||
		p.OverlayVisibility
}

// Validate checks the minimal structural invariants of a part declaration.
func (p *Part) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("part has empty name")
	}
	if strings.TrimSpace(p.Plugin) == "" {
		return fmt.Errorf("part %q: plugin is required", p.Name)
	}
	return nil
}

// sortedCopy returns a sorted copy of ss, leaving the input untouched.
func sortedCopy(ss []string) []string {
	out := append([]string(nil), ss...)
	sort.Strings(out)
	return out
}

// CanonicalProperties renders the part's declared attributes as a
// deterministic, sorted string map. This is the "canonical dict of part
// attributes" spec.md §3 says every StepState snapshots as
// `part_properties`; equality of two canonical forms is the dirtiness
// check used throughout the sequencer (spec.md §4.6 step 4, "a field
// relevant to this step").
func (p *Part) CanonicalProperties() map[string]string {
	props := map[string]string{
		"plugin":             p.Plugin,
		"source":             p.Source,
		"source-type":        p.SourceType,
		"override-pull":      p.OverridePull,
		"override-build":     p.OverrideBuild,
		"override-stage":     p.OverrideStage,
		"override-prime":     p.OverridePrime,
		"override-overlay":   p.OverrideOverlay,
		"overlay-visibility": fmt.Sprintf("%t", p.OverlayVisibility),
		"build-packages":     joinSorted(p.BuildPackages),
		"stage-packages":     joinSorted(p.StagePackages),
		"stage-snaps":        joinSorted(p.StageSnaps),
		"overlay-packages":   joinSorted(p.OverlayPackages),
		"overlay-files":      joinSorted(p.OverlayFiles),
		"after":              joinSorted(p.After),
		"organize":           joinSortedMap(p.OrganizeFiles),
		"build-environment":  joinSortedMap(p.BuildEnvironment),
	}
	for k, v := range p.PluginProperties {
		props["plugin-properties."+k] = v
	}
	return props
}

func joinSorted(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return strings.Join(sortedCopy(ss), "\x1f")
}

func joinSortedMap(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, "\x1f")
}
