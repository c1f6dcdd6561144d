// SPDX-License-Identifier: AGPL-3.0-or-later

package parts

import "sort"

// Feature: CORE_PROJECT_OPTIONS
// Spec: SPEC_FULL.md §3.1 "Ambient additions to the data model"

// Partition is a named output target. The first entry of
// ProjectOptions.Partitions is the default partition (spec.md GLOSSARY).
type Partition struct {
	Name      string `yaml:"name" json:"name"`
	IsDefault bool   `yaml:"-" json:"is_default"`
}

// DefaultPartitionName is used when a project declares no partitions.
const DefaultPartitionName = "default"

// ProjectOptions carries project-wide inputs shared by every part: the
// target architecture, free-form variables ("custom args", spec.md §9), the
// work root, and the declared partitions.
type ProjectOptions struct {
	Arch       string            `yaml:"arch" json:"arch"`
	Variables  map[string]string `yaml:"variables,omitempty" json:"variables,omitempty"`
	WorkRoot   string            `yaml:"-" json:"work_root"`
	Partitions []Partition       `yaml:"partitions,omitempty" json:"partitions,omitempty"`
}

// Get returns a project variable by name (spec.md §9: "custom args" are a
// typed mapping accessible via get(name), not shadow attributes).
func (o *ProjectOptions) Get(name string) (string, bool) {
	v, ok := o.Variables[name]
	return v, ok
}

// NormalizedPartitions returns the declared partitions, defaulting to a
// single implicit "default" partition when none were declared, with the
// first entry always marked IsDefault.
func (o *ProjectOptions) NormalizedPartitions() []Partition {
	if len(o.Partitions) == 0 {
		return []Partition{{Name: DefaultPartitionName, IsDefault: true}}
	}
	out := make([]Partition, len(o.Partitions))
	copy(out, o.Partitions)
	out[0].IsDefault = true
	for i := 1; i < len(out); i++ {
		out[i].IsDefault = false
	}
	return out
}

// DefaultPartition returns the project's default partition name.
func (o *ProjectOptions) DefaultPartition() string {
	return o.NormalizedPartitions()[0].Name
}

// CanonicalProperties renders project-wide options deterministically, used
// alongside Part.CanonicalProperties() in StepState snapshots.
func (o *ProjectOptions) CanonicalProperties() map[string]string {
	props := map[string]string{"arch": o.Arch}
	keys := make([]string, 0, len(o.Variables))
	for k := range o.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		props["variables."+k] = o.Variables[k]
	}
	return props
}
