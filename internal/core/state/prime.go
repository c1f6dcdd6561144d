// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import "partcraft/internal/core/steps"

// PrimeState is the StepState recorded by a successful PRIME: the files and
// directories migrated into the shared prime area per partition, plus the
// subset of staged stage-packages that actually made it into prime (used to
// build the final manifest, spec.md §4.3's "primed stage packages").
type PrimeState struct {
	PartProps           map[string]string   `json:"part_properties"`
	ProjectProps        map[string]string   `json:"project_options"`
	Partitions          map[string]Contents `json:"partitions"`
	PrimedStagePackages []string            `json:"primed_stage_packages,omitempty"`
}

var _ StepState = (*PrimeState)(nil)

func (s *PrimeState) Step() steps.Step                 { return steps.Prime }
func (s *PrimeState) PartProperties() map[string]string { return s.PartProps }
func (s *PrimeState) ProjectOptions() map[string]string { return s.ProjectProps }

func (s *PrimeState) Contents(partition string) (Contents, bool) {
	c, ok := s.Partitions[partition]
	return c, ok
}

// RelevantFields are the part attributes a change to which dirties PRIME
// (spec.md §4.6).
func (s *PrimeState) RelevantFields() []string {
	return []string{"override-prime"}
}
