// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import "partcraft/internal/core/steps"

// StageState is the StepState recorded by a successful STAGE: the files and
// directories migrated into the shared stage area per partition, plus a
// Backstage record (spec.md §4.3); runStage applies no stage filter and
// leaves Backstage empty.
type StageState struct {
	PartProps      map[string]string   `json:"part_properties"`
	ProjectProps   map[string]string   `json:"project_options"`
	Partitions     map[string]Contents `json:"partitions"`
	Backstage      Contents            `json:"backstage"`
	OverlayHashHex string              `json:"overlay_hash,omitempty"`
}

var _ StepState = (*StageState)(nil)

func (s *StageState) Step() steps.Step                 { return steps.Stage }
func (s *StageState) PartProperties() map[string]string { return s.PartProps }
func (s *StageState) ProjectOptions() map[string]string { return s.ProjectProps }

func (s *StageState) Contents(partition string) (Contents, bool) {
	c, ok := s.Partitions[partition]
	return c, ok
}

// RelevantFields are the part attributes a change to which dirties STAGE
// (spec.md §4.6).
func (s *StageState) RelevantFields() []string {
	return []string{"stage-packages", "stage-snaps", "override-stage"}
}
