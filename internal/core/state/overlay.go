// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import "partcraft/internal/core/steps"

// OverlayState is the StepState recorded by a successful OVERLAY: the
// layer's content per partition and the LayerHash chained over this part's
// overlay parameters and the layer below it (spec.md §4.2).
type OverlayState struct {
	PartProps    map[string]string   `json:"part_properties"`
	ProjectProps map[string]string   `json:"project_options"`
	Partitions   map[string]Contents `json:"partitions"`
	LayerHashHex string              `json:"layer_hash"`
}

var _ StepState = (*OverlayState)(nil)

func (s *OverlayState) Step() steps.Step                 { return steps.Overlay }
func (s *OverlayState) PartProperties() map[string]string { return s.PartProps }
func (s *OverlayState) ProjectOptions() map[string]string { return s.ProjectProps }

func (s *OverlayState) Contents(partition string) (Contents, bool) {
	c, ok := s.Partitions[partition]
	return c, ok
}

// RelevantFields are the part attributes a change to which dirties OVERLAY
// (spec.md §4.6).
func (s *OverlayState) RelevantFields() []string {
	return []string{"overlay-packages", "overlay-files", "override-overlay", "overlay-visibility"}
}
