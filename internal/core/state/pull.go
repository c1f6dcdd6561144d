// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import "partcraft/internal/core/steps"

// PullAssets records what PULL fetched for a part: stage/build packages and
// snaps resolved at pull time, plus the resolved source description (e.g. a
// git commit, a tarball checksum).
type PullAssets struct {
	StagePackages []string `json:"stage_packages,omitempty"`
	StageSnaps    []string `json:"stage_snaps,omitempty"`
	SourceDetails string   `json:"source_details,omitempty"`
}

// PullState is the StepState recorded by a successful PULL.
type PullState struct {
	PartProps    map[string]string `json:"part_properties"`
	ProjectProps map[string]string `json:"project_options"`
	Assets       PullAssets        `json:"assets"`
}

var _ StepState = (*PullState)(nil)

func (s *PullState) Step() steps.Step                 { return steps.Pull }
func (s *PullState) PartProperties() map[string]string { return s.PartProps }
func (s *PullState) ProjectOptions() map[string]string { return s.ProjectProps }

// Contents reports ok=false: PULL does not migrate files into a shared area.
func (s *PullState) Contents(string) (Contents, bool) { return Contents{}, false }

// RelevantFields are the part attributes a change to which dirties PULL
// (spec.md §4.6): where it comes from and what it fetches.
func (s *PullState) RelevantFields() []string {
	return []string{"source", "source-type", "stage-packages", "stage-snaps", "override-pull"}
}
