// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import "partcraft/internal/core/steps"

// BuildAssets records what BUILD resolved or installed: build packages,
// and the host's uname at build time (used to detect a changed build
// environment between runs).
type BuildAssets struct {
	BuildPackages     []string `json:"build_packages,omitempty"`
	InstalledPackages []string `json:"installed_packages,omitempty"`
	Uname             string   `json:"uname,omitempty"`
}

// BuildState is the StepState recorded by a successful BUILD.
type BuildState struct {
	PartProps    map[string]string `json:"part_properties"`
	ProjectProps map[string]string `json:"project_options"`
	Assets       BuildAssets       `json:"assets"`

	// OverlayHashHex is the LayerHash this part's overlay layer had when
	// BUILD last ran, used to detect an overlay that changed underneath an
	// already-built part (spec.md §4.6 step 5, "overlay invalidation").
	OverlayHashHex string `json:"overlay_hash,omitempty"`
}

var _ StepState = (*BuildState)(nil)

func (s *BuildState) Step() steps.Step                 { return steps.Build }
func (s *BuildState) PartProperties() map[string]string { return s.PartProps }
func (s *BuildState) ProjectOptions() map[string]string { return s.ProjectProps }

// Contents reports ok=false: BUILD writes to a private install dir, not a
// shared area.
func (s *BuildState) Contents(string) (Contents, bool) { return Contents{}, false }

// RelevantFields are the part attributes a change to which dirties BUILD
// (spec.md §4.6).
func (s *BuildState) RelevantFields() []string {
	fields := []string{"plugin", "build-packages", "build-environment", "organize", "override-build"}
	for k := range s.PartProps {
		if len(k) > len("plugin-properties.") && k[:len("plugin-properties.")] == "plugin-properties." {
			fields = append(fields, k)
		}
	}
	return fields
}
