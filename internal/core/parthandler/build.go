// SPDX-License-Identifier: AGPL-3.0-or-later

package parthandler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"partcraft/internal/core/actions"
	"partcraft/internal/core/lifecycleerr"
	"partcraft/internal/core/parts"
	"partcraft/internal/core/state"
	"partcraft/internal/core/steps"
	"partcraft/pkg/executil"
	"partcraft/pkg/logging"
	"partcraft/pkg/packages"
	"partcraft/pkg/plugins"
)

// Feature: CORE_PARTHANDLER_BUILD
// Spec: SPEC_FULL.md §4.5 "BUILD"

// runBuild installs build packages, produces a plugin's (or
// override-build's) command list, runs it in the part's build directory,
// and records BuildState, including the overlay LayerHash at build time
// (spec.md §4.6 step 5 "overlay invalidation").
func (h *Handler) runBuild(ctx context.Context, part *parts.Part, typ actions.Type) error {
	if err := h.makeDirs(part.Name); err != nil {
		return err
	}

	var installed []string
	if len(part.BuildPackages) > 0 {
		if h.pkgs == nil {
			return lifecycleerr.New(lifecycleerr.KindStagePackageNotFound, part.Name, steps.Build.String(),
				"build-packages declared but no package repository is configured")
		}
		if err := h.pkgs.InstallBuildPackages(ctx, part.BuildPackages); err != nil {
			if errors.Is(err, packages.ErrNotSupported) {
				h.log.Warn("build package installation not supported by this repository",
					logging.Field{Key: "part", Value: part.Name})
			} else {
				return lifecycleerr.Wrap(lifecycleerr.KindStagePackageNotFound, part.Name, steps.Build.String(),
					"installing build packages", err)
			}
		} else {
			installed = part.BuildPackages
		}
	}

	buildCtx := executil.Command{Dir: h.dirs.PartBuildDir(part.Name), Env: part.BuildEnvironment}

	installDir := h.dirs.PartInstallDir(part.Name, h.defaultPartition().Name, h.defaultPartition().IsDefault)
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Build.String(), "preparing install dir", err)
	}

	commands, err := h.buildCommands(part, installDir)
	if err != nil {
		return lifecycleerr.Wrap(lifecycleerr.KindPluginEnvironmentValidation, part.Name, steps.Build.String(),
			"resolving build commands", err)
	}

	for _, cmd := range commands {
		c := buildCtx
		c.Name = "sh"
		c.Args = []string{"-c", cmd}
		if err := h.runner.RunStream(ctx, c, os.Stderr); err != nil {
			return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Build.String(),
				fmt.Sprintf("running %q", cmd), err)
		}
	}

	if part.OverrideBuild != "" {
		if err := h.runScript(ctx, part.Name, part.OverrideBuild, h.dirs.PartBuildDir(part.Name), part.BuildEnvironment); err != nil {
			return lifecycleerr.Wrap(lifecycleerr.KindBuildError, part.Name, steps.Build.String(), "running override-build", err)
		}
	}

	hash := h.previousLayerHash(part.Name)

	return h.store.Write(part.Name, &state.BuildState{
		PartProps:    part.CanonicalProperties(),
		ProjectProps: h.project.CanonicalProperties(),
		Assets: state.BuildAssets{
			BuildPackages:     part.BuildPackages,
			InstalledPackages: installed,
			Uname:             uname(),
		},
		OverlayHashHex: hash.Hex(),
	})
}

// buildCommands resolves the shell commands BUILD must run, preferring the
// registered plugin; override-build replaces a plugin's commands entirely
// when declared (spec.md §4.5 "override-build").
func (h *Handler) buildCommands(part *parts.Part, installDir string) ([]string, error) {
	if part.OverrideBuild != "" {
		return nil, nil
	}

	plugin, err := h.plugins.Get(part.Plugin)
	if err != nil {
		return nil, err
	}
	if err := plugin.Validate(part.PluginProperties); err != nil {
		return nil, err
	}

	return plugin.BuildCommands(pluginsBuildContext(part, h.dirs, installDir))
}

// uname is a coarse substitute for the real uname(1) output: enough to
// detect a BUILD re-run on a different host/architecture (spec.md §4.6's
// "build-environment" dirtiness check covers declared env vars; this
// covers the host itself changing underneath an existing build dir).
func uname() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// pluginsBuildContext adapts a part and its resolved directories into the
// BuildContext a plugins.Plugin consumes.
func pluginsBuildContext(part *parts.Part, dirs parts.Dirs, installDir string) plugins.BuildContext {
	return plugins.BuildContext{
		PartName:    part.Name,
		SourceDir:   dirs.PartSrcDir(part.Name),
		BuildDir:    dirs.PartBuildDir(part.Name),
		InstallDir:  installDir,
		Properties:  part.PluginProperties,
		Environment: part.BuildEnvironment,
	}
}
