// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"

	"partcraft/internal/core/lifecycle"
	"partcraft/pkg/config"
	"partcraft/pkg/executil"
	"partcraft/pkg/logging"
	"partcraft/pkg/overlay"
	"partcraft/pkg/plugins"
	"partcraft/pkg/sources"
)

// buildManager loads cfg's parts under flags.WorkDir and wires the default
// collaborator registries into a lifecycle.Manager, the one the CLI's
// plan/run/clean commands all share.
func buildManager(flags *ResolvedFlags, cfg *config.Config, log logging.Logger) (*lifecycle.Manager, error) {
	m, err := lifecycle.New(lifecycle.Config{
		WorkRoot: flags.WorkDir,
		Project:  cfg.ProjectOptions(flags.WorkDir),
		Parts:    cfg.Parts,
		Plugins:  plugins.NewDefaultRegistry(),
		Sources:  sources.NewDefaultRegistry(),
		Packages: nil,
		Driver:   overlay.NewLinuxDriver(),
		Runner:   executil.NewRunner(),
		Log:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("building lifecycle manager: %w", err)
	}
	return m, nil
}

// loadConfig loads the project config at flags.Config, translating a
// missing file into a CLI-friendly message.
func loadConfig(flags *ResolvedFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.Config)
	if err != nil {
		if err == config.ErrConfigNotFound {
			return nil, fmt.Errorf("partcraft config not found at %s", flags.Config)
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
