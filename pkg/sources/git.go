// SPDX-License-Identifier: AGPL-3.0-or-later

package sources

import (
	"context"
	"fmt"
	"os"

	"partcraft/pkg/executil"
)

// Feature: SOURCE_GIT
// Spec: SPEC_FULL.md §4.8 "pkg/sources builtins: git"

// GitSource pulls a part's source from a git repository by shelling out to
// the git binary with LANG/LC_ALL pinned to C and GIT_ASKPASS cleared, so output
// parsing and non-interactive behavior don't depend on the caller's shell
// configuration.
type GitSource struct {
	runner executil.Runner
}

// NewGitSource builds the "git" source handler using the default Runner.
func NewGitSource() *GitSource {
	return &GitSource{runner: executil.NewRunner()}
}

// NewGitSourceWithRunner builds a "git" source handler using a caller-
// supplied Runner, for tests that stub out the git binary.
func NewGitSourceWithRunner(r executil.Runner) *GitSource {
	return &GitSource{runner: r}
}

func (g *GitSource) Pull(ctx PullContext) error {
	if ctx.Source == "" {
		return fmt.Errorf("git source: empty repository URL for part %q", ctx.PartName)
	}

	if err := os.MkdirAll(ctx.SourceDir, 0o755); err != nil {
		return fmt.Errorf("git source: creating %q: %w", ctx.SourceDir, err)
	}

	depth := ctx.Properties["depth"]
	args := []string{"clone"}
	if depth != "" {
		args = append(args, "--depth", depth)
	}
	args = append(args, ctx.Source, ctx.SourceDir)

	if _, err := g.run(context.Background(), "", args...); err != nil {
		return fmt.Errorf("git source: cloning %q: %w", ctx.Source, err)
	}

	return g.checkout(ctx)
}

// Update fetches and resets the already-cloned repository to the
// configured branch/tag/commit, rather than re-cloning.
func (g *GitSource) Update(ctx PullContext) error {
	if _, err := g.run(context.Background(), ctx.SourceDir, "fetch", "--all", "--tags"); err != nil {
		return fmt.Errorf("git source: fetching %q: %w", ctx.Source, err)
	}
	return g.checkout(ctx)
}

func (g *GitSource) checkout(ctx PullContext) error {
	ref := ctx.Properties["commit"]
	if ref == "" {
		ref = ctx.Properties["tag"]
	}
	if ref == "" {
		ref = ctx.Properties["branch"]
	}
	if ref == "" {
		return nil
	}

	if _, err := g.run(context.Background(), ctx.SourceDir, "checkout", ref); err != nil {
		return fmt.Errorf("git source: checking out %q: %w", ref, err)
	}
	return nil
}

// CheckIfOutdated compares the remote's HEAD commit for the configured
// ref against the commit statePath was last written for.
func (g *GitSource) CheckIfOutdated(ctx PullContext, statePath string) (bool, error) {
	recorded, err := os.ReadFile(statePath) //nolint:gosec // statePath is a caller-controlled work-dir path
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("git source: reading %q: %w", statePath, err)
	}

	result, err := g.run(context.Background(), ctx.SourceDir, "rev-parse", "HEAD")
	if err != nil {
		return false, fmt.Errorf("git source: rev-parse HEAD: %w", err)
	}

	return string(result.Stdout) != string(recorded), nil
}

func (*GitSource) PullSnaps(PullContext) ([]string, error) { return nil, nil }

func (g *GitSource) run(ctx context.Context, dir string, args ...string) (*executil.Result, error) {
	cmd := executil.Command{
		Name: "git",
		Args: args,
		Dir:  dir,
		Env: map[string]string{
			"LANG":        "C",
			"LC_ALL":      "C",
			"GIT_ASKPASS": "",
		},
	}
	return g.runner.Run(ctx, cmd)
}
