// SPDX-License-Identifier: AGPL-3.0-or-later

package sources

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Feature: SOURCE_LOCAL
// Spec: SPEC_FULL.md §4.8 "pkg/sources builtins: local"

// LocalSource pulls a part's source from a path on the local filesystem,
// copying it verbatim into the part's source directory. It is the handler
// used when a part's `source:` is a plain directory path.
type LocalSource struct{}

// NewLocalSource builds the "local" source handler.
func NewLocalSource() *LocalSource { return &LocalSource{} }

func (*LocalSource) Pull(ctx PullContext) error {
	if ctx.Source == "" {
		return fmt.Errorf("local source: empty source path for part %q", ctx.PartName)
	}
	return copyTree(ctx.Source, ctx.SourceDir)
}

// Update re-copies the source tree; a local copy has no incremental sync,
// so Update behaves identically to a fresh Pull.
func (l *LocalSource) Update(ctx PullContext) error {
	return l.Pull(ctx)
}

// CheckIfOutdated compares the most recent modification time under
// ctx.Source against statePath's own mtime: a local source is outdated
// whenever something under it changed more recently than the last pull.
func (*LocalSource) CheckIfOutdated(ctx PullContext, statePath string) (bool, error) {
	stateInfo, err := os.Stat(statePath)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("local source: stat state %q: %w", statePath, err)
	}

	newest, err := newestModTime(ctx.Source)
	if err != nil {
		return false, fmt.Errorf("local source: scanning %q: %w", ctx.Source, err)
	}

	return newest.After(stateInfo.ModTime()), nil
}

func (*LocalSource) PullSnaps(PullContext) ([]string, error) { return nil, nil }

// newestModTime returns the most recent modification time of any file or
// directory under root, including root itself.
func newestModTime(root string) (time.Time, error) {
	var newest time.Time
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return newest, err
}

// copyTree recursively copies src into dst, preserving permissions and
// symlinks. Existing entries in dst are overwritten.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			return copySymlink(path, target)
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		default:
			return copyRegularFile(path, target)
		}
	})
}

func copySymlink(src, dst string) error {
	linkTarget, err := os.Readlink(src)
	if err != nil {
		return err
	}
	_ = os.Remove(dst)
	return os.Symlink(linkTarget, dst)
}

func copyRegularFile(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src) //nolint:gosec // source is a caller-provided part source path
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
