// SPDX-License-Identifier: AGPL-3.0-or-later

package parthandler

import (
	"os"
	"path/filepath"
)

// Feature: CORE_PARTHANDLER_WALK
// Spec: SPEC_FULL.md §4.5 "recording per-step shared-area contents"

// makeDir creates dir, including any missing parents.
func makeDir(dir string) error { return os.MkdirAll(dir, 0o755) }

// filepathWalk walks root, calling fn with each entry's path relative to
// root and whether it is a directory. Missing root is treated as empty.
func filepathWalk(root string, fn func(rel string, isDir bool)) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		fn(rel, info.IsDir())
		return nil
	})
}
