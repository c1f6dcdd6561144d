// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"partcraft/internal/core/parts"
	"partcraft/internal/core/steps"
)

// Store persists StepState and MigrationState records under a work root's
// "parts/<name>/state" and "overlay/<partition>" directories (spec.md §6).
// Store is safe for concurrent use within a single process; state is not
// safe for concurrent modification from multiple processes.
type Store struct {
	dirs parts.Dirs
	mu   sync.Mutex
}

// NewStore builds a Store rooted at dirs.
func NewStore(dirs parts.Dirs) *Store {
	return &Store{dirs: dirs}
}

// Write persists a part's state for the step it reports.
func (s *Store) Write(partName string, st StepState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.dirs.StateStepPath(partName, st.Step().String()), st)
}

// Load reads back a part's recorded state for step, or returns (nil, nil)
// if no state was ever recorded (the step has not run).
func (s *Store) Load(partName string, step steps.Step) (StepState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.dirs.StateStepPath(partName, step.String())
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is derived from a trusted work root
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s state for part %q: %w", step, partName, err)
	}

	var st StepState
	switch step {
	case steps.Pull:
		st = &PullState{}
	case steps.Overlay:
		st = &OverlayState{}
	case steps.Build:
		st = &BuildState{}
	case steps.Stage:
		st = &StageState{}
	case steps.Prime:
		st = &PrimeState{}
	default:
		return nil, fmt.Errorf("unknown step %v", step)
	}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parsing %s state for part %q: %w", step, partName, err)
	}
	return st, nil
}

// Remove deletes a part's recorded state for step, if any.
func (s *Store) Remove(partName string, step steps.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.dirs.StateStepPath(partName, step.String()))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Exists reports whether state was recorded for (partName, step).
func (s *Store) Exists(partName string, step steps.Step) bool {
	_, err := os.Stat(s.dirs.StateStepPath(partName, step.String()))
	return err == nil
}

// WriteMigration persists an overlay MigrationState at the well-known path
// for (partition, target step).
func (s *Store) WriteMigration(partition string, isDefault bool, targetStep steps.Step, st MigrationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.dirs.OverlayMigrationStatePath(partition, isDefault, targetStep.String())
	return writeJSON(path, st)
}

// LoadMigration reads back a previously written MigrationState, returning
// ok=false if nothing was migrated yet.
func (s *Store) LoadMigration(partition string, isDefault bool, targetStep steps.Step) (MigrationState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.dirs.OverlayMigrationStatePath(partition, isDefault, targetStep.String())
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is derived from a trusted work root
	if errors.Is(err, os.ErrNotExist) {
		return MigrationState{}, false, nil
	}
	if err != nil {
		return MigrationState{}, false, fmt.Errorf("reading overlay migration state %q: %w", path, err)
	}
	var st MigrationState
	if err := json.Unmarshal(data, &st); err != nil {
		return MigrationState{}, false, fmt.Errorf("parsing overlay migration state %q: %w", path, err)
	}
	return st, true, nil
}

// RemoveMigration deletes a previously written MigrationState, if any.
func (s *Store) RemoveMigration(partition string, isDefault bool, targetStep steps.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.dirs.OverlayMigrationStatePath(partition, isDefault, targetStep.String()))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// writeJSON marshals v and writes it atomically (write to a temp file in
// the same directory, then rename), matching the on-disk durability the
// rest of the work root relies on.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating state directory %q: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	tmp := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing temporary state file %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming state file %q: %w", path, err)
	}
	return nil
}
