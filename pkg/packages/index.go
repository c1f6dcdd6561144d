// SPDX-License-Identifier: AGPL-3.0-or-later

package packages

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Feature: PACKAGE_INDEX
// Spec: SPEC_FULL.md §4.8 "pkg/packages/index.go"

// Index maps an installed file's path, within a given partition, back to
// the stage package it was extracted from. OCIRepo populates it as it
// unpacks stage packages; ReadOriginStagePackage consults it so PRIME can
// compute primed_stage_packages (spec.md §4.5, §6).
type Index struct {
	db *sql.DB
}

// OpenIndex opens (or creates) the sqlite-backed origin-package index at
// dbPath.
func OpenIndex(dbPath string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate index: %w", err)
	}

	return idx, nil
}

// Close closes the underlying database.
func (i *Index) Close() error {
	return i.db.Close()
}

func (i *Index) migrate() error {
	_, err := i.db.Exec(`
		CREATE TABLE IF NOT EXISTS origin_packages (
			partition    TEXT NOT NULL,
			file_path    TEXT NOT NULL,
			package_name TEXT NOT NULL,
			PRIMARY KEY (partition, file_path)
		)
	`)
	return err
}

// Record associates file (an installed-tree-relative path) in partition
// with the stage package it came from, overwriting any prior association.
func (i *Index) Record(partition, file, packageName string) error {
	_, err := i.db.Exec(
		`INSERT INTO origin_packages (partition, file_path, package_name) VALUES (?, ?, ?)
		 ON CONFLICT(partition, file_path) DO UPDATE SET package_name = excluded.package_name`,
		partition, file, packageName,
	)
	if err != nil {
		return fmt.Errorf("recording origin of %q: %w", file, err)
	}
	return nil
}

// Lookup returns the stage package file was extracted from within
// partition, if the index has a record for it.
func (i *Index) Lookup(partition, file string) (string, bool, error) {
	var packageName string
	err := i.db.QueryRow(
		`SELECT package_name FROM origin_packages WHERE partition = ? AND file_path = ?`,
		partition, file,
	).Scan(&packageName)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up origin of %q: %w", file, err)
	}
	return packageName, true, nil
}
