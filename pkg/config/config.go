// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads a partcraft.yml project declaration: the project-
// wide options and the parts list a lifecycle.Manager runs (spec.md §6.1
// "Configuration").
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"partcraft/internal/core/parts"
)

// Feature: CORE_CONFIG
// Spec: SPEC_FULL.md §6.1 "Configuration"

// ErrConfigNotFound is returned when the config file does not exist at the
// given path.
var ErrConfigNotFound = errors.New("partcraft config not found")

// Config is the on-disk shape of a partcraft.yml: project-wide options
// inlined at the top level, alongside the declared parts list.
type Config struct {
	Arch       string            `yaml:"arch,omitempty"`
	Variables  map[string]string `yaml:"variables,omitempty"`
	Partitions []parts.Partition `yaml:"partitions,omitempty"`
	Parts      []parts.Part      `yaml:"parts"`
}

// ProjectOptions builds the parts.ProjectOptions this config describes,
// rooted at workRoot (not itself part of the YAML schema: it is supplied
// by whatever invokes the loader, typically the CLI's --work-dir flag).
func (c *Config) ProjectOptions(workRoot string) parts.ProjectOptions {
	return parts.ProjectOptions{
		Arch:       c.Arch,
		Variables:  c.Variables,
		WorkRoot:   workRoot,
		Partitions: c.Partitions,
	}
}

// DefaultConfigPath returns the default config path for the current
// working directory.
func DefaultConfigPath() string {
	return "partcraft.yml"
}

// Exists reports whether a config file exists at the given path. It
// returns (false, nil) if the file does not exist.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Load reads, parses, and validates the config at path.
//
// It returns ErrConfigNotFound if the file does not exist.
func Load(path string) (*Config, error) {
	exists, err := Exists(path)
	if err != nil {
		return nil, fmt.Errorf("checking config existence: %w", err)
	}
	if !exists {
		return nil, ErrConfigNotFound
	}

	// nolint:gosec // G304: reading config file from user-specified path is expected behavior
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if len(cfg.Parts) == 0 {
		return errors.New("config: at least one part is required")
	}

	seen := make(map[string]bool, len(cfg.Parts))
	for _, p := range cfg.Parts {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if seen[p.Name] {
			return fmt.Errorf("config: duplicate part name %q", p.Name)
		}
		seen[p.Name] = true
	}
	for _, p := range cfg.Parts {
		for _, dep := range p.After {
			if !seen[dep] {
				return fmt.Errorf("config: part %q declares after %q, which is not declared", p.Name, dep)
			}
		}
	}

	for i, part := range cfg.Partitions {
		if part.Name == "" {
			return fmt.Errorf("config: partitions[%d]: name must be non-empty", i)
		}
	}

	return nil
}
