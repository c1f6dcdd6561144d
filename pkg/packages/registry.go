// SPDX-License-Identifier: AGPL-3.0-or-later

package packages

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Feature: PACKAGE_REGISTRY
// Spec: SPEC_FULL.md §4.8 "Default collaborator implementations: pkg/packages"

const registryName = "packages.Registry"

var (
	// ErrEmptyRepositoryName is used when attempting to register a
	// repository under an empty name.
	ErrEmptyRepositoryName = errors.New("empty repository name")
	// ErrDuplicateRepository is used when attempting to register a
	// repository whose name is already taken.
	ErrDuplicateRepository = errors.New("duplicate repository name")
	// ErrUnknownRepository is returned when a project names a
	// repository no registry collaborator provides.
	ErrUnknownRepository = errors.New("unknown package repository")
)

// Registry holds the set of package repositories a lifecycle manager can
// consult. As with plugins.Registry and sources.Registry, there is no
// package-level default registry: every LifecycleManager is handed its
// own Registry explicitly at construction (spec.md §5 "no global mutable
// state").
type Registry struct {
	mu    sync.RWMutex
	repos map[string]Repository
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{repos: make(map[string]Repository)}
}

// Register adds a repository under name. Panics if name is empty or
// already registered.
func (r *Registry) Register(name string, repo Repository) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		panic(fmt.Sprintf("%s.Register: %v", registryName, ErrEmptyRepositoryName))
	}
	if _, exists := r.repos[name]; exists {
		panic(fmt.Sprintf("%s.Register: %v: %q", registryName, ErrDuplicateRepository, name))
	}
	r.repos[name] = repo
}

// Get looks up a repository by name.
func (r *Registry) Get(name string) (Repository, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	repo, ok := r.repos[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRepository, name)
	}
	return repo, nil
}

// Names returns every registered repository name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.repos))
	for n := range r.repos {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
