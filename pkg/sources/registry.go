// SPDX-License-Identifier: AGPL-3.0-or-later

package sources

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Feature: SOURCE_REGISTRY
// Spec: SPEC_FULL.md §4.8 "Default collaborator implementations: pkg/sources"

const registryName = "sources.Registry"

var (
	// ErrEmptySourceType is used when attempting to register a handler
	// under an empty type name.
	ErrEmptySourceType = errors.New("empty source type")
	// ErrDuplicateSourceType is used when attempting to register a
	// handler whose type name is already taken.
	ErrDuplicateSourceType = errors.New("duplicate source type")
)

// Registry holds the set of source handlers a lifecycle manager can
// dispatch PULL to. As with plugins.Registry, there is no package-level
// default registry: every LifecycleManager is handed its own Registry
// explicitly at construction (spec.md §5 "no global mutable state").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Source
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Source)}
}

// Register adds a handler under sourceType. Panics if sourceType is empty
// or already registered.
func (r *Registry) Register(sourceType string, s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sourceType == "" {
		panic(fmt.Sprintf("%s.Register: %v", registryName, ErrEmptySourceType))
	}
	if _, exists := r.handlers[sourceType]; exists {
		panic(fmt.Sprintf("%s.Register: %v: %q", registryName, ErrDuplicateSourceType, sourceType))
	}
	r.handlers[sourceType] = s
}

// Get looks up a handler by source type.
func (r *Registry) Get(sourceType string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.handlers[sourceType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSourceType, sourceType)
	}
	return s, nil
}

// Has reports whether a handler is registered under sourceType.
func (r *Registry) Has(sourceType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[sourceType]
	return ok
}

// Types returns every registered source type, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// NewDefaultRegistry returns a Registry pre-populated with the three
// builtins every project gets without configuration: local, tar, and git.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("local", NewLocalSource())
	r.Register("tar", NewTarSource())
	r.Register("git", NewGitSource())
	return r
}
