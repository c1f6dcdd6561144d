// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plugins defines the contract a part's BUILD step delegates to,
// the registry lifecycle managers use to look plugins up by name, and the
// three built-in plugins every project gets without configuration
// (spec.md §4.8).
package plugins

import "fmt"

// Feature: PLUGIN_CONTRACT
// Spec: SPEC_FULL.md §4.8 "Default collaborator implementations: pkg/plugins"

// BuildContext is everything a plugin needs to produce a part's build
// commands: its resolved work directories and declared properties.
type BuildContext struct {
	PartName    string
	SourceDir   string
	BuildDir    string
	InstallDir  string
	Properties  map[string]string
	Environment map[string]string
}

// Plugin turns a part's plugin-properties into the shell commands BUILD
// runs. Plugins never touch the filesystem directly: they only produce a
// script, which the part handler executes the same way it executes
// override-build (spec.md §4.6's "plugin-properties.* fields dirty BUILD"
// depends on this: the plugin is just another source of build commands).
type Plugin interface {
	// ID is the plugin name as used in a part's `plugin:` field.
	ID() string

	// Validate checks the plugin-properties declared for a part using
	// this plugin are well-formed, before BUILD ever runs.
	Validate(properties map[string]string) error

	// BuildCommands returns the shell commands BUILD should run, in
	// order, for ctx.
	BuildCommands(ctx BuildContext) ([]string, error)
}

// ErrUnknownPlugin is returned when a part names a plugin no registry
// collaborator provides.
var ErrUnknownPlugin = fmt.Errorf("unknown plugin")
