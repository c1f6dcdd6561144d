// SPDX-License-Identifier: AGPL-3.0-or-later

package plugins

import "fmt"

// Feature: PLUGIN_BUILTINS
// Spec: SPEC_FULL.md §4.8 "Default collaborator implementations: pkg/plugins"

// NilPlugin is the plugin for a part with no build step of its own: its
// source, once pulled, is already what should be staged (e.g. a part that
// exists purely to declare stage-packages, or whose install dir is
// entirely populated by override-build).
type NilPlugin struct{}

// NewNilPlugin builds the "nil" plugin.
func NewNilPlugin() *NilPlugin { return &NilPlugin{} }

func (*NilPlugin) ID() string { return "nil" }

func (*NilPlugin) Validate(map[string]string) error { return nil }

func (*NilPlugin) BuildCommands(BuildContext) ([]string, error) { return nil, nil }

// DumpPlugin copies the part's source directory into its install directory
// verbatim, preserving permissions and symlinks. It is the plugin for parts
// whose source is already laid out the way it should be staged (pre-built
// binaries, static assets).
type DumpPlugin struct{}

// NewDumpPlugin builds the "dump" plugin.
func NewDumpPlugin() *DumpPlugin { return &DumpPlugin{} }

func (*DumpPlugin) ID() string { return "dump" }

func (*DumpPlugin) Validate(map[string]string) error { return nil }

func (*DumpPlugin) BuildCommands(ctx BuildContext) ([]string, error) {
	return []string{
		fmt.Sprintf("cp --archive --link --no-dereference %s/. %s/", shellQuote(ctx.SourceDir), shellQuote(ctx.InstallDir)),
	}, nil
}

// MakePlugin runs GNU make, then a make install targeting the part's
// install directory, optionally with extra build/install arguments.
type MakePlugin struct{}

// NewMakePlugin builds the "make" plugin.
func NewMakePlugin() *MakePlugin { return &MakePlugin{} }

func (*MakePlugin) ID() string { return "make" }

func (*MakePlugin) Validate(properties map[string]string) error {
	// make-parameters / make-install-parameters are free-form argument
	// strings; anything is structurally valid.
	_ = properties
	return nil
}

func (*MakePlugin) BuildCommands(ctx BuildContext) ([]string, error) {
	buildArgs := ctx.Properties["make-parameters"]
	installArgs := ctx.Properties["make-install-parameters"]

	makeCmd := "make -j" + numJobs(ctx)
	if buildArgs != "" {
		makeCmd += " " + buildArgs
	}

	installCmd := fmt.Sprintf("make install DESTDIR=%s", shellQuote(ctx.InstallDir))
	if installArgs != "" {
		installCmd += " " + installArgs
	}

	return []string{makeCmd, installCmd}, nil
}

func numJobs(ctx BuildContext) string {
	if n := ctx.Environment["PARTCRAFT_PARALLEL_BUILD_COUNT"]; n != "" {
		return n
	}
	return "1"
}

// shellQuote wraps s in single quotes for safe use as a single shell word,
// escaping any single quote already present.
func shellQuote(s string) string {
	out := "'"
	for _, r := range s {
		if r == '\'' {
			out += `'\''`
			continue
		}
		out += string(r)
	}
	return out + "'"
}
