// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lifecycleerr defines the typed error taxonomy PartHandler and
// LifecycleManager raise (spec.md §7).
package lifecycleerr

import "fmt"

// Feature: CORE_ERRORS
// Spec: SPEC_FULL.md §7 "Error handling design"

// Kind classifies a lifecycle error, printed as the bracketed prefix of
// Error.Error() ("[kind] part/step: message").
type Kind string

const (
	KindInvalidArchitecture             Kind = "invalid_architecture"
	KindFeatureError                    Kind = "feature_error"
	KindStagePackageNotFound            Kind = "stage_package_not_found"
	KindOverlayPackageNotFound          Kind = "overlay_package_not_found"
	KindInvalidAction                   Kind = "invalid_action"
	KindEnvironmentChanged              Kind = "environment_changed"
	KindPluginEnvironmentValidation     Kind = "plugin_environment_validation"
	KindOverlayMountError               Kind = "overlay_mount_error"
	KindOverlayUnmountError             Kind = "overlay_unmount_error"
	KindSourceError                     Kind = "source_error"
	KindBuildError                      Kind = "build_error"
)

// Error is the structured error every lifecycle failure surfaces as.
type Error struct {
	Kind    Kind
	Part    string
	Step    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	loc := e.Part
	if e.Step != "" {
		loc += "/" + e.Step
	}
	if loc == "" {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, loc, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, part, step, message string) *Error {
	return &Error{Kind: kind, Part: part, Step: step, Message: message}
}

// Wrap builds an Error around an underlying cause.
func Wrap(kind Kind, part, step, message string, cause error) *Error {
	return &Error{Kind: kind, Part: part, Step: step, Message: message, Cause: cause}
}
