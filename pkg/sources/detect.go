// SPDX-License-Identifier: AGPL-3.0-or-later

package sources

import (
	"fmt"
	"strings"
)

// Feature: SOURCE_DETECT
// Spec: SPEC_FULL.md §4.8 "pkg/sources.DetectType"

// DetectType infers a source type from a URI when a part declares a
// source but no explicit source-type (spec.md §3 "Detection of source
// type from a URI is delegated").
func DetectType(source string) (string, error) {
	if source == "" {
		return "", fmt.Errorf("empty source")
	}

	lower := strings.ToLower(source)

	switch {
	case strings.HasSuffix(lower, ".git"),
		strings.HasPrefix(lower, "git+"),
		strings.HasPrefix(lower, "git://"):
		return "git", nil
	case strings.HasPrefix(lower, "ssh://") && strings.Contains(lower, ".git"):
		return "git", nil
	case strings.HasSuffix(lower, ".tar"),
		strings.HasSuffix(lower, ".tar.gz"),
		strings.HasSuffix(lower, ".tgz"),
		strings.HasSuffix(lower, ".tar.bz2"),
		strings.HasSuffix(lower, ".tar.xz"):
		return "tar", nil
	default:
		return "local", nil
	}
}
