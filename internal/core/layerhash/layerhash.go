// SPDX-License-Identifier: AGPL-3.0-or-later

// Package layerhash computes and persists the overlay validation hash each
// part's layer is chained to (spec.md §4.2).
package layerhash

import (
	"crypto/sha1" //nolint:gosec // not a security boundary; chained content-addressing only
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"partcraft/internal/core/parts"
)

// Feature: CORE_LAYERHASH
// Spec: SPEC_FULL.md §4.2 "LayerHash"

// Hash is the overlay validation hash for a single layer: a SHA-1 digest
// chained over this part's overlay parameters and the hash of the layer
// immediately below it.
type Hash struct {
	b []byte
}

// Zero is the hash of the (non-existent) layer below the first part, the
// seed every chain starts from.
var Zero = Hash{}

// ForPart computes the validation hash for part, chained onto the hash of
// the previous layer in the overlay stack.
//
// The Open Question in spec.md §9 over whether this chains on
// override-overlay or a separate overlay-script field is resolved in favor
// of override-overlay: this codebase has no separate overlay-script
// attribute, so override-overlay is the only scriptlet overlay identity can
// depend on.
func ForPart(part *parts.Part, previous Hash) Hash {
	h := sha1.New() //nolint:gosec // see package doc

	pkgs := append([]string(nil), part.OverlayPackages...)
	sort.Strings(pkgs)
	for _, entry := range pkgs {
		h.Write([]byte(entry))
	}

	files := append([]string(nil), part.OverlayFiles...)
	sort.Strings(files)
	for _, entry := range files {
		h.Write([]byte(entry))
	}

	if part.OverrideOverlay != "" {
		h.Write([]byte(part.OverrideOverlay))
	}

	h.Write(previous.Bytes())

	return Hash{b: h.Sum(nil)}
}

// Bytes returns the raw digest.
func (h Hash) Bytes() []byte { return h.b }

// Hex returns the digest as a lower-case hex string.
func (h Hash) Hex() string { return hex.EncodeToString(h.b) }

// Equal reports whether two hashes are the same digest.
func (h Hash) Equal(other Hash) bool {
	if len(h.b) != len(other.b) {
		return false
	}
	for i := range h.b {
		if h.b[i] != other.b[i] {
			return false
		}
	}
	return true
}

// FromHex parses a hex digest, as persisted by Save.
func FromHex(s string) (Hash, error) {
	if s == "" {
		return Zero, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("parsing layer hash %q: %w", s, err)
	}
	return Hash{b: b}, nil
}

// Load reads a part's previously persisted layer hash, returning Zero if
// none was ever recorded.
func Load(dirs parts.Dirs, partName string) (Hash, error) {
	data, err := os.ReadFile(dirs.LayerHashPath(partName)) //nolint:gosec // G304: path derived from trusted work root
	if os.IsNotExist(err) {
		return Zero, nil
	}
	if err != nil {
		return Hash{}, fmt.Errorf("reading layer hash for part %q: %w", partName, err)
	}
	return FromHex(string(data))
}

// ChainForParts computes every declared part's layer hash in one pass,
// chaining each part's hash onto the previous part's (declaration order
// determines overlay stacking order, lowest first).
func ChainForParts(declared []parts.Part) map[string]Hash {
	out := make(map[string]Hash, len(declared))
	previous := Zero
	for i := range declared {
		h := ForPart(&declared[i], previous)
		out[declared[i].Name] = h
		previous = h
	}
	return out
}

// Save persists h at the part's well-known layer_hash path.
func Save(dirs parts.Dirs, partName string, h Hash) error {
	path := dirs.LayerHashPath(partName)
	if err := os.MkdirAll(dirs.PartStateDir(partName), 0o750); err != nil {
		return fmt.Errorf("creating state directory for part %q: %w", partName, err)
	}
	if err := os.WriteFile(path, []byte(h.Hex()), 0o600); err != nil {
		return fmt.Errorf("writing layer hash for part %q: %w", partName, err)
	}
	return nil
}
