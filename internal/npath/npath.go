// Package npath centralizes the path manipulation the teacher leaves
// sprinkled across modules (§9 design note: "Path manipulation sprinkled
// across modules: centralize into a NativePath abstraction"). A
// NativePath preserves platform separators on display but normalizes for
// equality and hashing, so two spellings of the same local path compare
// equal as required by §3's path-pointer equality rule.
package npath

import "path/filepath"

// NativePath is a local filesystem path with normalized-equality
// semantics.
type NativePath struct {
	display    string
	normalized string
}

// New builds a NativePath from a possibly-relative, possibly-unclean
// input path.
func New(p string) NativePath {
	clean := filepath.Clean(p)
	abs, err := filepath.Abs(clean)
	if err != nil {
		abs = clean
	}
	return NativePath{display: p, normalized: filepath.ToSlash(abs)}
}

// String renders the path using platform-native separators, for display.
func (p NativePath) String() string { return p.display }

// Equal compares two NativePaths by their normalized form, independent of
// how each was originally spelled.
func (p NativePath) Equal(o NativePath) bool { return p.normalized == o.normalized }

// Key returns a value suitable for use as a map key or hash input.
func (p NativePath) Key() string { return p.normalized }

// Join appends elem to p using the platform separator.
func (p NativePath) Join(elem ...string) NativePath {
	parts := append([]string{p.display}, elem...)
	return New(filepath.Join(parts...))
}

// IsAbs reports whether the underlying path is absolute.
func (p NativePath) IsAbs() bool { return filepath.IsAbs(p.normalized) }
