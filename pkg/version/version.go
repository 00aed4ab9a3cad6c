// Package version implements the version and constraint algebra described
// in DUB's dependency model: release versions (SemVer 2.0.0), branch
// pointers, and local path pointers, plus the constraint language that
// selects among them.
package version

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"

	"github.com/dlang/dub-sub005/internal/npath"
)

// A Version identifies one concrete package instance: a release, a branch
// pointer, or a path pointer. Only release versions carry an ordering.
type Version interface {
	fmt.Stringer
	Type() Type
	// Equal reports whether v and other name the same concrete instance.
	Equal(other Version) bool
}

// Type distinguishes the three kinds of Version.
type Type uint8

const (
	// TypeRelease is a SemVer release.
	TypeRelease Type = iota
	// TypeBranch is an unordered `~branch-name` pointer.
	TypeBranch
	// TypePath is a local directory pointer.
	TypePath
)

func (t Type) String() string {
	switch t {
	case TypeRelease:
		return "release"
	case TypeBranch:
		return "branch"
	case TypePath:
		return "path"
	default:
		return "unknown"
	}
}

// Release is a SemVer 2.0.0 version.
type Release struct {
	sv *semver.Version
}

// NewRelease parses a SemVer string into a release Version.
func NewRelease(s string) (Release, error) {
	sv, err := semver.NewVersion(s)
	if err != nil {
		return Release{}, errors.Wrapf(err, "invalid release version %q", s)
	}
	return Release{sv: sv}, nil
}

// MustRelease is like NewRelease but panics on error; useful in tests and
// literal catalog fixtures.
func MustRelease(s string) Release {
	r, err := NewRelease(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Release) String() string { return r.sv.Original() }
func (r Release) Type() Type     { return TypeRelease }

func (r Release) Equal(other Version) bool {
	o, ok := other.(Release)
	return ok && r.sv.Equal(o.sv)
}

// IsPrerelease reports whether r carries a prerelease component.
func (r Release) IsPrerelease() bool { return r.sv.Prerelease() != "" }

// Compare orders r against o. A release with a prerelease component sorts
// below the same release without one, per SemVer precedence rules; build
// metadata never participates in ordering.
func (r Release) Compare(o Release) int { return r.sv.Compare(o.sv) }

// Less reports r < o under release ordering.
func (r Release) Less(o Release) bool { return r.Compare(o) < 0 }

// Branch is an unordered named pointer into a package's history.
type Branch string

func (b Branch) String() string     { return "~" + string(b) }
func (Branch) Type() Type           { return TypeBranch }
func (b Branch) Equal(o Version) bool {
	ob, ok := o.(Branch)
	return ok && b == ob
}

// Path is a pointer to a local, unversioned directory. It normalizes for
// equality so two spellings of the same directory (relative vs. absolute,
// trailing slash, ".." segments) compare equal per §3, while retaining the
// original spelling for display.
type Path struct{ native npath.NativePath }

// NewPath normalizes p for equality/hashing purposes; display retains
// p's original spelling (see internal/npath).
func NewPath(p string) Path { return Path{native: npath.New(p)} }

func (p Path) String() string { return p.native.String() }
func (Path) Type() Type       { return TypePath }
func (p Path) Equal(o Version) bool {
	op, ok := o.(Path)
	return ok && p.native.Equal(op.native)
}

// Key returns the normalized directory, suitable for filesystem lookups
// and map keys, independent of how the path was originally spelled.
func (p Path) Key() string { return p.native.Key() }

// SortReleases sorts a slice of Release ascending, so every caller uses the
// same comparator.
func SortReleases(rs []Release) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Less(rs[j]) })
}

// SortReleasesDescending sorts a slice of Release descending, matching the
// resolver's candidate order (§4.4: "descending SemVer").
func SortReleasesDescending(rs []Release) {
	sort.Slice(rs, func(i, j int) bool { return rs[j].Less(rs[i]) })
}
