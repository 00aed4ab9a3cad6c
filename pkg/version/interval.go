package version

import (
	"bytes"
	"fmt"
)

// intervalConstraint is an inclusive/exclusive interval [lo, hi) over
// release versions. A nil bound means unbounded on that side.
type intervalConstraint struct {
	lo, hi           *Release
	loIncl, hiIncl   bool
	allowPrerelease  bool
}

// NewInterval builds an interval constraint. Pass nil for an open-ended
// bound. An interval with lo > hi, or lo == hi with both bounds exclusive
// or only one inclusive, collapses to None rather than panicking (§4.1
// "empty-range constructions produce none").
func NewInterval(lo, hi *Release, loIncl, hiIncl bool) Constraint {
	ic := intervalConstraint{lo: lo, hi: hi, loIncl: loIncl, hiIncl: hiIncl}
	if ic.isEmpty() {
		return none
	}
	return ic
}

func (ic intervalConstraint) isEmpty() bool {
	if ic.lo == nil || ic.hi == nil {
		return false
	}
	c := ic.lo.Compare(*ic.hi)
	if c > 0 {
		return true
	}
	if c == 0 && !(ic.loIncl && ic.hiIncl) {
		return true
	}
	return false
}

func (ic intervalConstraint) isConstraint() {}

func (ic intervalConstraint) String() string {
	var buf bytes.Buffer
	if ic.loIncl {
		buf.WriteByte('[')
	} else {
		buf.WriteByte('(')
	}
	if ic.lo != nil {
		buf.WriteString(ic.lo.String())
	}
	buf.WriteString(", ")
	if ic.hi != nil {
		buf.WriteString(ic.hi.String())
	}
	if ic.hiIncl {
		buf.WriteByte(']')
	} else {
		buf.WriteByte(')')
	}
	return buf.String()
}

func (ic intervalConstraint) matchesRelease(v Release) bool {
	if !ic.allowPrerelease && v.IsPrerelease() {
		// A release X admits prereleases of X only when the requester
		// opted in (§4.1 edge case); absent that, prereleases are
		// excluded even when numerically inside the interval.
		if !ic.prereleaseSharesBase(v) {
			return false
		}
	}
	if ic.lo != nil {
		c := v.Compare(*ic.lo)
		if c < 0 || (c == 0 && !ic.loIncl) {
			return false
		}
	}
	if ic.hi != nil {
		c := v.Compare(*ic.hi)
		if c > 0 || (c == 0 && !ic.hiIncl) {
			return false
		}
	}
	return true
}

// prereleaseSharesBase allows a prerelease endpoint to admit prereleases of
// that same release, per §4.1: "a range that includes a prerelease endpoint
// admits prereleases of the same release only if the requester explicitly
// opted in". Here we treat an explicit prerelease bound as that opt-in.
func (ic intervalConstraint) prereleaseSharesBase(v Release) bool {
	for _, b := range []*Release{ic.lo, ic.hi} {
		if b != nil && b.IsPrerelease() && b.sv.Major() == v.sv.Major() &&
			b.sv.Minor() == v.sv.Minor() && b.sv.Patch() == v.sv.Patch() {
			return true
		}
	}
	return false
}

// WithPrereleases returns a copy of the interval that admits prereleases
// unconditionally. The resolver calls this for upgrade-to-prerelease runs
// (DESIGN.md decision #2: applied per-package, not globally).
func (ic intervalConstraint) WithPrereleases() Constraint {
	ic.allowPrerelease = true
	return ic
}

func AllowPrereleases(c Constraint) Constraint {
	if ic, ok := c.(intervalConstraint); ok {
		return ic.WithPrereleases()
	}
	return c
}

func (ic intervalConstraint) Matches(v Version) bool {
	r, ok := v.(Release)
	if !ok {
		return false
	}
	return ic.matchesRelease(r)
}

func (ic intervalConstraint) MatchesAny(other Constraint) bool {
	return !IsNone(Intersect(ic, other))
}

func (ic intervalConstraint) Intersect(other Constraint) Constraint {
	return Intersect(ic, other)
}

func (ic intervalConstraint) intersectInterval(other intervalConstraint) Constraint {
	lo, loIncl := tighterLowerBound(ic.lo, ic.loIncl, other.lo, other.loIncl)
	hi, hiIncl := tighterUpperBound(ic.hi, ic.hiIncl, other.hi, other.hiIncl)
	allow := ic.allowPrerelease || other.allowPrerelease
	result := intervalConstraint{lo: lo, hi: hi, loIncl: loIncl, hiIncl: hiIncl, allowPrerelease: allow}
	if result.isEmpty() {
		return none
	}
	return result
}

func tighterLowerBound(a *Release, aIncl bool, b *Release, bIncl bool) (*Release, bool) {
	switch {
	case a == nil:
		return b, bIncl
	case b == nil:
		return a, aIncl
	}
	switch c := a.Compare(*b); {
	case c > 0:
		return a, aIncl
	case c < 0:
		return b, bIncl
	default:
		return a, aIncl && bIncl
	}
}

func tighterUpperBound(a *Release, aIncl bool, b *Release, bIncl bool) (*Release, bool) {
	switch {
	case a == nil:
		return b, bIncl
	case b == nil:
		return a, aIncl
	}
	switch c := a.Compare(*b); {
	case c < 0:
		return a, aIncl
	case c > 0:
		return b, bIncl
	default:
		return a, aIncl && bIncl
	}
}

// exactConstraint admits exactly one release version. It is the lowering
// target of "==V" (§4.1).
type exactConstraint struct{ v Release }

// NewExact builds a single-point constraint "==v".
func NewExact(v Release) Constraint { return exactConstraint{v: v} }

func (c exactConstraint) isConstraint()             {}
func (c exactConstraint) String() string            { return "==" + c.v.String() }
func (c exactConstraint) Matches(v Version) bool {
	r, ok := v.(Release)
	return ok && r.Equal(c.v)
}
func (c exactConstraint) MatchesAny(other Constraint) bool { return !IsNone(Intersect(c, other)) }
func (c exactConstraint) Intersect(other Constraint) Constraint { return Intersect(c, other) }

// branchConstraint matches exactly one named branch.
type branchConstraint struct{ name Branch }

// NewBranchConstraint builds a constraint that matches only the named
// branch pointer.
func NewBranchConstraint(name string) Constraint { return branchConstraint{name: Branch(name)} }

func (c branchConstraint) isConstraint()  {}
func (c branchConstraint) String() string { return c.name.String() }
func (c branchConstraint) Matches(v Version) bool {
	b, ok := v.(Branch)
	return ok && b == c.name
}
func (c branchConstraint) MatchesAny(other Constraint) bool { return !IsNone(Intersect(c, other)) }
func (c branchConstraint) Intersect(other Constraint) Constraint { return Intersect(c, other) }

// pathConstraint matches exactly one normalized local path.
type pathConstraint struct{ p Path }

// NewPathConstraint builds a constraint that matches only the given local
// path, normalized for comparison by the caller (internal/npath).
func NewPathConstraint(p Path) Constraint { return pathConstraint{p: p} }

func (c pathConstraint) isConstraint()  {}
func (c pathConstraint) String() string { return fmt.Sprintf("{path: %q}", c.p.String()) }
func (c pathConstraint) Matches(v Version) bool {
	p, ok := v.(Path)
	return ok && p.Equal(c.p)
}
func (c pathConstraint) MatchesAny(other Constraint) bool { return !IsNone(Intersect(c, other)) }
func (c pathConstraint) Intersect(other Constraint) Constraint { return Intersect(c, other) }
