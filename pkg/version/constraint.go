package version

import (
	"fmt"
)

// A Constraint provides structured limitations on the versions that are
// admissible for a given dependency. Implementations are comparable values
// so they may be used as map keys and compared with ==.
//
// As with Version, Constraint carries a private method: the package's
// internal representation of the constraint algebra is closed, so the
// resolver can type-switch exhaustively over it.
type Constraint interface {
	fmt.Stringer
	// Matches reports whether v is admissible under the constraint.
	Matches(v Version) bool
	// MatchesAny reports whether intersecting with other could admit any
	// version at all.
	MatchesAny(other Constraint) bool
	// Intersect computes the constraint admitting exactly the versions
	// both c and other admit, using the default OverridePolicy
	// (StrictIntersect). Use IntersectWithPolicy for resolver-controlled
	// diamond tie-breaks (§4.1, §4.4).
	Intersect(other Constraint) Constraint
	isConstraint()
}

// OverridePolicy controls how Intersect resolves a combination of an
// interval constraint with a non-interval (branch or path) constraint —
// the diamond-resolution tie-break named in spec §4.1/§4.4 and resolved as
// an Open Question in DESIGN.md.
type OverridePolicy uint8

const (
	// StrictIntersect treats an interval combined with an incompatible
	// branch/path constraint as the empty set (the default).
	StrictIntersect OverridePolicy = iota
	// PointerWins lets the non-interval side (branch or path) replace the
	// interval side instead of producing None. The resolver uses it for
	// names listed in solver.Params.PathOverrides (add-local), or for every
	// name when Params.OverridePolicy is set to it (see DESIGN.md decision
	// #1).
	PointerWins
)

// Kind classifies a Constraint's shape, mirroring the bitmask the teacher
// exposes via Constraint.Type() for the same purpose: letting a caller
// (the resolver's work-queue ordering, §4.4) branch on constraint shape
// without type-asserting on this package's unexported constraint types.
type Kind uint8

const (
	KindAny Kind = iota
	KindNone
	KindInterval
	KindExact
	KindBranch
	KindPath
)

// KindOf reports c's shape.
func KindOf(c Constraint) Kind {
	switch c.(type) {
	case anyConstraint:
		return KindAny
	case noneConstraint:
		return KindNone
	case exactConstraint:
		return KindExact
	case branchConstraint:
		return KindBranch
	case pathConstraint:
		return KindPath
	default:
		return KindInterval
	}
}

// Any matches every version.
func Any() Constraint { return anyConstraint{} }

// None matches no version. It is the absorbing element of Intersect.
func None() Constraint { return noneConstraint{} }

// IsAny reports whether c is the wildcard constraint.
func IsAny(c Constraint) bool { _, ok := c.(anyConstraint); return ok }

// IsNone reports whether c is the empty-set constraint.
func IsNone(c Constraint) bool { _, ok := c.(noneConstraint); return ok }

type anyConstraint struct{}

func (anyConstraint) String() string                  { return "*" }
func (anyConstraint) Matches(Version) bool             { return true }
func (anyConstraint) MatchesAny(Constraint) bool       { return true }
func (anyConstraint) Intersect(c Constraint) Constraint { return c }
func (anyConstraint) isConstraint()                    {}

type noneConstraint struct{}

func (noneConstraint) String() string                  { return "none" }
func (noneConstraint) Matches(Version) bool             { return false }
func (noneConstraint) MatchesAny(Constraint) bool       { return false }
func (noneConstraint) Intersect(Constraint) Constraint { return none }
func (noneConstraint) isConstraint()                   {}

var (
	any  Constraint = anyConstraint{}
	none Constraint = noneConstraint{}
)

// Intersect computes a.Intersect(b) using the default StrictIntersect
// policy. It is symmetric: Intersect(a,b) == Intersect(b,a) (§8).
func Intersect(a, b Constraint) Constraint {
	return IntersectWithPolicy(a, b, StrictIntersect)
}

// IntersectWithPolicy computes the intersection of a and b, applying policy
// only to interval×(branch|path) combinations (§4.1 tie-break).
func IntersectWithPolicy(a, b Constraint, policy OverridePolicy) Constraint {
	if IsAny(a) {
		return b
	}
	if IsAny(b) {
		return a
	}
	if IsNone(a) || IsNone(b) {
		return none
	}

	ia, aIsInterval := a.(intervalConstraint)
	ib, bIsInterval := b.(intervalConstraint)

	switch {
	case aIsInterval && bIsInterval:
		return ia.intersectInterval(ib)
	case aIsInterval && !bIsInterval:
		return intersectIntervalWithPointer(ia, b, policy)
	case !aIsInterval && bIsInterval:
		return intersectIntervalWithPointer(ib, a, policy)
	default:
		// An exact release is a single-point interval, so under
		// PointerWins a branch/path replaces it like any other interval.
		if policy == PointerWins {
			if _, ok := a.(exactConstraint); ok && (KindOf(b) == KindBranch || KindOf(b) == KindPath) {
				return b
			}
			if _, ok := b.(exactConstraint); ok && (KindOf(a) == KindBranch || KindOf(a) == KindPath) {
				return a
			}
		}
		// Path equality is normalized (§3), not a raw struct compare, so
		// two pathConstraints get their own identity check before the
		// generic one below.
		if pa, ok := a.(pathConstraint); ok {
			if pb, ok := b.(pathConstraint); ok {
				if pa.p.Equal(pb.p) {
					return a
				}
				return none
			}
			return none
		}
		// branch/exact-pointer vs branch/exact-pointer: equal only by
		// identity.
		if a == b {
			return a
		}
		return none
	}
}

func intersectIntervalWithPointer(iv intervalConstraint, pointer Constraint, policy OverridePolicy) Constraint {
	switch p := pointer.(type) {
	case branchConstraint, pathConstraint:
		if policy == PointerWins {
			return pointer
		}
		return none
	case exactConstraint:
		if iv.matchesRelease(p.v) {
			return p
		}
		return none
	default:
		return none
	}
}
