package version

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Parse parses a constraint expression into a Constraint. Recognized forms:
//
//	"*" or ""           -> Any
//	"none"              -> None
//	"==1.2.3"           -> exact release
//	"~>1.2" / "~>1.2.3" -> tilde interval (§4.1)
//	"~branch-name"      -> branch pointer
//	">=1.0 <2.0"        -> space-separated interval clauses (AND-ed)
//	"1.2.3"             -> exact release (bare version)
//
// Path pointers are never produced by Parse; construct them explicitly with
// NewPathConstraint, since a bare string is ambiguous with a package name.
func Parse(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "*", "any":
		return any, nil
	case "none":
		return none, nil
	}

	if strings.HasPrefix(s, "~>") {
		return parseTilde(s[2:])
	}
	if strings.HasPrefix(s, "==") {
		r, err := NewRelease(strings.TrimSpace(s[2:]))
		if err != nil {
			return nil, err
		}
		return NewExact(r), nil
	}
	if strings.HasPrefix(s, "~") {
		name := strings.TrimSpace(s[1:])
		if name == "" {
			return nil, errors.Errorf("empty branch name in constraint %q", s)
		}
		return NewBranchConstraint(name), nil
	}

	clauses := strings.Fields(s)
	if len(clauses) == 0 {
		return any, nil
	}

	result := any
	for _, clause := range clauses {
		c, err := parseClause(clause)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing constraint %q", s)
		}
		result = Intersect(result, c)
	}
	return result, nil
}

func parseClause(clause string) (Constraint, error) {
	for _, op := range []string{">=", "<=", ">", "<"} {
		if strings.HasPrefix(clause, op) {
			r, err := NewRelease(strings.TrimSpace(clause[len(op):]))
			if err != nil {
				return nil, err
			}
			switch op {
			case ">=":
				return NewInterval(&r, nil, true, false), nil
			case ">":
				return NewInterval(&r, nil, false, false), nil
			case "<=":
				return NewInterval(nil, &r, false, true), nil
			case "<":
				return NewInterval(nil, &r, false, false), nil
			}
		}
	}
	// Bare version: treated as an exact point, per §4.1's "exact version"
	// constraint kind.
	r, err := NewRelease(clause)
	if err != nil {
		return nil, err
	}
	return NewExact(r), nil
}

// parseTilde lowers "~>MAJOR.MINOR[.PATCH]" to an interval whose upper
// bound is determined by the rightmost explicit component (§4.1).
func parseTilde(body string) (Constraint, error) {
	parts := strings.Split(body, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return nil, errors.Errorf("invalid tilde constraint ~>%s", body)
	}

	nums := make([]int64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid tilde constraint ~>%s", body)
		}
		nums[i] = n
	}

	var lo, hi Release
	var err error
	switch len(nums) {
	case 1:
		// ~>1 => [1.0.0, 2.0.0)
		lo, err = NewRelease(releaseString(nums[0], 0, 0))
		hi = mustRelease(releaseString(nums[0]+1, 0, 0))
	case 2:
		// ~>1.2 => [1.2.0, 1.3.0)
		lo, err = NewRelease(releaseString(nums[0], nums[1], 0))
		hi = mustRelease(releaseString(nums[0], nums[1]+1, 0))
	case 3:
		// ~>1.2.3 => [1.2.3, 1.3.0)
		lo, err = NewRelease(releaseString(nums[0], nums[1], nums[2]))
		hi = mustRelease(releaseString(nums[0], nums[1]+1, 0))
	}
	if err != nil {
		return nil, err
	}
	return NewInterval(&lo, &hi, true, false), nil
}

func releaseString(major, minor, patch int64) string {
	return strconv.FormatInt(major, 10) + "." + strconv.FormatInt(minor, 10) + "." + strconv.FormatInt(patch, 10)
}

func mustRelease(s string) Release {
	r, err := NewRelease(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Merge combines a and b under policy. It is the named entry point spec
// §4.1 calls merge(a,b); Intersect/IntersectWithPolicy implement it.
func Merge(a, b Constraint, policy OverridePolicy) Constraint {
	return IntersectWithPolicy(a, b, policy)
}
