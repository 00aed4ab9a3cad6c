package solver

import (
	"sort"

	"github.com/dlang/dub-sub005/pkg/version"
)

// selectedPackage is the chosen outcome for one package name: its atom plus
// the configuration picked by Recipe.SelectConfiguration for it.
type selectedPackage struct {
	a             atom
	configuration string
}

// selection is the stack of already-chosen packages and the dependency
// edges that justify them, mirroring the teacher's selection.go/
// bridge.go split between "what's chosen" and "why it's required".
type selection struct {
	order  []string // names, in selection order, for deterministic backtracking
	chosen map[string]selectedPackage
	deps   map[string][]requirement // name -> all requirements pointed at it
}

func newSelection() *selection {
	return &selection{
		chosen: make(map[string]selectedPackage),
		deps:   make(map[string][]requirement),
	}
}

func (s *selection) isSelected(name string) (selectedPackage, bool) {
	sp, ok := s.chosen[name]
	return sp, ok
}

func (s *selection) push(sp selectedPackage) {
	s.order = append(s.order, sp.a.name)
	s.chosen[sp.a.name] = sp
}

// pop removes and returns the most recently selected package.
func (s *selection) pop() (selectedPackage, bool) {
	if len(s.order) == 0 {
		return selectedPackage{}, false
	}
	name := s.order[len(s.order)-1]
	s.order = s.order[:len(s.order)-1]
	sp := s.chosen[name]
	delete(s.chosen, name)
	return sp, true
}

func (s *selection) pushRequirement(r requirement) {
	s.deps[r.name] = append(s.deps[r.name], r)
}

func (s *selection) popRequirementsFrom(requester string) {
	for name, rs := range s.deps {
		filtered := rs[:0]
		for _, r := range rs {
			if r.requester != requester {
				filtered = append(filtered, r)
			}
		}
		if len(filtered) == 0 {
			delete(s.deps, name)
		} else {
			s.deps[name] = filtered
		}
	}
}

func (s *selection) requirementsOn(name string) []requirement {
	return s.deps[name]
}

func (s *selection) requesterCount(name string) int {
	return len(s.deps[name])
}

// sortedRequirementNames returns deps's keys in a stable order, so
// unselectLast's orphan sweep is deterministic.
func sortedRequirementNames(deps map[string][]requirement) []string {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// effectiveConstraint intersects every active, non-optional (or activated-
// optional) requirement pointed at name, using policy for any interval
// versus branch/path tie-break (§4.1/§4.4).
func (s *selection) effectiveConstraint(name string, policy version.OverridePolicy) version.Constraint {
	c := version.Any()
	for _, r := range s.requirementsOn(name) {
		c = version.IntersectWithPolicy(c, r.constraint, policy)
	}
	return c
}
