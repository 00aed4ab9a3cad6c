package solver

import (
	"sort"

	"github.com/dlang/dub-sub005/pkg/dubfail"
	"github.com/dlang/dub-sub005/pkg/version"
)

// versionQueue holds the ordered candidate list for one unresolved
// package name, mirroring the teacher's version_queue.go: current()/
// advance() walk forward, recording failures for the eventual
// NoCompatibleVersion report.
type versionQueue struct {
	name       string
	candidates []version.Version
	idx        int
	fails      []version.Version
}

func (q *versionQueue) current() version.Version {
	if q.idx >= len(q.candidates) {
		return nil
	}
	return q.candidates[q.idx]
}

// advance records the current candidate as failed and moves to the next
// one, reporting whether one remains.
func (q *versionQueue) advance() bool {
	if q.idx < len(q.candidates) {
		q.fails = append(q.fails, q.candidates[q.idx])
	}
	q.idx++
	return q.idx < len(q.candidates)
}

// newVersionQueue builds the candidate list for name: prior selection
// first if still admissible, then all catalog versions honoring overrides,
// the effective constraint, and per-package prerelease admission (§4.4,
// DESIGN.md decision #2), ordered descending by SemVer unless Downgrade is
// set.
func (s *Solver) newVersionQueue(name string) (*versionQueue, error) {
	constraint := s.sel.effectiveConstraint(name, s.policyFor(name))
	if s.params.AllowPrereleaseFor[name] {
		constraint = version.AllowPrereleases(constraint)
	}

	all, err := s.catalog.FindVersions(s.ctx, name)
	if err != nil {
		return nil, err
	}

	resolved := make([]version.Version, 0, len(all))
	for _, v := range all {
		if !constraint.Matches(v) {
			continue
		}
		if repl, ok := s.catalog.ResolveOverride(name, v); ok {
			resolved = []version.Version{repl}
			break // an override redirects resolution entirely (§4.3 glossary "Override")
		}
		resolved = append(resolved, v)
	}

	admissible := resolved
	sortCandidates(admissible, s.params.Downgrade)
	if prior, ok := s.priorIfUsable(name, constraint); ok {
		admissible = moveToFront(admissible, prior)
	}

	if len(admissible) == 0 {
		observed := make([]string, len(all))
		for i, v := range all {
			observed[i] = v.String()
		}
		return nil, &dubfail.NoCompatibleVersion{Name: name, Constraint: constraint, ObservedVersions: observed}
	}

	return &versionQueue{name: name, candidates: admissible}, nil
}

// priorIfUsable reports the prior selection for name if it should be kept:
// present, not marked for change, and still admissible under constraint.
func (s *Solver) priorIfUsable(name string, constraint version.Constraint) (version.Version, bool) {
	if s.params.ChangeAll || s.params.ToChange[name] {
		return nil, false
	}
	v, ok := s.params.PriorSelection[name]
	if !ok || !constraint.Matches(v) {
		return nil, false
	}
	return v, true
}

func moveToFront(vs []version.Version, prior version.Version) []version.Version {
	out := make([]version.Version, 0, len(vs))
	out = append(out, prior)
	for _, v := range vs {
		if !v.Equal(prior) {
			out = append(out, v)
		}
	}
	return out
}

// sortCandidates orders release versions descending (ascending if
// downgrade is requested); branch and path pointers, having no ordering,
// are left in catalog-reported order after any releases.
func sortCandidates(vs []version.Version, downgrade bool) {
	sort.SliceStable(vs, func(i, j int) bool {
		ri, iok := vs[i].(version.Release)
		rj, jok := vs[j].(version.Release)
		if !iok || !jok {
			return false
		}
		if downgrade {
			return ri.Less(rj)
		}
		return rj.Less(ri)
	})
}

// findValidVersion walks q until a candidate's recipe loads and its
// configuration is buildable for the target platform, caching the loaded
// recipe for the winning atom.
func (s *Solver) findValidVersion(q *versionQueue) error {
	for {
		cur := q.current()
		if cur == nil {
			return &dubfail.NoCompatibleVersion{Name: q.name, Constraint: s.sel.effectiveConstraint(q.name, s.policyFor(q.name))}
		}

		a := atom{name: q.name, v: cur}
		rec, err := s.catalog.GetPackage(s.ctx, q.name, cur)
		if err == nil {
			if _, ok := rec.SelectConfiguration("", s.params.Platform); ok {
				s.recipes[a] = rec
				return nil
			}
		}

		if !q.advance() {
			return &dubfail.NoCompatibleVersion{
				Name:       q.name,
				Constraint: s.sel.effectiveConstraint(q.name, s.policyFor(q.name)),
			}
		}
	}
}
