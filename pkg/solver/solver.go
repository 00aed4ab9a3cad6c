// Package solver implements DUB's dependency resolver (§4.4): a
// DPLL-style backtracking search that picks one concrete version and one
// configuration per reachable package given a root recipe, a Catalog of
// available versions/recipes, and an optional prior selection to minimize
// regressions against.
package solver

import (
	"container/heap"
	"context"
	"sort"

	"github.com/dlang/dub-sub005/internal/dlog"
	"github.com/dlang/dub-sub005/pkg/dubfail"
	"github.com/dlang/dub-sub005/pkg/recipe"
	"github.com/dlang/dub-sub005/pkg/version"
	"github.com/pkg/errors"
)

// Params holds all inputs to a solve run, mirroring the shape of the
// teacher's SolveParameters.
type Params struct {
	RootRecipe    *recipe.Recipe
	RootConfig    string
	Platform      recipe.Platform
	PriorSelection map[string]version.Version

	// ToChange names packages whose prior selection should be ignored even
	// if still admissible (the targeted form of `upgrade <pkg>`).
	ToChange map[string]bool
	// ChangeAll ignores the entire prior selection (`upgrade` with no
	// arguments).
	ChangeAll bool
	// Downgrade picks the lowest admissible candidate instead of the
	// highest, for packages not held by a still-admissible prior
	// selection.
	Downgrade bool

	// AllowPrereleaseFor implements DESIGN.md decision #2: prerelease
	// admission is scoped per package, not global. Only packages named
	// here (by `upgrade --prerelease <pkg>`) may resolve to a prerelease
	// version that wouldn't otherwise be admitted by their constraint.
	AllowPrereleaseFor map[string]bool

	// OverridePolicy controls interval-vs-pointer tie-breaks (§4.1/§4.4,
	// DESIGN.md decision #1). Defaults to version.StrictIntersect.
	OverridePolicy version.OverridePolicy

	// PathOverrides names packages pinned to a local directory by
	// `add-local` (§4.1 edge case "path overrides interval": a root
	// dependency on an ordinary version interval is still satisfied by a
	// path override). Each entry is injected as an extra root-level
	// requirement with a path constraint, and resolved with
	// version.PointerWins regardless of OverridePolicy, so the override
	// always wins the tie-break against the recipe's own interval.
	PathOverrides map[string]string

	Trace       bool
	TraceLogger *dlog.Logger
}

// Selected is the resolver's output for one resolved package.
type Selected struct {
	Version       version.Version
	Configuration string
}

// Solution maps package name (root excluded) to its resolved outcome.
type Solution map[string]Selected

// Solver runs one resolution.
type Solver struct {
	ctx     context.Context
	catalog Catalog
	params  Params

	sel   *selection
	unsel *workQueue

	// recipes memoizes loaded recipes for the lifetime of a single Solve
	// call, keyed by (name, version).
	recipes map[atom]*recipe.Recipe

	// vstack parallels the teacher's s.vqs: the stack of version queues
	// for currently selected projects, used to drive backtracking.
	vstack []*versionQueue

	// deferred holds optional dependency names that have requirements
	// recorded but are not yet activated (§4.4's activation rules);
	// they're re-checked after every selection in case it activated them.
	deferred map[string]bool

	attempts int
}

// New prepares a Solver. The Catalog is the only source of external
// versions and recipes; ctx bounds any blocking catalog calls.
func New(ctx context.Context, catalog Catalog, params Params) *Solver {
	s := &Solver{
		ctx:      ctx,
		catalog:  catalog,
		params:   params,
		sel:      newSelection(),
		recipes:  make(map[atom]*recipe.Recipe),
		deferred: make(map[string]bool),
	}
	s.unsel = newWorkQueue(s.queueLess)
	if params.PriorSelection == nil {
		s.params.PriorSelection = map[string]version.Version{}
	}
	if params.PathOverrides == nil {
		s.params.PathOverrides = map[string]string{}
	}
	if params.ToChange == nil {
		s.params.ToChange = map[string]bool{}
	}
	if params.AllowPrereleaseFor == nil {
		s.params.AllowPrereleaseFor = map[string]bool{}
	}
	return s
}

func (s *Solver) policyFor(name string) version.OverridePolicy {
	if _, ok := s.params.PathOverrides[name]; ok {
		return version.PointerWins
	}
	return s.params.OverridePolicy
}

// Attempts reports how many times the solver had to backtrack and retry,
// for diagnostic surfacing alongside the solution.
func (s *Solver) Attempts() int { return s.attempts }

// stringVal adapts a plain string to fmt.Stringer for dubfail's
// Constraint field, used where the diagnostic is about a platform rather
// than a version.Constraint.
type stringVal string

func (s stringVal) String() string { return string(s) }

// Solve runs the resolution to completion, returning the selection or a
// dubfail error describing why none exists.
func (s *Solver) Solve() (Solution, error) {
	root := s.params.RootRecipe
	if root == nil {
		return nil, errors.New("solver: RootRecipe is required")
	}

	rootCfg, ok := root.SelectConfiguration(s.params.RootConfig, s.params.Platform)
	if !ok {
		return nil, &dubfail.NoCompatibleVersion{Name: root.Name, Constraint: stringVal(s.params.Platform.String())}
	}

	reqs, err := s.requirementsFor(root, "", rootCfg.Name)
	if err != nil {
		return nil, err
	}
	for name, dir := range s.params.PathOverrides {
		reqs = append(reqs, requirement{
			requester:       root.Name,
			name:            name,
			constraint:      version.NewPathConstraint(version.NewPath(dir)),
			defaultActivate: true,
		})
	}
	for _, r := range reqs {
		s.enqueue(r, true)
	}
	s.reconsiderDeferred()

	if err := s.run(); err != nil {
		return nil, err
	}

	if err := s.detectCycle(); err != nil {
		return nil, err
	}

	out := make(Solution, len(s.sel.chosen))
	for name, sp := range s.sel.chosen {
		out[name] = Selected{Version: sp.a.v, Configuration: sp.configuration}
	}
	return out, nil
}

func (s *Solver) enqueue(r requirement, fromRoot bool) {
	s.sel.pushRequirement(r)
	if _, already := s.sel.isSelected(r.name); already {
		return
	}
	if s.unsel.hasPrefix(r.name) {
		return
	}
	if !s.activated(r.name) {
		s.deferred[r.name] = true
		return
	}
	delete(s.deferred, r.name)
	heap.Push(s.unsel, pending{name: r.name, fromRoot: fromRoot})
}

// reconsiderDeferred re-checks every deferred optional dependency against
// the current selection, moving any that are now activated onto the work
// queue (§4.4's activation rules (a)/(b)/(c) can all become true only as
// more of the graph is selected).
func (s *Solver) reconsiderDeferred() {
	for name := range s.deferred {
		if _, already := s.sel.isSelected(name); already {
			delete(s.deferred, name)
			continue
		}
		if s.activated(name) {
			delete(s.deferred, name)
			if !s.unsel.hasPrefix(name) {
				heap.Push(s.unsel, pending{name: name})
			}
		}
	}
}

// run is the DPLL main loop (§4.4), grounded on the teacher's solve().
func (s *Solver) run() error {
	for s.unsel.Len() > 0 {
		p := s.unsel.sl[0]

		q, err := s.newVersionQueue(p.name)
		if err != nil {
			if s.backtrack() {
				continue
			}
			return err
		}

		if err := s.findValidVersion(q); err != nil {
			if s.backtrack() {
				continue
			}
			return err
		}

		heap.Remove(s.unsel, indexOf(s.unsel, p.name))
		s.selectAtom(atom{name: p.name, v: q.current()}, q)
		s.reconsiderDeferred()
	}
	return nil
}

func indexOf(q *workQueue, name string) int {
	for i, p := range q.sl {
		if p.name == name {
			return i
		}
	}
	return -1
}

// activated implements §4.4's optional-dependency activation rules: a
// non-optional requirement always activates; an optional one activates if
// (a) the prior selection contains it, (b) any currently-active
// non-optional requester also depends on it, or (c) the root recipe
// marked it default:true.
func (s *Solver) activated(name string) bool {
	reqs := s.sel.requirementsOn(name)
	allOptional := true
	for _, r := range reqs {
		if !r.optional {
			allOptional = false
			break
		}
	}
	if !allOptional {
		return true
	}
	if _, ok := s.params.PriorSelection[name]; ok {
		return true
	}
	for _, r := range reqs {
		if r.defaultActivate && r.requester == "" {
			return true
		}
	}
	return false
}

// selectAtom pulls atom a into the selection, expanding its dependencies
// and pushing new requirements onto the queue, mirroring the teacher's
// selectAtom.
func (s *Solver) selectAtom(a atom, q *versionQueue) {
	rec := s.recipes[a]
	configName := ""
	if cfg, ok := rec.SelectConfiguration("", s.params.Platform); ok {
		configName = cfg.Name
	}

	s.sel.push(selectedPackage{a: a, configuration: configName})
	if q != nil {
		s.vstack = append(s.vstack, q)
	}

	reqs, err := s.requirementsFor(rec, a.name, configName)
	if err != nil {
		// Recipe was already loaded successfully by findValidVersion's
		// check() call, so re-deriving its declared dependencies here
		// cannot fail.
		panic(errors.Wrapf(err, "re-deriving dependencies of %s", a.name))
	}
	for _, r := range reqs {
		s.enqueue(r, false)
	}

	if s.params.Trace && s.params.TraceLogger != nil {
		s.params.TraceLogger.Tracef("select %s@%s (configuration %q)", a.name, a.v, configName)
	}
}

// unselectLast pops the most recent selection, pushing it back onto the
// work queue and retracting the requirements it introduced.
func (s *Solver) unselectLast() (selectedPackage, bool) {
	sp, ok := s.sel.pop()
	if !ok {
		return sp, false
	}
	heap.Push(s.unsel, pending{name: sp.a.name})
	s.sel.popRequirementsFrom(sp.a.name)

	// Drop any now-orphaned requirement targets from the queue entirely.
	for _, name := range sortedRequirementNames(s.sel.deps) {
		if s.sel.requesterCount(name) == 0 {
			s.unsel.remove(name)
			delete(s.sel.deps, name)
			delete(s.deferred, name)
		}
	}
	return sp, true
}

// backtrack mirrors the teacher's backtrack(): walk back through the
// version-queue stack until one has another candidate to try.
func (s *Solver) backtrack() bool {
	for len(s.vstack) > 0 {
		q := s.vstack[len(s.vstack)-1]
		s.vstack = s.vstack[:len(s.vstack)-1]

		sp, ok := s.unselectLast()
		if !ok || sp.a.name != q.name {
			// Selection/queue stacks out of sync with a pkg-only pop;
			// keep unwinding.
			continue
		}

		if q.advance() && s.findValidVersion(q) == nil {
			s.attempts++
			heap.Remove(s.unsel, indexOf(s.unsel, q.name))
			s.selectAtom(atom{name: q.name, v: q.current()}, q)
			s.reconsiderDeferred()
			return true
		}
	}
	return false
}

// requirementsFor extracts the requirements declared by rec's selected
// configuration (plus its base/unconditional dependency map), each scoped
// to requester.
func (s *Solver) requirementsFor(rec *recipe.Recipe, requester, configName string) ([]requirement, error) {
	var out []requirement
	for name, dep := range rec.Dependencies {
		qualified := recipe.QualifiedName(rec.Name, name)
		out = append(out, requirement{
			requester:        requester,
			name:             qualified,
			constraint:       dep.Constraint,
			optional:         dep.Optional,
			defaultActivate:  dep.Default,
			subconfiguration: dep.Subconfiguration,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}
