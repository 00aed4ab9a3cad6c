package solver

import (
	"container/heap"

	"github.com/armon/go-radix"
	"github.com/dlang/dub-sub005/pkg/version"
)

// pending is one unresolved package name sitting in the work queue.
type pending struct {
	name     string
	fromRoot bool
}

// workQueue is the §4.4 "work queue": a priority queue of unresolved
// package names ordered path-first, branch-next, then interval-
// constrained by decreasing domain size, ties broken by name. It also
// keeps a radix index of enqueued names so subpackage-qualified lookups
// ("parent:child") during dependency expansion don't need a linear scan,
// the same structure the teacher uses in intersectConstraintsWithImports.
type workQueue struct {
	sl  []pending
	cmp func(i, j int) bool
	idx *radix.Tree
}

func newWorkQueue(less func(i, j int) bool) *workQueue {
	return &workQueue{cmp: less, idx: radix.New()}
}

func (q *workQueue) Len() int           { return len(q.sl) }
func (q *workQueue) Less(i, j int) bool { return q.cmp(i, j) }
func (q *workQueue) Swap(i, j int)      { q.sl[i], q.sl[j] = q.sl[j], q.sl[i] }

func (q *workQueue) Push(x interface{}) {
	p := x.(pending)
	q.sl = append(q.sl, p)
	q.idx.Insert(p.name, struct{}{})
}

func (q *workQueue) Pop() interface{} {
	old := q.sl
	n := len(old)
	p := old[n-1]
	q.sl = old[:n-1]
	q.idx.Delete(p.name)
	return p
}

// remove drops name from the queue, if present, preserving heap order.
func (q *workQueue) remove(name string) {
	for i, p := range q.sl {
		if p.name == name {
			q.sl = append(q.sl[:i], q.sl[i+1:]...)
			q.idx.Delete(name)
			heap.Init(q)
			return
		}
	}
}

// hasPrefix reports whether name itself, or any "name:child" subpackage
// reference, is already enqueued. A bare WalkPrefix(name, ...) would also
// match an unrelated enqueued key like "foobar" when name is "foo"; guard
// the subpackage case with an explicit ":" boundary instead.
func (q *workQueue) hasPrefix(name string) bool {
	if _, ok := q.idx.Get(name); ok {
		return true
	}
	found := false
	q.idx.WalkPrefix(name+":", func(string, interface{}) bool {
		found = true
		return true
	})
	return found
}

// queueLess implements the §4.4 work-queue comparator against live solver
// state.
func (s *Solver) queueLess(i, j int) bool {
	a, b := s.unsel.sl[i].name, s.unsel.sl[j].name
	ra, rb := s.queueRank(a), s.queueRank(b)
	if ra != rb {
		return ra < rb
	}
	if ra == rankInterval {
		va, _ := s.catalog.FindVersions(s.ctx, a)
		vb, _ := s.catalog.FindVersions(s.ctx, b)
		if len(va) != len(vb) {
			return len(va) > len(vb)
		}
	}
	return a < b
}

type queueRank int

const (
	rankPath queueRank = iota
	rankBranch
	rankInterval
)

func (s *Solver) queueRank(name string) queueRank {
	c := s.sel.effectiveConstraint(name, s.policyFor(name))
	switch version.KindOf(c) {
	case version.KindPath:
		return rankPath
	case version.KindBranch:
		return rankBranch
	default:
		return rankInterval
	}
}
