package solver

import (
	"github.com/dlang/dub-sub005/pkg/dubfail"
	"github.com/dlang/dub-sub005/pkg/version"
)

// detectCycle walks the requirement graph built up during solving looking
// for a cycle among non-path-based dependencies (§4.4 "On a cycle in
// non-path-based dependencies, report a cycle failure"). Path-based
// dependencies are exempt: sibling subpackages of one root are explicitly
// permitted to cycle (§4.4, §4.6), since they're broken apart again at
// target-ordering time rather than during resolution.
func (s *Solver) detectCycle() error {
	edges := make(map[string][]string)
	for name, reqs := range s.sel.deps {
		for _, r := range reqs {
			if r.requester == "" {
				continue // root requirements have no back-edge to cycle through
			}
			if isPathRequirement(r) {
				continue
			}
			edges[r.requester] = append(edges[r.requester], name)
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var path []string

	var visit func(n string) []string
	visit = func(n string) []string {
		color[n] = gray
		path = append(path, n)
		for _, next := range edges[n] {
			switch color[next] {
			case white:
				if cyc := visit(next); cyc != nil {
					return cyc
				}
			case gray:
				// Found the back-edge; extract the cycle from path.
				for i, p := range path {
					if p == next {
						return append(append([]string{}, path[i:]...), next)
					}
				}
			}
		}
		path = path[:len(path)-1]
		color[n] = black
		return nil
	}

	for n := range edges {
		if color[n] == white {
			if cyc := visit(n); cyc != nil {
				edgeList := make([][2]string, 0, len(cyc)-1)
				for i := 0; i+1 < len(cyc); i++ {
					edgeList = append(edgeList, [2]string{cyc[i], cyc[i+1]})
				}
				return &dubfail.Cycle{Edges: edgeList}
			}
		}
	}
	return nil
}

func isPathRequirement(r requirement) bool {
	return r.constraint != nil && version.KindOf(r.constraint) == version.KindPath
}
