// Package target turns a project.Project into the ordered target DAG and
// computes each target's build-id fingerprint (§4.6). Grounded on the
// teacher's hash.go (HashInputs: a stable field order hashed through
// crypto/sha256) for the fingerprint shape, and on pkg_analysis.go/
// analysis.go for the general notion of deriving a per-package build
// description from its settings.
package target

import (
	"sort"

	"github.com/dlang/dub-sub005/pkg/dubfail"
	"github.com/dlang/dub-sub005/pkg/project"
	"github.com/dlang/dub-sub005/pkg/recipe"
)

// Target is one buildable output: a package's chosen configuration,
// build-type, and platform, plus the other targets it must link against
// (§3 "Target").
type Target struct {
	PackageName    string
	TargetType     recipe.TargetType
	Settings       recipe.BuildSettings
	OutputFileName string
	// LinkDependencies names the other targets (by package name) whose
	// artifacts must be passed to the linker when this target is an
	// executable or dynamic library (§4.6). Static libraries carry the
	// list too, where it orders the build; source-library and "none"
	// packages produce no Target of their own.
	LinkDependencies []string

	BuildID [32]byte
}

// isTargetType reports whether a target type produces a Target at all
// (§4.6 "every package whose target type is not none/sourceLibrary").
func isTargetType(t recipe.TargetType) bool {
	return t != recipe.TargetNone && t != recipe.TargetSourceLibrary
}

// Graph builds the ordered target list for proj: one Target per package
// whose configuration produces an artifact, topologically sorted by link
// dependency with ties broken by package name (§4.6).
func Graph(proj *project.Project) ([]*Target, error) {
	byName := make(map[string]*Target)
	for name, pkg := range proj.Packages {
		if !isTargetType(pkg.Configuration.TargetType) {
			continue
		}
		byName[name] = &Target{
			PackageName:    name,
			TargetType:     pkg.Configuration.TargetType,
			Settings:       pkg.Settings,
			OutputFileName: outputFileName(name, pkg.Configuration.TargetType),
		}
	}

	for name, t := range byName {
		pkg := proj.Packages[name]
		visited := map[string]bool{name: true}
		t.LinkDependencies = collectLinkDeps(proj, pkg, visited)
	}

	ordered, err := topoSort(byName)
	if err != nil {
		return nil, err
	}
	return ordered, nil
}

// collectLinkDeps walks pkg's dependency graph, passing transparently
// through non-linkable packages (source libraries, "none" targets, and
// other executables named as build-only dependencies) and through static
// libraries (which are not self-contained, so their own link inputs must
// also reach the final linker), but stopping at dynamic libraries (which
// are self-contained at link time; see §4.6).
func collectLinkDeps(proj *project.Project, pkg *project.Package, visited map[string]bool) []string {
	var out []string
	seen := make(map[string]bool)

	var walk func(p *project.Package)
	walk = func(p *project.Package) {
		for _, depName := range p.Dependencies {
			if visited[depName] {
				continue
			}
			visited[depName] = true
			dep, ok := proj.Packages[depName]
			if !ok {
				continue
			}
			switch dep.Configuration.TargetType {
			case recipe.TargetStaticLibrary, recipe.TargetDynamicLibrary:
				if !seen[depName] {
					seen[depName] = true
					out = append(out, depName)
				}
				if dep.Configuration.TargetType == recipe.TargetStaticLibrary {
					walk(dep)
				}
			default:
				walk(dep)
			}
		}
	}
	walk(pkg)

	sort.Strings(out)
	return out
}

// topoSort orders targets so every target appears after its
// LinkDependencies, ties broken by package name, using Kahn's algorithm;
// a remaining target with unsatisfiable dependencies indicates a cycle
// (§4.6 "cycles among link dependencies are a fatal error").
func topoSort(byName map[string]*Target) ([]*Target, error) {
	indegree := make(map[string]int, len(byName))
	dependents := make(map[string][]string)
	for name := range byName {
		indegree[name] = 0
	}
	for name, t := range byName {
		for _, dep := range t.LinkDependencies {
			if _, ok := byName[dep]; !ok {
				continue // dependency produced no target (e.g. a source library)
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var ordered []*Target
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byName[name])

		next := append([]string(nil), dependents[name]...)
		sort.Strings(next)
		for _, dn := range next {
			indegree[dn]--
			if indegree[dn] == 0 {
				ready = append(ready, dn)
			}
		}
	}

	if len(ordered) != len(byName) {
		return nil, cycleError(byName, ordered)
	}
	return ordered, nil
}

func cycleError(byName map[string]*Target, ordered []*Target) error {
	done := make(map[string]bool, len(ordered))
	for _, t := range ordered {
		done[t.PackageName] = true
	}
	var edges [][2]string
	var names []string
	for name := range byName {
		if !done[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		for _, dep := range byName[name].LinkDependencies {
			if !done[dep] {
				edges = append(edges, [2]string{name, dep})
			}
		}
	}
	return &dubfail.Cycle{Edges: edges}
}

func outputFileName(name string, t recipe.TargetType) string {
	base := baseName(name)
	switch t {
	case recipe.TargetExecutable:
		return base
	case recipe.TargetStaticLibrary:
		return "lib" + base + ".a"
	case recipe.TargetDynamicLibrary:
		return "lib" + base + ".so"
	case recipe.TargetObject:
		return base + ".o"
	default:
		return base
	}
}

// baseName strips any "parent:child" subpackage qualification down to the
// child's own name, since that's what appears in a filesystem output path.
func baseName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == ':' {
			return name[i+1:]
		}
	}
	return name
}
