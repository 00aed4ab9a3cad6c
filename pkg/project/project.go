// Package project expands a resolved selection into the runtime package
// graph (§4.5): one Package per selected name plus the root, each with a
// chosen Configuration and a fully merged, build-type-applied, dependency-
// propagated BuildSettings. Grounded on the teacher's project.go/
// project_manager.go (a Project wrapping per-root derived state, computed
// once and cached on the struct) and rootdata.go (root-specific
// resolution of which packages/configurations apply), generalized from Go
// import graphs to DUB's explicit recipe dependency declarations.
package project

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/dlang/dub-sub005/pkg/recipe"
	"github.com/dlang/dub-sub005/pkg/version"
)

// Catalog is project's only dependency on the outside world: a recipe
// source keyed by (name, concrete version), the same shape solver.Catalog
// exposes GetPackage through (§4.3/§4.5).
type Catalog interface {
	GetPackage(ctx context.Context, name string, v version.Version) (*recipe.Recipe, error)
}

// Selected is one resolved package's outcome, mirroring solver.Selected
// without importing pkg/solver (the two packages sit at different layers
// of the pipeline and shouldn't need each other's internals).
type Selected struct {
	Version       version.Version
	Configuration string
}

// Package is one node of the runtime package graph: a loaded recipe, its
// chosen configuration, and the fully merged settings that configuration
// contributes after build-type overlay and dependency propagation (§4.5).
type Package struct {
	Name          string
	Recipe        *recipe.Recipe
	Version       version.Version
	Configuration *recipe.Configuration
	// OwnSettings is this package's configuration settings after platform
	// filtering and build-type overlay, before any dependency's settings
	// are propagated into it.
	OwnSettings recipe.BuildSettings
	// Settings is OwnSettings plus every active dependency's propagated
	// contribution (§4.5 "inherited options... are propagated upward").
	Settings recipe.BuildSettings
	// Dependencies names this package's active direct dependencies, sorted
	// by name, already qualified (parent:child) where relevant.
	Dependencies []string
}

// Project is the expanded runtime graph: the root package plus every
// selected dependency, each with its merged settings (§4.5).
type Project struct {
	Root     *Package
	Packages map[string]*Package
}

// Package looks up name (the root's own name is also valid).
func (p *Project) Package(name string) (*Package, bool) {
	pkg, ok := p.Packages[name]
	return pkg, ok
}

// SortedNames returns every non-root package name in the project, sorted,
// for deterministic iteration (diagnostics, target-graph construction).
func (p *Project) SortedNames() []string {
	names := make([]string, 0, len(p.Packages))
	for n := range p.Packages {
		if n != p.Root.Name {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Build expands a solved selection into a Project (§4.5): loads every
// selected package's recipe, picks its configuration, applies the named
// build-type, and propagates dependency settings upward in dependency
// order.
func Build(ctx context.Context, catalog Catalog, rootRecipe *recipe.Recipe, rootConfigName string, selection map[string]Selected, plat recipe.Platform, buildType string) (*Project, error) {
	proj := &Project{Packages: make(map[string]*Package, len(selection)+1)}

	rootCfg, ok := rootRecipe.SelectConfiguration(rootConfigName, plat)
	if !ok {
		return nil, errors.Errorf("root package %s has no configuration for platform %s", rootRecipe.Name, plat)
	}
	root := &Package{
		Name:          rootRecipe.Name,
		Recipe:        rootRecipe,
		Version:       rootRecipe.Version,
		Configuration: rootCfg,
		OwnSettings:   recipe.ApplyBuildType(rootCfg.MergedSettings(plat), rootRecipe.BuildTypes, buildType),
	}
	root.Dependencies = activeDependencyNames(rootRecipe, selection)
	proj.Root = root
	proj.Packages[root.Name] = root

	for name, sel := range selection {
		rec, err := catalog.GetPackage(ctx, name, sel.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "loading resolved package %s", name)
		}
		cfg, ok := rec.SelectConfiguration(sel.Configuration, plat)
		if !ok {
			return nil, errors.Errorf("package %s@%s has no configuration for platform %s", name, sel.Version, plat)
		}
		pkg := &Package{
			Name:          name,
			Recipe:        rec,
			Version:       sel.Version,
			Configuration: cfg,
			OwnSettings:   recipe.ApplyBuildType(cfg.MergedSettings(plat), rec.BuildTypes, buildType),
		}
		pkg.Dependencies = activeDependencyNames(rec, selection)
		proj.Packages[name] = pkg
	}

	if err := propagateSettings(proj); err != nil {
		return nil, err
	}
	return proj, nil
}

// activeDependencyNames returns rec's declared dependencies that survived
// into the selection (i.e. the resolver activated them), qualified and in
// stable order.
func activeDependencyNames(rec *recipe.Recipe, selection map[string]Selected) []string {
	var names []string
	for depName := range rec.Dependencies {
		qualified := recipe.QualifiedName(rec.Name, depName)
		if _, ok := selection[qualified]; ok {
			names = append(names, qualified)
		}
	}
	sort.Strings(names)
	return names
}
