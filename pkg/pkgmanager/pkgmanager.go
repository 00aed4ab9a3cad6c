// Package pkgmanager implements the package manager of spec §4.3: a
// catalog of available package instances drawn from four disjoint,
// priority-ordered sources, plus on-demand recipe loading and fetch/
// remove/override operations.
package pkgmanager

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/dlang/dub-sub005/internal/npath"
	"github.com/dlang/dub-sub005/pkg/dubfail"
	"github.com/dlang/dub-sub005/pkg/iface"
	"github.com/dlang/dub-sub005/pkg/recipe"
	"github.com/dlang/dub-sub005/pkg/version"
	"github.com/pkg/errors"
	"github.com/theckman/go-flock"
)

// Location identifies where a fetched package lives, per §6's cache
// layout: "<location>/<name>/<version>/<name>/...".
type Location string

// Override is a user-supplied redirection installed via AddOverride
// (§4.3, glossary "Override").
type Override struct {
	Constraint  version.Constraint
	Replacement version.Version
}

// PackageManager maintains the four disjoint sources named in §4.3,
// searched in priority order: in-process overrides, path-based packages,
// user-local fetched cache, system-wide fetched cache.
type PackageManager struct {
	mu sync.Mutex

	overrides    map[string][]Override
	pathPackages map[string]string // name -> local directory

	userCacheDir   string
	systemCacheDir string

	suppliers []iface.PackageSupplier

	// recipeMemo caches loaded recipes until a fetch/override invalidates
	// the catalog (§3 "Lifecycles").
	recipeMemo map[recipeKey]*recipe.Recipe
}

type recipeKey struct {
	name string
	ver  string
}

// New constructs a PackageManager rooted at the given user- and system-
// wide fetched-package cache directories.
func New(userCacheDir, systemCacheDir string, suppliers ...iface.PackageSupplier) *PackageManager {
	return &PackageManager{
		overrides:      make(map[string][]Override),
		pathPackages:   make(map[string]string),
		userCacheDir:   userCacheDir,
		systemCacheDir: systemCacheDir,
		suppliers:      suppliers,
		recipeMemo:     make(map[recipeKey]*recipe.Recipe),
	}
}

// AddOverride installs an in-process override: any dependency on name that
// matches constraint is redirected to replacement instead of going through
// normal resolution (§4.3, glossary "Override").
func (pm *PackageManager) AddOverride(name string, constraint version.Constraint, replacement version.Version) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.overrides[name] = append(pm.overrides[name], Override{Constraint: constraint, Replacement: replacement})
}

// AddPathPackage registers a path-based package the user added directly
// (the `add-local` operation, §2).
func (pm *PackageManager) AddPathPackage(name, dir string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.pathPackages[name] = dir
	delete(pm.recipeMemo, recipeKey{name: name, ver: npath.New(dir).Key()})
}

// ResolveOverride returns the override replacement for name under v, if
// any override's constraint matches v.
func (pm *PackageManager) ResolveOverride(name string, v version.Version) (version.Version, bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	for _, ov := range pm.overrides[name] {
		if ov.Constraint.Matches(v) {
			return ov.Replacement, true
		}
	}
	return nil, false
}

// FindVersions returns the set of versions present across all sources for
// name, in the priority order of §4.3: overrides first (as pseudo-
// versions, surfaced via their replacement), then path-based, then user
// cache, then system cache, then suppliers.
func (pm *PackageManager) FindVersions(ctx context.Context, name string) ([]version.Version, error) {
	pm.mu.Lock()
	var out []version.Version
	for _, ov := range pm.overrides[name] {
		out = append(out, ov.Replacement)
	}
	if dir, ok := pm.pathPackages[name]; ok {
		out = append(out, version.NewPath(dir))
	}
	userCache, systemCache := pm.userCacheDir, pm.systemCacheDir
	pm.mu.Unlock()

	for _, loc := range []string{userCache, systemCache} {
		vs, err := scanCacheVersions(loc, name)
		if err != nil {
			return nil, err
		}
		out = append(out, vs...)
	}

	for _, sup := range pm.suppliers {
		vs, err := sup.ListVersions(ctx, name)
		if err != nil {
			continue // a supplier being unreachable is not fatal; others may know name
		}
		out = append(out, vs...)
	}

	if len(out) == 0 {
		return nil, &dubfail.PackageNotFound{Name: name}
	}
	return dedupVersions(out), nil
}

func dedupVersions(vs []version.Version) []version.Version {
	seen := make(map[string]bool, len(vs))
	out := make([]version.Version, 0, len(vs))
	for _, v := range vs {
		k := v.Type().String() + ":" + v.String()
		if !seen[k] {
			seen[k] = true
			out = append(out, v)
		}
	}
	return out
}

func scanCacheVersions(location, name string) ([]version.Version, error) {
	dir := filepath.Join(location, name)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "scanning cache %s", dir)
	}
	var out []version.Version
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if r, err := version.NewRelease(e.Name()); err == nil {
			out = append(out, r)
		} else {
			out = append(out, version.Branch(e.Name()))
		}
	}
	return out, nil
}

// GetPackage loads the recipe for (name, v), searching sources in
// priority order and memoizing the result (§4.3, §3 "Lifecycles").
func (pm *PackageManager) GetPackage(ctx context.Context, name string, v version.Version) (*recipe.Recipe, error) {
	key := recipeKey{name: name, ver: v.Type().String() + ":" + v.String()}

	pm.mu.Lock()
	if r, ok := pm.recipeMemo[key]; ok {
		pm.mu.Unlock()
		return r, nil
	}
	pm.mu.Unlock()

	r, err := pm.loadPackage(ctx, name, v)
	if err != nil {
		return nil, err
	}

	pm.mu.Lock()
	pm.recipeMemo[key] = r
	pm.mu.Unlock()
	return r, nil
}

func (pm *PackageManager) loadPackage(ctx context.Context, name string, v version.Version) (*recipe.Recipe, error) {
	pm.mu.Lock()
	pathDir, isPath := pm.pathPackages[name]
	userCache, systemCache := pm.userCacheDir, pm.systemCacheDir
	suppliers := append([]iface.PackageSupplier(nil), pm.suppliers...)
	pm.mu.Unlock()

	if p, ok := v.(version.Path); ok {
		return loadRecipeFromDir(p.Key())
	}
	if isPath {
		return loadRecipeFromDir(pathDir)
	}

	for _, loc := range []string{userCache, systemCache} {
		dir := instanceDir(loc, name, v)
		if exists(dir) {
			return loadRecipeFromDir(dir)
		}
	}

	for _, sup := range suppliers {
		data, err := sup.FetchRecipe(ctx, name, v)
		if err != nil {
			continue
		}
		return decodeRecipeBytes(name, data)
	}

	return nil, &dubfail.PackageNotFound{Name: name}
}

// PackageDir returns the on-disk directory a resolved (name, v) would load
// its recipe from, the same lookup loadPackage performs internally, for
// callers that need a package's root after resolution (cmd/dub's copyFiles
// staging, which needs a source path rather than a loaded recipe).
func (pm *PackageManager) PackageDir(name string, v version.Version) (string, bool) {
	pm.mu.Lock()
	pathDir, isPath := pm.pathPackages[name]
	userCache, systemCache := pm.userCacheDir, pm.systemCacheDir
	pm.mu.Unlock()

	if p, ok := v.(version.Path); ok {
		return p.Key(), true
	}
	if isPath {
		return pathDir, true
	}
	for _, loc := range []string{userCache, systemCache} {
		dir := instanceDir(loc, name, v)
		if exists(dir) {
			return dir, true
		}
	}
	return "", false
}

// instanceDir is the fetched-package path of §4.3/§6:
// "<location>/<name>/<version>/<name>/".
func instanceDir(location, name string, v version.Version) string {
	return filepath.Join(location, name, v.String(), name)
}

func exists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// flockPath returns the per-(name,version) exclusive lock file path used
// by Fetch/Remove, per §4.3's concurrency note and DESIGN.md decision #3.
func flockPath(location, name, v string) string {
	return filepath.Join(location, name, v+".lock")
}

func newFlock(path string) *flock.Flock {
	return flock.NewFlock(path)
}
