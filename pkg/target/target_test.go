package target

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/dlang/dub-sub005/pkg/dubfail"
	"github.com/dlang/dub-sub005/pkg/iface"
	"github.com/dlang/dub-sub005/pkg/project"
	"github.com/dlang/dub-sub005/pkg/recipe"
	"github.com/dlang/dub-sub005/pkg/version"
)

type fakeCatalog map[string]*recipe.Recipe

func (c fakeCatalog) GetPackage(ctx context.Context, name string, v version.Version) (*recipe.Recipe, error) {
	return c[name+"@"+v.String()], nil
}

var plat = recipe.Platform{OS: "linux", Arch: "x86_64", Compiler: "dmd"}

func rec(name, ver string, tt recipe.TargetType, deps map[string]string) *recipe.Recipe {
	r := &recipe.Recipe{
		Name:         name,
		Version:      version.MustRelease(ver),
		Dependencies: make(map[string]recipe.Dependency),
		Configurations: []recipe.Configuration{{
			Name:       "library",
			TargetType: tt,
			Global: recipe.BuildSettings{
				SourceFiles: []string{"source/" + name + ".d"},
			},
		}},
	}
	for depName, constraint := range deps {
		c, err := version.Parse(constraint)
		if err != nil {
			panic(err)
		}
		r.Dependencies[depName] = recipe.Dependency{Name: depName, Constraint: c}
	}
	return r
}

func build(t *testing.T, root *recipe.Recipe, catalog fakeCatalog, selection map[string]project.Selected) *project.Project {
	t.Helper()
	proj, err := project.Build(context.Background(), catalog, root, "", selection, plat, "debug")
	if err != nil {
		t.Fatalf("project.Build: %s", err)
	}
	return proj
}

func TestGraphCollapsesSourceLibraryPassThrough(t *testing.T) {
	srcLib := rec("srclib", "1.0.0", recipe.TargetSourceLibrary, nil)
	root := rec("app", "1.0.0", recipe.TargetExecutable, map[string]string{"srclib": ">=1.0.0"})

	catalog := fakeCatalog{"srclib@1.0.0": srcLib}
	sel := map[string]project.Selected{"srclib": {Version: version.MustRelease("1.0.0"), Configuration: "library"}}

	proj := build(t, root, catalog, sel)
	targets, err := Graph(proj)
	if err != nil {
		t.Fatalf("Graph: %s", err)
	}
	if len(targets) != 1 {
		t.Fatalf("expected only the executable to produce a target (source library does not), got %d", len(targets))
	}
	if targets[0].PackageName != "app" {
		t.Fatalf("expected app, got %s", targets[0].PackageName)
	}
	if len(targets[0].LinkDependencies) != 0 {
		t.Fatalf("expected no link dependencies through a source library, got %v", targets[0].LinkDependencies)
	}
}

func TestGraphStaticLibraryTransitiveLinkDeps(t *testing.T) {
	base := rec("base", "1.0.0", recipe.TargetStaticLibrary, nil)
	mid := rec("mid", "1.0.0", recipe.TargetStaticLibrary, map[string]string{"base": ">=1.0.0"})
	root := rec("app", "1.0.0", recipe.TargetExecutable, map[string]string{"mid": ">=1.0.0"})

	catalog := fakeCatalog{"base@1.0.0": base, "mid@1.0.0": mid}
	sel := map[string]project.Selected{
		"base": {Version: version.MustRelease("1.0.0"), Configuration: "library"},
		"mid":  {Version: version.MustRelease("1.0.0"), Configuration: "library"},
	}

	proj := build(t, root, catalog, sel)
	targets, err := Graph(proj)
	if err != nil {
		t.Fatalf("Graph: %s", err)
	}
	if len(targets) != 3 {
		t.Fatalf("expected 3 targets (app, mid, base), got %d", len(targets))
	}

	order := make(map[string]int, len(targets))
	for i, tg := range targets {
		order[tg.PackageName] = i
	}
	if order["base"] > order["mid"] || order["mid"] > order["app"] {
		t.Fatalf("expected topological order base, mid, app; got %v", targets)
	}

	var app *Target
	for _, tg := range targets {
		if tg.PackageName == "app" {
			app = tg
		}
	}
	if len(app.LinkDependencies) != 2 {
		t.Fatalf("expected app to transitively link both static libs, got %v", app.LinkDependencies)
	}
}

func TestGraphDynamicLibraryStopsTransitiveLinkDeps(t *testing.T) {
	inner := rec("inner", "1.0.0", recipe.TargetStaticLibrary, nil)
	dyn := rec("dyn", "1.0.0", recipe.TargetDynamicLibrary, map[string]string{"inner": ">=1.0.0"})
	root := rec("app", "1.0.0", recipe.TargetExecutable, map[string]string{"dyn": ">=1.0.0"})

	catalog := fakeCatalog{"inner@1.0.0": inner, "dyn@1.0.0": dyn}
	sel := map[string]project.Selected{
		"inner": {Version: version.MustRelease("1.0.0"), Configuration: "library"},
		"dyn":   {Version: version.MustRelease("1.0.0"), Configuration: "library"},
	}

	proj := build(t, root, catalog, sel)
	targets, err := Graph(proj)
	if err != nil {
		t.Fatalf("Graph: %s", err)
	}

	var app *Target
	for _, tg := range targets {
		if tg.PackageName == "app" {
			app = tg
		}
	}
	if len(app.LinkDependencies) != 1 || app.LinkDependencies[0] != "dyn" {
		t.Fatalf("expected app to link only dyn directly (not behind the dynamic library boundary), got %v", app.LinkDependencies)
	}
}

func TestComputeBuildIDDeterministic(t *testing.T) {
	root := rec("app", "1.0.0", recipe.TargetExecutable, nil)
	proj := build(t, root, fakeCatalog{}, map[string]project.Selected{})
	targets, err := Graph(proj)
	if err != nil {
		t.Fatalf("Graph: %s", err)
	}

	hashFile := func(path string) ([32]byte, error) { return sha256.Sum256([]byte(path)), nil }
	tool := ToolchainIdentity{BinaryIdentity: "dmd-bin", Version: "2.100.0", Probe: iface.CompilerPlatform{OS: "linux", Architecture: "x86_64", CompilerName: "dmd"}}

	id1, err := ComputeBuildID(targets[0], tool, "debug", hashFile, nil)
	if err != nil {
		t.Fatalf("ComputeBuildID: %s", err)
	}
	id2, err := ComputeBuildID(targets[0], tool, "debug", hashFile, nil)
	if err != nil {
		t.Fatalf("ComputeBuildID: %s", err)
	}
	if id1 != id2 {
		t.Fatalf("expected deterministic build-id, got %x != %x", id1, id2)
	}

	id3, err := ComputeBuildID(targets[0], tool, "release", hashFile, nil)
	if err != nil {
		t.Fatalf("ComputeBuildID: %s", err)
	}
	if id1 == id3 {
		t.Fatalf("expected build-id to change with build type")
	}
}

func TestGraphCycleAmongLinkDependenciesFails(t *testing.T) {
	// Can't arise through the resolver (which rejects non-path cycles), but
	// target.Graph must still refuse to silently drop one constructed by
	// hand (e.g. path dependencies between sibling subpackages, §4.6).
	a := rec("a", "1.0.0", recipe.TargetStaticLibrary, map[string]string{"b": ">=1.0.0"})
	b := rec("b", "1.0.0", recipe.TargetStaticLibrary, nil)
	root := rec("app", "1.0.0", recipe.TargetExecutable, map[string]string{"a": ">=1.0.0"})

	catalog := fakeCatalog{"a@1.0.0": a, "b@1.0.0": b}
	sel := map[string]project.Selected{
		"a": {Version: version.MustRelease("1.0.0"), Configuration: "library"},
		"b": {Version: version.MustRelease("1.0.0"), Configuration: "library"},
	}
	proj := build(t, root, catalog, sel)

	// Hand-introduce a cycle: b now also depends on a.
	proj.Packages["b"].Dependencies = []string{"a"}

	_, err := Graph(proj)
	if _, ok := err.(*dubfail.Cycle); !ok {
		t.Fatalf("expected *dubfail.Cycle, got %T (%v)", err, err)
	}
}
