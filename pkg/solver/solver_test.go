package solver

import (
	"context"
	"testing"

	"github.com/dlang/dub-sub005/pkg/dubfail"
	"github.com/dlang/dub-sub005/pkg/recipe"
	"github.com/dlang/dub-sub005/pkg/version"
)

// fakeCatalog is an in-memory Catalog test double, analogous to
// pkgmanager's fakeSupplier: recipes are keyed by "name@version" and
// versions are whatever was registered for a name.
type fakeCatalog struct {
	versions  map[string][]version.Version
	recipes   map[string]*recipe.Recipe
	overrides map[string]func(version.Version) (version.Version, bool)
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		versions: make(map[string][]version.Version),
		recipes:  make(map[string]*recipe.Recipe),
	}
}

func (c *fakeCatalog) add(rec *recipe.Recipe) {
	key := rec.Name + "@" + rec.Version.String()
	c.recipes[key] = rec
	c.versions[rec.Name] = append(c.versions[rec.Name], rec.Version)
}

func (c *fakeCatalog) FindVersions(ctx context.Context, name string) ([]version.Version, error) {
	vs, ok := c.versions[name]
	if !ok {
		return nil, &dubfail.PackageNotFound{Name: name}
	}
	out := append([]version.Version(nil), vs...)
	return out, nil
}

func (c *fakeCatalog) GetPackage(ctx context.Context, name string, v version.Version) (*recipe.Recipe, error) {
	rec, ok := c.recipes[name+"@"+v.String()]
	if !ok {
		return nil, &dubfail.PackageNotFound{Name: name}
	}
	return rec, nil
}

func (c *fakeCatalog) ResolveOverride(name string, v version.Version) (version.Version, bool) {
	if f, ok := c.overrides[name]; ok {
		return f(v)
	}
	return nil, false
}

func simpleRecipe(name, ver string, deps map[string]string) *recipe.Recipe {
	r := &recipe.Recipe{
		Name:         name,
		Version:      version.MustRelease(ver),
		Dependencies: make(map[string]recipe.Dependency),
		Configurations: []recipe.Configuration{
			{Name: "library", TargetType: recipe.TargetLibrary},
		},
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

func mustSolve(t *testing.T, catalog Catalog, root *recipe.Recipe) Solution {
	t.Helper()
	s := New(context.Background(), catalog, Params{RootRecipe: root, Platform: recipe.Platform{OS: "linux", Arch: "x86_64", Compiler: "dmd"}})
	sol, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %s", err)
	}
	return sol
}

func TestTildeLowering(t *testing.T) {
	c := newFakeCatalog()
	c.add(simpleRecipe("lib", "1.2.0", nil))
	c.add(simpleRecipe("lib", "1.3.0", nil))
	c.add(simpleRecipe("lib", "2.0.0", nil))

	root := simpleRecipe("app", "1.0.0", map[string]string{"lib": "~>1.2.0"})
	sol := mustSolve(t, c, root)

	got, ok := sol["lib"]
	if !ok {
		t.Fatalf("expected lib in solution: %v", sol)
	}
	if got.Version.String() != "1.2.0" {
		t.Fatalf("expected lib@1.2.0 (highest within ~>1.2.0), got %s", got.Version)
	}
}

func TestDiamondWithOverlap(t *testing.T) {
	c := newFakeCatalog()
	c.add(simpleRecipe("base", "1.0.0", nil))
	c.add(simpleRecipe("base", "1.5.0", nil))
	c.add(simpleRecipe("base", "2.0.0", nil))
	c.add(simpleRecipe("left", "1.0.0", map[string]string{"base": ">=1.0.0 <2.0.0"}))
	c.add(simpleRecipe("right", "1.0.0", map[string]string{"base": ">=1.5.0"}))

	root := simpleRecipe("app", "1.0.0", map[string]string{"left": ">=1.0.0", "right": ">=1.0.0"})
	sol := mustSolve(t, c, root)

	base, ok := sol["base"]
	if !ok {
		t.Fatalf("expected base in solution: %v", sol)
	}
	if base.Version.String() != "1.5.0" {
		t.Fatalf("expected base@1.5.0 (the only version both left and right admit), got %s", base.Version)
	}
}

func TestDiamondWithoutOverlapConflicts(t *testing.T) {
	c := newFakeCatalog()
	c.add(simpleRecipe("base", "1.0.0", nil))
	c.add(simpleRecipe("base", "2.0.0", nil))
	c.add(simpleRecipe("left", "1.0.0", map[string]string{"base": "<2.0.0"}))
	c.add(simpleRecipe("right", "1.0.0", map[string]string{"base": ">=2.0.0"}))

	root := simpleRecipe("app", "1.0.0", map[string]string{"left": ">=1.0.0", "right": ">=1.0.0"})
	s := New(context.Background(), c, Params{RootRecipe: root, Platform: recipe.Platform{OS: "linux", Arch: "x86_64", Compiler: "dmd"}})
	_, err := s.Solve()
	if err == nil {
		t.Fatalf("expected a resolution failure for disjoint constraints on base")
	}
	if _, ok := err.(*dubfail.NoCompatibleVersion); !ok {
		t.Fatalf("expected *dubfail.NoCompatibleVersion, got %T (%v)", err, err)
	}
}

func TestOptionalDependencyActivatedByDefault(t *testing.T) {
	c := newFakeCatalog()
	c.add(simpleRecipe("extra", "1.0.0", nil))

	root := simpleRecipe("app", "1.0.0", nil)
	root.Dependencies["extra"] = recipe.Dependency{Name: "extra", Constraint: version.Any(), Optional: true, Default: true}

	sol := mustSolve(t, c, root)
	if _, ok := sol["extra"]; !ok {
		t.Fatalf("expected default:true optional dependency to be activated: %v", sol)
	}
}

func TestOptionalDependencyNotActivatedWithoutTrigger(t *testing.T) {
	c := newFakeCatalog()
	c.add(simpleRecipe("extra", "1.0.0", nil))

	root := simpleRecipe("app", "1.0.0", nil)
	root.Dependencies["extra"] = recipe.Dependency{Name: "extra", Constraint: version.Any(), Optional: true}

	sol := mustSolve(t, c, root)
	if _, ok := sol["extra"]; ok {
		t.Fatalf("expected optional, non-default dependency to stay inactive: %v", sol)
	}
}

func TestOptionalDependencyActivatedByPriorSelection(t *testing.T) {
	c := newFakeCatalog()
	c.add(simpleRecipe("extra", "1.0.0", nil))

	root := simpleRecipe("app", "1.0.0", nil)
	root.Dependencies["extra"] = recipe.Dependency{Name: "extra", Constraint: version.Any(), Optional: true}

	s := New(context.Background(), c, Params{
		RootRecipe: root,
		Platform:   recipe.Platform{OS: "linux", Arch: "x86_64", Compiler: "dmd"},
		PriorSelection: map[string]version.Version{
			"extra": version.MustRelease("1.0.0"),
		},
	})
	sol, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %s", err)
	}
	if _, ok := sol["extra"]; !ok {
		t.Fatalf("expected optional dependency present in a prior selection to be activated: %v", sol)
	}
}

func TestPriorSelectionIsKeptWhenStillAdmissible(t *testing.T) {
	c := newFakeCatalog()
	c.add(simpleRecipe("lib", "1.0.0", nil))
	c.add(simpleRecipe("lib", "1.1.0", nil))

	root := simpleRecipe("app", "1.0.0", map[string]string{"lib": ">=1.0.0"})
	s := New(context.Background(), c, Params{
		RootRecipe: root,
		Platform:   recipe.Platform{OS: "linux", Arch: "x86_64", Compiler: "dmd"},
		PriorSelection: map[string]version.Version{
			"lib": version.MustRelease("1.0.0"),
		},
	})
	sol, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %s", err)
	}
	if sol["lib"].Version.String() != "1.0.0" {
		t.Fatalf("expected prior selection 1.0.0 to be kept over the newer 1.1.0, got %s", sol["lib"].Version)
	}
}

func TestToChangeIgnoresPriorSelection(t *testing.T) {
	c := newFakeCatalog()
	c.add(simpleRecipe("lib", "1.0.0", nil))
	c.add(simpleRecipe("lib", "1.1.0", nil))

	root := simpleRecipe("app", "1.0.0", map[string]string{"lib": ">=1.0.0"})
	s := New(context.Background(), c, Params{
		RootRecipe:     root,
		Platform:       recipe.Platform{OS: "linux", Arch: "x86_64", Compiler: "dmd"},
		PriorSelection: map[string]version.Version{"lib": version.MustRelease("1.0.0")},
		ToChange:       map[string]bool{"lib": true},
	})
	sol, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %s", err)
	}
	if sol["lib"].Version.String() != "1.1.0" {
		t.Fatalf("expected ToChange to force re-resolution to the newest 1.1.0, got %s", sol["lib"].Version)
	}
}

func TestDowngradePicksLowestAdmissible(t *testing.T) {
	c := newFakeCatalog()
	c.add(simpleRecipe("lib", "1.0.0", nil))
	c.add(simpleRecipe("lib", "1.1.0", nil))
	c.add(simpleRecipe("lib", "1.2.0", nil))

	root := simpleRecipe("app", "1.0.0", map[string]string{"lib": ">=1.0.0"})
	s := New(context.Background(), c, Params{
		RootRecipe: root,
		Platform:   recipe.Platform{OS: "linux", Arch: "x86_64", Compiler: "dmd"},
		Downgrade:  true,
	})
	sol, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %s", err)
	}
	if sol["lib"].Version.String() != "1.0.0" {
		t.Fatalf("expected Downgrade to pick the lowest admissible version, got %s", sol["lib"].Version)
	}
}

func TestPrereleaseRequiresOptIn(t *testing.T) {
	c := newFakeCatalog()
	c.add(simpleRecipe("lib", "1.0.0", nil))
	c.add(simpleRecipe("lib", "1.1.0-beta.1", nil))

	root := simpleRecipe("app", "1.0.0", map[string]string{"lib": ">=1.0.0"})

	sol := mustSolve(t, c, root)
	if sol["lib"].Version.String() != "1.0.0" {
		t.Fatalf("expected the prerelease to be excluded by default, got %s", sol["lib"].Version)
	}

	s := New(context.Background(), c, Params{
		RootRecipe:         root,
		Platform:           recipe.Platform{OS: "linux", Arch: "x86_64", Compiler: "dmd"},
		AllowPrereleaseFor: map[string]bool{"lib": true},
	})
	sol2, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %s", err)
	}
	if sol2["lib"].Version.String() != "1.1.0-beta.1" {
		t.Fatalf("expected the opted-in prerelease to be picked, got %s", sol2["lib"].Version)
	}
}

func TestOverrideRedirectsResolution(t *testing.T) {
	c := newFakeCatalog()
	c.add(simpleRecipe("lib", "1.0.0", nil))
	c.add(simpleRecipe("lib", "9.9.9", nil))
	c.overrides = map[string]func(version.Version) (version.Version, bool){
		"lib": func(v version.Version) (version.Version, bool) {
			return version.MustRelease("9.9.9"), true
		},
	}

	root := simpleRecipe("app", "1.0.0", map[string]string{"lib": ">=1.0.0 <2.0.0"})
	sol := mustSolve(t, c, root)
	if sol["lib"].Version.String() != "9.9.9" {
		t.Fatalf("expected the override to redirect resolution to 9.9.9, got %s", sol["lib"].Version)
	}
}

func TestPathOverrideWinsAgainstInterval(t *testing.T) {
	c := newFakeCatalog()
	c.add(simpleRecipe("lib", "1.0.0", nil))
	// Mimic what pkgmanager.FindVersions does once AddPathPackage has
	// registered an override: the path becomes an additional candidate.
	localPath := version.NewPath("/local/lib")
	c.versions["lib"] = append(c.versions["lib"], localPath)
	c.recipes["lib@"+localPath.String()] = simpleRecipe("lib", "1.0.0", nil)

	root := simpleRecipe("app", "1.0.0", map[string]string{"lib": "==1.0.0"})
	s := New(context.Background(), c, Params{
		RootRecipe:    root,
		Platform:      recipe.Platform{OS: "linux", Arch: "x86_64", Compiler: "dmd"},
		PathOverrides: map[string]string{"lib": "/local/lib"},
	})
	sol, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %s", err)
	}
	if sol["lib"].Version.Type() != version.TypePath || sol["lib"].Version.String() != "/local/lib" {
		t.Fatalf("expected lib pinned to the path override, got %v", sol["lib"].Version)
	}
}

func TestCycleAmongRegularDependenciesFails(t *testing.T) {
	c := newFakeCatalog()
	c.add(simpleRecipe("a", "1.0.0", map[string]string{"b": ">=1.0.0"}))
	c.add(simpleRecipe("b", "1.0.0", map[string]string{"a": ">=1.0.0"}))

	root := simpleRecipe("app", "1.0.0", map[string]string{"a": ">=1.0.0"})
	s := New(context.Background(), c, Params{RootRecipe: root, Platform: recipe.Platform{OS: "linux", Arch: "x86_64", Compiler: "dmd"}})
	_, err := s.Solve()
	if _, ok := err.(*dubfail.Cycle); !ok {
		t.Fatalf("expected *dubfail.Cycle, got %T (%v)", err, err)
	}
}

func TestPathSiblingCycleIsPermitted(t *testing.T) {
	c := newFakeCatalog()

	root := simpleRecipe("app", "1.0.0", nil)
	root.Dependencies["app:sub1"] = recipe.Dependency{
		Name: "app:sub1", Path: "sub1",
		Constraint: version.NewPathConstraint(version.NewPath("sub1")),
	}
	sub1 := simpleRecipe("app:sub1", "1.0.0", nil)
	sub1.Dependencies["app:sub2"] = recipe.Dependency{
		Name: "app:sub2", Path: "sub2",
		Constraint: version.NewPathConstraint(version.NewPath("sub2")),
	}
	sub2 := simpleRecipe("app:sub2", "1.0.0", nil)
	sub2.Dependencies["app:sub1"] = recipe.Dependency{
		Name: "app:sub1", Path: "sub1",
		Constraint: version.NewPathConstraint(version.NewPath("sub1")),
	}
	c.add(sub1)
	c.add(sub2)

	sol := mustSolve(t, c, root)
	if _, ok := sol["app:sub1"]; !ok {
		t.Fatalf("expected app:sub1 selected despite the path cycle: %v", sol)
	}
	if _, ok := sol["app:sub2"]; !ok {
		t.Fatalf("expected app:sub2 selected despite the path cycle: %v", sol)
	}
}

func TestUnknownPackageReportsNotFound(t *testing.T) {
	c := newFakeCatalog()
	root := simpleRecipe("app", "1.0.0", map[string]string{"missing": ">=1.0.0"})

	s := New(context.Background(), c, Params{RootRecipe: root, Platform: recipe.Platform{OS: "linux", Arch: "x86_64", Compiler: "dmd"}})
	_, err := s.Solve()
	if _, ok := err.(*dubfail.PackageNotFound); !ok {
		t.Fatalf("expected *dubfail.PackageNotFound, got %T (%v)", err, err)
	}
}
