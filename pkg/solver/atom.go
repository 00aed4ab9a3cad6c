package solver

import (
	"context"

	"github.com/dlang/dub-sub005/pkg/recipe"
	"github.com/dlang/dub-sub005/pkg/version"
)

// atom is a single (package, concrete version) pair under consideration,
// the solver's unit of selection (§4.4).
type atom struct {
	name string
	v    version.Version
}

// requirement is one requester's declared dependency on name, carried
// alongside enough context to compute effective constraints and optional
// activation (§4.4's activation rules (a)/(b)/(c)).
type requirement struct {
	requester        string
	name             string
	constraint       version.Constraint
	optional         bool
	defaultActivate  bool
	subconfiguration string
}

// Catalog is the resolver's only dependency on the outside world: a
// version-and-recipe source. pkg/pkgmanager.PackageManager satisfies this
// interface structurally (§4.3/§4.4); tests supply fakes so the solver can
// be exercised without touching disk or a network.
type Catalog interface {
	FindVersions(ctx context.Context, name string) ([]version.Version, error)
	GetPackage(ctx context.Context, name string, v version.Version) (*recipe.Recipe, error)
	ResolveOverride(name string, v version.Version) (version.Version, bool)
}
