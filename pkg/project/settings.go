package project

import (
	"github.com/dlang/dub-sub005/pkg/recipe"
)

// propagateSettings computes each package's Settings as its OwnSettings
// plus its active dependencies' already-propagated contributions, walked
// dependency-first (§4.5 "inherited options from dependencies are
// propagated upward"; "library-dependency-of-static-library
// relationships collapse"). Source-library dependencies contribute their
// settings like any other dependency here; they're excluded from the
// link graph only at target-construction time (§4.6), not here.
func propagateSettings(proj *Project) error {
	done := make(map[string]bool, len(proj.Packages))
	inProgress := make(map[string]bool, len(proj.Packages))

	var visit func(name string) error
	visit = func(name string) error {
		if done[name] {
			return nil
		}
		if inProgress[name] {
			// A cycle among non-path dependencies would already have been
			// rejected by the resolver (§4.4); a path-based sibling cycle
			// reaching here just stops short rather than recursing
			// forever, leaving the cycle's own settings un-propagated
			// into each other (§4.6 breaks these apart properly).
			return nil
		}
		inProgress[name] = true
		defer delete(inProgress, name)

		pkg, ok := proj.Packages[name]
		if !ok {
			return nil
		}
		settings := pkg.OwnSettings
		for _, depName := range pkg.Dependencies {
			if err := visit(depName); err != nil {
				return err
			}
			dep, ok := proj.Packages[depName]
			if !ok {
				continue
			}
			if pkg.Configuration.TargetType == recipe.TargetStaticLibrary {
				settings = recipe.AbsorbStatic(settings, dep.Settings)
			} else {
				settings = recipe.Merge(settings, dep.Settings)
			}
		}
		pkg.Settings = settings
		done[name] = true
		return nil
	}

	if err := visit(proj.Root.Name); err != nil {
		return err
	}
	for name := range proj.Packages {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
