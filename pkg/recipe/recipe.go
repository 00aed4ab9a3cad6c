// Package recipe holds the neutral in-memory representation of a package's
// metadata produced by either recipe back-end (§4.2), plus the logic that
// is independent of any one wire format: configuration selection, build
// setting merge, and build-type overlay application.
package recipe

import (
	"fmt"
	"sort"

	"github.com/dlang/dub-sub005/pkg/version"
)

// TargetType is the kind of artifact a Configuration produces.
type TargetType uint8

const (
	TargetExecutable TargetType = iota
	TargetLibrary
	TargetStaticLibrary
	TargetDynamicLibrary
	TargetSourceLibrary
	TargetObject
	TargetNone
)

func (t TargetType) String() string {
	switch t {
	case TargetExecutable:
		return "executable"
	case TargetLibrary:
		return "library"
	case TargetStaticLibrary:
		return "staticLibrary"
	case TargetDynamicLibrary:
		return "dynamicLibrary"
	case TargetSourceLibrary:
		return "sourceLibrary"
	case TargetObject:
		return "object"
	case TargetNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseTargetType parses the textual spelling used by both recipe
// back-ends.
func ParseTargetType(s string) (TargetType, error) {
	switch s {
	case "executable", "":
		return TargetExecutable, nil
	case "library":
		return TargetLibrary, nil
	case "staticLibrary":
		return TargetStaticLibrary, nil
	case "dynamicLibrary":
		return TargetDynamicLibrary, nil
	case "sourceLibrary":
		return TargetSourceLibrary, nil
	case "object":
		return TargetObject, nil
	case "none":
		return TargetNone, nil
	default:
		return 0, fmt.Errorf("unknown target type %q", s)
	}
}

// Platform identifies the OS/architecture/compiler triple a Configuration's
// filtered fields are evaluated against, following the teacher's
// suffix-filter idiom generalized into structured fields (§9 design note:
// "model as (field, set-of-platform-predicates) pairs").
type Platform struct {
	OS       string
	Arch     string
	Compiler string
}

func (p Platform) String() string {
	return fmt.Sprintf("%s-%s-%s", p.OS, p.Arch, p.Compiler)
}

// PlatformFilter is a (possibly partial) Platform pattern; an empty field
// matches any value for that axis.
type PlatformFilter struct {
	OS       string
	Arch     string
	Compiler string
}

// Matches reports whether p satisfies the filter. Empty filter fields are
// wildcards.
func (f PlatformFilter) Matches(p Platform) bool {
	return (f.OS == "" || f.OS == p.OS) &&
		(f.Arch == "" || f.Arch == p.Arch) &&
		(f.Compiler == "" || f.Compiler == p.Compiler)
}

// Configuration is a named build variant within a Recipe.
type Configuration struct {
	Name       string
	TargetType TargetType
	// Platforms holds the configuration's platform-filtered settings, in
	// declaration order; the first whose filter matches wins (§4.2).
	Platforms []PlatformSettings
	// Global holds settings declared without a platform filter; they are
	// unioned with whichever Platforms entry matches (§4.5).
	Global BuildSettings
}

// PlatformSettings pairs a filter with the settings active when it
// matches.
type PlatformSettings struct {
	Filter   PlatformFilter
	Settings BuildSettings
}

// SelectConfiguration picks the Configuration to build, per §4.2: if the
// caller names one, use it; else evaluate filters in declaration order and
// take the first match; if none match, the package is unbuildable for the
// platform (ok==false), which is only tolerated for optional/non-selected
// dependencies (§4.5).
func (r *Recipe) SelectConfiguration(name string, plat Platform) (*Configuration, bool) {
	if name != "" {
		for i := range r.Configurations {
			if r.Configurations[i].Name == name {
				return &r.Configurations[i], true
			}
		}
		return nil, false
	}

	for i := range r.Configurations {
		cfg := &r.Configurations[i]
		if len(cfg.Platforms) == 0 {
			return cfg, true
		}
		for _, ps := range cfg.Platforms {
			if ps.Filter.Matches(plat) {
				return cfg, true
			}
		}
	}
	return nil, false
}

// MergedSettings returns cfg's build settings for plat: the platform-
// filtered entry that matches (first match in declaration order) unioned
// with the configuration's globally declared fields (§4.2, §4.5).
func (cfg *Configuration) MergedSettings(plat Platform) BuildSettings {
	out := cfg.Global.clone()
	for _, ps := range cfg.Platforms {
		if ps.Filter.Matches(plat) {
			out = Merge(out, ps.Settings)
			break
		}
	}
	return out
}

// Dependency describes one entry in a Recipe's dependency map.
type Dependency struct {
	Name             string
	Constraint       version.Constraint
	Optional         bool
	Default          bool
	Path             string
	Subconfiguration string
	Features         []string
}

// ToolRequirements names minimum-version requirements for DUB itself and
// for named compilers (§3 "tool requirements").
type ToolRequirements struct {
	DubVersion        version.Constraint
	CompilerVersions  map[string]version.Constraint
}

// Subpackage is either an inline Recipe or a path reference to one loaded
// lazily by the package manager (§3, §4.2).
type Subpackage struct {
	Inline *Recipe
	Path   string
}

// Recipe is the neutral representation of a package's metadata (§3).
type Recipe struct {
	Name             string
	Version          version.Version
	Configurations   []Configuration
	Subpackages      []Subpackage
	Dependencies     map[string]Dependency
	BuildTypes       map[string]BuildSettings
	ToolRequirements ToolRequirements
}

// SortedDependencyNames returns the recipe's dependency names in a stable
// order, used by anything that must iterate deterministically (the
// resolver's work queue, diagnostic output).
func (r *Recipe) SortedDependencyNames() []string {
	names := make([]string, 0, len(r.Dependencies))
	for n := range r.Dependencies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// QualifiedName resolves a dependency spelling against r: a bare name
// refers to another top-level package; "parent:child" addresses a
// subpackage of parent; a leading ":child" refers to one of r's own
// subpackages (§3).
func QualifiedName(fromPackage, ref string) string {
	if len(ref) > 0 && ref[0] == ':' {
		return fromPackage + ref
	}
	return ref
}
