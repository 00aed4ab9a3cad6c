package recipe

// BuildSettings is an additive key-value bundle of compiler inputs (§3).
// Merging two BuildSettings concatenates their array fields with
// de-duplication, except flag arrays, where declaration order must be
// preserved because flags can be order-sensitive (e.g. library search
// order); Prepend* variants exist for those so a later, more specific
// settings layer can still win priority over an earlier one.
type BuildSettings struct {
	Versions             []string
	ImportPaths          []string
	StringImportPaths    []string
	SourceFiles          []string
	ExcludedSourceFiles  []string
	DFlags               []string
	LFlags               []string
	CFlags               []string
	Libs                 []string
	CopyFiles            []string
	PreBuildCommands     []string
	PostBuildCommands    []string
	Environment          map[string]string

	// PrependDFlags/PrependLFlags hold flags that must be placed before
	// whatever DFlags/LFlags this layer is merged into, for order-
	// sensitive compiler/linker flags (§3).
	PrependDFlags []string
	PrependLFlags []string
}

func (b BuildSettings) clone() BuildSettings {
	out := BuildSettings{
		Versions:            append([]string(nil), b.Versions...),
		ImportPaths:         append([]string(nil), b.ImportPaths...),
		StringImportPaths:   append([]string(nil), b.StringImportPaths...),
		SourceFiles:         append([]string(nil), b.SourceFiles...),
		ExcludedSourceFiles: append([]string(nil), b.ExcludedSourceFiles...),
		DFlags:              append([]string(nil), b.DFlags...),
		LFlags:              append([]string(nil), b.LFlags...),
		CFlags:              append([]string(nil), b.CFlags...),
		Libs:                append([]string(nil), b.Libs...),
		CopyFiles:           append([]string(nil), b.CopyFiles...),
		PreBuildCommands:    append([]string(nil), b.PreBuildCommands...),
		PostBuildCommands:   append([]string(nil), b.PostBuildCommands...),
		PrependDFlags:       append([]string(nil), b.PrependDFlags...),
		PrependLFlags:       append([]string(nil), b.PrependLFlags...),
	}
	if b.Environment != nil {
		out.Environment = make(map[string]string, len(b.Environment))
		for k, v := range b.Environment {
			out.Environment[k] = v
		}
	}
	return out
}

// Merge combines base with overlay, with overlay's contributions appended
// after base's (base is considered the "earlier", more general layer —
// e.g. a dependency's exported settings — and overlay the "later", more
// specific one — e.g. the consuming package's own settings or a build-type
// overlay). Array fields de-duplicate; flag arrays preserve order; Prepend
// variants are spliced in front of the corresponding flag field instead of
// appended.
func Merge(base, overlay BuildSettings) BuildSettings {
	out := BuildSettings{
		Versions:            dedupAppend(base.Versions, overlay.Versions),
		ImportPaths:         dedupAppend(base.ImportPaths, overlay.ImportPaths),
		StringImportPaths:   dedupAppend(base.StringImportPaths, overlay.StringImportPaths),
		SourceFiles:         dedupAppend(base.SourceFiles, overlay.SourceFiles),
		ExcludedSourceFiles: dedupAppend(base.ExcludedSourceFiles, overlay.ExcludedSourceFiles),
		Libs:                dedupAppend(base.Libs, overlay.Libs),
		CopyFiles:           dedupAppend(base.CopyFiles, overlay.CopyFiles),
		PreBuildCommands:    append(append([]string(nil), base.PreBuildCommands...), overlay.PreBuildCommands...),
		PostBuildCommands:   append(append([]string(nil), base.PostBuildCommands...), overlay.PostBuildCommands...),
	}

	out.DFlags = orderedFlags(base.PrependDFlags, base.DFlags, overlay.PrependDFlags, overlay.DFlags)
	out.LFlags = orderedFlags(base.PrependLFlags, base.LFlags, overlay.PrependLFlags, overlay.LFlags)
	out.CFlags = append(append([]string(nil), base.CFlags...), overlay.CFlags...)

	if len(base.Environment) > 0 || len(overlay.Environment) > 0 {
		out.Environment = make(map[string]string, len(base.Environment)+len(overlay.Environment))
		for k, v := range base.Environment {
			out.Environment[k] = v
		}
		for k, v := range overlay.Environment {
			out.Environment[k] = v
		}
	}
	return out
}

// orderedFlags preserves declaration order across prepend/append layers:
// any Prepend entries come first (base's before overlay's, since a
// dependency's prepend must still precede the consumer's own prepend),
// then the plain flags in the same base-then-overlay order.
func orderedFlags(basePrepend, baseFlags, overlayPrepend, overlayFlags []string) []string {
	out := make([]string, 0, len(basePrepend)+len(overlayPrepend)+len(baseFlags)+len(overlayFlags))
	out = append(out, basePrepend...)
	out = append(out, overlayPrepend...)
	out = append(out, baseFlags...)
	out = append(out, overlayFlags...)
	return out
}

func dedupAppend(base, overlay []string) []string {
	seen := make(map[string]bool, len(base)+len(overlay))
	out := make([]string, 0, len(base)+len(overlay))
	for _, s := range base {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range overlay {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// DefaultBuildTypes are the preset overlays §6's "Build-type vocabulary"
// names as "consumed by generators": flags a compiler frontend applies
// for a standard build-type name even when the recipe itself never
// mentions it. A recipe's own buildTypes entry for the same name
// overrides the default outright rather than merging with it, so a
// recipe author can redefine what "release" means for their package.
var DefaultBuildTypes = map[string]BuildSettings{
	"debug":            {DFlags: []string{"-debug", "-g"}},
	"release":          {DFlags: []string{"-release", "-O", "-inline"}},
	"release-debug":    {DFlags: []string{"-release", "-O", "-inline", "-g"}},
	"release-nobounds": {DFlags: []string{"-release", "-O", "-inline", "-boundscheck=off"}},
	"unittest":         {DFlags: []string{"-unittest", "-g"}},
	"unittest-cov":     {DFlags: []string{"-unittest", "-cov", "-g"}},
	"cov":              {DFlags: []string{"-cov", "-g"}},
	"cov-ctfe":         {DFlags: []string{"-cov=ctfe", "-g"}},
	"profile":          {DFlags: []string{"-profile", "-g"}},
	"profile-gc":       {DFlags: []string{"-profile=gc", "-g"}},
	"docs":             {DFlags: []string{"-D"}},
	"ddox":             {DFlags: []string{"-Dd", "docs"}},
	"syntax":           {DFlags: []string{"-o-"}},
}

// ApplyBuildType overlays a named build-type preset (debug/release/...,
// §6 "Build-type vocabulary") on top of settings, per §4.5. A recipe-
// defined buildTypes entry for name takes priority over DefaultBuildTypes;
// an unrecognized name with no recipe entry leaves settings unchanged.
func ApplyBuildType(settings BuildSettings, buildTypes map[string]BuildSettings, name string) BuildSettings {
	overlay, ok := buildTypes[name]
	if !ok {
		overlay, ok = DefaultBuildTypes[name]
		if !ok {
			return settings
		}
	}
	return Merge(settings, overlay)
}

// AbsorbStatic implements the library-dependency-of-static-library
// collapse of §4.5: a static library absorbs a dependency's import paths
// (so its own sources can see them) but not its link inputs (Libs/LFlags),
// since those will instead be carried by whatever finally links the
// static library in.
func AbsorbStatic(staticLib, dep BuildSettings) BuildSettings {
	staticLib.ImportPaths = dedupAppend(staticLib.ImportPaths, dep.ImportPaths)
	staticLib.StringImportPaths = dedupAppend(staticLib.StringImportPaths, dep.StringImportPaths)
	staticLib.Versions = dedupAppend(staticLib.Versions, dep.Versions)
	return staticLib
}
