package recipe

import (
	"encoding/json"
	"io"

	"github.com/dlang/dub-sub005/pkg/version"
	"github.com/pkg/errors"
)

// DecodeJSON parses the JSON-like recipe back-end (§4.2) into the neutral
// Recipe model. It follows the teacher's manifest.go raw/typed split:
// decode into a loosely typed rawRecipe first, then convert field by field
// so a malformed dependency spec produces one clear error instead of a
// generic json.Unmarshal type mismatch.
func DecodeJSON(r io.Reader) (*Recipe, error) {
	var raw rawRecipe
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decoding JSON recipe")
	}
	return raw.toRecipe()
}

type rawRecipe struct {
	Name             string                     `json:"name"`
	Version          string                     `json:"version"`
	TargetType       string                     `json:"targetType,omitempty"`
	Dependencies     map[string]json.RawMessage `json:"dependencies,omitempty"`
	Configurations   []rawConfiguration         `json:"configurations,omitempty"`
	SubPackages      []json.RawMessage          `json:"subPackages,omitempty"`
	BuildTypes       map[string]rawSettings     `json:"buildTypes,omitempty"`
	ToolchainRequirements map[string]string     `json:"toolchainRequirements,omitempty"`
	rawSettings
}

type rawConfiguration struct {
	Name       string `json:"name"`
	TargetType string `json:"targetType,omitempty"`
	Platform   string `json:"platform,omitempty"`
	rawSettings
}

type rawSettings struct {
	Versions            []string          `json:"versions,omitempty"`
	ImportPaths         []string          `json:"importPaths,omitempty"`
	StringImportPaths   []string          `json:"stringImportPaths,omitempty"`
	SourceFiles         []string          `json:"sourceFiles,omitempty"`
	ExcludedSourceFiles []string          `json:"excludedSourceFiles,omitempty"`
	DFlags              []string          `json:"dflags,omitempty"`
	LFlags              []string          `json:"lflags,omitempty"`
	CFlags              []string          `json:"cflags,omitempty"`
	Libs                []string          `json:"libs,omitempty"`
	CopyFiles           []string          `json:"copyFiles,omitempty"`
	PreBuildCommands    []string          `json:"preBuildCommands,omitempty"`
	PostBuildCommands   []string          `json:"postBuildCommands,omitempty"`
	Environment         map[string]string `json:"environments,omitempty"`
}

func (rs rawSettings) toBuildSettings() BuildSettings {
	return BuildSettings{
		Versions:            rs.Versions,
		ImportPaths:         rs.ImportPaths,
		StringImportPaths:   rs.StringImportPaths,
		SourceFiles:         rs.SourceFiles,
		ExcludedSourceFiles: rs.ExcludedSourceFiles,
		DFlags:              rs.DFlags,
		LFlags:              rs.LFlags,
		CFlags:              rs.CFlags,
		Libs:                rs.Libs,
		CopyFiles:           rs.CopyFiles,
		PreBuildCommands:    rs.PreBuildCommands,
		PostBuildCommands:   rs.PostBuildCommands,
		Environment:         rs.Environment,
	}
}

// rawDependency is the loosely typed dependency value: either a bare
// constraint string, or an object with optional/default/path/subConfiguration/
// features fields (mirrors the teacher's possibleProps union).
type rawDependency struct {
	Version          string   `json:"version,omitempty"`
	Optional         bool     `json:"optional,omitempty"`
	Default          bool     `json:"default,omitempty"`
	Path             string   `json:"path,omitempty"`
	SubConfiguration string   `json:"subConfiguration,omitempty"`
	Features         []string `json:"features,omitempty"`
}

func parseDependencyValue(name string, raw json.RawMessage) (Dependency, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		c, err := version.Parse(asString)
		if err != nil {
			return Dependency{}, errors.Wrapf(err, "dependency %q", name)
		}
		return Dependency{Name: name, Constraint: c}, nil
	}

	var rd rawDependency
	if err := json.Unmarshal(raw, &rd); err != nil {
		return Dependency{}, errors.Wrapf(err, "dependency %q: expected a string or an object", name)
	}

	dep := Dependency{
		Name:             name,
		Optional:         rd.Optional,
		Default:          rd.Default,
		Path:             rd.Path,
		Subconfiguration: rd.SubConfiguration,
		Features:         rd.Features,
	}
	if rd.Path != "" {
		dep.Constraint = version.NewPathConstraint(version.NewPath(rd.Path))
		return dep, nil
	}
	if rd.Version == "" {
		dep.Constraint = version.Any()
		return dep, nil
	}
	c, err := version.Parse(rd.Version)
	if err != nil {
		return Dependency{}, errors.Wrapf(err, "dependency %q", name)
	}
	dep.Constraint = c
	return dep, nil
}

func (raw rawRecipe) toRecipe() (*Recipe, error) {
	rec := &Recipe{
		Name:         raw.Name,
		Dependencies: make(map[string]Dependency, len(raw.Dependencies)),
		BuildTypes:   make(map[string]BuildSettings, len(raw.BuildTypes)),
	}

	if raw.Version != "" {
		v, err := version.NewRelease(raw.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "recipe %q version", raw.Name)
		}
		rec.Version = v
	}

	for name, rawDep := range raw.Dependencies {
		dep, err := parseDependencyValue(name, rawDep)
		if err != nil {
			return nil, err
		}
		rec.Dependencies[name] = dep
	}

	for btName, bs := range raw.BuildTypes {
		rec.BuildTypes[btName] = bs.toBuildSettings()
	}

	if len(raw.ToolchainRequirements) > 0 {
		rec.ToolRequirements.CompilerVersions = make(map[string]version.Constraint, len(raw.ToolchainRequirements))
		for name, c := range raw.ToolchainRequirements {
			cc, err := version.Parse(c)
			if err != nil {
				return nil, errors.Wrapf(err, "toolchainRequirements %q", name)
			}
			if name == "dub" {
				rec.ToolRequirements.DubVersion = cc
				continue
			}
			rec.ToolRequirements.CompilerVersions[name] = cc
		}
	}

	tt, err := ParseTargetType(raw.TargetType)
	if err != nil {
		return nil, errors.Wrapf(err, "recipe %q", raw.Name)
	}

	if len(raw.Configurations) == 0 {
		rec.Configurations = []Configuration{{
			Name:       "default",
			TargetType: tt,
			Global:     raw.rawSettings.toBuildSettings(),
		}}
	} else {
		for _, rc := range raw.Configurations {
			cfgTT := tt
			if rc.TargetType != "" {
				cfgTT, err = ParseTargetType(rc.TargetType)
				if err != nil {
					return nil, errors.Wrapf(err, "configuration %q", rc.Name)
				}
			}
			cfg := Configuration{Name: rc.Name, TargetType: cfgTT, Global: rc.rawSettings.toBuildSettings()}
			if rc.Platform != "" {
				cfg.Platforms = []PlatformSettings{{
					Filter:   parsePlatformFilter(rc.Platform),
					Settings: rc.rawSettings.toBuildSettings(),
				}}
				cfg.Global = BuildSettings{}
			}
			rec.Configurations = append(rec.Configurations, cfg)
		}
	}

	for _, sp := range raw.SubPackages {
		var asPath string
		if err := json.Unmarshal(sp, &asPath); err == nil {
			rec.Subpackages = append(rec.Subpackages, Subpackage{Path: asPath})
			continue
		}
		inline, err := (rawRecipe{}).decodeInline(sp)
		if err != nil {
			return nil, errors.Wrap(err, "inline subPackage")
		}
		rec.Subpackages = append(rec.Subpackages, Subpackage{Inline: inline})
	}

	return rec, nil
}

func (rawRecipe) decodeInline(raw json.RawMessage) (*Recipe, error) {
	var inner rawRecipe
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, err
	}
	return inner.toRecipe()
}

// parsePlatformFilter parses a dash-joined platform suffix such as
// "windows-x86_64" into structured fields, generalizing the teacher's
// string-suffix filters per §9.
func parsePlatformFilter(s string) PlatformFilter {
	var f PlatformFilter
	parts := splitNonEmpty(s, '-')
	if len(parts) > 0 {
		f.OS = parts[0]
	}
	if len(parts) > 1 {
		f.Arch = parts[1]
	}
	if len(parts) > 2 {
		f.Compiler = parts[2]
	}
	return f
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
