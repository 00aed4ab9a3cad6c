package recipe

import (
	"io"
	"io/ioutil"
	"strings"

	"github.com/dlang/dub-sub005/pkg/version"
	"github.com/pkg/errors"
)

// DecodeSDL parses the S-expression-like recipe back-end (§4.2) into the
// neutral Recipe model. The grammar is a sequence of statements, each
// either:
//
//	keyword "string-arg"... [key="val" ...]
//	keyword "string-arg" { statement* }
//
// e.g.:
//
//	name "mypkg"
//	version "1.0.0"
//	dependency "foo" version="~>1.2"
//	configuration "default" {
//	    targetType "executable"
//	}
//
// This mirrors the teacher's toml.go idiom of carrying the error in a
// shared mapper as statements are walked: mapping continues past a bad
// statement, but only the first error is kept and reported.
func DecodeSDL(r io.Reader) (*Recipe, error) {
	src, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading SDL recipe")
	}

	stmts, err := lexSDL(string(src))
	if err != nil {
		return nil, errors.Wrap(err, "parsing SDL recipe")
	}

	m := &sdlMapper{}
	rec := m.mapRecipe(stmts)
	if m.Error != nil {
		return nil, m.Error
	}
	return rec, nil
}

// sdlStatement is one parsed line/block: a keyword, its positional string
// arguments, its key=value attributes, and (for block statements) the
// nested statements.
type sdlStatement struct {
	keyword string
	args    []string
	attrs   map[string]string
	body    []sdlStatement
}

// sdlMapper accumulates conversion errors the way the teacher's tomlMapper
// does, so mapping functions can be composed without individually checking
// err at every call site.
type sdlMapper struct {
	Error error
}

func (m *sdlMapper) fail(err error) {
	if m.Error == nil {
		m.Error = err
	}
}

func (m *sdlMapper) mapRecipe(stmts []sdlStatement) *Recipe {
	rec := &Recipe{
		Dependencies: make(map[string]Dependency),
		BuildTypes:   make(map[string]BuildSettings),
	}
	var topSettings rawSettings
	var topTargetType string

	for _, st := range stmts {
		switch st.keyword {
		case "name":
			rec.Name = m.arg(st, 0)
		case "version":
			v, err := version.NewRelease(m.arg(st, 0))
			if err != nil {
				m.fail(err)
				continue
			}
			rec.Version = v
		case "targetType":
			topTargetType = m.arg(st, 0)
		case "dependency":
			dep := m.mapDependency(st)
			rec.Dependencies[dep.Name] = dep
		case "subpackage":
			rec.Subpackages = append(rec.Subpackages, m.mapSubpackage(st))
		case "configuration":
			rec.Configurations = append(rec.Configurations, m.mapConfiguration(st))
		case "buildType":
			name := m.arg(st, 0)
			rec.BuildTypes[name] = m.mapSettingsBlock(st.body)
		default:
			m.applySetting(&topSettings, st)
		}
	}

	if m.Error != nil {
		return rec
	}

	tt, err := ParseTargetType(topTargetType)
	if err != nil {
		m.fail(errors.Wrapf(err, "recipe %q", rec.Name))
		return rec
	}

	if len(rec.Configurations) == 0 {
		rec.Configurations = []Configuration{{
			Name:       "default",
			TargetType: tt,
			Global:     topSettings.toBuildSettings(),
		}}
	}

	return rec
}

func (m *sdlMapper) mapDependency(st sdlStatement) Dependency {
	name := m.arg(st, 0)
	dep := Dependency{Name: name}

	if p, ok := st.attrs["path"]; ok {
		dep.Path = p
		dep.Constraint = version.NewPathConstraint(version.NewPath(p))
	} else if v, ok := st.attrs["version"]; ok {
		c, err := version.Parse(v)
		if err != nil {
			m.fail(errors.Wrapf(err, "dependency %q", name))
			dep.Constraint = version.Any()
		} else {
			dep.Constraint = c
		}
	} else {
		dep.Constraint = version.Any()
	}

	if opt, ok := st.attrs["optional"]; ok {
		dep.Optional = opt == "true"
	}
	if def, ok := st.attrs["default"]; ok {
		dep.Default = def == "true"
	}
	if sc, ok := st.attrs["subConfiguration"]; ok {
		dep.Subconfiguration = sc
	}
	if f, ok := st.attrs["features"]; ok {
		dep.Features = strings.Split(f, ",")
	}
	return dep
}

func (m *sdlMapper) mapSubpackage(st sdlStatement) Subpackage {
	if len(st.body) == 0 {
		return Subpackage{Path: m.arg(st, 0)}
	}
	return Subpackage{Inline: m.mapRecipe(st.body)}
}

func (m *sdlMapper) mapConfiguration(st sdlStatement) Configuration {
	cfg := Configuration{Name: m.arg(st, 0)}
	var settings rawSettings
	var targetType string

	for _, inner := range st.body {
		switch inner.keyword {
		case "targetType":
			targetType = m.arg(inner, 0)
		case "platform":
			cfg.Platforms = append(cfg.Platforms, PlatformSettings{
				Filter:   parsePlatformFilter(m.arg(inner, 0)),
				Settings: m.mapSettingsBlock(inner.body),
			})
		default:
			m.applySetting(&settings, inner)
		}
	}

	tt, err := ParseTargetType(targetType)
	if err != nil {
		m.fail(errors.Wrapf(err, "configuration %q", cfg.Name))
	}
	cfg.TargetType = tt
	cfg.Global = settings.toBuildSettings()
	return cfg
}

func (m *sdlMapper) mapSettingsBlock(stmts []sdlStatement) BuildSettings {
	var settings rawSettings
	for _, st := range stmts {
		m.applySetting(&settings, st)
	}
	return settings.toBuildSettings()
}

func (m *sdlMapper) applySetting(settings *rawSettings, st sdlStatement) {
	switch st.keyword {
	case "versions":
		settings.Versions = append(settings.Versions, st.args...)
	case "importPaths":
		settings.ImportPaths = append(settings.ImportPaths, st.args...)
	case "stringImportPaths":
		settings.StringImportPaths = append(settings.StringImportPaths, st.args...)
	case "sourceFiles":
		settings.SourceFiles = append(settings.SourceFiles, st.args...)
	case "excludedSourceFiles":
		settings.ExcludedSourceFiles = append(settings.ExcludedSourceFiles, st.args...)
	case "dflags":
		settings.DFlags = append(settings.DFlags, st.args...)
	case "lflags":
		settings.LFlags = append(settings.LFlags, st.args...)
	case "libs":
		settings.Libs = append(settings.Libs, st.args...)
	case "copyFiles":
		settings.CopyFiles = append(settings.CopyFiles, st.args...)
	case "preBuildCommands":
		settings.PreBuildCommands = append(settings.PreBuildCommands, st.args...)
	case "postBuildCommands":
		settings.PostBuildCommands = append(settings.PostBuildCommands, st.args...)
	default:
		m.fail(errors.Errorf("unrecognized recipe statement %q", st.keyword))
	}
}

func (m *sdlMapper) arg(st sdlStatement, i int) string {
	if i >= len(st.args) {
		m.fail(errors.Errorf("%q expects at least %d argument(s)", st.keyword, i+1))
		return ""
	}
	return st.args[i]
}
