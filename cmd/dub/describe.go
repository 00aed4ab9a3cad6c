package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
)

const describeShortHelp = `Print the resolved project as JSON`
const describeLongHelp = `
Runs the resolve pipeline (C9/C4/C5/C6) without invoking the compiler and
prints the resulting package and target graph as JSON, for editor/IDE
integration and scripting.
`

type describeCommand struct {
	buildType string
}

func (cmd *describeCommand) Name() string      { return "describe" }
func (cmd *describeCommand) Args() string      { return "" }
func (cmd *describeCommand) ShortHelp() string { return describeShortHelp }
func (cmd *describeCommand) LongHelp() string  { return describeLongHelp }
func (cmd *describeCommand) Hidden() bool      { return false }

func (cmd *describeCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.buildType, "build", "debug", "build type to resolve settings for")
}

// description is the JSON shape `describe` emits: §4.8 step 3's "either
// executes the compiler or emits a description" branch, covering the
// project's packages and the ordered target graph without ever reaching
// Compiler.Invoke.
type description struct {
	RootPackage string               `json:"rootPackage"`
	Platform    string               `json:"platform"`
	Packages    []packageDescription `json:"packages"`
	Targets     []targetDescription  `json:"targets"`
}

type packageDescription struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Configuration string   `json:"configuration"`
	Dependencies  []string `json:"dependencies"`
}

type targetDescription struct {
	PackageName      string   `json:"packageName"`
	TargetType       string   `json:"targetType"`
	OutputFileName   string   `json:"outputFileName"`
	LinkDependencies []string `json:"linkDependencies"`
}

func (cmd *describeCommand) Run(a *app, args []string) int {
	ctx := context.Background()
	pl, err := a.run(ctx, cmd.buildType, resolveOpts{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dub: %v\n", err)
		return exitCode(err)
	}

	desc := description{
		RootPackage: pl.rootRecipe.Name,
		Platform:    pl.platform.String(),
	}
	for _, name := range pl.proj.SortedNames() {
		pkg := pl.proj.Packages[name]
		desc.Packages = append(desc.Packages, packageDescription{
			Name:          pkg.Name,
			Version:       pkg.Version.String(),
			Configuration: pkg.Configuration.Name,
			Dependencies:  pkg.Dependencies,
		})
	}
	desc.Packages = append(desc.Packages, packageDescription{
		Name:          pl.proj.Root.Name,
		Version:       pl.proj.Root.Version.String(),
		Configuration: pl.proj.Root.Configuration.Name,
		Dependencies:  pl.proj.Root.Dependencies,
	})
	for _, t := range pl.targets {
		desc.Targets = append(desc.Targets, targetDescription{
			PackageName:      t.PackageName,
			TargetType:       t.TargetType.String(),
			OutputFileName:   t.OutputFileName,
			LinkDependencies: t.LinkDependencies,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(desc); err != nil {
		fmt.Fprintf(os.Stderr, "dub: %v\n", err)
		return 1
	}
	return 0
}
