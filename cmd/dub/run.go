package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dlang/dub-sub005/pkg/generator"
	"github.com/dlang/dub-sub005/pkg/target"
)

const runShortHelp = `Build and run the project's main executable`
const runLongHelp = `
Builds the project (as "build" does) and then executes the root
package's staged output, forwarding any arguments given after -- to it.
`

type runCommand struct {
	buildType string
}

func (cmd *runCommand) Name() string      { return "run" }
func (cmd *runCommand) Args() string      { return "[-- <args>...]" }
func (cmd *runCommand) ShortHelp() string { return runShortHelp }
func (cmd *runCommand) LongHelp() string  { return runLongHelp }
func (cmd *runCommand) Hidden() bool      { return false }

func (cmd *runCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.buildType, "build", "debug", "build type (debug, release, unittest, ...)")
}

func (cmd *runCommand) Run(a *app, args []string) int {
	ctx := context.Background()
	pl, results, err := runBuild(ctx, a, cmd.buildType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dub: %v\n", err)
		return exitCode(err)
	}

	root := results[pl.rootRecipe.Name]
	rootTarget := targetFor(pl, pl.rootRecipe.Name)
	if root == nil || rootTarget == nil {
		fmt.Fprintf(os.Stderr, "dub: %s produces no runnable output (target type is not executable)\n", pl.rootRecipe.Name)
		return 1
	}

	targetDir := filepath.Join(a.root, "bin")
	staged, err := generator.StageOutput(root.ArtifactPath, targetDir, rootTarget.OutputFileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dub: %v\n", err)
		return exitCode(err)
	}

	if err := generator.Run(ctx, staged, args, a.root, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "dub: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// targetFor looks up name's target.Target within pl.targets, the only
// place the computed output filename lives.
func targetFor(pl *pipeline, name string) *target.Target {
	for _, t := range pl.targets {
		if t.PackageName == name {
			return t
		}
	}
	return nil
}
