package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dlang/dub-sub005/pkg/generator"
)

const testShortHelp = `Build and run the project's unittests`
const testLongHelp = `
Builds the project with the "unittest" build type (enabling -unittest),
then runs the resulting executable. A D program built with -unittest
runs its module unittest blocks before main and exits non-zero on the
first failure, so no separate test runner is invoked.
`

type testCommand struct{}

func (cmd *testCommand) Name() string      { return "test" }
func (cmd *testCommand) Args() string      { return "" }
func (cmd *testCommand) ShortHelp() string { return testShortHelp }
func (cmd *testCommand) LongHelp() string  { return testLongHelp }
func (cmd *testCommand) Hidden() bool      { return false }

func (cmd *testCommand) Register(fs *flag.FlagSet) {}

func (cmd *testCommand) Run(a *app, args []string) int {
	ctx := context.Background()
	pl, results, err := runBuild(ctx, a, "unittest")
	if err != nil {
		fmt.Fprintf(os.Stderr, "dub: %v\n", err)
		return exitCode(err)
	}

	root := results[pl.rootRecipe.Name]
	rootTarget := targetFor(pl, pl.rootRecipe.Name)
	if root == nil || rootTarget == nil {
		fmt.Fprintf(os.Stderr, "dub: %s has no unittest-buildable target\n", pl.rootRecipe.Name)
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
