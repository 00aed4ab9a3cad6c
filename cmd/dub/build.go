package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dlang/dub-sub005/pkg/generator"
	"github.com/dlang/dub-sub005/pkg/target"
)

const buildShortHelp = `Build the project and its dependencies`
const buildLongHelp = `
Resolves the project's dependencies, expands the target graph, and
invokes the compiler on every target that isn't already cached under its
current build-id.
`

type buildCommand struct {
	buildType string
}

func (cmd *buildCommand) Name() string      { return "build" }
func (cmd *buildCommand) Args() string      { return "" }
func (cmd *buildCommand) ShortHelp() string { return buildShortHelp }
func (cmd *buildCommand) LongHelp() string  { return buildLongHelp }
func (cmd *buildCommand) Hidden() bool      { return false }

func (cmd *buildCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.buildType, "build", "debug", "build type (debug, release, unittest, ...)")
}

func (cmd *buildCommand) Run(a *app, args []string) int {
	ctx := context.Background()
	_, _, err := runBuild(ctx, a, cmd.buildType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dub: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// runBuild drives C9->C4->C9->C5->C6 via (a *app).run, then C8/C7: it
// computes the toolchain identity once, builds every target through the
// generator's direct builder, and returns the pipeline plus every
// package's BuildResult for callers that need to execute one (run, test).
func runBuild(ctx context.Context, a *app, buildType string) (*pipeline, map[string]*generator.BuildResult, error) {
	pl, err := a.run(ctx, buildType, resolveOpts{})
	if err != nil {
		return nil, nil, err
	}

	tool, err := a.toolchainIdentity(pl)
	if err != nil {
		return nil, nil, err
	}

	b := &generator.DirectBuilder{
		Cache:        a.cache,
		Compiler:     a.compiler,
		FS:           a.fs,
		PackageRoots: a.packageRoots(pl),
	}

	results, err := b.Build(ctx, pl.targets, tool, buildType, hashFile, 0, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return pl, results, nil
}

// toolchainIdentity probes the configured compiler once per invocation
// and folds the root package's build options into a
// target.ToolchainIdentity, the shape generator.DirectBuilder's build-ids
// are seeded from (§4.6).
func (a *app) toolchainIdentity(pl *pipeline) (target.ToolchainIdentity, error) {
	probe, err := a.compiler.DeterminePlatform("", "")
	if err != nil {
		return target.ToolchainIdentity{}, err
	}
	opts, err := a.compiler.ExtractBuildOptions(&pl.proj.Root.Settings)
	if err != nil {
		return target.ToolchainIdentity{}, err
	}
	return target.ToolchainIdentity{
		BinaryIdentity: a.compiler.Name(),
		Version:        probe.FrontendVer,
		Probe:          probe,
		Options:        opts,
	}, nil
}

// packageRoots maps every package in pl's project to its on-disk
// directory, for the generator's copyFiles staging step; a package whose
// directory can't be resolved (shouldn't happen once C5 has already
// loaded its recipe) is simply omitted, so that target gets no copyFiles
// staging rather than a hard failure.
func (a *app) packageRoots(pl *pipeline) map[string]string {
	roots := map[string]string{pl.rootRecipe.Name: a.root}
	for name, pkg := range pl.proj.Packages {
		if name == pl.rootRecipe.Name {
			continue
		}
		if dir, ok := a.pm.PackageDir(name, pkg.Version); ok {
			roots[name] = dir
		}
	}
	return roots
}
