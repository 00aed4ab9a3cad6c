// Package generator drives the target graph to concrete output (§4.8): a
// direct builder walks it in topological order, consulting and populating
// the build cache around each target's compiler invocation. Grounded on
// the teacher's cmd.go (monitoredCmd: run a child, race it against a
// timeout and a cancellation context) for the per-target timeout shape,
// and on source_manager.go's worker-goroutine-plus-semaphore idiom for
// bounding concurrent work.
package generator

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/dlang/dub-sub005/pkg/cache"
	"github.com/dlang/dub-sub005/pkg/dubfail"
	"github.com/dlang/dub-sub005/pkg/iface"
	"github.com/dlang/dub-sub005/pkg/recipe"
	"github.com/dlang/dub-sub005/pkg/target"
)

// BuildResult records one target's outcome.
type BuildResult struct {
	Target       *target.Target
	BuildID      [32]byte
	ArtifactPath string
	CacheHit     bool
}

// ExitCoder is implemented by a Compiler's invocation errors that can
// report the child process's exit code, so DirectBuilder can distinguish
// an ordinary compile failure from the "possibly out of memory" signal
// spec §5 asks for on exit code -9.
type ExitCoder interface {
	ExitCode() int
}

// DirectBuilder is the §4.8 "direct builder": it computes each target's
// build-id, consults the cache, invokes the compiler on a miss, and
// installs the result, scheduling independent targets concurrently up to
// Concurrency.
type DirectBuilder struct {
	Cache        *cache.Cache
	Compiler     iface.Compiler
	FS           iface.FileSystem
	Concurrency  int
	PackageRoots map[string]string
}

// Build runs every target in targets (assumed already topologically
// sorted by target.Graph), respecting each target's LinkDependencies as a
// precedence constraint, and returns one BuildResult per package name.
// The first target to fail cancels the remaining unscheduled work; builds
// already in flight run to completion.
func (b *DirectBuilder) Build(ctx context.Context, targets []*target.Target, tool target.ToolchainIdentity, buildType string, hashFile target.FileHasher, perTargetTimeout time.Duration, out iface.OutputSink) (map[string]*BuildResult, error) {
	byName := make(map[string]*target.Target, len(targets))
	for _, t := range targets {
		byName[t.PackageName] = t
	}

	indegree := make(map[string]int, len(targets))
	dependents := make(map[string][]string)
	for _, t := range targets {
		indegree[t.PackageName] = len(t.LinkDependencies)
		for _, dep := range t.LinkDependencies {
			dependents[dep] = append(dependents[dep], t.PackageName)
		}
	}

	concurrency := b.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	sem := make(chan struct{}, concurrency)

	buildCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	results := make(map[string]*BuildResult, len(targets))

	var errMu sync.Mutex
	var firstErr error
	setErr := func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	var wg sync.WaitGroup
	var dispatch func(name string)
	dispatch = func(name string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if buildCtx.Err() != nil {
				return
			}

			t := byName[name]
			mu.Lock()
			depIDs := make(map[string][32]byte, len(t.LinkDependencies))
			depArtifacts := make(map[string]string, len(t.LinkDependencies))
			for _, d := range t.LinkDependencies {
				if r := results[d]; r != nil {
					depIDs[d] = r.BuildID
					depArtifacts[d] = r.ArtifactPath
				}
			}
			mu.Unlock()

			res, err := b.buildOne(ctx, t, tool, buildType, hashFile, depIDs, depArtifacts, perTargetTimeout, out)
			if err != nil {
				setErr(err)
				return
			}

			mu.Lock()
			results[name] = res
			mu.Unlock()

			var ready []string
			mu.Lock()
			for _, next := range dependents[name] {
				indegree[next]--
				if indegree[next] == 0 {
					ready = append(ready, next)
				}
			}
			mu.Unlock()
			for _, next := range ready {
				dispatch(next)
			}
		}()
	}

	for name, deg := range indegree {
		if deg == 0 {
			dispatch(name)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (b *DirectBuilder) buildOne(ctx context.Context, t *target.Target, tool target.ToolchainIdentity, buildType string, hashFile target.FileHasher, depBuildIDs map[string][32]byte, depArtifacts map[string]string, timeout time.Duration, out iface.OutputSink) (*BuildResult, error) {
	buildID, err := target.ComputeBuildID(t, tool, buildType, hashFile, depBuildIDs)
	if err != nil {
		return nil, err
	}

	if artifact, hit, err := b.Cache.Lookup(buildID); err != nil {
		return nil, err
	} else if hit {
		return &BuildResult{Target: t, BuildID: buildID, ArtifactPath: artifact, CacheHit: true}, nil
	}

	lock, err := b.Cache.Lock(buildID)
	if err != nil {
		return nil, &dubfail.LockError{Resource: t.PackageName, Err: err}
	}
	defer lock.Release()

	// Another builder may have installed this build-id while we waited.
	if artifact, hit, err := b.Cache.Lookup(buildID); err != nil {
		return nil, err
	} else if hit {
		return &BuildResult{Target: t, BuildID: buildID, ArtifactPath: artifact, CacheHit: true}, nil
	}

	scratch, err := b.FS.TempDir("", "dub-build-")
	if err != nil {
		return nil, &dubfail.IOError{Op: "mkdtemp", Path: scratch, Err: err}
	}

	settings := t.Settings
	if err := b.Compiler.PrepareBuildSettings(&settings, tool.Probe, ^uint64(0)); err != nil {
		b.Cache.Abort(scratch)
		return nil, err
	}

	outputPath := filepath.Join(scratch, t.OutputFileName)
	if err := b.Compiler.SetTarget(&settings, tool.Probe, outputPath); err != nil {
		b.Cache.Abort(scratch)
		return nil, err
	}

	compileCtx, cancelCompile := iface.WithCompileTimeout(ctx, timeout)
	defer cancelCompile()

	if err := b.Compiler.Invoke(compileCtx, &settings, tool.Probe, out); err != nil {
		b.Cache.Abort(scratch)
		return nil, classifyInvokeError(t.PackageName, err, compileCtx, false)
	}

	if isLinkedTargetType(t.TargetType) {
		objects := []string{outputPath}
		for _, dep := range t.LinkDependencies {
			if artifact, ok := depArtifacts[dep]; ok {
				objects = append(objects, artifact)
			}
		}
		if err := b.Compiler.InvokeLinker(compileCtx, &settings, tool.Probe, objects, out); err != nil {
			b.Cache.Abort(scratch)
			return nil, classifyInvokeError(t.PackageName, err, compileCtx, true)
		}
	}

	if root, ok := b.PackageRoots[t.PackageName]; ok && len(settings.CopyFiles) > 0 {
		if err := cache.StageCopyFiles(root, scratch, settings.CopyFiles); err != nil {
			b.Cache.Abort(scratch)
			return nil, err
		}
	}

	artifactPath, err := b.Cache.Install(buildID, scratch, cache.Manifest{Inputs: allInputs(settings)})
	if err != nil {
		return nil, err
	}
	return &BuildResult{Target: t, BuildID: buildID, ArtifactPath: artifactPath}, nil
}

// isLinkedTargetType reports whether t's compile step is followed by a
// separate linker invocation; a plain object target stops after compiling
// (§4.8 step 3 "optionally invokeLinker").
func isLinkedTargetType(t recipe.TargetType) bool {
	return t != recipe.TargetObject
}

// classifyInvokeError turns a raw Compiler error into the structured
// failures of §7: a context deadline during the invocation is a Timeout
// (with the exit code -9 out-of-memory hint when the compiler error
// reports it), outright cancellation is Cancelled, anything else is a
// CompileError carrying whatever exit code the error exposes.
func classifyInvokeError(targetName string, err error, ctx context.Context, linking bool) error {
	if ctx.Err() == context.DeadlineExceeded {
		oom := false
		if ec, ok := err.(ExitCoder); ok {
			oom = ec.ExitCode() == -9
		}
		return &dubfail.Timeout{Target: targetName, OOMHint: oom}
	}
	if ctx.Err() == context.Canceled {
		phase := "compile"
		if linking {
			phase = "link"
		}
		return &dubfail.Cancelled{During: phase + " of " + targetName}
	}
	exitCode := -1
	if ec, ok := err.(ExitCoder); ok {
		exitCode = ec.ExitCode()
	}
	if linking {
		return &dubfail.LinkError{Target: targetName, ExitCode: exitCode, Output: err.Error()}
	}
	return &dubfail.CompileError{Target: targetName, ExitCode: exitCode, Output: err.Error()}
}

func allInputs(s recipe.BuildSettings) []string {
	out := make([]string, 0, len(s.SourceFiles)+len(s.ImportPaths)+len(s.StringImportPaths)+len(s.Libs))
	out = append(out, s.SourceFiles...)
	out = append(out, s.ImportPaths...)
	out = append(out, s.StringImportPaths...)
	out = append(out, s.Libs...)
	return out
}
