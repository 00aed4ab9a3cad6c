package generator

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dlang/dub-sub005/pkg/cache"
	"github.com/dlang/dub-sub005/pkg/dubfail"
	"github.com/dlang/dub-sub005/pkg/iface"
	"github.com/dlang/dub-sub005/pkg/recipe"
	"github.com/dlang/dub-sub005/pkg/target"
)

type fakeCompiler struct {
	mu       sync.Mutex
	invoked  []string
	failName string
}

func (c *fakeCompiler) Name() string { return "fake-dmd" }
func (c *fakeCompiler) DeterminePlatform(binary, archOverride string) (iface.CompilerPlatform, error) {
	return iface.CompilerPlatform{OS: "linux", Architecture: "x86_64", CompilerName: "dmd"}, nil
}
func (c *fakeCompiler) PrepareBuildSettings(settings interface{}, plat iface.CompilerPlatform, includedFields uint64) error {
	return nil
}
func (c *fakeCompiler) ExtractBuildOptions(settings interface{}) ([]iface.BuildOption, error) {
	return nil, nil
}
func (c *fakeCompiler) TargetFileName(settings interface{}, plat iface.CompilerPlatform) (string, error) {
	return "out", nil
}
func (c *fakeCompiler) SetTarget(settings interface{}, plat iface.CompilerPlatform, outputPath string) error {
	return nil
}
func (c *fakeCompiler) Invoke(ctx context.Context, settings interface{}, plat iface.CompilerPlatform, out iface.OutputSink) error {
	s := settings.(*recipe.BuildSettings)
	c.mu.Lock()
	c.invoked = append(c.invoked, "compile")
	c.mu.Unlock()
	if len(s.SourceFiles) > 0 && s.SourceFiles[0] == c.failName {
		return errExitCode(1)
	}
	return nil
}
func (c *fakeCompiler) InvokeLinker(ctx context.Context, settings interface{}, plat iface.CompilerPlatform, objects []string, out iface.OutputSink) error {
	c.mu.Lock()
	c.invoked = append(c.invoked, "link")
	c.mu.Unlock()
	return nil
}
func (c *fakeCompiler) LFlagsToDFlags(lflags []string) []string { return lflags }
func (c *fakeCompiler) Version(binary, verboseOutput string) (string, error) {
	return "2.100.0", nil
}

type errExitCode int

func (e errExitCode) Error() string { return "compile failed" }
func (e errExitCode) ExitCode() int { return int(e) }

func hashFile(path string) ([32]byte, error) {
	var h [32]byte
	copy(h[:], path)
	return h, nil
}

func mkBuilder(t *testing.T, compiler *fakeCompiler) (*DirectBuilder, func()) {
	dir, err := os.MkdirTemp("", "dub-generator-")
	if err != nil {
		t.Fatalf("MkdirTemp: %s", err)
	}
	return &DirectBuilder{
		Cache:       cache.New(cache.OSFileSystem{}, dir),
		Compiler:    compiler,
		FS:          cache.OSFileSystem{},
		Concurrency: 2,
	}, func() { os.RemoveAll(dir) }
}

func tgt(name string, tt recipe.TargetType, linkDeps ...string) *target.Target {
	return &target.Target{
		PackageName:      name,
		TargetType:       tt,
		Settings:         recipe.BuildSettings{SourceFiles: []string{"source/" + name + ".d"}},
		OutputFileName:   name,
		LinkDependencies: linkDeps,
	}
}

var tool = target.ToolchainIdentity{BinaryIdentity: "fake-dmd", Version: "2.100.0"}

func TestBuildCompilesEveryTarget(t *testing.T) {
	compiler := &fakeCompiler{}
	b, cleanup := mkBuilder(t, compiler)
	defer cleanup()

	base := tgt("base", recipe.TargetStaticLibrary)
	app := tgt("app", recipe.TargetExecutable, "base")

	results, err := b.Build(context.Background(), []*target.Target{base, app}, tool, "debug", hashFile, time.Second, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Build: %s", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results["app"].ArtifactPath == "" {
		t.Fatalf("expected app to have an artifact path")
	}
	if results["app"].CacheHit {
		t.Fatalf("expected a fresh build, not a cache hit")
	}
}

func TestBuildIsCachedOnSecondRun(t *testing.T) {
	compiler := &fakeCompiler{}
	b, cleanup := mkBuilder(t, compiler)
	defer cleanup()

	app := tgt("app", recipe.TargetExecutable)

	if _, err := b.Build(context.Background(), []*target.Target{app}, tool, "debug", hashFile, time.Second, &bytes.Buffer{}); err != nil {
		t.Fatalf("first Build: %s", err)
	}
	compiler.mu.Lock()
	firstInvocations := len(compiler.invoked)
	compiler.mu.Unlock()

	results, err := b.Build(context.Background(), []*target.Target{app}, tool, "debug", hashFile, time.Second, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("second Build: %s", err)
	}
	compiler.mu.Lock()
	secondInvocations := len(compiler.invoked)
	compiler.mu.Unlock()

	if secondInvocations != firstInvocations {
		t.Fatalf("expected no new compiler invocations on a cache hit, went from %d to %d", firstInvocations, secondInvocations)
	}
	if !results["app"].CacheHit {
		t.Fatalf("expected a cache hit on the second build")
	}
}

func TestBuildSurfacesCompileError(t *testing.T) {
	compiler := &fakeCompiler{failName: "source/app.d"}
	b, cleanup := mkBuilder(t, compiler)
	defer cleanup()

	app := tgt("app", recipe.TargetExecutable)

	_, err := b.Build(context.Background(), []*target.Target{app}, tool, "debug", hashFile, time.Second, &bytes.Buffer{})
	if _, ok := err.(*dubfail.CompileError); !ok {
		t.Fatalf("expected *dubfail.CompileError, got %T (%v)", err, err)
	}
}

func TestBuildOnlyLinksTargetsThatNeedIt(t *testing.T) {
	compiler := &fakeCompiler{}
	b, cleanup := mkBuilder(t, compiler)
	defer cleanup()

	obj := tgt("obj", recipe.TargetObject)

	if _, err := b.Build(context.Background(), []*target.Target{obj}, tool, "debug", hashFile, time.Second, &bytes.Buffer{}); err != nil {
		t.Fatalf("Build: %s", err)
	}
	compiler.mu.Lock()
	defer compiler.mu.Unlock()
	for _, call := range compiler.invoked {
		if call == "link" {
			t.Fatalf("expected an object target never to invoke the linker")
		}
	}
}

func TestBuildFailureCancelsUnstartedDependents(t *testing.T) {
	compiler := &fakeCompiler{failName: "source/base.d"}
	b, cleanup := mkBuilder(t, compiler)
	defer cleanup()

	base := tgt("base", recipe.TargetStaticLibrary)
	app := tgt("app", recipe.TargetExecutable, "base")

	results, err := b.Build(context.Background(), []*target.Target{base, app}, tool, "debug", hashFile, time.Second, &bytes.Buffer{})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if results != nil {
		t.Fatalf("expected no results on failure, got %v", results)
	}
	compiler.mu.Lock()
	defer compiler.mu.Unlock()
	for _, call := range compiler.invoked {
		if call == "link" {
			t.Fatalf("app should never have reached its link step once base failed to compile")
		}
	}
}
