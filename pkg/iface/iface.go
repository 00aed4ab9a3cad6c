// Package iface collects the external interfaces DUB's core depends on but
// does not implement: PackageSupplier, Compiler, FileSystem, and Clock
// (§6, §1 "out of scope... treated as an injectable interface"). The core
// is otherwise free of concrete network, filesystem-probing, or compiler-
// binary logic; production implementations of these live in pkg/pkgmanager,
// pkg/dmd and pkg/cache, but the core only ever depends on these contracts.
package iface

import (
	"context"
	"io"
	"time"

	"github.com/dlang/dub-sub005/pkg/version"
)

// PackageSupplier is an injectable source of recipes and archives for
// versions that are not local paths (§6).
type PackageSupplier interface {
	// ListVersions returns the versions this supplier knows about for
	// name. Implementations must be safe to call concurrently.
	ListVersions(ctx context.Context, name string) ([]version.Version, error)
	// FetchRecipe retrieves the recipe for (name, v) without necessarily
	// fetching the full archive.
	FetchRecipe(ctx context.Context, name string, v version.Version) ([]byte, error)
	// FetchArchive retrieves the package's full source archive.
	FetchArchive(ctx context.Context, name string, v version.Version) (io.ReadCloser, error)
	// Describe returns a human-readable identity for diagnostics.
	Describe() string
}

// CompilerPlatform is the result of probing a compiler binary (§6): the
// platform/architecture/compiler-identity tuple used both to pick matching
// recipe configurations and to seed the target's build-id.
type CompilerPlatform struct {
	OS           string
	Architecture string
	CompilerName string
	FrontendVer  string
	Vendor       string
}

// BuildOption is a normalized compiler flag bit, the result of
// Compiler.ExtractBuildOptions folding ad hoc flags back into structured
// settings (§6).
type BuildOption uint32

// OutputSink receives a compiler or linker invocation's captured
// stdout/stderr for diagnostic surfacing (§4.8 step 3).
type OutputSink interface {
	io.Writer
}

// Compiler is the injectable contract to a concrete compiler binary (§6).
// DUB's core never itself shells out; pkg/generator drives one of these.
type Compiler interface {
	Name() string
	DeterminePlatform(binary string, archOverride string) (CompilerPlatform, error)
	// PrepareBuildSettings lowers high-level settings into compiler flags
	// in place, restricted to includedFields (a bitmask the caller uses
	// to avoid re-lowering fields already prepared by an earlier stage).
	PrepareBuildSettings(settings interface{}, plat CompilerPlatform, includedFields uint64) error
	// ExtractBuildOptions normalizes raw compiler flags already present
	// in settings back into BuildOption bits, so generators that accept
	// free-form dflags still participate in build-id computation
	// consistently (§6).
	ExtractBuildOptions(settings interface{}) ([]BuildOption, error)
	TargetFileName(settings interface{}, plat CompilerPlatform) (string, error)
	SetTarget(settings interface{}, plat CompilerPlatform, outputPath string) error
	Invoke(ctx context.Context, settings interface{}, plat CompilerPlatform, out OutputSink) error
	InvokeLinker(ctx context.Context, settings interface{}, plat CompilerPlatform, objects []string, out OutputSink) error
	LFlagsToDFlags(lflags []string) []string
	Version(binary string, verboseOutput string) (string, error)
}

// FileSystem is the injectable contract for all of the core's durable
// storage: fetched-package locations, build scratch directories, and the
// content-addressed cache (§6 "Cache layout on disk").
type FileSystem interface {
	MkdirAll(path string) error
	RemoveAll(path string) error
	Rename(oldPath, newPath string) error
	Exists(path string) (bool, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	TempDir(parent, pattern string) (string, error)
	Walk(root string, fn func(path string, isDir bool) error) error
}

// Clock is the injectable source of wall-clock time, used only by the rare
// diagnostic timestamp; the build-id (§4.6) and selection content must
// never depend on it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
