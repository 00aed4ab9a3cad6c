// Package dmd is a concrete iface.Compiler for the reference D compiler
// binary, dmd. It is DUB's default Compiler, the one production
// implementation of an otherwise fully injectable contract (§6); a
// caller wanting a different compiler (ldc2, gdc) supplies its own
// iface.Compiler instead. Grounded on cmd.go's process-invocation idiom
// (already reused in pkg/generator/run.go): shell out via
// os/exec.CommandContext and let context cancellation kill the child.
package dmd

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dlang/dub-sub005/pkg/iface"
	"github.com/dlang/dub-sub005/pkg/recipe"
	"github.com/pkg/errors"
)

// Build option bits, normalized from raw DFlags by ExtractBuildOptions
// (§6). Only the handful dmd actually recognizes as named flags are
// tracked; anything else stays an opaque DFlags entry.
const (
	OptDebug iface.BuildOption = 1 << iota
	OptRelease
	OptUnittest
	OptCoverage
	OptProfile
)

// Compiler drives a dmd (or dmd-compatible: ldc2 accepts most of the same
// flags) binary.
type Compiler struct {
	binaryName string
}

// New returns a Compiler identifying itself as name (e.g. "dmd", "ldc2"),
// used both for Name() and as the default binary DeterminePlatform
// shells out to when the caller passes an empty binary override.
func New(name string) *Compiler {
	if name == "" {
		name = "dmd"
	}
	return &Compiler{binaryName: name}
}

func (c *Compiler) Name() string { return c.binaryName }

const probeBegin = "===DUB-PROBE-BEGIN==="
const probeEnd = "===DUB-PROBE-END==="

// probeSource is compiled with -c -o- so the platform tuple is emitted
// to stderr via pragma(msg) without ever producing an object file (§6
// "the compiler is probed by compiling a small... fragment"). It reads
// back the predefined version identifiers rather than any real target
// query, since those are stable across compiler versions.
const probeSource = `
module dubprobe;

string probeOS() {
	version (Windows) return "windows";
	else version (OSX) return "osx";
	else version (linux) return "linux";
	else version (FreeBSD) return "freebsd";
	else return "unknown";
}

string probeArch() {
	version (X86_64) return "x86_64";
	else version (X86) return "x86";
	else version (AArch64) return "aarch64";
	else return "unknown";
}

pragma(msg, "` + probeBegin + `os=" ~ probeOS() ~ ";arch=" ~ probeArch() ~ "` + probeEnd + `");
`

// DeterminePlatform compiles probeSource with binary (or c.binaryName if
// binary is empty) and parses the emitted BEGIN/END tuple. archOverride,
// when non-empty, is passed through as -m<archOverride> so cross-builds
// probe the target architecture rather than the host's.
func (c *Compiler) DeterminePlatform(binary, archOverride string) (iface.CompilerPlatform, error) {
	if binary == "" {
		binary = c.binaryName
	}

	dir, err := os.MkdirTemp("", "dub-probe-")
	if err != nil {
		return iface.CompilerPlatform{}, errors.Wrap(err, "creating probe scratch dir")
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "dubprobe.d")
	if err := os.WriteFile(src, []byte(probeSource), 0o644); err != nil {
		return iface.CompilerPlatform{}, errors.Wrap(err, "writing probe source")
	}

	args := []string{"-c", "-o-"}
	if archOverride != "" {
		args = append(args, "-m"+archOverride)
	}
	args = append(args, src)

	cmd := exec.Command(binary, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	_ = cmd.Run() // pragma(msg) output lands on stderr regardless of exit status

	plat, err := parseProbeOutput(out.String())
	if err != nil {
		return iface.CompilerPlatform{}, errors.Wrapf(err, "probing %s", binary)
	}
	plat.CompilerName = c.binaryName
	ver, verr := c.Version(binary, out.String())
	if verr == nil {
		plat.FrontendVer = ver
	}
	return plat, nil
}

func parseProbeOutput(output string) (iface.CompilerPlatform, error) {
	start := strings.Index(output, probeBegin)
	end := strings.Index(output, probeEnd)
	if start < 0 || end < 0 || end < start {
		return iface.CompilerPlatform{}, errors.Errorf("probe markers not found in output:\n%s", output)
	}
	body := output[start+len(probeBegin) : end]

	plat := iface.CompilerPlatform{}
	for _, field := range strings.Split(body, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "os":
			plat.OS = kv[1]
		case "arch":
			plat.Architecture = kv[1]
		}
	}
	if plat.OS == "" {
		plat.OS = "unknown"
	}
	return plat, nil
}

var versionPattern = regexp.MustCompile(`v?(\d+\.\d+\.\d+[\w.+-]*)`)

// Version extracts a semver-shaped token from verboseOutput (e.g. a
// banner line like "DMD64 D Compiler v2.100.0"), per the iface.Compiler
// contract that expects a pure parse rather than another invocation.
func (c *Compiler) Version(binary string, verboseOutput string) (string, error) {
	m := versionPattern.FindStringSubmatch(verboseOutput)
	if m == nil {
		return "", errors.Errorf("no version token found in %s output", binary)
	}
	return m[1], nil
}

// PrepareBuildSettings lowers high-level settings into dmd flags,
// placing them ahead of the existing DFlags (LFlags are left untouched)
// rather than replacing them so a caller can
// call this more than once with different includedFields masks without
// losing earlier lowering passes. includedFields is reserved for callers
// that want to stage lowering (e.g. import paths now, versions later);
// this Compiler always lowers everything in one pass.
func (c *Compiler) PrepareBuildSettings(settings interface{}, plat iface.CompilerPlatform, includedFields uint64) error {
	s, ok := settings.(*recipe.BuildSettings)
	if !ok {
		return errors.Errorf("dmd: PrepareBuildSettings got %T, want *recipe.BuildSettings", settings)
	}

	var flags []string
	for _, p := range s.ImportPaths {
		flags = append(flags, "-I"+p)
	}
	for _, p := range s.StringImportPaths {
		flags = append(flags, "-J"+p)
	}
	for _, v := range s.Versions {
		flags = append(flags, "-version="+v)
	}
	s.DFlags = append(flags, s.DFlags...)
	return nil
}

// ExtractBuildOptions folds recognized named flags back out of
// s.DFlags into BuildOption bits (§6 "generators that accept free-form
// dflags still participate in build-id computation consistently").
func (c *Compiler) ExtractBuildOptions(settings interface{}) ([]iface.BuildOption, error) {
	s, ok := settings.(*recipe.BuildSettings)
	if !ok {
		return nil, errors.Errorf("dmd: ExtractBuildOptions got %T, want *recipe.BuildSettings", settings)
	}
	var opts []iface.BuildOption
	for _, f := range s.DFlags {
		switch f {
		case "-debug":
			opts = append(opts, OptDebug)
		case "-release":
			opts = append(opts, OptRelease)
		case "-unittest":
			opts = append(opts, OptUnittest)
		case "-cov":
			opts = append(opts, OptCoverage)
		case "-profile":
			opts = append(opts, OptProfile)
		}
	}
	return opts, nil
}

// TargetFileName guesses a default output name from the first source
// file when no explicit name is otherwise known. The authoritative name
// for a project's targets comes from pkg/target's own naming (which
// already accounts for target type and platform extension); this method
// only exists to satisfy callers that have nothing but raw settings.
func (c *Compiler) TargetFileName(settings interface{}, plat iface.CompilerPlatform) (string, error) {
	s, ok := settings.(*recipe.BuildSettings)
	if !ok || len(s.SourceFiles) == 0 {
		return "", errors.New("dmd: cannot guess a target name with no source files")
	}
	base := filepath.Base(s.SourceFiles[0])
	return strings.TrimSuffix(base, filepath.Ext(base)), nil
}

// SetTarget appends the -of<outputPath> flag dmd uses to name its output.
func (c *Compiler) SetTarget(settings interface{}, plat iface.CompilerPlatform, outputPath string) error {
	s, ok := settings.(*recipe.BuildSettings)
	if !ok {
		return errors.Errorf("dmd: SetTarget got %T, want *recipe.BuildSettings", settings)
	}
	s.DFlags = append(s.DFlags, "-of"+outputPath)
	return nil
}

// LFlagsToDFlags maps raw linker flags into dmd's -L<flag> passthrough
// convention.
func (c *Compiler) LFlagsToDFlags(lflags []string) []string {
	out := make([]string, len(lflags))
	for i, f := range lflags {
		out[i] = "-L" + f
	}
	return out
}

func flagsFromSettings(s *recipe.BuildSettings) []string {
	var args []string
	args = append(args, s.SourceFiles...)
	args = append(args, s.DFlags...)
	for _, lib := range s.Libs {
		args = append(args, "-L-l"+lib)
	}
	return args
}

// Invoke runs a compile-only pass (-c) over settings' sources.
func (c *Compiler) Invoke(ctx context.Context, settings interface{}, plat iface.CompilerPlatform, out iface.OutputSink) error {
	s, ok := settings.(*recipe.BuildSettings)
	if !ok {
		return errors.Errorf("dmd: Invoke got %T, want *recipe.BuildSettings", settings)
	}
	args := append([]string{"-c"}, flagsFromSettings(s)...)
	return c.run(ctx, args, out)
}

// InvokeLinker links objects plus any of settings' own link-relevant
// flags into the final target.
func (c *Compiler) InvokeLinker(ctx context.Context, settings interface{}, plat iface.CompilerPlatform, objects []string, out iface.OutputSink) error {
	s, ok := settings.(*recipe.BuildSettings)
	if !ok {
		return errors.Errorf("dmd: InvokeLinker got %T, want *recipe.BuildSettings", settings)
	}
	args := append([]string{}, objects...)
	for _, lib := range s.Libs {
		args = append(args, "-L-l"+lib)
	}
	args = append(args, s.LFlags...)
	return c.run(ctx, args, out)
}

func (c *Compiler) run(ctx context.Context, args []string, out iface.OutputSink) error {
	cmd := exec.CommandContext(ctx, c.binaryName, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Run(); err != nil {
		return exitCodeError{err: err}
	}
	return nil
}

// exitCodeError adapts *exec.ExitError (and a bare ctx-killed error) into
// generator.ExitCoder so DirectBuilder can tell an ordinary compile
// failure from the -9/OOM signal of §5.
type exitCodeError struct{ err error }

func (e exitCodeError) Error() string { return e.err.Error() }

func (e exitCodeError) ExitCode() int {
	if ee, ok := e.err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}
