package target

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"sort"

	"github.com/dlang/dub-sub005/pkg/iface"
	"github.com/dlang/dub-sub005/pkg/recipe"
)

// ToolchainIdentity names the compiler binary inputs to a build-id: its
// on-disk identity (content hash or resolved path, caller's choice, but
// never something that varies with wall-clock time), its reported
// version string, and its platform probe (§4.6).
type ToolchainIdentity struct {
	BinaryIdentity string
	Version        string
	Probe          iface.CompilerPlatform
	Options        []iface.BuildOption
}

// FileHasher returns the content hash of the file at path, used for
// source/import/lib inputs so the build-id never depends on the absolute
// path, only on content (§4.6).
type FileHasher func(path string) ([32]byte, error)

// ComputeBuildID hashes t's build-id per §4.6's fixed field order:
// compiler identity/version, compiler platform probe, target type, merged
// settings (unordered fields sorted first), content hash of every source/
// import/string-import file, content hash of every input library, the
// hash of each dependency target's own build-id (already computed, since
// callers run this in topological order), the build-type name,
// compiler-derived build options, and the architecture. depBuildIDs must
// contain an entry for every name in t.LinkDependencies.
func ComputeBuildID(t *Target, tool ToolchainIdentity, buildType string, hashFile FileHasher, depBuildIDs map[string][32]byte) ([32]byte, error) {
	h := sha256.New()

	fmt.Fprintf(h, "compiler:%s\x00%s\x00", tool.BinaryIdentity, tool.Version)
	fmt.Fprintf(h, "probe:%s\x00%s\x00%s\x00%s\x00%s\x00",
		tool.Probe.OS, tool.Probe.Architecture, tool.Probe.CompilerName, tool.Probe.FrontendVer, tool.Probe.Vendor)
	fmt.Fprintf(h, "targettype:%s\x00", t.TargetType)

	writeSettings(h, t.Settings)

	for _, path := range sortedCopy(allFileInputs(t.Settings)) {
		digest, err := hashFile(path)
		if err != nil {
			return [32]byte{}, err
		}
		fmt.Fprintf(h, "file:%s\x00%x\x00", path, digest)
	}

	for _, lib := range sortedCopy(t.Settings.Libs) {
		digest, err := hashFile(lib)
		if err != nil {
			continue // a system library (e.g. "-lm") has no content to hash
		}
		fmt.Fprintf(h, "lib:%s\x00%x\x00", lib, digest)
	}

	for _, depName := range sortedCopy(t.LinkDependencies) {
		fmt.Fprintf(h, "dep:%s\x00%x\x00", depName, depBuildIDs[depName])
	}

	fmt.Fprintf(h, "buildtype:%s\x00", buildType)

	opts := append([]iface.BuildOption(nil), tool.Options...)
	sort.Slice(opts, func(i, j int) bool { return opts[i] < opts[j] })
	for _, o := range opts {
		fmt.Fprintf(h, "opt:%d\x00", o)
	}

	fmt.Fprintf(h, "arch:%s\x00", tool.Probe.Architecture)

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// writeSettings hashes the merged build settings in a fixed field order;
// fields with no ordering significance (Versions/ImportPaths/
// StringImportPaths/Libs/CopyFiles) are sorted first, flag fields
// (DFlags/LFlags/CFlags, already carrying any Prepend* splice) are hashed
// in their existing order since it's compiler-significant.
func writeSettings(h hash.Hash, s recipe.BuildSettings) {
	writeSorted(h, "versions", s.Versions)
	writeSorted(h, "importpaths", s.ImportPaths)
	writeSorted(h, "stringimportpaths", s.StringImportPaths)
	writeOrdered(h, "sourcefiles", s.SourceFiles)
	writeSorted(h, "excludedsourcefiles", s.ExcludedSourceFiles)
	writeOrdered(h, "dflags", s.DFlags)
	writeOrdered(h, "lflags", s.LFlags)
	writeOrdered(h, "cflags", s.CFlags)
	writeSorted(h, "libs", s.Libs)
	writeSorted(h, "copyfiles", s.CopyFiles)
	writeOrdered(h, "prebuild", s.PreBuildCommands)
	writeOrdered(h, "postbuild", s.PostBuildCommands)

	keys := make([]string, 0, len(s.Environment))
	for k := range s.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "env:%s=%s\x00", k, s.Environment[k])
	}
}

func writeSorted(h hash.Hash, field string, ss []string) {
	writeOrdered(h, field, sortedCopy(ss))
}

func writeOrdered(h hash.Hash, field string, ss []string) {
	for _, s := range ss {
		fmt.Fprintf(h, "%s:%s\x00", field, s)
	}
}

// allFileInputs returns the source/import/string-import file paths whose
// content the build-id must cover (§4.6).
func allFileInputs(s recipe.BuildSettings) []string {
	out := make([]string, 0, len(s.SourceFiles)+len(s.ImportPaths)+len(s.StringImportPaths))
	out = append(out, s.SourceFiles...)
	out = append(out, s.ImportPaths...)
	out = append(out, s.StringImportPaths...)
	return out
}

func sortedCopy(ss []string) []string {
	out := append([]string(nil), ss...)
	sort.Strings(out)
	return out
}
