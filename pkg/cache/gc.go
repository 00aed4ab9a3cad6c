package cache

import (
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/termie/go-shutil"
)

// StageCopyFiles copies each of a target's copyFiles (recipe-relative
// paths, §3 "copyFiles") from packageRoot into scratchDir so they install
// atomically alongside the artifact (§4.7, §3). Grounded on the teacher's
// vendored termie/go-shutil, the only recursive-copy library in the pack.
func StageCopyFiles(packageRoot, scratchDir string, copyFiles []string) error {
	for _, rel := range copyFiles {
		src := filepath.Join(packageRoot, rel)
		dst := filepath.Join(scratchDir, filepath.Base(rel))
		if err := shutil.CopyFile(src, dst, false); err != nil {
			return errors.Wrapf(err, "staging copyFiles entry %q", rel)
		}
	}
	return nil
}

// GC removes every entry directory under the cache whose hex-encoded
// build-id is not present in live, pruning directories left behind by
// builds whose inputs have since changed (§4.7 "garbage collection is a
// separate maintenance operation that may prune directories not
// referenced by any current .dub/build/ latest-pointer"). Only entry
// directories are removed; lock files (<build-id>.lock) are always left
// alone.
func (c *Cache) GC(live map[[32]byte]bool) (removed []string, err error) {
	liveHex := make(map[string]bool, len(live))
	for id := range live {
		liveHex[hex.EncodeToString(id[:])] = true
	}

	ok, err := c.fs.Exists(c.buildDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var entries []string
	err = c.fs.Walk(c.buildDir, func(path string, isDir bool) error {
		if path == c.buildDir {
			return nil
		}
		rel, relErr := filepath.Rel(c.buildDir, path)
		if relErr != nil {
			return relErr
		}
		if strings.ContainsRune(rel, filepath.Separator) {
			return nil // nested under an entry dir; handled by RemoveAll on the entry itself
		}
		if isDir {
			entries = append(entries, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walking build cache")
	}

	for _, name := range entries {
		if liveHex[name] {
			continue
		}
		if err := c.fs.RemoveAll(filepath.Join(c.buildDir, name)); err != nil {
			return removed, errors.Wrapf(err, "removing stale cache entry %s", name)
		}
		removed = append(removed, name)
	}
	return removed, nil
}
