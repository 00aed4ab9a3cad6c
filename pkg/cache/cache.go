// Package cache implements the content-addressed build cache of §4.7: a
// per-package `.dub/build/<build-id>/` directory holding a compiled
// artifact plus a manifest of the inputs that produced it. Grounded on
// the teacher's fs.go (renameWithFallback's write-to-temp-then-rename
// idiom, used here for install) and txn_writer.go (stage everything,
// commit last).
package cache

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/dlang/dub-sub005/pkg/iface"
)

const manifestFile = "manifest.json"
const artifactFile = "artifact"

// Manifest lists a build-id's inputs, written alongside the artifact so a
// later Lookup can confirm a directory is a complete, valid cache entry
// rather than a half-written one (§4.7 "a hit iff the manifest is present
// and the artifact file exists").
type Manifest struct {
	Inputs []string `json:"inputs"`
}

// Cache is the content-addressed store for one package's targets, rooted
// at <packageDir>/.dub/build.
type Cache struct {
	buildDir string
	fs       iface.FileSystem
}

// New roots a Cache under packageDir.
func New(fs iface.FileSystem, packageDir string) *Cache {
	return &Cache{buildDir: filepath.Join(packageDir, ".dub", "build"), fs: fs}
}

func (c *Cache) entryDir(buildID [32]byte) string {
	return filepath.Join(c.buildDir, hex.EncodeToString(buildID[:]))
}

// Lookup reports whether buildID has a complete cache entry, returning
// the artifact's path if so (§4.7).
func (c *Cache) Lookup(buildID [32]byte) (artifactPath string, hit bool, err error) {
	dir := c.entryDir(buildID)
	manifestOK, err := c.fs.Exists(filepath.Join(dir, manifestFile))
	if err != nil {
		return "", false, err
	}
	artifact := filepath.Join(dir, artifactFile)
	artifactOK, err := c.fs.Exists(artifact)
	if err != nil {
		return "", false, err
	}
	if !manifestOK || !artifactOK {
		return "", false, nil
	}
	return artifact, true, nil
}

// Install atomically publishes a scratch-built artifact under buildID:
// stage the manifest into scratchDir, then rename scratchDir into place
// as a whole so a concurrent Lookup never observes a partial entry
// (§3 "Lifecycles", §4.7 "write protocol"). The caller holds the entry's
// lock (see Lock) for the duration.
func (c *Cache) Install(buildID [32]byte, scratchDir string, manifest Manifest) (artifactPath string, err error) {
	data, err := json.Marshal(manifest)
	if err != nil {
		return "", errors.Wrap(err, "marshaling build manifest")
	}
	if err := c.fs.WriteFile(filepath.Join(scratchDir, manifestFile), data); err != nil {
		return "", errors.Wrap(err, "writing build manifest")
	}

	if err := c.fs.MkdirAll(c.buildDir); err != nil {
		return "", errors.Wrap(err, "creating build cache directory")
	}

	dest := c.entryDir(buildID)
	if ok, _ := c.fs.Exists(dest); ok {
		// Another builder raced us and already installed this build-id;
		// our own scratch output is redundant (§4.7 "the loser observes
		// the completed artifact on release").
		if err := c.fs.RemoveAll(scratchDir); err != nil {
			return "", err
		}
		return filepath.Join(dest, artifactFile), nil
	}

	if err := c.fs.Rename(scratchDir, dest); err != nil {
		return "", errors.Wrap(err, "installing build cache entry")
	}
	return filepath.Join(dest, artifactFile), nil
}

// Abort discards a failed scratch build, leaving no partial directory
// behind (§3 "partial outputs must not survive a failed or interrupted
// build").
func (c *Cache) Abort(scratchDir string) error {
	return c.fs.RemoveAll(scratchDir)
}

// OSFileSystem is the production iface.FileSystem backed by the os and
// path/filepath packages.
type OSFileSystem struct{}

func (OSFileSystem) MkdirAll(path string) error { return os.MkdirAll(path, 0o755) }
func (OSFileSystem) RemoveAll(path string) error { return os.RemoveAll(path) }
func (OSFileSystem) Rename(oldPath, newPath string) error {
	if err := os.Rename(oldPath, newPath); err != nil {
		return err
	}
	return nil
}
func (OSFileSystem) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
func (OSFileSystem) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }
func (OSFileSystem) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
func (OSFileSystem) TempDir(parent, pattern string) (string, error) {
	return os.MkdirTemp(parent, pattern)
}
func (OSFileSystem) Walk(root string, fn func(path string, isDir bool) error) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		return fn(path, info.IsDir())
	})
}
