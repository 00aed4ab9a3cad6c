package cache

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
)

func mkPackageDir(t *testing.T) (dir string, cleanup func()) {
	dir, err := os.MkdirTemp("", "dub-cache-")
	if err != nil {
		t.Fatalf("MkdirTemp: %s", err)
	}
	return dir, func() { os.RemoveAll(dir) }
}

func scratchWithArtifact(t *testing.T, parent, contents string) string {
	scratch, err := os.MkdirTemp(parent, "scratch-")
	if err != nil {
		t.Fatalf("MkdirTemp: %s", err)
	}
	if err := os.WriteFile(filepath.Join(scratch, artifactFile), []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %s", err)
	}
	return scratch
}

func TestLookupMissesOnEmptyCache(t *testing.T) {
	dir, cleanup := mkPackageDir(t)
	defer cleanup()

	c := New(OSFileSystem{}, dir)
	_, hit, err := c.Lookup(sha256.Sum256([]byte("nothing")))
	if err != nil {
		t.Fatalf("Lookup: %s", err)
	}
	if hit {
		t.Fatalf("expected a miss on an empty cache")
	}
}

func TestInstallThenLookupHits(t *testing.T) {
	dir, cleanup := mkPackageDir(t)
	defer cleanup()

	c := New(OSFileSystem{}, dir)
	id := sha256.Sum256([]byte("build-one"))
	scratch := scratchWithArtifact(t, dir, "binary contents")

	artifactPath, err := c.Install(id, scratch, Manifest{Inputs: []string{"source/app.d"}})
	if err != nil {
		t.Fatalf("Install: %s", err)
	}
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		t.Fatalf("ReadFile: %s", err)
	}
	if string(data) != "binary contents" {
		t.Fatalf("unexpected artifact contents: %s", data)
	}

	_, hit, err := c.Lookup(id)
	if err != nil {
		t.Fatalf("Lookup: %s", err)
	}
	if !hit {
		t.Fatalf("expected a hit after Install")
	}
}

func TestInstallRaceLoserDiscardsOwnScratchDir(t *testing.T) {
	dir, cleanup := mkPackageDir(t)
	defer cleanup()

	c := New(OSFileSystem{}, dir)
	id := sha256.Sum256([]byte("build-two"))

	winner := scratchWithArtifact(t, dir, "winner")
	if _, err := c.Install(id, winner, Manifest{}); err != nil {
		t.Fatalf("Install (winner): %s", err)
	}

	loser := scratchWithArtifact(t, dir, "loser")
	artifactPath, err := c.Install(id, loser, Manifest{})
	if err != nil {
		t.Fatalf("Install (loser): %s", err)
	}
	if ok, _ := (OSFileSystem{}).Exists(loser); ok {
		t.Fatalf("expected the loser's scratch dir to be discarded")
	}
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		t.Fatalf("ReadFile: %s", err)
	}
	if string(data) != "winner" {
		t.Fatalf("expected the winner's artifact to survive, got %q", data)
	}
}

func TestAbortRemovesScratchDir(t *testing.T) {
	dir, cleanup := mkPackageDir(t)
	defer cleanup()

	c := New(OSFileSystem{}, dir)
	scratch := scratchWithArtifact(t, dir, "failed build")

	if err := c.Abort(scratch); err != nil {
		t.Fatalf("Abort: %s", err)
	}
	if ok, _ := (OSFileSystem{}).Exists(scratch); ok {
		t.Fatalf("expected scratch dir to be removed")
	}
}

func TestLockExcludesTryLock(t *testing.T) {
	dir, cleanup := mkPackageDir(t)
	defer cleanup()

	c := New(OSFileSystem{}, dir)
	id := sha256.Sum256([]byte("build-three"))

	l, err := c.Lock(id)
	if err != nil {
		t.Fatalf("Lock: %s", err)
	}
	defer l.Release()

	if _, ok, err := c.TryLock(id); err == nil && ok {
		t.Fatalf("expected TryLock to fail while the entry is held")
	}
}

func TestTryLockSucceedsWhenFree(t *testing.T) {
	dir, cleanup := mkPackageDir(t)
	defer cleanup()

	c := New(OSFileSystem{}, dir)
	id := sha256.Sum256([]byte("build-four"))

	l, ok, err := c.TryLock(id)
	if err != nil {
		t.Fatalf("TryLock: %s", err)
	}
	if !ok {
		t.Fatalf("expected TryLock to succeed on a free entry")
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %s", err)
	}
}

func TestGCRemovesUnreferencedEntries(t *testing.T) {
	dir, cleanup := mkPackageDir(t)
	defer cleanup()

	c := New(OSFileSystem{}, dir)
	live := sha256.Sum256([]byte("live"))
	stale := sha256.Sum256([]byte("stale"))

	if _, err := c.Install(live, scratchWithArtifact(t, dir, "live"), Manifest{}); err != nil {
		t.Fatalf("Install (live): %s", err)
	}
	if _, err := c.Install(stale, scratchWithArtifact(t, dir, "stale"), Manifest{}); err != nil {
		t.Fatalf("Install (stale): %s", err)
	}

	removed, err := c.GC(map[[32]byte]bool{live: true})
	if err != nil {
		t.Fatalf("GC: %s", err)
	}
	if len(removed) != 1 {
		t.Fatalf("expected exactly one entry removed, got %v", removed)
	}

	if _, hit, _ := c.Lookup(live); !hit {
		t.Fatalf("expected the live entry to survive GC")
	}
	if _, hit, _ := c.Lookup(stale); hit {
		t.Fatalf("expected the stale entry to be gone after GC")
	}
}

func TestGCOnEmptyCacheIsANoop(t *testing.T) {
	dir, cleanup := mkPackageDir(t)
	defer cleanup()

	c := New(OSFileSystem{}, dir)
	removed, err := c.GC(nil)
	if err != nil {
		t.Fatalf("GC: %s", err)
	}
	if len(removed) != 0 {
		t.Fatalf("expected nothing removed on an empty cache, got %v", removed)
	}
}

func TestStageCopyFilesCopiesIntoScratchDir(t *testing.T) {
	pkgRoot, cleanup := mkPackageDir(t)
	defer cleanup()

	if err := os.WriteFile(filepath.Join(pkgRoot, "lib.dll"), []byte("dll bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %s", err)
	}
	scratch, err := os.MkdirTemp(pkgRoot, "scratch-")
	if err != nil {
		t.Fatalf("MkdirTemp: %s", err)
	}

	if err := StageCopyFiles(pkgRoot, scratch, []string{"lib.dll"}); err != nil {
		t.Fatalf("StageCopyFiles: %s", err)
	}

	data, err := os.ReadFile(filepath.Join(scratch, "lib.dll"))
	if err != nil {
		t.Fatalf("ReadFile: %s", err)
	}
	if string(data) != "dll bytes" {
		t.Fatalf("unexpected copied contents: %s", data)
	}
}
