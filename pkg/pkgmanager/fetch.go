package pkgmanager

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dlang/dub-sub005/pkg/dubfail"
	"github.com/dlang/dub-sub005/pkg/iface"
	"github.com/dlang/dub-sub005/pkg/version"
	"github.com/pkg/errors"
)

// Fetch retrieves name at v from supplier and installs it under location,
// at the layout named in §4.3/§6. Fetches take an exclusive per-(name,
// version) file lock so concurrent DUB processes don't corrupt a shared
// cache (§4.3 "Concurrency", §5, DESIGN.md decision #3).
func (pm *PackageManager) Fetch(ctx context.Context, name string, v version.Version, supplier iface.PackageSupplier, location string) error {
	lockPath := flockPath(location, name, v.String())
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return &dubfail.IOError{Op: "mkdir", Path: filepath.Dir(lockPath), Err: err}
	}

	fl := newFlock(lockPath)
	if err := fl.Lock(); err != nil {
		return &dubfail.LockError{Resource: lockPath, Err: err}
	}
	defer fl.Unlock()

	dir := instanceDir(location, name, v)
	archive, err := supplier.FetchArchive(ctx, name, v)
	if err != nil {
		return errors.Wrapf(err, "fetching %s@%s from %s", name, v, supplier.Describe())
	}
	defer archive.Close()

	if err := extractArchive(archive, dir); err != nil {
		os.RemoveAll(dir)
		return errors.Wrapf(err, "extracting %s@%s", name, v)
	}

	if err := Prune(dir); err != nil {
		return errors.Wrapf(err, "pruning %s@%s", name, v)
	}

	key := recipeKey{name: name, ver: v.Type().String() + ":" + v.String()}
	pm.mu.Lock()
	delete(pm.recipeMemo, key)
	pm.mu.Unlock()

	return nil
}

// Remove deletes the fetched package (name, v) from location. It takes the
// same exclusive lock as Fetch so a concurrent fetch of the same instance
// cannot race with its own removal.
func (pm *PackageManager) Remove(name string, v version.Version, location string) error {
	lockPath := flockPath(location, name, v.String())
	fl := newFlock(lockPath)
	if err := fl.Lock(); err != nil {
		return &dubfail.LockError{Resource: lockPath, Err: err}
	}
	defer fl.Unlock()

	versionDir := filepath.Join(location, name, v.String())
	if err := os.RemoveAll(versionDir); err != nil {
		return &dubfail.IOError{Op: "remove", Path: versionDir, Err: err}
	}

	key := recipeKey{name: name, ver: v.Type().String() + ":" + v.String()}
	pm.mu.Lock()
	delete(pm.recipeMemo, key)
	pm.mu.Unlock()
	return nil
}
