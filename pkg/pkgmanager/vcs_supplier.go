package pkgmanager

import (
	"archive/zip"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/Masterminds/vcs"
	"github.com/dlang/dub-sub005/pkg/version"
	"github.com/pkg/errors"
	shutil "github.com/termie/go-shutil"
)

// VCSSupplier is DUB's default, non-injected iface.PackageSupplier: it
// resolves a package name to a git remote URL via a caller-supplied
// lookup function and drives github.com/Masterminds/vcs the way the
// teacher's vcs_source.go/vcs_repo.go do (§4.3, §6). Its git metadata is
// pruned from every export before archiving, matching exportVersionTo's
// care not to leak .git into the tree it hands back.
type VCSSupplier struct {
	RemoteFor func(name string) (string, error)
	WorkDir   string
}

func (s *VCSSupplier) Describe() string { return "vcs-supplier" }

func (s *VCSSupplier) repoFor(name string) (vcs.Repo, error) {
	remote, err := s.RemoteFor(name)
	if err != nil {
		return nil, err
	}
	local := filepath.Join(s.WorkDir, sanitizeName(name))
	return vcs.NewGitRepo(remote, local)
}

func sanitizeName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '/' || c == ':' {
			c = '-'
		}
		out[i] = c
	}
	return string(out)
}

func (s *VCSSupplier) ListVersions(ctx context.Context, name string) ([]version.Version, error) {
	repo, err := s.repoFor(name)
	if err != nil {
		return nil, err
	}
	if !repo.CheckLocal() {
		if err := repo.Get(); err != nil {
			return nil, errors.Wrapf(err, "cloning %s", name)
		}
	} else if err := repo.Update(); err != nil {
		return nil, errors.Wrapf(err, "updating %s", name)
	}

	var out []version.Version
	tags, err := repo.Tags()
	if err != nil {
		return nil, errors.Wrapf(err, "listing tags for %s", name)
	}
	for _, t := range tags {
		if r, err := version.NewRelease(t); err == nil {
			out = append(out, r)
		}
	}

	branches, err := repo.Branches()
	if err != nil {
		return nil, errors.Wrapf(err, "listing branches for %s", name)
	}
	for _, b := range branches {
		out = append(out, version.Branch(b))
	}

	return out, nil
}

func (s *VCSSupplier) FetchRecipe(ctx context.Context, name string, v version.Version) ([]byte, error) {
	dir, cleanup, err := s.checkoutTo(name, v)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	for _, fname := range []string{sdlRecipeFile, jsonRecipeFile} {
		data, err := os.ReadFile(filepath.Join(dir, fname))
		if err == nil {
			return data, nil
		}
	}
	return nil, errors.Errorf("no recipe found for %s@%s", name, v)
}

func (s *VCSSupplier) FetchArchive(ctx context.Context, name string, v version.Version) (io.ReadCloser, error) {
	dir, cleanup, err := s.checkoutTo(name, v)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	tmpZip, err := ioutil.TempFile("", "dub-export-*.zip")
	if err != nil {
		return nil, err
	}
	if err := zipDirectory(dir, tmpZip); err != nil {
		tmpZip.Close()
		os.Remove(tmpZip.Name())
		return nil, err
	}
	if _, err := tmpZip.Seek(0, io.SeekStart); err != nil {
		tmpZip.Close()
		return nil, err
	}
	return &removeOnCloseFile{File: tmpZip}, nil
}

// checkoutTo checks out (name, v) from its VCS repo into a fresh
// directory, free of VCS metadata, via shutil.CopyTree — mirroring the
// teacher's exportVersionTo, which likewise produces a clean export rather
// than handing back the live repo checkout.
func (s *VCSSupplier) checkoutTo(name string, v version.Version) (dir string, cleanup func(), err error) {
	repo, err := s.repoFor(name)
	if err != nil {
		return "", nil, err
	}
	if !repo.CheckLocal() {
		if err := repo.Get(); err != nil {
			return "", nil, errors.Wrapf(err, "cloning %s", name)
		}
	}
	if err := repo.UpdateVersion(v.String()); err != nil {
		return "", nil, errors.Wrapf(err, "checking out %s@%s", name, v)
	}

	export, err := ioutil.TempDir("", "dub-export-")
	if err != nil {
		return "", nil, err
	}
	exportDir := filepath.Join(export, name)
	if err := shutil.CopyTree(repo.LocalPath(), exportDir, nil); err != nil {
		os.RemoveAll(export)
		return "", nil, errors.Wrapf(err, "exporting %s@%s", name, v)
	}
	if err := Prune(exportDir); err != nil {
		os.RemoveAll(export)
		return "", nil, err
	}
	return exportDir, func() { os.RemoveAll(export) }, nil
}

// zipDirectory archives dir's contents with entry names relative to dir
// itself (no added root segment): the package manager's fetched-package
// layout (§6) already supplies the "<name>/<version>/<name>" nesting via
// the destination directory, so the archive must not duplicate it.
func zipDirectory(dir string, w io.Writer) error {
	zw := zip.NewWriter(w)
	defer zw.Close()

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(entry, src)
		return err
	})
}

type removeOnCloseFile struct {
	*os.File
}

func (f *removeOnCloseFile) Close() error {
	name := f.File.Name()
	err := f.File.Close()
	os.Remove(name)
	return err
}
