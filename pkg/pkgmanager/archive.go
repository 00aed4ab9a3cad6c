package pkgmanager

import (
	"archive/zip"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// extractArchive unpacks a zip-format package archive (the format DUB's
// real-world registries serve) into dir. Archive format handling is
// in-scope for the package manager even though registry transport itself
// is injected (§1): FetchArchive only promises bytes, someone has to turn
// them into a directory.
func extractArchive(r io.Reader, dir string) error {
	tmp, err := ioutil.TempFile("", "dub-archive-*.zip")
	if err != nil {
		return errors.Wrap(err, "staging archive")
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, r); err != nil {
		return errors.Wrap(err, "staging archive")
	}

	zr, err := zip.OpenReader(tmp.Name())
	if err != nil {
		return errors.Wrap(err, "opening archive")
	}
	defer zr.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}

	for _, f := range zr.File {
		target := filepath.Join(dir, f.Name)
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) && target != filepath.Clean(dir) {
			return errors.Errorf("archive entry %q escapes destination", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractOne(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractOne(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
