package pkgmanager

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"testing"

	"github.com/dlang/dub-sub005/pkg/version"
)

// fakeSupplier is a minimal iface.PackageSupplier double for exercising
// Fetch/Remove without a real VCS remote, mirroring the teacher's use of
// small hand-rolled test doubles (e.g. naiveAnalyzer) rather than a mocking
// framework.
type fakeSupplier struct {
	recipe  []byte
	archive []byte
}

func (s *fakeSupplier) Describe() string { return "fake-supplier" }

func (s *fakeSupplier) ListVersions(ctx context.Context, name string) ([]version.Version, error) {
	return []version.Version{version.MustRelease("1.0.0")}, nil
}

func (s *fakeSupplier) FetchRecipe(ctx context.Context, name string, v version.Version) ([]byte, error) {
	return s.recipe, nil
}

func (s *fakeSupplier) FetchArchive(ctx context.Context, name string, v version.Version) (io.ReadCloser, error) {
	return ioutil.NopCloser(bytes.NewReader(s.archive)), nil
}

// mustZip builds an in-memory zip archive containing a single file at
// name, relative to the archive root — the flat layout extractArchive
// expects, since Fetch extracts directly into the instance directory
// (which already carries the "<name>/<version>/<name>" nesting, §6).
func mustZip(t *testing.T, _, name, contents string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	if err != nil {
		t.Fatalf("zip.Create: %s", err)
	}
	if _, err := w.Write([]byte(contents)); err != nil {
		t.Fatalf("zip write: %s", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip.Close: %s", err)
	}
	return buf.Bytes()
}
