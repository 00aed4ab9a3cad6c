package selection

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/theckman/go-flock"

	"github.com/dlang/dub-sub005/pkg/dubfail"
	"github.com/dlang/dub-sub005/pkg/iface"
)

// DocumentName is the selection file's name at the project root.
const DocumentName = "dub.selections.toml"

// SafeWriter stages a new selection document and only renames it into
// place once the caller's resolve has already succeeded, so a crash
// mid-write never leaves a partial or
// inconsistent file (§5 "a selection is written only after the entire
// resolve succeeds; partial writes are forbidden"). Grounded on the
// teacher's SafeWriter (txn_writer.go): stage everything, commit last;
// narrowed here to the single selection file rather than the teacher's
// manifest+lock+vendor trio.
type SafeWriter struct {
	fs   iface.FileSystem
	path string
}

// NewSafeWriter roots a SafeWriter at projectRoot/dub.selections.toml.
func NewSafeWriter(fs iface.FileSystem, projectRoot string) *SafeWriter {
	return &SafeWriter{fs: fs, path: filepath.Join(projectRoot, DocumentName)}
}

func (w *SafeWriter) lockPath() string {
	return w.path + ".lock"
}

// Write takes the file's exclusive lock for the whole cycle (§5 "the
// selection file: exclusive lock for its whole read-modify-write
// cycle"), encodes doc, stages it in a scratch directory, and renames it
// into place.
func (w *SafeWriter) Write(doc *Document) error {
	fl := flock.NewFlock(w.lockPath())
	if err := fl.Lock(); err != nil {
		return &dubfail.LockError{Resource: w.path, Err: err}
	}
	defer fl.Unlock()

	data, err := Encode(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := w.fs.MkdirAll(dir); err != nil {
		return &dubfail.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	scratch, err := w.fs.TempDir(dir, "dub-selections-")
	if err != nil {
		return &dubfail.IOError{Op: "mkdtemp", Path: dir, Err: err}
	}
	defer w.fs.RemoveAll(scratch)

	staged := filepath.Join(scratch, DocumentName)
	if err := w.fs.WriteFile(staged, data); err != nil {
		return &dubfail.IOError{Op: "write", Path: staged, Err: err}
	}
	if err := w.fs.Rename(staged, w.path); err != nil {
		return &dubfail.IOError{Op: "rename", Path: w.path, Err: err}
	}
	return nil
}

// Load reads the project's selection document, if any. A missing file is
// not an error: it reports an empty document instead, for a project
// that has never been resolved before.
func Load(fs iface.FileSystem, projectRoot string) (*Document, error) {
	path := filepath.Join(projectRoot, DocumentName)
	ok, err := fs.Exists(path)
	if err != nil {
		return nil, &dubfail.IOError{Op: "stat", Path: path, Err: err}
	}
	if !ok {
		return New(), nil
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, &dubfail.IOError{Op: "read", Path: path, Err: err}
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return doc, nil
}

