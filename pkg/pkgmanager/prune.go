package pkgmanager

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// vcsMetadataDirs are stripped from a freshly fetched package, mirroring
// the teacher's gps/prune_vendor.go, which removes VCS bookkeeping and
// nested vendor trees after a fetch rather than leaving them to bloat the
// cache and confuse later directory walks.
var vcsMetadataDirs = []string{".git", ".hg", ".svn", ".bzr"}

// Prune strips VCS metadata directories from a freshly fetched package
// directory (§12 "Vendor/cache pruning"). It is run automatically at the
// end of Fetch.
func Prune(dir string) error {
	for _, name := range vcsMetadataDirs {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			if err := os.RemoveAll(path); err != nil {
				return errors.Wrapf(err, "pruning %s", path)
			}
		}
	}
	return nil
}
