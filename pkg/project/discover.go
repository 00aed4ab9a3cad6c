package project

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"

	"github.com/dlang/dub-sub005/pkg/recipe"
)

// RecipeLoader parses the recipe file found directly inside dir, if any.
// Implementations return an error when dir carries no recognizable recipe
// file, which DiscoverSubpackages treats as "not a package directory"
// rather than a hard failure.
type RecipeLoader func(dir string) (*recipe.Recipe, error)

// DiscoverSubpackages scans root's immediate child directories for ones
// carrying their own recipe file but not already named in known, and
// returns a Subpackage entry for each (§12 "source-tree package
// discovery", grounded on the teacher's gps/pkgtree.ListPackages walking
// a tree and trimming irrelevant nodes). Only one level is scanned;
// a discovered subpackage's own nested subpackages are its concern, not
// its parent's.
func DiscoverSubpackages(root string, known map[string]bool, load RecipeLoader) ([]recipe.Subpackage, error) {
	var found []recipe.Subpackage

	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if osPathname == root {
				return nil
			}
			if !de.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, osPathname)
			if err != nil {
				return err
			}
			if strings.ContainsRune(rel, filepath.Separator) {
				return filepath.SkipDir
			}
			if known[rel] {
				return filepath.SkipDir
			}
			if strings.HasPrefix(filepath.Base(rel), ".") {
				return filepath.SkipDir
			}
			rec, err := load(osPathname)
			if err != nil {
				// Not a package directory; nothing to discover here.
				return filepath.SkipDir
			}
			found = append(found, recipe.Subpackage{Path: osPathname, Inline: rec})
			return filepath.SkipDir
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return found, nil
}
