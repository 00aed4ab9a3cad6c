package selection

import (
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Encode renders doc as TOML: a top-level fileVersion field and a
// [versions] table whose keys are package names in name order, each a
// release-version string, a "~branch" string, or a {path = "..."}
// sub-table (§4.9 schema). Grounded on toml.go's tree-building idiom
// (the teacher reads via TomlTree.Query; DUB's writer builds the
// equivalent tree directly since go-toml's Tree preserves Set order).
func Encode(doc *Document) ([]byte, error) {
	root, err := toml.TreeFromMap(map[string]interface{}{})
	if err != nil {
		return nil, errors.Wrap(err, "building selection document tree")
	}
	root.Set("fileVersion", int64(doc.FileVersion))

	versions, err := toml.TreeFromMap(map[string]interface{}{})
	if err != nil {
		return nil, errors.Wrap(err, "building selection versions table")
	}
	for _, e := range doc.Entries {
		switch e.Kind {
		case KindVersion:
			versions.Set(e.Name, e.Version)
		case KindBranch:
			versions.Set(e.Name, "~"+e.Branch)
		case KindPath:
			sub, err := toml.TreeFromMap(map[string]interface{}{"path": e.Path})
			if err != nil {
				return nil, errors.Wrapf(err, "building path entry for %s", e.Name)
			}
			versions.Set(e.Name, sub)
		}
	}
	root.Set("versions", versions)

	return []byte(root.String()), nil
}

// Decode parses a selection document from TOML. A versions entry that
// references a package unknown to the catalog is not itself an error
// here (§4.9); Decode only rejects a malformed document.
func Decode(data []byte) (*Document, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "parsing selection document")
	}

	doc := &Document{}
	if v, ok := tree.Get("fileVersion").(int64); ok {
		doc.FileVersion = int(v)
	}

	versions, _ := tree.Get("versions").(*toml.Tree)
	if versions == nil {
		return doc, nil
	}

	keys := versions.Keys()
	for _, name := range keys {
		switch v := versions.Get(name).(type) {
		case string:
			if strings.HasPrefix(v, "~") {
				doc.Set(Entry{Name: name, Kind: KindBranch, Branch: strings.TrimPrefix(v, "~")})
			} else {
				doc.Set(Entry{Name: name, Kind: KindVersion, Version: v})
			}
		case *toml.Tree:
			path, _ := v.Get("path").(string)
			doc.Set(Entry{Name: name, Kind: KindPath, Path: path})
		default:
			return nil, errors.Errorf("selection entry %q has an unrecognized shape", name)
		}
	}
	return doc, nil
}
