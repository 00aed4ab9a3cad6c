package selection

import (
	"os"
	"testing"

	"github.com/dlang/dub-sub005/pkg/cache"
)

func TestSetKeepsEntriesSortedByName(t *testing.T) {
	doc := New()
	doc.Set(Entry{Name: "zeta", Kind: KindVersion, Version: "1.0.0"})
	doc.Set(Entry{Name: "alpha", Kind: KindVersion, Version: "2.0.0"})
	doc.Set(Entry{Name: "mid", Kind: KindBranch, Branch: "main"})

	names := doc.SortedNames()
	want := []string{"alpha", "mid", "zeta"}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("expected sorted names %v, got %v", want, names)
		}
	}
}

func TestSetReplacesExistingEntry(t *testing.T) {
	doc := New()
	doc.Set(Entry{Name: "a", Kind: KindVersion, Version: "1.0.0"})
	doc.Set(Entry{Name: "a", Kind: KindVersion, Version: "2.0.0"})

	if len(doc.Entries) != 1 {
		t.Fatalf("expected replacement, not append, got %d entries", len(doc.Entries))
	}
	e, _ := doc.Entry("a")
	if e.Version != "2.0.0" {
		t.Fatalf("expected updated version, got %s", e.Version)
	}
}

func TestRemoveDropsEntry(t *testing.T) {
	doc := New()
	doc.Set(Entry{Name: "a", Kind: KindVersion, Version: "1.0.0"})
	doc.Remove("a")
	if _, ok := doc.Entry("a"); ok {
		t.Fatalf("expected entry to be removed")
	}
}

func TestEncodeDecodeRoundTripsAllKinds(t *testing.T) {
	doc := New()
	doc.Set(Entry{Name: "vibe-d", Kind: KindVersion, Version: "0.9.5"})
	doc.Set(Entry{Name: "my-lib", Kind: KindBranch, Branch: "develop"})
	doc.Set(Entry{Name: "local-tool", Kind: KindPath, Path: "/opt/local-tool"})

	data, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode: %s", err)
	}

	back, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %s\n%s", err, data)
	}
	if back.FileVersion != doc.FileVersion {
		t.Fatalf("expected fileVersion %d, got %d", doc.FileVersion, back.FileVersion)
	}
	if len(back.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(back.Entries))
	}

	v, ok := back.Entry("vibe-d")
	if !ok || v.Kind != KindVersion || v.Version != "0.9.5" {
		t.Fatalf("unexpected vibe-d entry: %+v", v)
	}
	b, ok := back.Entry("my-lib")
	if !ok || b.Kind != KindBranch || b.Branch != "develop" {
		t.Fatalf("unexpected my-lib entry: %+v", b)
	}
	p, ok := back.Entry("local-tool")
	if !ok || p.Kind != KindPath || p.Path != "/opt/local-tool" {
		t.Fatalf("unexpected local-tool entry: %+v", p)
	}
}

func TestDiffReportsAddsRemovesAndChanges(t *testing.T) {
	old := New()
	old.Set(Entry{Name: "a", Kind: KindVersion, Version: "1.0.0"})
	old.Set(Entry{Name: "b", Kind: KindVersion, Version: "1.0.0"})

	updated := New()
	updated.Set(Entry{Name: "a", Kind: KindVersion, Version: "1.0.0"})
	updated.Set(Entry{Name: "c", Kind: KindVersion, Version: "1.0.0"})

	delta := Diff(old, updated)
	if delta == nil {
		t.Fatalf("expected a non-nil delta")
	}
	if len(delta.Removed) != 1 || delta.Removed[0].Name != "b" {
		t.Fatalf("expected b removed, got %v", delta.Removed)
	}
	if len(delta.Added) != 1 || delta.Added[0].Name != "c" {
		t.Fatalf("expected c added, got %v", delta.Added)
	}
	if len(delta.Changed) != 0 {
		t.Fatalf("expected no changes, got %v", delta.Changed)
	}
}

func TestDiffDetectsVersionChange(t *testing.T) {
	old := New()
	old.Set(Entry{Name: "a", Kind: KindVersion, Version: "1.0.0"})
	updated := New()
	updated.Set(Entry{Name: "a", Kind: KindVersion, Version: "1.1.0"})

	delta := Diff(old, updated)
	if delta == nil || len(delta.Changed) != 1 {
		t.Fatalf("expected one change, got %v", delta)
	}
	if delta.Changed[0].Previous.Version != "1.0.0" || delta.Changed[0].Current.Version != "1.1.0" {
		t.Fatalf("unexpected change: %+v", delta.Changed[0])
	}
}

func TestDiffOfIdenticalDocumentsIsNil(t *testing.T) {
	a := New()
	a.Set(Entry{Name: "x", Kind: KindVersion, Version: "1.0.0"})
	b := New()
	b.Set(Entry{Name: "x", Kind: KindVersion, Version: "1.0.0"})

	if delta := Diff(a, b); delta != nil {
		t.Fatalf("expected no delta between identical documents, got %v", delta)
	}
}

func TestSafeWriterWriteThenLoadRoundTrips(t *testing.T) {
	root, err := os.MkdirTemp("", "dub-selection-")
	if err != nil {
		t.Fatalf("MkdirTemp: %s", err)
	}
	defer os.RemoveAll(root)

	fs := cache.OSFileSystem{}
	doc := New()
	doc.Set(Entry{Name: "vibe-d", Kind: KindVersion, Version: "0.9.5"})

	w := NewSafeWriter(fs, root)
	if err := w.Write(doc); err != nil {
		t.Fatalf("Write: %s", err)
	}

	loaded, err := Load(fs, root)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	e, ok := loaded.Entry("vibe-d")
	if !ok || e.Version != "0.9.5" {
		t.Fatalf("unexpected loaded entry: %+v", e)
	}
}

func TestLoadOnMissingFileReturnsEmptyDocument(t *testing.T) {
	root, err := os.MkdirTemp("", "dub-selection-")
	if err != nil {
		t.Fatalf("MkdirTemp: %s", err)
	}
	defer os.RemoveAll(root)

	doc, err := Load(cache.OSFileSystem{}, root)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if len(doc.Entries) != 0 {
		t.Fatalf("expected an empty document, got %v", doc.Entries)
	}
}
