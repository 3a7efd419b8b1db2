package itemstore

import (
	"path/filepath"
	"testing"
)

func TestAddFoundDedupsByFullEquality(t *testing.T) {
	s := New()
	seed := s.AddSeed(Item{InputFolder: "/in", RelPath: "a.mesh", TypeTag: "mesh"})

	tex := Item{InputFolder: "/in", RelPath: "b.texture", TypeTag: "texture"}
	id1, inserted1 := s.AddFound(seed, tex)
	id2, inserted2 := s.AddFound(seed, tex)

	if !inserted1 {
		t.Error("first AddFound should insert")
	}
	if inserted2 {
		t.Error("second AddFound of an equal item should dedup")
	}
	if id1 != id2 {
		t.Errorf("dedup should return the existing id, got %d and %d", id1, id2)
	}

	// Same identity but a different search-only flag is a distinct item.
	searchOnly := tex
	searchOnly.SearchOnly = true
	_, inserted3 := s.AddFound(seed, searchOnly)
	if !inserted3 {
		t.Error("search-only variant should be a distinct found item")
	}
}

func TestWorkingListSeedsPrecedeFound(t *testing.T) {
	s := New()
	s1 := s.AddSeed(Item{InputFolder: "/in", RelPath: "a.mesh", TypeTag: "mesh"})
	f1, _ := s.AddFound(s1, Item{InputFolder: "/in", RelPath: "b.texture", TypeTag: "texture"})
	s2 := s.AddSeed(Item{InputFolder: "/in", RelPath: "c.mesh", TypeTag: "mesh"})
	f2, _ := s.AddFound(s2, Item{InputFolder: "/in", RelPath: "d.texture", TypeTag: "texture"})

	got := s.WorkingList()
	want := []ItemId{s1, s2, f1, f2}
	if len(got) != len(want) {
		t.Fatalf("working list length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("working list[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestApplyOvershadows(t *testing.T) {
	s := New()
	s.AddSeed(Item{InputFolder: "/mod", RelPath: "Meshes/rock.obj", TypeTag: "mesh", Overshadows: "Meshes/base_rock.obj"})
	base := s.AddSeed(Item{InputFolder: "/in", RelPath: "Meshes/base_rock.obj", TypeTag: "mesh"})
	other := s.AddSeed(Item{InputFolder: "/in", RelPath: "Meshes/tree.obj", TypeTag: "mesh"})

	s.ApplyOvershadows()

	if !s.Get(base).Overshadowed {
		t.Error("overshadowed item was not marked")
	}
	if s.Get(other).Overshadowed {
		t.Error("unrelated item was marked overshadowed")
	}
}

func TestSetHash(t *testing.T) {
	s := New()
	id := s.AddSeed(Item{InputFolder: "/in", RelPath: "a.mesh", TypeTag: "mesh"})
	s.SetHash(id, "abc123")
	if s.Get(id).Hash != "abc123" {
		t.Errorf("hash not written, got %q", s.Get(id).Hash)
	}
}

func TestDuplicatesRespectLineageBoundary(t *testing.T) {
	s := New()
	s1 := s.AddSeed(Item{InputFolder: "/in", RelPath: "a.mesh", TypeTag: "mesh"})
	s2 := s.AddSeed(Item{InputFolder: "/in", RelPath: "b.mesh", TypeTag: "mesh"})

	// The same texture is referenced from both lineages, and twice within
	// the first (hashes differ so the full-equality dedup keeps all three).
	tex := Item{InputFolder: "/in", RelPath: "shared.texture", TypeTag: "texture"}
	s.AddFound(s1, tex)
	within := tex
	within.Hash = "deadbeef"
	s.AddFound(s1, within)
	fromOther := tex
	fromOther.Hash = "cafef00d"
	s.AddFound(s2, fromOther)

	sameLineage := s.Duplicates(false)
	if len(sameLineage) != 1 {
		t.Fatalf("expected 1 same-lineage duplicate group, got %d", len(sameLineage))
	}
	if len(sameLineage[0]) != 2 {
		t.Errorf("expected 2 items in the same-lineage group, got %d", len(sameLineage[0]))
	}

	cross := s.Duplicates(true)
	if len(cross) != 1 {
		t.Fatalf("expected 1 cross-lineage duplicate group, got %d", len(cross))
	}
	if len(cross[0]) != 3 {
		t.Errorf("expected 3 items in the cross-lineage group, got %d", len(cross[0]))
	}
}

func TestAbsPath(t *testing.T) {
	it := Item{InputFolder: "/in", RelPath: "Meshes/cube.obj"}
	want := filepath.Join("/in", "Meshes/cube.obj")
	if got := it.AbsPath(); got != want {
		t.Errorf("AbsPath() = %q, want %q", got, want)
	}
}
