package search

import (
	"testing"

	"github.com/wolfire/ogda/internal/itemstore"
	"github.com/wolfire/ogda/internal/plugin"
)

func TestEngineDiscoversTransitively(t *testing.T) {
	store := itemstore.New()
	root := store.AddSeed(itemstore.Item{InputFolder: "/in", RelPath: "a.mesh", TypeTag: "mesh"})
	_ = root

	meshSearcher := Plugin{
		Name:    "mesh_texture_refs",
		Version: "v1",
		Fn: func(item itemstore.Item) ([]itemstore.Item, error) {
			if item.RelPath == "a.mesh" {
				return []itemstore.Item{{InputFolder: "/in", RelPath: "b.texture", TypeTag: "texture"}}, nil
			}
			return nil, nil
		},
	}
	pred, err := plugin.CompilePredicate(".mesh", "^mesh$")
	if err != nil {
		t.Fatalf("CompilePredicate: %v", err)
	}

	eng := NewEngine([]Bound{{Plugin: meshSearcher, Predicate: pred}}, nil)
	eng.Run(store)

	found := 0
	for _, id := range store.WorkingList() {
		if store.Get(id).RelPath == "b.texture" {
			found++
		}
	}
	if found != 1 {
		t.Errorf("expected b.texture to be discovered exactly once, got %d", found)
	}
}

func TestEngineTerminatesOnCycles(t *testing.T) {
	store := itemstore.New()
	store.AddSeed(itemstore.Item{InputFolder: "/in", RelPath: "a.mesh", TypeTag: "mesh"})

	calls := 0
	cyclic := Plugin{
		Name:    "cyclic",
		Version: "v1",
		Fn: func(item itemstore.Item) ([]itemstore.Item, error) {
			calls++
			return []itemstore.Item{{InputFolder: "/in", RelPath: "a.mesh", TypeTag: "mesh"}}, nil
		},
	}
	pred, _ := plugin.CompilePredicate("", "")
	eng := NewEngine([]Bound{{Plugin: cyclic, Predicate: pred}}, nil)
	eng.Run(store)

	if calls != 1 {
		t.Errorf("expected searcher invoked exactly once despite self-reference, got %d", calls)
	}
}
