// Package itemstore holds every item discovered by a pipeline run in one
// contiguous arena, addressed by ItemId rather than by pointer, so the
// hasher's worker pool can write into disjoint slots of one shared slice
// without locking.
package itemstore

import "path/filepath"

// ItemId addresses one Item in a Store's arena. It is stable for the
// lifetime of the Store; it is never reused after removal because items are
// never removed, only marked Overshadowed.
type ItemId uint32

// Item is one discovered piece of input content.
type Item struct {
	InputFolder string
	RelPath     string
	TypeTag     string

	// Hash is the item's content hash, empty if the file is missing or not
	// yet hashed. Mutated only by the hasher.
	Hash string

	// SearchOnly items are traversed by searchers but never built.
	SearchOnly bool

	// Overshadowed is set by the overshadow pass; such items are skipped by
	// the builder engine but remain visible to diagnostics.
	Overshadowed bool

	// DeleteOnExit marks a temporary extracted file to be removed at process exit.
	DeleteOnExit bool

	// Overshadows names another item's RelPath that this one overrides.
	Overshadows string

	// SourceRef is the item that first pulled this one in: the job-file
	// entry for a seed item, or the parent item a searcher discovered it
	// from. Used for duplicate diagnostics.
	SourceRef ItemId

	// Lineage is the seed ItemId this item transitively descends from.
	Lineage ItemId
}

// AbsPath returns the item's absolute path.
func (it *Item) AbsPath() string {
	return filepath.Join(it.InputFolder, it.RelPath)
}

type identityKey struct {
	inputFolder string
	relPath     string
	typeTag     string
}

type equalityKey struct {
	identityKey
	hash       string
	searchOnly bool
}

func identityOf(it Item) identityKey {
	return identityKey{it.InputFolder, it.RelPath, it.TypeTag}
}

func equalityOf(it Item) equalityKey {
	return equalityKey{identityOf(it), it.Hash, it.SearchOnly}
}

// Store is the single arena of items for a pipeline run. It maintains two
// logical sets: seed items (inserted once from the job loader) and found
// items (insertion-ordered, deduplicated by full equality as searchers
// discover them).
type Store struct {
	items []Item

	seedIDs []ItemId

	foundSeen  map[equalityKey]ItemId
	foundOrder []ItemId
}

// New returns an empty Store.
func New() *Store {
	return &Store{foundSeen: map[equalityKey]ItemId{}}
}

func (s *Store) append(it Item) ItemId {
	id := ItemId(len(s.items))
	s.items = append(s.items, it)
	return id
}

// AddSeed inserts a seed item, unconditionally, and returns its ItemId. A
// seed item is its own lineage root.
func (s *Store) AddSeed(it Item) ItemId {
	id := s.append(it)
	s.items[id].SourceRef = id
	s.items[id].Lineage = id
	s.seedIDs = append(s.seedIDs, id)
	return id
}

// AddFound inserts an item discovered by a searcher from parent, deduped by
// full equality against every previously found item. Returns the id of the
// (possibly pre-existing) item and whether this call actually inserted it.
func (s *Store) AddFound(parent ItemId, it Item) (ItemId, bool) {
	key := equalityOf(it)
	if existing, ok := s.foundSeen[key]; ok {
		return existing, false
	}
	it.SourceRef = parent
	it.Lineage = s.items[parent].Lineage
	id := s.append(it)
	s.foundSeen[key] = id
	s.foundOrder = append(s.foundOrder, id)
	return id, true
}

// Get returns a pointer to the item addressed by id.
func (s *Store) Get(id ItemId) *Item {
	return &s.items[id]
}

// Len returns the number of items in the arena.
func (s *Store) Len() int {
	return len(s.items)
}

// SetHash writes id's content hash. Safe to call concurrently from distinct
// goroutines as long as no two goroutines target the same id and no
// concurrent AddSeed/AddFound grows the underlying slice.
func (s *Store) SetHash(id ItemId, hash string) {
	s.items[id].Hash = hash
}

// WorkingList concatenates seed items then found items, in insertion order,
// once all searching is complete.
func (s *Store) WorkingList() []ItemId {
	out := make([]ItemId, 0, len(s.seedIDs)+len(s.foundOrder))
	out = append(out, s.seedIDs...)
	out = append(out, s.foundOrder...)
	return out
}

// ApplyOvershadows marks b as Overshadowed for every pair (a, b) in the
// working list where a.Overshadows == b.RelPath. A direct O(N^2) nested
// scan; item counts stay far below where an index would pay off.
func (s *Store) ApplyOvershadows() {
	ids := s.WorkingList()
	for _, aID := range ids {
		overshadows := s.items[aID].Overshadows
		if overshadows == "" {
			continue
		}
		for _, bID := range ids {
			if s.items[bID].RelPath == overshadows {
				s.items[bID].Overshadowed = true
			}
		}
	}
}

// Duplicates groups items that share (abs_path, type_tag). When
// crossLineage is false (the preserved default behavior), items are only
// grouped with others reachable from the same seed item; when true, the
// lineage boundary is ignored.
func (s *Store) Duplicates(crossLineage bool) [][]ItemId {
	type key struct {
		path    string
		typeTag string
		lineage ItemId
	}
	groups := map[key][]ItemId{}
	order := make([]key, 0)

	for i := range s.items {
		it := &s.items[i]
		k := key{path: it.AbsPath(), typeTag: it.TypeTag}
		if !crossLineage {
			k.lineage = it.Lineage
		}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], ItemId(i))
	}

	var dupes [][]ItemId
	for _, k := range order {
		if ids := groups[k]; len(ids) > 1 {
			dupes = append(dupes, ids)
		}
	}
	return dupes
}
