// Package search implements the searcher engine: recursive,
// type-and-path-pattern-matched discovery of child items from a parent
// item's content.
package search

import (
	"log/slog"

	"github.com/wolfire/ogda/internal/itemstore"
	"github.com/wolfire/ogda/internal/logfields"
	"github.com/wolfire/ogda/internal/pathutil"
	"github.com/wolfire/ogda/internal/plugin"
	"github.com/wolfire/ogda/internal/util/sets"
)

// SearchFunc produces a list of child items discovered from one parent item.
// A searcher failing to parse its input returns a non-nil error; the engine
// logs a warning and treats the result as an empty list.
type SearchFunc func(item itemstore.Item) ([]itemstore.Item, error)

// Plugin is a searcher descriptor: name, version, and the search function.
// It satisfies plugin.Plugin so it can be registered in a shared Registry.
type Plugin struct {
	Name        string
	Version     string
	Description string
	Fn          SearchFunc
}

// Metadata implements plugin.Plugin.
func (p Plugin) Metadata() plugin.PluginMetadata {
	return plugin.PluginMetadata{Name: p.Name, Version: p.Version, Type: plugin.PluginTypeSearcher, Description: p.Description}
}

// Bound pairs a registered searcher Plugin with the path-suffix/type-pattern
// Predicate a job file's Searchers declaration bound it to.
type Bound struct {
	Plugin    Plugin
	Predicate plugin.Predicate
}

// Engine runs every bound searcher against every discovered item until no
// new items remain.
type Engine struct {
	Searchers []Bound
	Logger    *slog.Logger
}

// NewEngine returns an Engine that logs to slog.Default() when logger is nil.
func NewEngine(searchers []Bound, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Searchers: searchers, Logger: logger}
}

// Run processes store's seed items and every item transitively discovered
// from them, case-correcting each newly found item's path and recursing
// into it. Termination is guaranteed by the searched-item set, keyed by
// (input folder, path, type tag): every item is processed at most once
// regardless of how many times it is rediscovered.
func (e *Engine) Run(store *itemstore.Store) {
	type searchKey struct{ inputFolder, relPath, typeTag string }
	searched := sets.New[searchKey]()
	warnedTypes := sets.New[string]()
	matchCounts := map[string]int{}

	queue := append([]itemstore.ItemId(nil), store.WorkingList()...)
	for i := 0; i < len(queue); i++ {
		id := queue[i]
		item := *store.Get(id)
		k := searchKey{item.InputFolder, item.RelPath, item.TypeTag}
		if searched.Has(k) {
			continue
		}
		searched.Add(k)

		matched := 0
		for _, bound := range e.Searchers {
			if !bound.Predicate.Match(item.RelPath, item.TypeTag) {
				continue
			}
			matched++
			children, err := bound.Plugin.Fn(item)
			if err != nil {
				e.Logger.Warn("searcher failed to parse input",
					logfields.Searcher(bound.Plugin.Name), logfields.Path(item.RelPath),
					logfields.Error(plugin.NewPluginError(bound.Plugin.Name, "search", err)))
				continue
			}
			for _, child := range children {
				if corrected, changed, correctErr := pathutil.ResolveCaseCorrected(child.InputFolder, child.RelPath); correctErr == nil {
					if changed {
						e.Logger.Warn("discovered item case-corrected",
							logfields.Path(child.RelPath), slog.String("corrected", corrected))
					}
					child.RelPath = corrected
				}
				childID, inserted := store.AddFound(id, child)
				if inserted {
					queue = append(queue, childID)
				}
			}
		}
		matchCounts[item.TypeTag] += matched
		if matched == 0 && !warnedTypes.Has(item.TypeTag) {
			warnedTypes.Add(item.TypeTag)
			e.Logger.Warn("item type has no matching searchers", logfields.ItemType(item.TypeTag))
		}
	}
}
