// Package build implements the builder engine: matching builders to
// items by type/path, reusing prior-manifest or shared-database results
// where sound, and otherwise invoking the builder's action to produce an
// output file.
package build

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/wolfire/ogda/internal/itemstore"
	"github.com/wolfire/ogda/internal/logfields"
	"github.com/wolfire/ogda/internal/manifest"
	"github.com/wolfire/ogda/internal/metrics"
	"github.com/wolfire/ogda/internal/ogdaerrors"
	"github.com/wolfire/ogda/internal/plugin"
	"github.com/wolfire/ogda/internal/storage"
)

// Action transforms one matched item into an output file, returning the
// destination path relative to the output directory and whether the build
// succeeded. A returned error is informational only: success/failure is
// carried in the bool, and a failed build never stops the run.
type Action func(item itemstore.Item) (destRelPath string, success bool, err error)

// Plugin is a builder descriptor: name, version, action, and
// the two reuse-affecting flags.
type Plugin struct {
	Name                     string
	Version                  string
	Description              string
	RunEvenOnIdenticalSource bool
	StoreResultInDatabase    bool
	Action                   Action
}

// Metadata implements plugin.Plugin.
func (p Plugin) Metadata() plugin.PluginMetadata {
	return plugin.PluginMetadata{Name: p.Name, Version: p.Version, Type: plugin.PluginTypeBuilder, Description: p.Description}
}

// Bound pairs a registered builder Plugin with the path-suffix/type-pattern
// Predicate a job file's Builders declaration bound it to.
type Bound struct {
	Plugin    Plugin
	Predicate plugin.Predicate
}

// HashFunc computes a content hash for the file at path.
type HashFunc func(path string) (string, error)

// Engine runs every bound builder against every eligible item.
type Engine struct {
	Builders  []Bound
	OutputDir string

	// PriorManifest is the manifest loaded via --manifest-input, or nil.
	PriorManifest *manifest.Manifest
	// PriorDestHashes maps a prior manifest record's Dest (relative path) to
	// the content hash of the file currently at that destination, as
	// precomputed by the hasher's destination-hash-precompute pass.
	PriorDestHashes map[string]string

	// Database is the shared result database, or nil if --database-dir is unset.
	Database         *manifest.DatabaseManifest
	DatabaseStore    storage.Store
	LoadFromDatabase bool
	SaveToDatabase   bool

	HashFn   HashFunc
	Logger   *slog.Logger
	Recorder metrics.Recorder
}

// NewEngine returns an Engine with nil-safe defaults for Logger and Recorder.
func NewEngine(e Engine) *Engine {
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	if e.Recorder == nil {
		e.Recorder = metrics.NoopRecorder{}
	}
	if e.PriorDestHashes == nil {
		e.PriorDestHashes = map[string]string{}
	}
	return &e
}

// Run iterates ids in admission order; for every non-overshadowed,
// non-search-only item it matches every bound builder whose predicate
// accepts the item and builds or reuses a result for each match. It returns
// the new results in builder-invocation order and whether any failure
// occurred (the aggregate HasError signal the reconciler consults).
func (e *Engine) Run(store *itemstore.Store, ids []itemstore.ItemId) ([]manifest.Result, bool) {
	var results []manifest.Result
	hasError := false

	for _, id := range ids {
		item := store.Get(id)
		if item.Overshadowed || item.SearchOnly {
			continue
		}
		if item.Hash == "" {
			e.Logger.Error("item file missing, skipping all builders",
				logfields.Path(item.RelPath), logfields.ItemType(item.TypeTag))
			hasError = true
			continue
		}
		for _, bound := range e.Builders {
			if !bound.Predicate.Match(item.RelPath, item.TypeTag) {
				continue
			}
			result := e.buildOne(*item, bound)
			results = append(results, result)
			if !result.Success {
				hasError = true
			}
		}
	}
	return results, hasError
}

func (e *Engine) buildOne(item itemstore.Item, bound Bound) manifest.Result {
	start := time.Now()
	defer func() {
		e.Recorder.ObserveBuilderDuration(bound.Plugin.Name, time.Since(start))
	}()

	source := manifest.SourceItem{Path: item.RelPath, Type: item.TypeTag, Hash: item.Hash}

	if reused, ok := e.tryReuseManifest(item, bound); ok {
		e.Recorder.IncBuilderOutcome(bound.Plugin.Name, metrics.BuilderOutcomeReused)
		return reused
	}
	if reused, ok := e.tryReuseDatabase(source, bound); ok {
		e.Recorder.IncBuilderOutcome(bound.Plugin.Name, metrics.BuilderOutcomeDB)
		return reused
	}
	return e.buildFresh(item, source, bound)
}

func (e *Engine) tryReuseManifest(item itemstore.Item, bound Bound) (manifest.Result, bool) {
	if bound.Plugin.RunEvenOnIdenticalSource || e.PriorManifest == nil {
		return manifest.Result{}, false
	}
	rec, found := e.PriorManifest.Lookup(item.Hash, bound.Plugin.Name, bound.Plugin.Version)
	if !found {
		return manifest.Result{}, false
	}
	currentHash, known := e.PriorDestHashes[rec.Dest]
	if !known {
		currentHash, _ = e.HashFn(filepath.Join(e.OutputDir, rec.Dest))
	}
	if currentHash == "" || currentHash != rec.DestHash {
		return manifest.Result{}, false
	}
	reused := *rec
	reused.Success = true
	reused.FreshBuilt = false
	return reused, true
}

func (e *Engine) tryReuseDatabase(source manifest.SourceItem, bound Bound) (manifest.Result, bool) {
	if !e.LoadFromDatabase || !bound.Plugin.StoreResultInDatabase || e.Database == nil || e.DatabaseStore == nil {
		return manifest.Result{}, false
	}
	rec, found := e.Database.Lookup(source.Hash, bound.Plugin.Name, bound.Plugin.Version)
	if !found {
		return manifest.Result{}, false
	}
	exists, err := e.DatabaseStore.Exists(source.Hash, rec.DestHash)
	if err != nil || !exists {
		return manifest.Result{}, false
	}
	destAbs := filepath.Join(e.OutputDir, rec.Dest)
	if err := e.DatabaseStore.CopyTo(source.Hash, rec.DestHash, destAbs); err != nil {
		e.Logger.Warn("database payload copy failed, falling back to build",
			logfields.Builder(bound.Plugin.Name), logfields.Path(rec.Dest), logfields.Error(err))
		return manifest.Result{}, false
	}
	return manifest.Result{
		Kind:            manifest.KindDatabase,
		Dest:            rec.Dest,
		DestHash:        rec.DestHash,
		ProducerName:    bound.Plugin.Name,
		ProducerVersion: bound.Plugin.Version,
		Type:            source.Type,
		Success:         true,
		FreshBuilt:      true,
		Sources:         []manifest.SourceItem{source},
	}, true
}

func (e *Engine) buildFresh(item itemstore.Item, source manifest.SourceItem, bound Bound) manifest.Result {
	destRel, success, err := bound.Plugin.Action(item)
	result := manifest.Result{
		Kind:            manifest.KindBuilt,
		Dest:            destRel,
		ProducerName:    bound.Plugin.Name,
		ProducerVersion: bound.Plugin.Version,
		Type:            source.Type,
		Success:         success,
		FreshBuilt:      true,
		Sources:         []manifest.SourceItem{source},
	}
	if err != nil {
		e.Logger.Error("builder failed",
			logfields.Builder(bound.Plugin.Name), logfields.Path(source.Path), logfields.Error(
				ogdaerrors.WrapError(err, ogdaerrors.CategoryBuilderFailure, "builder action").Build()))
	}
	if !success {
		e.Recorder.IncBuilderOutcome(bound.Plugin.Name, metrics.BuilderOutcomeFailed)
		return result
	}
	destAbs := filepath.Join(e.OutputDir, destRel)
	destHash, hashErr := e.HashFn(destAbs)
	if hashErr != nil {
		result.Success = false
		e.Recorder.IncBuilderOutcome(bound.Plugin.Name, metrics.BuilderOutcomeFailed)
		return result
	}
	result.DestHash = destHash
	e.Recorder.IncBuilderOutcome(bound.Plugin.Name, metrics.BuilderOutcomeBuilt)

	if e.SaveToDatabase && bound.Plugin.StoreResultInDatabase && e.Database != nil && e.DatabaseStore != nil {
		if err := e.DatabaseStore.PutFile(source.Hash, destHash, destAbs); err != nil {
			e.Logger.Warn("failed to save builder result to database",
				logfields.Builder(bound.Plugin.Name), logfields.Path(destRel), logfields.Error(err))
		} else {
			e.Database.AddResult(result)
		}
	}
	return result
}
