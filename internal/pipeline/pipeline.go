// Package pipeline sequences the eight phases a single run executes in
// order: load -> search -> hash -> hash_destinations -> build ->
// generate -> write ->
// reconcile, each phase reading the single immutable pipelineconfig.Config
// and reporting its outcome through metrics.Recorder and events.Publisher.
package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/wolfire/ogda/internal/build"
	"github.com/wolfire/ogda/internal/events"
	"github.com/wolfire/ogda/internal/generate"
	"github.com/wolfire/ogda/internal/hash"
	"github.com/wolfire/ogda/internal/itemstore"
	"github.com/wolfire/ogda/internal/job"
	"github.com/wolfire/ogda/internal/logfields"
	"github.com/wolfire/ogda/internal/manifest"
	"github.com/wolfire/ogda/internal/metrics"
	"github.com/wolfire/ogda/internal/ogdaerrors"
	"github.com/wolfire/ogda/internal/pipelineconfig"
	"github.com/wolfire/ogda/internal/plugin"
	"github.com/wolfire/ogda/internal/reconcile"
	"github.com/wolfire/ogda/internal/search"
	"github.com/wolfire/ogda/internal/storage"
)

// Registries bundles the host-controlled plugin factories a job file's
// searchers/builders/generators are resolved against. A pipeline run never
// invents plugins: every name a job declares must already be registered.
type Registries struct {
	Searchers  *plugin.Registry
	Builders   *plugin.Registry
	Generators *plugin.Registry
}

// Result summarizes one completed (or aborted) pipeline run for the driver
// to report and to decide the process exit code from.
type Result struct {
	RunID           string
	Manifest        *manifest.Manifest
	Diagnostics     []job.Diagnostic
	Duplicates      [][]itemstore.ItemId
	Missing         []itemstore.ItemId
	ReconcileReport reconcile.Report
	HasError        bool
}

// Run executes every phase in order against cfg, returning once the run is
// complete or a phase-A fatal error aborts it early.
func Run(cfg pipelineconfig.Config, regs Registries, logger *slog.Logger, recorder metrics.Recorder, publisher *events.Publisher) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	runID := uuid.NewString()
	pipelineStart := time.Now()
	defer func() { recorder.ObservePipelineDuration(time.Since(pipelineStart)) }()

	runPhase := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		d := time.Since(start)
		recorder.ObservePhaseDuration(name, d)
		result := metrics.PhaseResultSuccess
		if err != nil {
			if ce, ok := ogdaerrors.AsClassified(err); ok && ce.IsFatal() {
				result = metrics.PhaseResultFatal
			} else {
				result = metrics.PhaseResultWarning
			}
		}
		recorder.IncPhaseResult(name, result)
		publisher.PublishPhaseEvent(runID, name, d, 0)
		if !cfg.HideProgress {
			logger.Info("phase complete", logfields.Stage(name), logfields.DurationMS(float64(d.Microseconds())/1000.0))
		}
		return err
	}

	// Phase A: load.
	store := itemstore.New()
	var j *job.Job
	var diagnostics []job.Diagnostic
	if err := runPhase("load", func() error {
		var loadErr error
		j, loadErr = job.Load(cfg.JobFile)
		if loadErr != nil {
			return loadErr
		}
		if err := job.ResolvePlugins(j, regs.Searchers, regs.Builders, regs.Generators); err != nil {
			return err
		}
		diagnostics = job.ExpandSeeds(j, store)
		return nil
	}); err != nil {
		return Result{RunID: runID}, err
	}

	boundSearchers, err := bindSearchers(j, regs.Searchers)
	if err != nil {
		return Result{RunID: runID}, err
	}
	boundBuilders, err := bindBuilders(j, regs.Builders)
	if err != nil {
		return Result{RunID: runID}, err
	}
	boundGenerators, err := bindGenerators(j, regs.Generators)
	if err != nil {
		return Result{RunID: runID}, err
	}

	// Phase C: search.
	_ = runPhase("search", func() error {
		search.NewEngine(boundSearchers, logger).Run(store)
		store.ApplyOvershadows()
		return nil
	})

	hashFn := hash.SurrogateMode(cfg.DateModifiedHash)
	pool := hash.NewPool(cfg.Threads, hashFn, cfg.DateModifiedHash, recorder)

	// Phase D: hash every discovered item.
	ids := store.WorkingList()
	_ = runPhase("hash", func() error {
		pool.HashItems(store, ids)
		return nil
	})

	var missing []itemstore.ItemId
	for _, id := range ids {
		if store.Get(id).Hash == "" {
			missing = append(missing, id)
		}
	}

	priorManifest, err := manifest.Load(cfg.ManifestInput, "ogda", "dev")
	if err != nil {
		return Result{RunID: runID}, ogdaerrors.WrapError(err, ogdaerrors.CategoryInternal, "load prior manifest").Fatal().Build()
	}

	priorDestHashes := map[string]string{}
	if len(priorManifest.Results) > 0 {
		_ = runPhase("hash_destinations", func() error {
			dests := priorManifest.DestPaths()
			paths := make([]string, 0, len(dests))
			rels := make([]string, 0, len(dests))
			for rel := range dests {
				rels = append(rels, rel)
				paths = append(paths, filepath.Join(cfg.OutputDir, rel))
			}
			hashes := pool.HashDestinations(paths)
			for i, rel := range rels {
				priorDestHashes[rel] = hashes[i]
			}
			return nil
		})
	}

	var dbManifest *manifest.DatabaseManifest
	var dbStore storage.Store
	if cfg.DatabaseDir != "" {
		dbManifest, err = manifest.LoadDatabase(filepath.Join(cfg.DatabaseDir, "database.xml"), "ogda", "dev")
		if err != nil {
			return Result{RunID: runID}, ogdaerrors.WrapError(err, ogdaerrors.CategoryInternal, "load database manifest").Fatal().Build()
		}
		// Past sqliteIndexThreshold entries the in-memory prefix map stops
		// being the cheap option; back lookups with an on-disk index instead.
		if err := dbManifest.EnableSQLiteIndex(filepath.Join(cfg.DatabaseDir, "index.sqlite3")); err != nil {
			logger.Warn("failed to enable sqlite database index, falling back to in-memory lookup", logfields.Error(err))
		}
		dbStore, err = storage.NewFSStore(cfg.DatabaseDir)
		if err != nil {
			return Result{RunID: runID}, ogdaerrors.WrapError(err, ogdaerrors.CategoryInternal, "open database store").Fatal().Build()
		}
	}

	buildEngine := build.NewEngine(build.Engine{
		Builders:         boundBuilders,
		OutputDir:        cfg.OutputDir,
		PriorManifest:    priorManifest,
		PriorDestHashes:  priorDestHashes,
		Database:         dbManifest,
		DatabaseStore:    dbStore,
		LoadFromDatabase: cfg.LoadFromDatabase,
		SaveToDatabase:   cfg.SaveToDatabase,
		HashFn:           build.HashFunc(hashFn),
		Logger:           logger,
		Recorder:         recorder,
	})

	var builtResults []manifest.Result
	hasError := len(missing) > 0
	_ = runPhase("build", func() error {
		var buildErr bool
		builtResults, buildErr = buildEngine.Run(store, ids)
		hasError = hasError || buildErr
		return nil
	})

	genEngine := generate.NewEngine(generate.Engine{
		Generators: boundGenerators,
		OutputDir:  cfg.OutputDir,
		HashFn:     hashFn,
		Logger:     logger,
		Recorder:   recorder,
	})

	var generatedResults []manifest.Result
	_ = runPhase("generate", func() error {
		var genErr bool
		generatedResults, genErr = genEngine.Run(builtResults)
		hasError = hasError || genErr
		return nil
	})

	newManifest := manifest.NewManifest("ogda", "dev")
	newManifest.ExecutionInfo.RunID = runID
	for _, r := range builtResults {
		newManifest.AddResult(r)
	}
	for _, r := range generatedResults {
		newManifest.AddResult(r)
	}

	// Phase "write": persist the manifest and database before reconciling,
	// so a mid-reconcile crash never loses the record of what was built.
	_ = runPhase("write", func() error {
		if cfg.ManifestOutput != "" {
			if err := manifest.Save(cfg.ManifestOutput, newManifest); err != nil {
				return ogdaerrors.WrapError(err, ogdaerrors.CategoryInternal, "save manifest").Build()
			}
		}
		if dbManifest != nil {
			if err := manifest.SaveDatabase(filepath.Join(cfg.DatabaseDir, "database.xml"), dbManifest); err != nil {
				return ogdaerrors.WrapError(err, ogdaerrors.CategoryInternal, "save database manifest").Build()
			}
		}
		return nil
	})
	if dbStore != nil {
		defer dbStore.Close()
	}
	if dbManifest != nil {
		defer dbManifest.Close()
	}

	var reconcileReport reconcile.Report
	if !hasError || cfg.ForceRemoves {
		_ = runPhase("reconcile", func() error {
			var reconcileErr error
			reconcileReport, reconcileErr = reconcile.Reconcile(cfg.OutputDir, newManifest.DestPaths(), priorManifest.DestPaths(),
				reconcile.Options{
					RemoveUnlisted: cfg.RemoveUnlisted,
					ForceRemoves:   cfg.ForceRemoves,
					PerformRemoves: cfg.PerformRemoves,
				}, recorder, logger)
			return reconcileErr
		})
	} else {
		logger.Warn("skipping reconciliation: a prior phase reported a failure", logfields.Status("skipped"))
	}

	removed := reconcile.RemoveDeleteOnExit(store, logger)
	if removed > 0 {
		logger.Info("removed delete-on-exit items", slog.Int("count", removed))
	}

	return Result{
		RunID:           runID,
		Manifest:        newManifest,
		Diagnostics:     diagnostics,
		Duplicates:      store.Duplicates(cfg.CrossLineageDuplicates),
		Missing:         missing,
		ReconcileReport: reconcileReport,
		HasError:        hasError,
	}, nil
}

func bindSearchers(j *job.Job, reg *plugin.Registry) ([]search.Bound, error) {
	bound := make([]search.Bound, 0, len(j.Searchers))
	for _, decl := range j.Searchers {
		p, err := reg.GetLatest(decl.Name)
		if err != nil {
			return nil, ogdaerrors.WrapError(err, ogdaerrors.CategoryPluginUnknown, fmt.Sprintf("resolve searcher %q", decl.Name)).Fatal().Build()
		}
		sp, ok := p.(search.Plugin)
		if !ok {
			return nil, ogdaerrors.NewError(ogdaerrors.CategoryPluginUnknown, fmt.Sprintf("%q is not a searcher plugin", decl.Name)).Fatal().Build()
		}
		pred, err := plugin.CompilePredicate(decl.PathEnding, decl.TypePatternRe)
		if err != nil {
			return nil, ogdaerrors.WrapError(err, ogdaerrors.CategoryJobParse, fmt.Sprintf("searcher %q predicate", decl.Name)).Fatal().Build()
		}
		bound = append(bound, search.Bound{Plugin: sp, Predicate: pred})
	}
	return bound, nil
}

func bindBuilders(j *job.Job, reg *plugin.Registry) ([]build.Bound, error) {
	bound := make([]build.Bound, 0, len(j.Builders))
	for _, decl := range j.Builders {
		p, err := reg.GetLatest(decl.Name)
		if err != nil {
			return nil, ogdaerrors.WrapError(err, ogdaerrors.CategoryPluginUnknown, fmt.Sprintf("resolve builder %q", decl.Name)).Fatal().Build()
		}
		bp, ok := p.(build.Plugin)
		if !ok {
			return nil, ogdaerrors.NewError(ogdaerrors.CategoryPluginUnknown, fmt.Sprintf("%q is not a builder plugin", decl.Name)).Fatal().Build()
		}
		pred, err := plugin.CompilePredicate(decl.PathEnding, decl.TypePatternRe)
		if err != nil {
			return nil, ogdaerrors.WrapError(err, ogdaerrors.CategoryJobParse, fmt.Sprintf("builder %q predicate", decl.Name)).Fatal().Build()
		}
		bound = append(bound, build.Bound{Plugin: bp, Predicate: pred})
	}
	return bound, nil
}

func bindGenerators(j *job.Job, reg *plugin.Registry) ([]generate.Plugin, error) {
	bound := make([]generate.Plugin, 0, len(j.Generators))
	for _, decl := range j.Generators {
		p, err := reg.GetLatest(decl.Name)
		if err != nil {
			return nil, ogdaerrors.WrapError(err, ogdaerrors.CategoryPluginUnknown, fmt.Sprintf("resolve generator %q", decl.Name)).Fatal().Build()
		}
		gp, ok := p.(generate.Plugin)
		if !ok {
			return nil, ogdaerrors.NewError(ogdaerrors.CategoryPluginUnknown, fmt.Sprintf("%q is not a generator plugin", decl.Name)).Fatal().Build()
		}
		bound = append(bound, gp)
	}
	return bound, nil
}
