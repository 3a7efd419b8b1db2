// Package generate implements the generator engine: post-build
// aggregate producers that each see a stable snapshot of the builder
// engine's results and emit new GENERATED outputs.
package generate

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/wolfire/ogda/internal/logfields"
	"github.com/wolfire/ogda/internal/manifest"
	"github.com/wolfire/ogda/internal/metrics"
	"github.com/wolfire/ogda/internal/plugin"
)

// Output is one file a generator wrote, relative to the output directory.
type Output struct {
	DestRelPath string
}

// AggregateFunc receives a read-only snapshot of every BUILT/DATABASE
// result collected so far and returns the files it produced.
type AggregateFunc func(snapshot []manifest.Result) ([]Output, error)

// Plugin is a generator descriptor: name, version, and its
// aggregate function.
type Plugin struct {
	Name        string
	Version     string
	Description string
	Fn          AggregateFunc
}

// Metadata implements plugin.Plugin.
func (p Plugin) Metadata() plugin.PluginMetadata {
	return plugin.PluginMetadata{Name: p.Name, Version: p.Version, Type: plugin.PluginTypeGenerator, Description: p.Description}
}

// Engine runs every generator, in declared order, against the same
// snapshot: no generator observes another generator's output, however
// late it ran.
type Engine struct {
	Generators []Plugin
	OutputDir  string
	HashFn     func(path string) (string, error)
	Logger     *slog.Logger
	Recorder   metrics.Recorder
}

// NewEngine returns an Engine with nil-safe defaults for Logger and Recorder.
func NewEngine(e Engine) *Engine {
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	if e.Recorder == nil {
		e.Recorder = metrics.NoopRecorder{}
	}
	return &e
}

// Run invokes every generator against snapshot and returns the accumulated
// GENERATED results in declaration order, plus whether any generator
// failed. The snapshot is never mutated and is shared, unmodified, across
// every generator invocation.
func (e *Engine) Run(snapshot []manifest.Result) ([]manifest.Result, bool) {
	var generated []manifest.Result
	hasError := false

	for _, gen := range e.Generators {
		start := time.Now()
		files, err := gen.Fn(snapshot)
		e.Recorder.ObserveBuilderDuration(gen.Name, time.Since(start))
		if err != nil {
			e.Logger.Error("generator failed", logfields.Generator(gen.Name), logfields.Error(err))
			e.Recorder.IncBuilderOutcome(gen.Name, metrics.BuilderOutcomeFailed)
			hasError = true
			continue
		}
		for _, f := range files {
			destAbs := filepath.Join(e.OutputDir, f.DestRelPath)
			destHash, hashErr := e.HashFn(destAbs)
			success := hashErr == nil
			if !success {
				e.Logger.Error("generated output could not be hashed",
					logfields.Generator(gen.Name), logfields.Path(f.DestRelPath), logfields.Error(hashErr))
				hasError = true
			}
			outcome := metrics.BuilderOutcomeBuilt
			if !success {
				outcome = metrics.BuilderOutcomeFailed
			}
			e.Recorder.IncBuilderOutcome(gen.Name, outcome)
			generated = append(generated, manifest.Result{
				Kind:            manifest.KindGenerated,
				Dest:            f.DestRelPath,
				DestHash:        destHash,
				ProducerName:    gen.Name,
				ProducerVersion: gen.Version,
				Success:         success,
				FreshBuilt:      true,
			})
		}
	}
	return generated, hasError
}
