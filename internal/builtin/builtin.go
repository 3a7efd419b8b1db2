// Package builtin registers the small in-tree reference plugin set the
// driver ships with out of the box: a generic passthrough builder, a mesh
// builder that exercises the runtime mesh-optimizer core at build
// time so its checksummed cache lands next to every optimized model, and a
// manifest-index generator. The full concrete plugin catalog belongs to
// the host application; this package is the minimal set that makes the
// driver runnable without a host supplying its own registrations.
package builtin

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/wolfire/ogda/internal/atomicfile"
	"github.com/wolfire/ogda/internal/build"
	"github.com/wolfire/ogda/internal/generate"
	"github.com/wolfire/ogda/internal/itemstore"
	"github.com/wolfire/ogda/internal/logfields"
	"github.com/wolfire/ogda/internal/manifest"
	"github.com/wolfire/ogda/internal/mesh"
	"github.com/wolfire/ogda/internal/metrics"
	"github.com/wolfire/ogda/internal/plugin"
	"github.com/wolfire/ogda/internal/search"
)

// CopyBuilder copies an item's source file verbatim to the same relative
// path under the output directory. It matches any type and any path suffix
// (the job file's own predicate narrows it).
func CopyBuilder(outputDir string) build.Plugin {
	return build.Plugin{
		Name:    "copy",
		Version: "v1",
		Action: func(item itemstore.Item) (string, bool, error) {
			dest := filepath.Join(outputDir, item.RelPath)
			if err := atomicfile.CopyFile(dest, item.AbsPath(), 0o644); err != nil {
				return "", false, fmt.Errorf("copy %s: %w", item.RelPath, err)
			}
			return item.RelPath, true, nil
		},
	}
}

// meshBuilderAction closes over the loader and output dir so the builder
// engine's output dir only needs threading through once; the mesh loader
// always reads from the input side and writes its cache beside the input
// file, while the builder itself copies the source into the
// output tree so the manifest can track it like any other produced asset.
func meshBuilderAction(loader *mesh.Loader, outputDir string) build.Action {
	return func(item itemstore.Item) (string, bool, error) {
		absPath := item.AbsPath()
		if _, err := loader.Load(absPath, mesh.LoadOptions{}); err != nil {
			return "", false, fmt.Errorf("optimize mesh %s: %w", item.RelPath, err)
		}
		dest := filepath.Join(outputDir, item.RelPath)
		if err := atomicfile.CopyFile(dest, absPath, 0o644); err != nil {
			return "", false, fmt.Errorf("copy mesh %s: %w", item.RelPath, err)
		}
		return item.RelPath, true, nil
	}
}

// MeshBuilder matches OBJ-subset source models, runs them through the
// runtime mesh optimizer (welding, degenerate removal, Forsyth reorder,
// checksummed cache write) as a build-time validation/pre-warm step, then
// copies the source into the output tree.
func MeshBuilder(outputDir string, logger *slog.Logger, recorder metrics.Recorder) build.Plugin {
	loader := mesh.NewLoader(logger, recorder)
	return build.Plugin{
		Name:    "mesh_optimize",
		Version: "v1",
		Action:  meshBuilderAction(loader, outputDir),
	}
}

// PassthroughSearcher returns a searcher that never discovers additional
// items. Registering it lets a job file reference a no-op searcher for
// item types that are pure leaves (no outbound references), rather than
// forcing every type to have a matching searcher just to silence the
// zero-matching-searchers warning.
func PassthroughSearcher() search.Plugin {
	return search.Plugin{
		Name:    "none",
		Version: "v1",
		Fn: func(itemstore.Item) ([]itemstore.Item, error) {
			return nil, nil
		},
	}
}

// manifestIndexEntry is one line of the generated type index.
type manifestIndexEntry struct {
	Type  string   `json:"type"`
	Paths []string `json:"paths"`
}

// ManifestIndexGenerator aggregates the builder-phase snapshot into a single
// JSON file grouping every produced destination path by its type tag,
// written to "index.json" under the output directory.
func ManifestIndexGenerator(outputDir string) generate.Plugin {
	return generate.Plugin{
		Name:    "manifest_index",
		Version: "v1",
		Fn: func(snapshot []manifest.Result) ([]generate.Output, error) {
			byType := map[string][]string{}
			for _, r := range snapshot {
				byType[r.Type] = append(byType[r.Type], r.Dest)
			}
			types := make([]string, 0, len(byType))
			for t := range byType {
				types = append(types, t)
			}
			sort.Strings(types)

			entries := make([]manifestIndexEntry, 0, len(types))
			for _, t := range types {
				paths := byType[t]
				sort.Strings(paths)
				entries = append(entries, manifestIndexEntry{Type: t, Paths: paths})
			}

			data, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("marshal manifest index: %w", err)
			}
			if err := atomicfile.ReplaceCreatingDirs(filepath.Join(outputDir, "index.json"), data, 0o644); err != nil {
				return nil, fmt.Errorf("write manifest index: %w", err)
			}
			return []generate.Output{{DestRelPath: "index.json"}}, nil
		},
	}
}

// Registries builds the three factory registries the pipeline resolves a
// job file's plugin declarations against, pre-populated with this
// package's reference set.
func Registries(outputDir string, logger *slog.Logger, recorder metrics.Recorder) (searchers, builders, generators *plugin.Registry) {
	if logger == nil {
		logger = slog.Default()
	}
	searchers = plugin.NewRegistry()
	builders = plugin.NewRegistry()
	generators = plugin.NewRegistry()

	mustRegister(searchers, PassthroughSearcher(), logger)
	mustRegister(builders, CopyBuilder(outputDir), logger)
	mustRegister(builders, MeshBuilder(outputDir, logger, recorder), logger)
	mustRegister(generators, ManifestIndexGenerator(outputDir), logger)

	return searchers, builders, generators
}

func mustRegister(reg *plugin.Registry, p plugin.Plugin, logger *slog.Logger) {
	if err := reg.Register(p); err != nil {
		logger.Error("builtin plugin registration failed", logfields.Name(p.Metadata().Name), "error", err)
	}
}
