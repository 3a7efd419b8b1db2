// Package job parses the pipeline's XML job description and expands its
// declared seed items against the input directory tree.
package job

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wolfire/ogda/internal/itemstore"
	"github.com/wolfire/ogda/internal/ogdaerrors"
	"github.com/wolfire/ogda/internal/pathutil"
)

// ItemDecl is one declared seed item, literal or recursive.
type ItemDecl struct {
	Path       string `xml:"path,attr"`
	Type       string `xml:"type,attr"`
	Recursive  bool   `xml:"recursive,attr"`
	PathEnding string `xml:"path_ending,attr"`
	Row        int    `xml:"row,attr"`
}

// PluginDecl names one searcher/builder/generator entry by identifier and
// carries the path-suffix/type-pattern predicate it is matched against.
type PluginDecl struct {
	Name          string `xml:"name,attr"`
	PathEnding    string `xml:"path_ending,attr"`
	TypePatternRe string `xml:"type_pattern_re,attr"`
}

// Job is the parsed, unresolved job description, before seed expansion
// or plugin resolution.
type Job struct {
	XMLName    xml.Name     `xml:"Job"`
	Inputs     []string     `xml:"Inputs>path"`
	Items      []ItemDecl   `xml:"Items>Item"`
	Searchers  []PluginDecl `xml:"Searchers>Searcher"`
	Builders   []PluginDecl `xml:"Builders>Builder"`
	Generators []PluginDecl `xml:"Generators>Generator"`
}

// Load reads and parses one job file. A malformed XML document is a fatal
// JobParseError (phase A fails fast).
func Load(path string) (*Job, error) {
	// #nosec G304 - path comes from the --job-file CLI flag, an operator input.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ogdaerrors.WrapError(err, ogdaerrors.CategoryJobParse, fmt.Sprintf("read job file %s", path)).Fatal().Build()
	}
	var j Job
	if err := xml.Unmarshal(data, &j); err != nil {
		return nil, ogdaerrors.WrapError(err, ogdaerrors.CategoryJobParse, fmt.Sprintf("parse job file %s", path)).Fatal().Build()
	}
	return &j, nil
}

// PluginLookup is the minimal factory-registry contract the job loader needs
// to diagnose PluginUnknown; internal/plugin.Registry satisfies it.
type PluginLookup interface {
	Has(name string) bool
}

// ResolvePlugins checks that every named searcher/builder/generator has a
// matching factory entry in the appropriate registry. A named plugin with no
// factory is a fatal PluginUnknown error (phase A fails fast).
func ResolvePlugins(j *Job, searchers, builders, generators PluginLookup) error {
	for _, d := range j.Searchers {
		if !searchers.Has(d.Name) {
			return ogdaerrors.NewError(ogdaerrors.CategoryPluginUnknown, fmt.Sprintf("unknown searcher %q", d.Name)).Fatal().Build()
		}
	}
	for _, d := range j.Builders {
		if !builders.Has(d.Name) {
			return ogdaerrors.NewError(ogdaerrors.CategoryPluginUnknown, fmt.Sprintf("unknown builder %q", d.Name)).Fatal().Build()
		}
	}
	for _, d := range j.Generators {
		if !generators.Has(d.Name) {
			return ogdaerrors.NewError(ogdaerrors.CategoryPluginUnknown, fmt.Sprintf("unknown generator %q", d.Name)).Fatal().Build()
		}
	}
	return nil
}

// Diagnostic records a non-fatal seed-expansion finding (a case correction
// or a missing item) for the driver to log and for --print-missing.
type Diagnostic struct {
	Category ogdaerrors.ErrorCategory
	Message  string
	Path     string
}

// ExpandSeeds probes every declared item against each input root in order
// (first-match wins on collisions), admits recursive subtrees by suffix
// filter, case-corrects paths that don't exist verbatim, and inserts every
// resulting item into store as a seed. Missing items are diagnosed but never
// abort expansion.
func ExpandSeeds(j *Job, store *itemstore.Store) []Diagnostic {
	var diags []Diagnostic
	for _, decl := range j.Items {
		if decl.Recursive {
			diags = append(diags, expandRecursive(j.Inputs, decl, store)...)
		} else {
			diags = append(diags, expandLiteral(j.Inputs, decl, store)...)
		}
	}
	return diags
}

func normalizeRelPath(p string) string {
	p = filepath.ToSlash(p)
	// An item's relative path never begins with a redundant "Data/" prefix.
	for {
		trimmed := strings.TrimPrefix(p, "Data/")
		if trimmed == p {
			break
		}
		p = trimmed
	}
	return p
}

func expandLiteral(inputs []string, decl ItemDecl, store *itemstore.Store) []Diagnostic {
	var diags []Diagnostic
	relPath := normalizeRelPath(decl.Path)

	for _, root := range inputs {
		if pathutil.Exists(root, relPath) {
			store.AddSeed(itemstore.Item{InputFolder: root, RelPath: relPath, TypeTag: decl.Type})
			return diags
		}
	}
	// Not found verbatim under any root; try case-correcting against the first root.
	if len(inputs) > 0 {
		corrected, changed, err := pathutil.CaseCorrect(inputs[0], relPath)
		if err == nil && changed {
			diags = append(diags, Diagnostic{
				Category: ogdaerrors.CategoryCaseMismatch,
				Message:  fmt.Sprintf("item %q case-corrected to %q", relPath, corrected),
				Path:     corrected,
			})
			store.AddSeed(itemstore.Item{InputFolder: inputs[0], RelPath: corrected, TypeTag: decl.Type})
			return diags
		}
	}
	diags = append(diags, Diagnostic{
		Category: ogdaerrors.CategoryFileMissing,
		Message:  fmt.Sprintf("item %q (row %d) not found under any input root", relPath, decl.Row),
		Path:     relPath,
	})
	// Still seed it, hash-less, so downstream diagnostics (and --print-missing) see it.
	root := ""
	if len(inputs) > 0 {
		root = inputs[0]
	}
	store.AddSeed(itemstore.Item{InputFolder: root, RelPath: relPath, TypeTag: decl.Type})
	return diags
}

func expandRecursive(inputs []string, decl ItemDecl, store *itemstore.Store) []Diagnostic {
	var diags []Diagnostic
	rootRel := normalizeRelPath(decl.Path)
	seen := map[string]bool{}

	for _, root := range inputs {
		base := filepath.Join(root, filepath.FromSlash(rootRel))
		info, err := os.Stat(base)
		if err != nil || !info.IsDir() {
			continue
		}
		_ = filepath.Walk(base, func(p string, fi os.FileInfo, walkErr error) error {
			if walkErr != nil || fi.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if decl.PathEnding != "" && !strings.HasSuffix(rel, decl.PathEnding) {
				return nil
			}
			if seen[rel] {
				return nil
			}
			seen[rel] = true
			store.AddSeed(itemstore.Item{InputFolder: root, RelPath: rel, TypeTag: decl.Type})
			return nil
		})
	}
	if len(seen) == 0 {
		diags = append(diags, Diagnostic{
			Category: ogdaerrors.CategoryFileMissing,
			Message:  fmt.Sprintf("recursive item root %q (row %d) matched no files", rootRel, decl.Row),
			Path:     rootRel,
		})
	}
	return diags
}
