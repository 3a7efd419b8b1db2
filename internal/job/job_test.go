package job

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wolfire/ogda/internal/itemstore"
	"github.com/wolfire/ogda/internal/ogdaerrors"
)

const sampleJob = `<?xml version="1.0"?>
<Job>
  <Inputs>
    <path>/data/mod</path>
    <path>/data/base</path>
  </Inputs>
  <Items>
    <Item path="Meshes/cube.obj" type="mesh" row="7"/>
    <Item path="Textures" type="texture" recursive="true" path_ending=".tga" row="8"/>
  </Items>
  <Searchers>
    <Searcher name="mesh_refs" path_ending=".obj" type_pattern_re="^mesh$"/>
  </Searchers>
  <Builders>
    <Builder name="copy" path_ending=".obj" type_pattern_re="^mesh$"/>
  </Builders>
  <Generators>
    <Generator name="manifest_index" path_ending="" type_pattern_re=""/>
  </Generators>
</Job>`

func writeJob(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.xml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write job file: %v", err)
	}
	return path
}

func TestLoadParsesJobFile(t *testing.T) {
	j, err := Load(writeJob(t, sampleJob))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(j.Inputs) != 2 || j.Inputs[0] != "/data/mod" {
		t.Errorf("inputs parsed wrong: %v", j.Inputs)
	}
	if len(j.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(j.Items))
	}
	if j.Items[0].Path != "Meshes/cube.obj" || j.Items[0].Type != "mesh" || j.Items[0].Row != 7 {
		t.Errorf("item 0 parsed wrong: %+v", j.Items[0])
	}
	if !j.Items[1].Recursive || j.Items[1].PathEnding != ".tga" {
		t.Errorf("item 1 parsed wrong: %+v", j.Items[1])
	}
	if len(j.Searchers) != 1 || j.Searchers[0].Name != "mesh_refs" || j.Searchers[0].TypePatternRe != "^mesh$" {
		t.Errorf("searchers parsed wrong: %+v", j.Searchers)
	}
	if len(j.Builders) != 1 || len(j.Generators) != 1 {
		t.Errorf("builders/generators parsed wrong: %+v %+v", j.Builders, j.Generators)
	}
}

func TestLoadMalformedXMLIsFatalJobParse(t *testing.T) {
	_, err := Load(writeJob(t, "<Job><Inputs>"))
	if err == nil {
		t.Fatal("expected an error for malformed XML")
	}
	ce, ok := ogdaerrors.AsClassified(err)
	if !ok {
		t.Fatalf("expected a classified error, got %T", err)
	}
	if ce.Category() != ogdaerrors.CategoryJobParse {
		t.Errorf("category = %s, want %s", ce.Category(), ogdaerrors.CategoryJobParse)
	}
	if !ce.IsFatal() {
		t.Error("job parse errors must be fatal")
	}
}

type fakeLookup map[string]bool

func (f fakeLookup) Has(name string) bool { return f[name] }

func TestResolvePluginsDiagnosesUnknown(t *testing.T) {
	j, err := Load(writeJob(t, sampleJob))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	all := fakeLookup{"mesh_refs": true, "copy": true, "manifest_index": true}
	if err := ResolvePlugins(j, all, all, all); err != nil {
		t.Fatalf("ResolvePlugins with all plugins known: %v", err)
	}

	noBuilders := fakeLookup{"mesh_refs": true, "manifest_index": true}
	err = ResolvePlugins(j, noBuilders, noBuilders, noBuilders)
	if err == nil {
		t.Fatal("expected PluginUnknown for missing builder")
	}
	ce, ok := ogdaerrors.AsClassified(err)
	if !ok || ce.Category() != ogdaerrors.CategoryPluginUnknown {
		t.Errorf("expected CategoryPluginUnknown, got %v", err)
	}
}

func jobWithItems(inputs []string, items ...ItemDecl) *Job {
	return &Job{Inputs: inputs, Items: items}
}

func TestExpandSeedsFirstRootWins(t *testing.T) {
	mod := t.TempDir()
	base := t.TempDir()
	for _, root := range []string{mod, base} {
		dir := filepath.Join(root, "Meshes")
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "cube.obj"), []byte("v 0 0 0\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	store := itemstore.New()
	diags := ExpandSeeds(jobWithItems([]string{mod, base}, ItemDecl{Path: "Meshes/cube.obj", Type: "mesh"}), store)
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %+v", diags)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 seed, got %d", store.Len())
	}
	if got := store.Get(0).InputFolder; got != mod {
		t.Errorf("collision resolved to %q, want first root %q", got, mod)
	}
}

func TestExpandSeedsStripsDataPrefix(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Meshes")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cube.obj"), []byte("v 0 0 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	store := itemstore.New()
	ExpandSeeds(jobWithItems([]string{root}, ItemDecl{Path: "Data/Meshes/cube.obj", Type: "mesh"}), store)
	if store.Len() != 1 {
		t.Fatalf("expected 1 seed, got %d", store.Len())
	}
	if got := store.Get(0).RelPath; got != "Meshes/cube.obj" {
		t.Errorf("RelPath = %q, want Data/ prefix stripped", got)
	}
}

func TestExpandSeedsCaseCorrects(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Meshes")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Cube.obj"), []byte("v 0 0 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	store := itemstore.New()
	diags := ExpandSeeds(jobWithItems([]string{root}, ItemDecl{Path: "meshes/cube.obj", Type: "mesh"}), store)

	if len(diags) != 1 || diags[0].Category != ogdaerrors.CategoryCaseMismatch {
		t.Fatalf("expected one CaseMismatch diagnostic, got %+v", diags)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 seed, got %d", store.Len())
	}
	if got := store.Get(0).RelPath; got != "Meshes/Cube.obj" {
		t.Errorf("RelPath = %q, want on-disk casing", got)
	}
}

func TestExpandSeedsDiagnosesMissingButStillSeeds(t *testing.T) {
	root := t.TempDir()
	store := itemstore.New()
	diags := ExpandSeeds(jobWithItems([]string{root}, ItemDecl{Path: "Meshes/gone.obj", Type: "mesh", Row: 12}), store)

	if len(diags) != 1 || diags[0].Category != ogdaerrors.CategoryFileMissing {
		t.Fatalf("expected one FileMissing diagnostic, got %+v", diags)
	}
	if store.Len() != 1 {
		t.Error("missing items must still be seeded for diagnostics")
	}
}

func TestExpandSeedsRecursiveSuffixFilter(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Textures", "sub")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.tga", "b.tga", "skip.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	store := itemstore.New()
	diags := ExpandSeeds(jobWithItems([]string{root},
		ItemDecl{Path: "Textures", Type: "texture", Recursive: true, PathEnding: ".tga"}), store)
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %+v", diags)
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 admitted files, got %d", store.Len())
	}
	for _, id := range store.WorkingList() {
		if filepath.Ext(store.Get(id).RelPath) != ".tga" {
			t.Errorf("admitted file %q does not match suffix filter", store.Get(id).RelPath)
		}
	}
}
