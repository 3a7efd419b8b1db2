package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/wolfire/ogda/internal/builtin"
	"github.com/wolfire/ogda/internal/manifest"
	"github.com/wolfire/ogda/internal/pipelineconfig"
)

const jobXML = `<Job>
  <Inputs>
    <path>%s</path>
  </Inputs>
  <Items>
    <Item path="Meshes/cube.obj" type="mesh"/>
  </Items>
  <Builders>
    <Builder name="copy" path_ending=".obj" type_pattern_re="mesh"/>
  </Builders>
</Job>`

func writeScenario(t *testing.T) (inputDir, outputDir, jobFile string) {
	t.Helper()
	inputDir = t.TempDir()
	outputDir = t.TempDir()

	meshDir := filepath.Join(inputDir, "Meshes")
	if err := os.MkdirAll(meshDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(meshDir, "cube.obj"), []byte("v 0 0 0\nv 1 0 0\nv 1 1 0\nf 1 2 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	jobFile = filepath.Join(t.TempDir(), "job.xml")
	content := []byte(fmt.Sprintf(jobXML, inputDir))
	if err := os.WriteFile(jobFile, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return inputDir, outputDir, jobFile
}

func baseConfig(t *testing.T, inputDir, outputDir, jobFile string) pipelineconfig.Config {
	t.Helper()
	return pipelineconfig.Config{
		InputDir:       inputDir,
		OutputDir:      outputDir,
		JobFile:        jobFile,
		ManifestOutput: filepath.Join(t.TempDir(), "manifest.xml"),
		Threads:        2,
	}
}

// Scenario 1: clean build produces exactly one BUILT result.
func TestCleanBuild(t *testing.T) {
	inputDir, outputDir, jobFile := writeScenario(t)
	cfg := baseConfig(t, inputDir, outputDir, jobFile)

	searchers, builders, generators := builtin.Registries(outputDir, nil, nil)
	regs := Registries{Searchers: searchers, Builders: builders, Generators: generators}

	result, err := Run(cfg, regs, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasError {
		t.Fatalf("unexpected failure: %+v", result)
	}
	if len(result.Manifest.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(result.Manifest.Results))
	}
	r := result.Manifest.Results[0]
	if r.Kind != manifest.KindBuilt {
		t.Errorf("kind = %v, want BUILT", r.Kind)
	}
	if r.Dest != "Meshes/cube.obj" {
		t.Errorf("dest = %q, want %q", r.Dest, "Meshes/cube.obj")
	}
	if _, err := os.Stat(filepath.Join(outputDir, "Meshes/cube.obj")); err != nil {
		t.Errorf("expected output file to exist: %v", err)
	}
}

// Scenario 2: re-running with the prior manifest as --manifest-input
// reuses the existing result instead of invoking the builder again.
func TestIncrementalNoOp(t *testing.T) {
	inputDir, outputDir, jobFile := writeScenario(t)
	cfg := baseConfig(t, inputDir, outputDir, jobFile)

	searchers, builders, generators := builtin.Registries(outputDir, nil, nil)
	regs := Registries{Searchers: searchers, Builders: builders, Generators: generators}

	if _, err := Run(cfg, regs, nil, nil, nil); err != nil {
		t.Fatalf("first run: unexpected error: %v", err)
	}

	cfg.ManifestInput = cfg.ManifestOutput
	result, err := Run(cfg, regs, nil, nil, nil)
	if err != nil {
		t.Fatalf("second run: unexpected error: %v", err)
	}
	if len(result.Manifest.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(result.Manifest.Results))
	}
	if result.Manifest.Results[0].FreshBuilt {
		t.Error("expected the second run to reuse the prior record, not rebuild it")
	}
}

// Scenario 5: a stale file in the output directory that neither the
// prior nor the new manifest knows about is never silently removed.
func TestReconcilerRefusesDivergentOutput(t *testing.T) {
	inputDir, outputDir, jobFile := writeScenario(t)
	if err := os.WriteFile(filepath.Join(outputDir, "stale.mesh"), []byte("orphan"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := baseConfig(t, inputDir, outputDir, jobFile)

	searchers, builders, generators := builtin.Registries(outputDir, nil, nil)
	regs := Registries{Searchers: searchers, Builders: builders, Generators: generators}

	result, err := Run(cfg, regs, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.ReconcileReport.Refused {
		t.Error("expected the reconciler to refuse deletion")
	}
	if _, err := os.Stat(filepath.Join(outputDir, "stale.mesh")); err != nil {
		t.Errorf("expected stale.mesh to be preserved: %v", err)
	}
}
