package pathutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHashFileIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cube.obj")
	if err := os.WriteFile(path, []byte("v 0 0 0\nv 1 0 0\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	h1, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	h2, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if h1 != h2 {
		t.Errorf("expected deterministic hash, got %s and %s", h1, h2)
	}
	if len(h1) != 32 {
		t.Errorf("expected 32-char hex md5 hash, got %d chars: %s", len(h1), h1)
	}
}

func TestHashFileDiffersOnContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cube.obj")

	if err := os.WriteFile(path, []byte("v 0 0 0\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	h1, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	if err := os.WriteFile(path, []byte("v 1 0 0\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	h2, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	if h1 == h2 {
		t.Error("expected different hashes for different content")
	}
}

func TestHashMTimeDiffersOnModTimeChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cube.obj")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	h1, err := HashMTime(path)
	if err != nil {
		t.Fatalf("HashMTime: %v", err)
	}

	newer := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, newer, newer); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	h2, err := HashMTime(path)
	if err != nil {
		t.Fatalf("HashMTime: %v", err)
	}
	if h1 == h2 {
		t.Error("expected surrogate hash to change with mtime")
	}
}

func TestCaseCorrectFixesWrongCaseSegments(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "Meshes"), 0750); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "Meshes", "Cube.obj"), []byte("v"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	corrected, changed, err := CaseCorrect(root, "meshes/cube.OBJ")
	if err != nil {
		t.Fatalf("CaseCorrect: %v", err)
	}
	if !changed {
		t.Error("expected changed=true for case mismatch")
	}
	if corrected != "Meshes/Cube.obj" {
		t.Errorf("corrected = %q, want Meshes/Cube.obj", corrected)
	}
}

func TestCaseCorrectNoopWhenExactMatch(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "Meshes"), 0750); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "Meshes", "cube.obj"), []byte("v"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	corrected, changed, err := CaseCorrect(root, "Meshes/cube.obj")
	if err != nil {
		t.Fatalf("CaseCorrect: %v", err)
	}
	if changed {
		t.Error("expected changed=false for exact match")
	}
	if corrected != "Meshes/cube.obj" {
		t.Errorf("corrected = %q", corrected)
	}
}

func TestCaseCorrectReturnsNotExistForMissingFile(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "Meshes"), 0750); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	_, _, err := CaseCorrect(root, "Meshes/missing.obj")
	if err == nil {
		t.Fatal("expected error for genuinely missing file")
	}
}

func TestResolveCaseCorrectedSkipsLookupWhenPathIsExact(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "job.xml"), []byte("<Job/>"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	resolved, changed, err := ResolveCaseCorrected(root, "job.xml")
	if err != nil {
		t.Fatalf("ResolveCaseCorrected: %v", err)
	}
	if changed {
		t.Error("expected no correction needed")
	}
	if resolved != "job.xml" {
		t.Errorf("resolved = %q", resolved)
	}
}
