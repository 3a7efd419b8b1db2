package manifest

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManifestRoundTripPreservesOrderAndKind(t *testing.T) {
	m := NewManifest("ogda", "1.0.0")
	m.AddResult(Result{
		Kind:            KindBuilt,
		Dest:            "Meshes/cube.mesh",
		DestHash:        "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		ProducerName:    "obj_to_mesh",
		ProducerVersion: "1",
		Type:            "mesh",
		Success:         true,
		FreshBuilt:      true,
		Sources:         []SourceItem{{Path: "Meshes/cube.obj", Type: "mesh", Hash: "1111111111111111"}},
	})
	m.AddResult(Result{
		Kind:            KindDatabase,
		Dest:            "Meshes/sphere.mesh",
		DestHash:        "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		ProducerName:    "obj_to_mesh",
		ProducerVersion: "1",
		Type:            "mesh",
		Success:         true,
		Sources:         []SourceItem{{Path: "Meshes/sphere.obj", Type: "mesh", Hash: "2222222222222222"}},
	})
	m.AddResult(Result{
		Kind:         KindGenerated,
		Dest:         "index.xml",
		DestHash:     "cccccccccccccccccccccccccccccccc",
		ProducerName: "mesh_index",
		Type:         "index",
		Success:      true,
	})

	data, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent: %v", err)
	}
	for _, want := range []string{"<BuilderResult", "<DatabaseResult", "<GeneratorResult"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("expected marshaled manifest to contain %s, got:\n%s", want, data)
		}
	}

	var restored Manifest
	if err := xml.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(restored.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(restored.Results))
	}
	if restored.Results[0].Kind != KindBuilt || restored.Results[1].Kind != KindDatabase || restored.Results[2].Kind != KindGenerated {
		t.Errorf("kinds not preserved in order: %+v", restored.Results)
	}
	if restored.Results[0].Dest != "Meshes/cube.mesh" {
		t.Errorf("dest not preserved: %s", restored.Results[0].Dest)
	}
}

func TestManifestLegacyResultElementIsBuilderResult(t *testing.T) {
	doc := `<Manifest>
  <ProgramInfo name="ogda" version="1.0.0"></ProgramInfo>
  <ExecutionInfo run_id="r1" timestamp="2024-01-01T00:00:00Z"></ExecutionInfo>
  <Result dest="Meshes/cube.mesh" dest_hash="aaaa" producer_name="obj_to_mesh" producer_version="1" type="mesh" success="true">
    <Item path="Meshes/cube.obj" type="mesh" hash="1111111111111111"></Item>
  </Result>
</Manifest>`

	var m Manifest
	if err := xml.Unmarshal([]byte(doc), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(m.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(m.Results))
	}
	if m.Results[0].Kind != KindBuilt {
		t.Errorf("legacy <Result> should decode as KindBuilt, got %s", m.Results[0].Kind)
	}
}

func TestIsUpToDateAcceptsMatchingRecordOnly(t *testing.T) {
	m := NewManifest("ogda", "1.0.0")
	m.AddResult(Result{
		Kind:            KindBuilt,
		Dest:            "Meshes/cube.mesh",
		DestHash:        "deadbeefdeadbeefdeadbeefdeadbeef",
		ProducerName:    "obj_to_mesh",
		ProducerVersion: "1",
		Success:         true,
		Sources:         []SourceItem{{Path: "Meshes/cube.obj", Type: "mesh", Hash: "1111111111111111aaaa"}},
	})

	if _, ok := m.IsUpToDate("1111111111111111aaaa", "obj_to_mesh", "1", "deadbeefdeadbeefdeadbeefdeadbeef"); !ok {
		t.Error("expected up-to-date match for identical source/producer/dest")
	}
	if _, ok := m.IsUpToDate("1111111111111111aaaa", "obj_to_mesh", "2", "deadbeefdeadbeefdeadbeefdeadbeef"); ok {
		t.Error("producer version change should be treated as stale, not matched")
	}
	if _, ok := m.IsUpToDate("1111111111111111aaaa", "obj_to_mesh", "1", "00000000000000000000000000000000"); ok {
		t.Error("dest hash mismatch should not be up to date")
	}
	if _, ok := m.IsUpToDate("ffffffffffffffffaaaa", "obj_to_mesh", "1", "deadbeefdeadbeefdeadbeefdeadbeef"); ok {
		t.Error("unrelated source hash should not match via prefix collision")
	}
}

func TestHasErrorReflectsAnyFailedResult(t *testing.T) {
	m := NewManifest("ogda", "1.0.0")
	m.AddResult(Result{Dest: "a", Success: true})
	if m.HasError() {
		t.Error("expected no error with all successes")
	}
	m.AddResult(Result{Dest: "b", Success: false})
	if !m.HasError() {
		t.Error("expected HasError true once a result fails")
	}
}

func TestLoadMissingManifestYieldsEmpty(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "nope.xml"), "ogda", "1.0.0")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Results) != 0 {
		t.Errorf("expected empty manifest, got %d results", len(m.Results))
	}
	if m.ExecutionInfo.RunID == "" {
		t.Error("expected a generated RunID")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "manifest.xml")

	m := NewManifest("ogda", "1.0.0")
	m.AddResult(Result{
		Kind:            KindBuilt,
		Dest:            "Meshes/cube.mesh",
		DestHash:        "dh",
		ProducerName:    "obj_to_mesh",
		ProducerVersion: "1",
		Success:         true,
		Sources:         []SourceItem{{Path: "Meshes/cube.obj", Type: "mesh", Hash: "1111111111111111"}},
	})
	if err := Save(path, m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path, "ogda", "1.0.0")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Results) != 1 {
		t.Fatalf("expected 1 result after round trip, got %d", len(loaded.Results))
	}
	if loaded.ExecutionInfo.RunID != m.ExecutionInfo.RunID {
		t.Errorf("expected RunID preserved across save/load")
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected manifest file to exist: %v", err)
	}
}

func TestDatabaseManifestLookupAndPayloadPath(t *testing.T) {
	dm := NewDatabaseManifest("ogda", "1.0.0")
	dm.AddResult(Result{
		Dest:            "Meshes/cube.mesh",
		DestHash:        "dh123",
		ProducerName:    "obj_to_mesh",
		ProducerVersion: "1",
		Sources:         []SourceItem{{Path: "Meshes/cube.obj", Type: "mesh", Hash: "3333333333333333"}},
	})

	r, ok := dm.Lookup("3333333333333333", "obj_to_mesh", "1")
	if !ok {
		t.Fatal("expected lookup hit")
	}
	if r.Kind != KindDatabase {
		t.Errorf("expected AddResult to tag KindDatabase, got %s", r.Kind)
	}
	if _, ok := dm.Lookup("3333333333333333", "obj_to_mesh", "2"); ok {
		t.Error("producer version mismatch should miss")
	}

	got := PayloadPath("3333333333333333", "dh123")
	want := filepath.Join("files", "3333333333333333", "dh123")
	if got != want {
		t.Errorf("PayloadPath = %s, want %s", got, want)
	}
}

func TestSaveAndLoadDatabaseManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "database_manifest.xml")

	dm := NewDatabaseManifest("ogda", "1.0.0")
	dm.AddResult(Result{
		Dest:            "Meshes/cube.mesh",
		DestHash:        "dh123",
		ProducerName:    "obj_to_mesh",
		ProducerVersion: "1",
		Sources:         []SourceItem{{Path: "Meshes/cube.obj", Type: "mesh", Hash: "3333333333333333"}},
	})
	if err := SaveDatabase(path, dm); err != nil {
		t.Fatalf("SaveDatabase: %v", err)
	}

	loaded, err := LoadDatabase(path, "ogda", "1.0.0")
	if err != nil {
		t.Fatalf("LoadDatabase: %v", err)
	}
	if _, ok := loaded.Lookup("3333333333333333", "obj_to_mesh", "1"); !ok {
		t.Error("expected lookup hit after round trip")
	}
}

func TestEnableSQLiteIndexBelowThresholdIsNoop(t *testing.T) {
	dir := t.TempDir()
	dm := NewDatabaseManifest("ogda", "1.0.0")
	dm.AddResult(Result{
		Dest: "Meshes/cube.mesh", DestHash: "dh1", ProducerName: "obj_to_mesh", ProducerVersion: "1",
		Sources: []SourceItem{{Path: "Meshes/cube.obj", Type: "mesh", Hash: "4444444444444444"}},
	})

	if err := dm.EnableSQLiteIndex(filepath.Join(dir, "index.sqlite3")); err != nil {
		t.Fatalf("EnableSQLiteIndex: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "index.sqlite3")); err == nil {
		t.Error("expected no index file below sqliteIndexThreshold")
	}
	if _, ok := dm.Lookup("4444444444444444", "obj_to_mesh", "1"); !ok {
		t.Error("expected in-memory lookup to still work")
	}
}

func TestEnableSQLiteIndexAboveThresholdBacksLookups(t *testing.T) {
	orig := sqliteIndexThreshold
	sqliteIndexThreshold = 1
	defer func() { sqliteIndexThreshold = orig }()

	dir := t.TempDir()
	dm := NewDatabaseManifest("ogda", "1.0.0")
	dm.AddResult(Result{
		Dest: "Meshes/cube.mesh", DestHash: "dh1", ProducerName: "obj_to_mesh", ProducerVersion: "1",
		Sources: []SourceItem{{Path: "Meshes/cube.obj", Type: "mesh", Hash: "5555555555555555"}},
	})

	indexPath := filepath.Join(dir, "index.sqlite3")
	if err := dm.EnableSQLiteIndex(indexPath); err != nil {
		t.Fatalf("EnableSQLiteIndex: %v", err)
	}
	defer dm.Close()

	if _, err := os.Stat(indexPath); err != nil {
		t.Fatalf("expected index file to exist: %v", err)
	}

	r, ok := dm.Lookup("5555555555555555", "obj_to_mesh", "1")
	if !ok {
		t.Fatal("expected sqlite-backed lookup hit")
	}
	if r.Dest != "Meshes/cube.mesh" || r.DestHash != "dh1" {
		t.Errorf("got dest=%s destHash=%s", r.Dest, r.DestHash)
	}

	// AddResult after enabling the index must also reach the sqlite store.
	dm.AddResult(Result{
		Dest: "Meshes/sphere.mesh", DestHash: "dh2", ProducerName: "obj_to_mesh", ProducerVersion: "1",
		Sources: []SourceItem{{Path: "Meshes/sphere.obj", Type: "mesh", Hash: "6666666666666666"}},
	})
	if r, ok := dm.Lookup("6666666666666666", "obj_to_mesh", "1"); !ok || r.Dest != "Meshes/sphere.mesh" {
		t.Error("expected newly added result to be reachable through the sqlite index")
	}
}
