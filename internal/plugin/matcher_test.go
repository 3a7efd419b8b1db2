package plugin

import "testing"

func TestPredicateMatch(t *testing.T) {
	p, err := CompilePredicate(".obj", "^mesh$")
	if err != nil {
		t.Fatalf("CompilePredicate: %v", err)
	}
	if !p.Match("Data/Meshes/cube.obj", "mesh") {
		t.Error("expected match")
	}
	if p.Match("Data/Meshes/cube.png", "mesh") {
		t.Error("expected suffix mismatch to fail")
	}
	if p.Match("Data/Meshes/cube.obj", "texture") {
		t.Error("expected type mismatch to fail")
	}
}

func TestPredicateEmptyMatchesEverything(t *testing.T) {
	p, err := CompilePredicate("", "")
	if err != nil {
		t.Fatalf("CompilePredicate: %v", err)
	}
	if !p.Match("anything/at/all.xyz", "whatever") {
		t.Error("expected empty predicate to match everything")
	}
}

func TestCompilePredicateInvalidRegex(t *testing.T) {
	if _, err := CompilePredicate("", "(unclosed"); err == nil {
		t.Error("expected error for invalid regex")
	}
}
