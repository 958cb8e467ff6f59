package signature

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/n2code/virusbegone/internal/failure"
)

func writeDefinitions(t *testing.T, dir string, name string, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  ABC123\n"); got != "abc123" {
		t.Errorf("Normalize() = %q, want %q", got, "abc123")
	}
	if got := Signature("0123456789abcdef").Short(); got != "01234567" {
		t.Errorf("Short() = %q", got)
	}
	if got := Signature("abc").Short(); got != "abc" {
		t.Errorf("Short() of short signature = %q", got)
	}
}

func TestLoadDir(t *testing.T) {
	dir, err := os.MkdirTemp("", "virusbegone-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	writeDefinitions(t, dir, "a.json", `[{"hash": " abc123 ", "name": "Eicar"}, {"hash": "DEF456"}]`)
	writeDefinitions(t, dir, "b.json", `[{"hash": "abc123"}, {"name": "no hash"}, {"hash": 42}, {"hash": "   "}, "junk"]`)
	writeDefinitions(t, dir, "broken.json", `[{"hash": "fff`)
	writeDefinitions(t, dir, "ignored.txt", `[{"hash": "777777"}]`)
	if err := os.Mkdir(filepath.Join(dir, "nested.json"), 0755); err != nil {
		t.Fatal(err)
	}

	set, report := LoadDir(dir)

	if len(set) != 2 || !set.Contains("abc123") || !set.Contains("def456") {
		t.Errorf("unexpected set content: %v", set)
	}
	if set.Contains("777777") {
		t.Error("non-JSON file must be ignored")
	}
	if report.Files != 2 {
		t.Errorf("expected 2 accepted files, got %d", report.Files)
	}
	if report.Signatures != 2 {
		t.Errorf("expected 2 signatures, got %d", report.Signatures)
	}
	if report.DirMissing {
		t.Error("directory exists")
	}
	if len(report.Problems) != 5 { //4 bad records + 1 broken file
		t.Errorf("expected 5 problems, got %d: %v", len(report.Problems), report.Problems)
	}
	for _, problem := range report.Problems {
		if !errors.Is(problem, failure.Parse) {
			t.Errorf("expected parse problem, got %s", problem)
		}
	}
}

func TestLoadDirMissing(t *testing.T) {
	set, report := LoadDir(filepath.Join(os.TempDir(), "virusbegone-does-not-exist"))
	if len(set) != 0 {
		t.Error("expected empty set")
	}
	if !report.DirMissing {
		t.Error("expected missing directory to be reported")
	}
	if len(report.Problems) != 1 {
		t.Errorf("expected a warning, got %v", report.Problems)
	}
}

func TestStoreReloadSwapsSet(t *testing.T) {
	dir, err := os.MkdirTemp("", "virusbegone-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store := NewStore(dir)
	if store.Contains("abc123") || store.Count() != 0 {
		t.Fatal("new store must be empty")
	}

	writeDefinitions(t, dir, "sigs.json", `[{"hash": "abc123"}]`)
	store.Reload()
	if !store.Contains("abc123") {
		t.Error("expected signature after reload")
	}
	before := store.Snapshot()

	writeDefinitions(t, dir, "sigs.json", `[{"hash": "fed987"}]`)
	store.Reload()
	if store.Contains("abc123") {
		t.Error("removed signature must not match after reload")
	}
	if !store.Contains("fed987") {
		t.Error("added signature must match after reload")
	}
	if !before.Contains("abc123") || before.Contains("fed987") {
		t.Error("old snapshot must stay unchanged")
	}
	if store.Count() != 1 {
		t.Errorf("expected 1 signature, got %d", store.Count())
	}
}
