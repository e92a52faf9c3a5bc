package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileReader_ParseGoFileCaching(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.go")
	if err := os.WriteFile(path, []byte("package store\n\ntype Store struct{}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	reader := NewFileReader()
	first, err := reader.ParseGoFile(path)
	if err != nil {
		t.Fatalf("first parse failed: %v", err)
	}
	second, err := reader.ParseGoFile(path)
	if err != nil {
		t.Fatalf("second parse failed: %v", err)
	}
	if first != second {
		t.Error("expected cached AST on second parse")
	}

	// a size change invalidates the entry
	if err := os.WriteFile(path, []byte("package store\n\ntype Store struct{ n int }\n"), 0644); err != nil {
		t.Fatal(err)
	}
	third, err := reader.ParseGoFile(path)
	if err != nil {
		t.Fatalf("third parse failed: %v", err)
	}
	if third == first {
		t.Error("expected a fresh AST after the file changed")
	}

	reader.InvalidateFile(path)
	fourth, err := reader.ParseGoFile(path)
	if err != nil {
		t.Fatalf("parse after invalidation failed: %v", err)
	}
	if fourth == third {
		t.Error("expected a fresh AST after invalidation")
	}
}

func TestFileReader_ReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go.mod")
	if err := os.WriteFile(path, []byte("module example.com/a\n"), 0644); err != nil {
		t.Fatal(err)
	}

	reader := NewFileReader()
	content, err := reader.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if content != "module example.com/a\n" {
		t.Errorf("unexpected content %q", content)
	}
}

func TestFileReader_Errors(t *testing.T) {
	reader := NewFileReader()

	if _, err := reader.ReadFile(""); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := reader.ParseGoFile(filepath.Join(t.TempDir(), "missing.go")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.go")
	if err := os.WriteFile(bad, []byte("package"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := reader.ParseGoFile(bad); err == nil {
		t.Error("expected syntax error")
	}
}
