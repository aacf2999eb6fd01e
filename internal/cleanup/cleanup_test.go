package cleanup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSweepRemovesOnlyPrefixedFiles(t *testing.T) {
	dir := t.TempDir()

	write := func(name string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("dmxp_alloc")
	write("dmxp_test_123")
	write("unrelated.sock")

	removed, err := Sweep(dir)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed %d files, want 2: %v", len(removed), removed)
	}

	remaining, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Name() != "unrelated.sock" {
		t.Fatalf("expected only unrelated.sock left, got %v", remaining)
	}
}

func TestSweepEmptyDir(t *testing.T) {
	dir := t.TempDir()
	removed, err := Sweep(dir)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(removed) != 0 {
		t.Fatalf("removed = %v, want none", removed)
	}
}
