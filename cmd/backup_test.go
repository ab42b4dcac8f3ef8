package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotblauer/routecat/flat"
)

func TestArchiveRoundTrip(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "routecat.db"), []byte("bolt"), 0660); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(src, "exports"), 0770); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "exports", "a.ndjson.gz"), []byte("data"), 0660); err != nil {
		t.Fatal(err)
	}
	// The backups dir must not back itself up.
	if err := os.MkdirAll(filepath.Join(src, flat.BackupsDir), 0770); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, flat.BackupsDir, "old.tgz"), []byte("x"), 0660); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "snap.tgz")
	if n, err := archiveDatadir(src, out); err != nil || n == 0 {
		t.Fatalf("archiveDatadir: n=%d err=%v", n, err)
	}

	dst := t.TempDir()
	n, err := extractArchive(out, dst)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("extracted %d files, want 2", n)
	}

	b, err := os.ReadFile(filepath.Join(dst, "routecat.db"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "bolt" {
		t.Errorf("restored db = %q", b)
	}
	if _, err := os.Stat(filepath.Join(dst, "exports", "a.ndjson.gz")); err != nil {
		t.Errorf("exports file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, flat.BackupsDir)); !os.IsNotExist(err) {
		t.Error("backups dir should not be archived")
	}
}
