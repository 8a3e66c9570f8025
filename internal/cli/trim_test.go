package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/buildshift/internal/config"
)

func TestRunTrim(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"keep.parquet", "drop.parquet"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	keepFile := filepath.Join(t.TempDir(), "keep.txt")
	if err := os.WriteFile(keepFile, []byte("keep.parquet\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Data.Dir = dir

	if err := runTrim(context.Background(), cfg, keepFile); err != nil {
		t.Fatalf("trim: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "keep.parquet")); err != nil {
		t.Errorf("kept file should survive: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "drop.parquet")); !os.IsNotExist(err) {
		t.Errorf("unlisted file should be removed, stat err = %v", err)
	}
}

func TestRunTrimMissingKeepFile(t *testing.T) {
	cfg := config.Default()
	cfg.Data.Dir = t.TempDir()

	if err := runTrim(context.Background(), cfg, filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected an error for a missing keep file")
	}
}
