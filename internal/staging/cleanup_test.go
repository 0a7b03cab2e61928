package staging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dashvault/internal/logging"
)

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldFiles(t *testing.T) {
	tmpDir := t.TempDir()

	oldFile := filepath.Join(tmpDir, "aaaa-bbbb.mp4")
	if err := os.WriteFile(oldFile, []byte("stale"), 0o644); err != nil {
		t.Fatalf("create old file: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	recentFile := filepath.Join(tmpDir, "cccc-dddd.mp4")
	if err := os.WriteFile(recentFile, []byte("live"), 0o644); err != nil {
		t.Fatalf("create recent file: %v", err)
	}

	subdir := filepath.Join(tmpDir, "keepme")
	if err := os.Mkdir(subdir, 0o755); err != nil {
		t.Fatalf("create subdir: %v", err)
	}

	result := CleanStale(tmpDir, time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != oldFile {
		t.Fatalf("expected only the stale file removed, got %v", result.Removed)
	}

	if _, err := os.Stat(recentFile); err != nil {
		t.Fatal("recent file must survive cleanup")
	}
	if _, err := os.Stat(subdir); err != nil {
		t.Fatal("directories must survive cleanup")
	}
}
