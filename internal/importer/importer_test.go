package importer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dashvault/internal/catalog"
	"dashvault/internal/importer"
	"dashvault/internal/scanner"
	"dashvault/internal/services"
	"dashvault/internal/testsupport"
)

func writeRecording(t *testing.T, mountpoint, relPath, content string) {
	t.Helper()
	full := filepath.Join(mountpoint, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func stagingEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestImportFileArchives(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	device := testsupport.NewDevice(t, store, "card-1", "tok-1")

	mountpoint := t.TempDir()
	writeRecording(t, mountpoint, "cont_rec/FRONT_20240107_123045.mp4", "front camera footage")
	file := testsupport.NewDeviceFile(t, store, device.ID, "cont_rec/FRONT_20240107_123045.mp4", "fp-1")

	imp := importer.New(store, cfg, nil)
	result, err := imp.ImportFile(context.Background(), device, file, mountpoint)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if result.Duplicate {
		t.Fatal("first import must not be a duplicate")
	}

	clip := result.Clip
	if clip.MetadataStatus != catalog.MetadataPending {
		t.Fatalf("metadata status = %q, want pending", clip.MetadataStatus)
	}
	if clip.OriginalName != "FRONT_20240107_123045.mp4" {
		t.Fatalf("original name = %q", clip.OriginalName)
	}

	archived := importer.AbsolutePath(cfg, clip)
	content, err := os.ReadFile(archived)
	if err != nil {
		t.Fatalf("archived file unreadable: %v", err)
	}
	if string(content) != "front camera footage" {
		t.Fatalf("archived content mismatch: %q", content)
	}

	refreshed, err := store.GetDeviceFile(context.Background(), file.ID)
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.ImportState != catalog.ImportImported {
		t.Fatalf("import state = %q, want imported", refreshed.ImportState)
	}
	if refreshed.ClipID == nil || *refreshed.ClipID != clip.ID {
		t.Fatal("device file not linked to clip")
	}

	sources, err := store.ClipSources(context.Background(), clip.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 || sources[0].DeviceID != device.ID {
		t.Fatalf("unexpected provenance: %#v", sources)
	}

	if n := stagingEntries(t, cfg.Paths.StagingDir); n != 0 {
		t.Fatalf("expected empty staging dir, found %d entries", n)
	}
}

func TestImportFileDeduplicatesAcrossDevices(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	first := testsupport.NewDevice(t, store, "card-1", "tok-1")
	second := testsupport.NewDevice(t, store, "card-2", "tok-2")

	mountA := t.TempDir()
	mountB := t.TempDir()
	writeRecording(t, mountA, "evt_rec/FRONT_20240108_090000.mp4", "identical footage")
	writeRecording(t, mountB, "cont_rec/REAR_20240201_110000.mp4", "identical footage")
	fileA := testsupport.NewDeviceFile(t, store, first.ID, "evt_rec/FRONT_20240108_090000.mp4", "fp-a")
	fileB := testsupport.NewDeviceFile(t, store, second.ID, "cont_rec/REAR_20240201_110000.mp4", "fp-b")

	imp := importer.New(store, cfg, nil)
	resultA, err := imp.ImportFile(context.Background(), first, fileA, mountA)
	if err != nil {
		t.Fatal(err)
	}
	resultB, err := imp.ImportFile(context.Background(), second, fileB, mountB)
	if err != nil {
		t.Fatal(err)
	}

	if resultA.Duplicate || !resultB.Duplicate {
		t.Fatalf("expected second import flagged duplicate, got %v/%v", resultA.Duplicate, resultB.Duplicate)
	}
	if resultA.Clip.ID != resultB.Clip.ID {
		t.Fatal("identical content must resolve to one clip")
	}

	count, err := store.ClipCount(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("clip count = %d, want 1", count)
	}

	sources, err := store.ClipSources(context.Background(), resultA.Clip.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected provenance from both devices, got %d rows", len(sources))
	}

	refreshed, err := store.GetDeviceFile(context.Background(), fileB.ID)
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.ImportState != catalog.ImportDuplicate {
		t.Fatalf("import state = %q, want duplicate", refreshed.ImportState)
	}
	if n := stagingEntries(t, cfg.Paths.StagingDir); n != 0 {
		t.Fatalf("expected empty staging dir, found %d entries", n)
	}
}

func TestImportFileMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	device := testsupport.NewDevice(t, store, "card-1", "tok-1")
	file := testsupport.NewDeviceFile(t, store, device.ID, "cont_rec/GONE_20240107_123045.mp4", "fp-gone")

	imp := importer.New(store, cfg, nil)
	_, err := imp.ImportFile(context.Background(), device, file, t.TempDir())
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestImportFileIsRetrySafe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	device := testsupport.NewDevice(t, store, "card-1", "tok-1")

	mountpoint := t.TempDir()
	writeRecording(t, mountpoint, "cont_rec/FRONT_20240107_123045.mp4", "retryable footage")
	file := testsupport.NewDeviceFile(t, store, device.ID, "cont_rec/FRONT_20240107_123045.mp4", "fp-1")

	imp := importer.New(store, cfg, nil)
	ctx := context.Background()
	first, err := imp.ImportFile(ctx, device, file, mountpoint)
	if err != nil {
		t.Fatal(err)
	}
	again, err := imp.ImportFile(ctx, device, file, mountpoint)
	if err != nil {
		t.Fatalf("repeat import failed: %v", err)
	}
	if !again.Duplicate || again.Clip.ID != first.Clip.ID {
		t.Fatal("repeat import must deduplicate onto the original clip")
	}
	sources, err := store.ClipSources(ctx, first.Clip.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 {
		t.Fatalf("repeat import must not duplicate provenance, got %d rows", len(sources))
	}
}

func TestArchiveRelPath(t *testing.T) {
	recorded := time.Date(2024, 1, 7, 12, 30, 45, 0, time.UTC)
	hash := scanner.Fingerprint("x", 1, recorded)
	got := importer.ArchiveRelPath(hash, "cont_rec/FRONT_20240107_123045.mp4", &recorded)
	want := "2024/01/07/" + hash[:16] + "_FRONT_20240107_123045.mp4"
	if got != want {
		t.Fatalf("ArchiveRelPath = %q, want %q", got, want)
	}
}
