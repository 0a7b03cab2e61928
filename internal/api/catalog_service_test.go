package api_test

import (
	"context"
	"encoding/json"
	"testing"

	"dashvault/internal/api"
	"dashvault/internal/catalog"
	"dashvault/internal/testsupport"
)

func TestCatalogServiceJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, catalog.JobCardScan, catalog.ScanPayload{Mountpoint: "/media/card"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	svc := api.NewCatalogService(store)
	jobs, err := svc.ListJobs(ctx)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	dto := jobs[0]
	if dto.Type != string(catalog.JobCardScan) || dto.State != string(catalog.StateQueued) {
		t.Fatalf("unexpected job dto: %+v", dto)
	}
	if dto.Lane != string(catalog.LaneForeground) {
		t.Fatalf("expected foreground lane, got %q", dto.Lane)
	}
	var payload catalog.ScanPayload
	if err := json.Unmarshal(dto.Payload, &payload); err != nil {
		t.Fatalf("payload passthrough: %v", err)
	}
	if payload.Mountpoint != "/media/card" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if dto.CreatedAt == "" || dto.UpdatedAt == "" {
		t.Fatal("expected formatted timestamps")
	}

	described, err := svc.DescribeJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("describe job: %v", err)
	}
	if described == nil || described.ID != job.ID {
		t.Fatalf("unexpected describe result: %+v", described)
	}

	missing, err := svc.DescribeJob(ctx, job.ID+100)
	if err != nil {
		t.Fatalf("describe missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing job, got %+v", missing)
	}

	stats, err := svc.JobStats(ctx)
	if err != nil {
		t.Fatalf("job stats: %v", err)
	}
	if stats[string(catalog.StateQueued)] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestCatalogServiceResolveDevice(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	device, err := store.InsertDevice(ctx, "card-abc", "tok-1", "uid-123", "DASHCAM")
	if err != nil {
		t.Fatalf("insert device: %v", err)
	}

	svc := api.NewCatalogService(store)
	refs := []string{"card-abc", "uid-123"}
	for _, ref := range refs {
		got, err := svc.ResolveDevice(ctx, ref)
		if err != nil {
			t.Fatalf("resolve %q: %v", ref, err)
		}
		if got == nil || got.ID != device.ID {
			t.Fatalf("resolve %q: expected device %d, got %+v", ref, device.ID, got)
		}
	}

	got, err := svc.ResolveDevice(ctx, "nope")
	if err != nil {
		t.Fatalf("resolve miss: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown reference, got %+v", got)
	}
}

func TestCatalogServiceDeviceFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	device := testsupport.NewDevice(t, store, "card-1", "tok-1")
	testsupport.NewDeviceFile(t, store, device.ID, "cont_rec/a.mp4", "fp-a")
	testsupport.NewDeviceFile(t, store, device.ID, "evt_rec/b.mp4", "fp-b")

	svc := api.NewCatalogService(store)
	dto, files, err := svc.DeviceFiles(ctx, "card-1")
	if err != nil {
		t.Fatalf("device files: %v", err)
	}
	if dto == nil || dto.CardID != "card-1" {
		t.Fatalf("unexpected device dto: %+v", dto)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].ImportState != string(catalog.ImportPending) {
		t.Fatalf("unexpected import state: %q", files[0].ImportState)
	}

	dto, files, err = svc.DeviceFiles(ctx, "unknown")
	if err != nil {
		t.Fatalf("device files miss: %v", err)
	}
	if dto != nil || files != nil {
		t.Fatal("expected nil results for unknown device")
	}
}

func TestCatalogServiceClips(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	clip, err := store.InsertClip(ctx, &catalog.Clip{
		SHA256:       "abcd1234",
		ArchivePath:  "2024/01/07/abcd1234_front.mp4",
		OriginalName: "front.mp4",
		SizeBytes:    2048,
		Camera:       "front",
		Mode:         "continuous",
	})
	if err != nil {
		t.Fatalf("insert clip: %v", err)
	}

	svc := api.NewCatalogService(store)
	clips, err := svc.ListClips(ctx, 0)
	if err != nil {
		t.Fatalf("list clips: %v", err)
	}
	if len(clips) != 1 {
		t.Fatalf("expected 1 clip, got %d", len(clips))
	}
	if clips[0].MetadataStatus != string(catalog.MetadataPending) {
		t.Fatalf("unexpected metadata status: %q", clips[0].MetadataStatus)
	}

	described, err := svc.DescribeClip(ctx, clip.ID)
	if err != nil {
		t.Fatalf("describe clip: %v", err)
	}
	if described == nil || described.SHA256 != "abcd1234" {
		t.Fatalf("unexpected clip: %+v", described)
	}

	total, devices, err := svc.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if total != 1 || devices != 0 {
		t.Fatalf("unexpected counts: clips=%d devices=%d", total, devices)
	}
}
