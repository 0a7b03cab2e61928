package catalog_test

import (
	"context"
	"testing"

	"dashvault/internal/catalog"
	"dashvault/internal/testsupport"
)

func TestClipByHashDedup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	clip, err := store.InsertClip(ctx, &catalog.Clip{
		SHA256:       "abc123",
		ArchivePath:  "/archive/2024/01/07/abc123_FRONT.mp4",
		OriginalName: "FRONT_20240107_123045.mp4",
		SizeBytes:    2048,
		Camera:       "front",
		Mode:         "continuous",
	})
	if err != nil {
		t.Fatalf("InsertClip failed: %v", err)
	}
	if clip.MetadataStatus != catalog.MetadataPending {
		t.Fatalf("expected pending metadata, got %s", clip.MetadataStatus)
	}

	found, err := store.ClipByHash(ctx, "abc123")
	if err != nil {
		t.Fatalf("ClipByHash failed: %v", err)
	}
	if found == nil || found.ID != clip.ID {
		t.Fatalf("unexpected hash lookup: %#v", found)
	}

	missing, err := store.ClipByHash(ctx, "nope")
	if err != nil {
		t.Fatalf("ClipByHash failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown hash, got %#v", missing)
	}
}

func TestClipsNeedingProbe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	fresh, err := store.InsertClip(ctx, &catalog.Clip{SHA256: "a", ArchivePath: "/a", OriginalName: "a.mp4", SizeBytes: 1})
	if err != nil {
		t.Fatalf("InsertClip failed: %v", err)
	}
	extracted, err := store.InsertClip(ctx, &catalog.Clip{SHA256: "b", ArchivePath: "/b", OriginalName: "b.mp4", SizeBytes: 1})
	if err != nil {
		t.Fatalf("InsertClip failed: %v", err)
	}
	stale, err := store.InsertClip(ctx, &catalog.Clip{SHA256: "c", ArchivePath: "/c", OriginalName: "c.mp4", SizeBytes: 1})
	if err != nil {
		t.Fatalf("InsertClip failed: %v", err)
	}

	if err := store.UpdateClipMetadata(ctx, extracted.ID, catalog.ClipMetadata{
		DurationSeconds: 60.0,
		Width:           1920,
		Height:          1080,
		FPS:             29.97,
		VideoCodec:      "h264",
		AudioCodec:      "aac",
		BitRate:         8_000_000,
		ProbeVersion:    2,
	}); err != nil {
		t.Fatalf("UpdateClipMetadata failed: %v", err)
	}
	if err := store.UpdateClipMetadata(ctx, stale.ID, catalog.ClipMetadata{DurationSeconds: 10, ProbeVersion: 1}); err != nil {
		t.Fatalf("UpdateClipMetadata failed: %v", err)
	}

	pending, err := store.ClipsNeedingProbe(ctx, 2)
	if err != nil {
		t.Fatalf("ClipsNeedingProbe failed: %v", err)
	}
	ids := make(map[int64]bool, len(pending))
	for _, c := range pending {
		ids[c.ID] = true
	}
	if !ids[fresh.ID] || !ids[stale.ID] {
		t.Fatalf("expected fresh and stale clips, got %v", ids)
	}
	if ids[extracted.ID] {
		t.Fatal("did not expect extracted clip at current version")
	}
}

func TestMarkClipProbeFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	clip, err := store.InsertClip(ctx, &catalog.Clip{SHA256: "a", ArchivePath: "/a", OriginalName: "a.mp4", SizeBytes: 1})
	if err != nil {
		t.Fatalf("InsertClip failed: %v", err)
	}

	if err := store.MarkClipProbeFailed(ctx, clip.ID, 1, "ffprobe exit 1"); err != nil {
		t.Fatalf("MarkClipProbeFailed failed: %v", err)
	}
	updated, err := store.GetClip(ctx, clip.ID)
	if err != nil {
		t.Fatalf("GetClip failed: %v", err)
	}
	if updated.MetadataStatus != catalog.MetadataFailed {
		t.Fatalf("expected failed metadata status, got %s", updated.MetadataStatus)
	}
	if updated.MetadataError != "ffprobe exit 1" {
		t.Fatalf("unexpected error message: %q", updated.MetadataError)
	}
}

func TestClipSourcesAccumulateAndReparent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	winner := testsupport.NewDevice(t, store, "card-1", "token-1")
	loser := testsupport.NewDevice(t, store, "", "token-2")

	clip, err := store.InsertClip(ctx, &catalog.Clip{SHA256: "a", ArchivePath: "/a", OriginalName: "a.mp4", SizeBytes: 1})
	if err != nil {
		t.Fatalf("InsertClip failed: %v", err)
	}

	if err := store.AddClipSource(ctx, clip.ID, winner.ID, "cont_rec/a.mp4"); err != nil {
		t.Fatalf("AddClipSource failed: %v", err)
	}
	// Duplicate source is ignored.
	if err := store.AddClipSource(ctx, clip.ID, winner.ID, "cont_rec/a.mp4"); err != nil {
		t.Fatalf("AddClipSource failed: %v", err)
	}
	if err := store.AddClipSource(ctx, clip.ID, loser.ID, "cont_rec/a.mp4"); err != nil {
		t.Fatalf("AddClipSource failed: %v", err)
	}
	if err := store.AddClipSource(ctx, clip.ID, loser.ID, "evt_rec/a.mp4"); err != nil {
		t.Fatalf("AddClipSource failed: %v", err)
	}

	sources, err := store.ClipSources(ctx, clip.ID)
	if err != nil {
		t.Fatalf("ClipSources failed: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("expected three sources, got %d", len(sources))
	}

	// Merging the loser into the winner drops the colliding row and moves the rest.
	moved, err := store.ReparentClipSources(ctx, loser.ID, winner.ID)
	if err != nil {
		t.Fatalf("ReparentClipSources failed: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected one source moved, got %d", moved)
	}

	sources, err = store.ClipSources(ctx, clip.ID)
	if err != nil {
		t.Fatalf("ClipSources failed: %v", err)
	}
	for _, src := range sources {
		if src.DeviceID != winner.ID {
			t.Fatalf("expected all sources on winner, found device %d", src.DeviceID)
		}
	}
	if len(sources) != 2 {
		t.Fatalf("expected two sources after merge, got %d", len(sources))
	}
}
