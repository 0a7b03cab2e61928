package prober_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"dashvault/internal/catalog"
	"dashvault/internal/prober"
	"dashvault/internal/services"
	"dashvault/internal/testsupport"
)

const ffprobeJSON = `#!/bin/sh
cat <<'EOF'
{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "video",
      "width": 1920,
      "height": 1080,
      "r_frame_rate": "30000/1001",
      "side_data_list": [{"rotation": -90}]
    },
    {
      "index": 1,
      "codec_name": "aac",
      "codec_type": "audio",
      "channels": 2
    }
  ],
  "format": {
    "duration": "60.500000",
    "size": "52428800",
    "bit_rate": "6930000"
  }
}
EOF
`

func newClip(t *testing.T, store *catalog.Store) *catalog.Clip {
	t.Helper()
	recorded := time.Date(2024, 1, 7, 12, 30, 45, 0, time.UTC)
	clip, err := store.InsertClip(context.Background(), &catalog.Clip{
		SHA256:       "deadbeef" + t.Name(),
		ArchivePath:  "2024/01/07/deadbeef_FRONT.mp4",
		OriginalName: "FRONT.mp4",
		SizeBytes:    52428800,
		Camera:       "front",
		Mode:         "continuous",
		RecordedAt:   &recorded,
	})
	if err != nil {
		t.Fatal(err)
	}
	return clip
}

func TestProbeClipExtractsMetadata(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBinaryScript("ffprobe", ffprobeJSON))
	store := testsupport.MustOpenStore(t, cfg)
	clip := newClip(t, store)

	p := prober.New(store, cfg, nil)
	if err := p.ProbeClip(context.Background(), clip); err != nil {
		t.Fatalf("ProbeClip failed: %v", err)
	}

	refreshed, err := store.GetClip(context.Background(), clip.ID)
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.MetadataStatus != catalog.MetadataExtracted {
		t.Fatalf("status = %q, want extracted", refreshed.MetadataStatus)
	}
	if refreshed.DurationSeconds != 60.5 {
		t.Fatalf("duration = %v", refreshed.DurationSeconds)
	}
	if refreshed.Width != 1920 || refreshed.Height != 1080 {
		t.Fatalf("resolution = %dx%d", refreshed.Width, refreshed.Height)
	}
	if refreshed.FPS < 29.96 || refreshed.FPS > 29.98 {
		t.Fatalf("fps = %v", refreshed.FPS)
	}
	if refreshed.VideoCodec != "h264" || refreshed.AudioCodec != "aac" {
		t.Fatalf("codecs = %q/%q", refreshed.VideoCodec, refreshed.AudioCodec)
	}
	if refreshed.Rotation != 270 {
		t.Fatalf("rotation = %d, want 270", refreshed.Rotation)
	}
	if refreshed.ProbeVersion != cfg.Probe.Version {
		t.Fatalf("probe version = %d, want %d", refreshed.ProbeVersion, cfg.Probe.Version)
	}
	if refreshed.ProbeOutput == "" {
		t.Fatal("expected raw probe output to be retained")
	}
}

func TestProbeClipMarksPartialWithoutVideoStream(t *testing.T) {
	script := "#!/bin/sh\necho '{\"streams\": [], \"format\": {\"duration\": \"10.0\"}}'\n"
	cfg := testsupport.NewConfig(t, testsupport.WithBinaryScript("ffprobe", script))
	store := testsupport.MustOpenStore(t, cfg)
	clip := newClip(t, store)

	p := prober.New(store, cfg, nil)
	if err := p.ProbeClip(context.Background(), clip); err != nil {
		t.Fatalf("ProbeClip failed: %v", err)
	}

	refreshed, err := store.GetClip(context.Background(), clip.ID)
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.MetadataStatus != catalog.MetadataPartial {
		t.Fatalf("status = %q, want partial", refreshed.MetadataStatus)
	}
	if refreshed.DurationSeconds != 10 {
		t.Fatalf("duration = %v", refreshed.DurationSeconds)
	}
}

func TestProbeClipRecordsFailure(t *testing.T) {
	script := "#!/bin/sh\necho 'moov atom not found' >&2\nexit 1\n"
	cfg := testsupport.NewConfig(t, testsupport.WithBinaryScript("ffprobe", script))
	store := testsupport.MustOpenStore(t, cfg)
	clip := newClip(t, store)

	p := prober.New(store, cfg, nil)
	err := p.ProbeClip(context.Background(), clip)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}

	refreshed, getErr := store.GetClip(context.Background(), clip.ID)
	if getErr != nil {
		t.Fatal(getErr)
	}
	if refreshed.MetadataStatus != catalog.MetadataFailed {
		t.Fatalf("status = %q, want failed", refreshed.MetadataStatus)
	}
	if refreshed.MetadataError == "" {
		t.Fatal("expected error message recorded")
	}
}

func TestProbeClipSkipsCurrentVersion(t *testing.T) {
	// The stub fails loudly; a skip must never invoke it.
	script := "#!/bin/sh\nexit 7\n"
	cfg := testsupport.NewConfig(t, testsupport.WithBinaryScript("ffprobe", script))
	store := testsupport.MustOpenStore(t, cfg)
	clip := newClip(t, store)

	if err := store.UpdateClipMetadata(context.Background(), clip.ID, catalog.ClipMetadata{
		DurationSeconds: 30,
		Width:           1920,
		Height:          1080,
		VideoCodec:      "h264",
		ProbeVersion:    cfg.Probe.Version,
	}); err != nil {
		t.Fatal(err)
	}
	refreshed, err := store.GetClip(context.Background(), clip.ID)
	if err != nil {
		t.Fatal(err)
	}

	p := prober.New(store, cfg, nil)
	if err := p.ProbeClip(context.Background(), refreshed); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
}
