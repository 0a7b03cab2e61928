package daemon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dashvault/internal/api"
	"dashvault/internal/catalog"
	"dashvault/internal/config"
	"dashvault/internal/daemon"
	"dashvault/internal/logging"
	"dashvault/internal/scheduler"
	"dashvault/internal/testsupport"
	"dashvault/internal/thumbs"
	"dashvault/internal/volumes"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Scanner.AutoScanOnInsert = false
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 0
	return cfg
}

func emptyVolumeCache() *volumes.Cache {
	return volumes.NewCache(time.Hour, func(ctx context.Context) ([]volumes.Volume, error) {
		return nil, nil
	})
}

func newTestDaemon(t *testing.T, cfg *config.Config, store *catalog.Store) *daemon.Daemon {
	t.Helper()
	logger := logging.NewNop()
	sched := scheduler.New(store, cfg, logger)
	sched.Register(catalog.JobCardScan, scheduler.HandlerFunc(func(ctx context.Context, job *catalog.Job) (string, error) {
		return "", nil
	}))
	cache := thumbs.NewCache(cfg, logger)
	d, err := daemon.New(cfg, store, logger, sched, emptyVolumeCache(), cache)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store)
	t.Cleanup(func() { d.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath == "" || status.DatabasePath == "" {
		t.Fatalf("expected populated status paths, got %+v", status)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockExcludesSecondInstance(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	first := newTestDaemon(t, cfg, store)
	t.Cleanup(func() { first.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}

	second := newTestDaemon(t, cfg, store)
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second daemon instance to fail to start")
	}
}

func TestDaemonTriggerImportValidation(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store)
	ctx := context.Background()

	if _, err := d.TriggerImport(ctx, 42, nil); err == nil {
		t.Fatal("expected error for unknown device")
	}

	device := testsupport.NewDevice(t, store, "card-1", "tok-1")
	if _, err := d.TriggerImport(ctx, device.ID, nil); err == nil {
		t.Fatal("expected error for device with no pending files")
	}

	file := testsupport.NewDeviceFile(t, store, device.ID, "cont_rec/a.mp4", "fp-a")
	job, err := d.TriggerImport(ctx, device.ID, nil)
	if err != nil {
		t.Fatalf("TriggerImport: %v", err)
	}
	var payload catalog.ImportPayload
	if err := catalog.DecodePayload(job.PayloadJSON, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.DeviceID != device.ID || len(payload.FileIDs) != 1 || payload.FileIDs[0] != file.ID {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestAPIStatusAndScan(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store)
	t.Cleanup(func() { d.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	base := "http://" + d.APIAddr()

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running status over API")
	}

	scanResp, err := http.Post(base+"/api/scan", "application/json", nil)
	if err != nil {
		t.Fatalf("POST scan: %v", err)
	}
	defer scanResp.Body.Close()
	if scanResp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", scanResp.StatusCode)
	}
	var jobResp api.JobResponse
	if err := json.NewDecoder(scanResp.Body).Decode(&jobResp); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if jobResp.Job.Type != string(catalog.JobCardScan) {
		t.Fatalf("unexpected job type %q", jobResp.Job.Type)
	}

	jobsResp, err := http.Get(base + "/api/jobs")
	if err != nil {
		t.Fatalf("GET jobs: %v", err)
	}
	defer jobsResp.Body.Close()
	var list api.JobListResponse
	if err := json.NewDecoder(jobsResp.Body).Decode(&list); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(list.Jobs) == 0 {
		t.Fatal("expected queued scan job in listing")
	}
}

func TestAPIBearerAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.APIToken = "secret-token"
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store)
	t.Cleanup(func() { d.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	base := "http://" + d.APIAddr()

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, base+"/api/status", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer secret-token")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET status with token: %v", err)
	}
	authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", authed.StatusCode)
	}
}

func TestAPIClipThumbnailGeneratesInBackground(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	logger := logging.NewNop()
	sched := scheduler.New(store, cfg, logger)
	sched.Register(catalog.JobCardScan, scheduler.HandlerFunc(func(ctx context.Context, job *catalog.Job) (string, error) {
		return "", nil
	}))
	cache := thumbs.NewCache(cfg, logger)
	cache.SetRunner(func(ctx context.Context, name string, args []string) error {
		return os.WriteFile(args[len(args)-1], []byte("jpeg-bytes"), 0o644)
	})
	d, err := daemon.New(cfg, store, logger, sched, emptyVolumeCache(), cache)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clip, err := store.InsertClip(ctx, &catalog.Clip{
		SHA256:       "feedc0de",
		ArchivePath:  "2024/01/07/feedc0de_front.mp4",
		OriginalName: "front.mp4",
		SizeBytes:    64,
	})
	if err != nil {
		t.Fatalf("insert clip: %v", err)
	}
	archived := filepath.Join(cfg.Paths.ArchiveDir, "2024", "01", "07", "feedc0de_front.mp4")
	testsupport.WriteFile(t, archived, 64)

	url := fmt.Sprintf("http://%s/api/clips/%d/thumbnail", d.APIAddr(), clip.ID)

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET thumbnail: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 on first request, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on 202")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("GET thumbnail retry: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("thumbnail never became ready, last status %d", resp.StatusCode)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestAPIClipStreamSupportsRange(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store)
	t.Cleanup(func() { d.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	content := []byte("0123456789abcdefghij")
	clip, err := store.InsertClip(ctx, &catalog.Clip{
		SHA256:       "cafebabe",
		ArchivePath:  "2024/01/07/cafebabe_front.mp4",
		OriginalName: "front.mp4",
		SizeBytes:    int64(len(content)),
	})
	if err != nil {
		t.Fatalf("insert clip: %v", err)
	}
	archived := filepath.Join(cfg.Paths.ArchiveDir, "2024", "01", "07", "cafebabe_front.mp4")
	if err := os.MkdirAll(filepath.Dir(archived), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(archived, content, 0o644); err != nil {
		t.Fatal(err)
	}

	url := fmt.Sprintf("http://%s/api/clips/%d/stream", d.APIAddr(), clip.ID)

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if string(body) != string(content) {
		t.Fatalf("full body mismatch: %q", body)
	}
	if resp.Header.Get("Accept-Ranges") != "bytes" {
		t.Fatalf("expected Accept-Ranges: bytes, got %q", resp.Header.Get("Accept-Ranges"))
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Range", "bytes=4-9")
	partial, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET range: %v", err)
	}
	chunk, err := io.ReadAll(partial.Body)
	partial.Body.Close()
	if err != nil {
		t.Fatalf("read range body: %v", err)
	}
	if partial.StatusCode != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", partial.StatusCode)
	}
	if string(chunk) != "456789" {
		t.Fatalf("range body = %q, want 456789", chunk)
	}

	// A clip whose archive file is gone is a 404, not a zero-byte stream.
	missing, err := store.InsertClip(ctx, &catalog.Clip{
		SHA256:       "deadbeef",
		ArchivePath:  "2024/01/08/deadbeef_front.mp4",
		OriginalName: "front.mp4",
		SizeBytes:    10,
	})
	if err != nil {
		t.Fatalf("insert clip: %v", err)
	}
	gone, err := http.Get(fmt.Sprintf("http://%s/api/clips/%d/stream", d.APIAddr(), missing.ID))
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	gone.Body.Close()
	if gone.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing archive, got %d", gone.StatusCode)
	}
}

func TestAPIUnknownJobReturns404(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store)
	t.Cleanup(func() { d.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get("http://" + d.APIAddr() + "/api/jobs/9999")
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
