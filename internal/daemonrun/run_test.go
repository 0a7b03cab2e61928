package daemonrun

import (
	"context"
	"testing"
	"time"

	"dashvault/internal/logging"
	"dashvault/internal/testsupport"
	"dashvault/internal/thumbs"
	"dashvault/internal/volumes"
)

func TestBuildSchedulerRegistersAllHandlers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	volCache := volumes.NewCache(time.Second, func(ctx context.Context) ([]volumes.Volume, error) {
		return nil, nil
	})
	thumbCache := thumbs.NewCache(cfg, logger)

	sched := buildScheduler(cfg, store, logger, volCache, thumbCache)
	if sched == nil {
		t.Fatal("expected scheduler")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("scheduler start: %v", err)
	}
	sched.Stop()
}

func TestWritePIDFile(t *testing.T) {
	if err := writePIDFile(""); err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}
	path := t.TempDir() + "/daemon.pid"
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
}
