package thumbs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dashvault/internal/services"
	"dashvault/internal/testsupport"
	"dashvault/internal/thumbs"
)

// stubRunner pretends to be ffmpeg: it writes the output file named by the
// final argument and counts invocations.
func stubRunner(invocations *atomic.Int64, delay time.Duration, fail bool) thumbs.Runner {
	return func(ctx context.Context, binary string, args []string) error {
		invocations.Add(1)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if fail {
			return errors.New("encode blew up")
		}
		return os.WriteFile(args[len(args)-1], []byte("jpeg bytes"), 0o644)
	}
}

func TestPathIsDeterministicAndDimensionKeyed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := thumbs.NewCache(cfg, nil)

	first := cache.Path("/archive/2024/01/07/abc_FRONT.mp4")
	if first != cache.Path("/archive/2024/01/07/abc_FRONT.mp4") {
		t.Fatal("path must be deterministic")
	}
	if !strings.HasSuffix(first, ".jpg") {
		t.Fatalf("unexpected extension: %q", first)
	}
	if filepath.Dir(first) != cfg.Paths.ThumbnailDir {
		t.Fatalf("thumbnail outside cache dir: %q", first)
	}
	if first == cache.Path("/archive/2024/01/07/abc_REAR.mp4") {
		t.Fatal("different sources must map to different cache paths")
	}

	cfg.Thumbnails.Width = 640
	if first == cache.Path("/archive/2024/01/07/abc_FRONT.mp4") {
		t.Fatal("dimension change must alter the cache path")
	}
}

func TestEnsureGeneratesOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := thumbs.NewCache(cfg, nil)
	var invocations atomic.Int64
	cache.SetRunner(stubRunner(&invocations, 0, false))

	ctx := context.Background()
	path, ready, err := cache.Ensure(ctx, "/archive/clip.mp4")
	if err != nil || !ready {
		t.Fatalf("Ensure = (%v, %v)", ready, err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("thumbnail missing: %v", err)
	}

	if _, ready, err := cache.Ensure(ctx, "/archive/clip.mp4"); err != nil || !ready {
		t.Fatalf("cached Ensure = (%v, %v)", ready, err)
	}
	if invocations.Load() != 1 {
		t.Fatalf("expected 1 encode, got %d", invocations.Load())
	}
}

func TestEnsureCoalescesConcurrentRequests(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := thumbs.NewCache(cfg, nil)
	var invocations atomic.Int64
	cache.SetRunner(stubRunner(&invocations, 100*time.Millisecond, false))

	ctx := context.Background()
	var (
		wg        sync.WaitGroup
		readyCnt  atomic.Int64
		failedCnt atomic.Int64
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ready, err := cache.Ensure(ctx, "/archive/clip.mp4")
			if err != nil {
				failedCnt.Add(1)
				return
			}
			if ready {
				readyCnt.Add(1)
			}
		}()
	}
	wg.Wait()

	if failedCnt.Load() != 0 {
		t.Fatalf("%d requests failed", failedCnt.Load())
	}
	if invocations.Load() != 1 {
		t.Fatalf("expected exactly 1 encode for coalesced requests, got %d", invocations.Load())
	}
	if readyCnt.Load() < 1 {
		t.Fatal("at least the encoding request must observe ready")
	}

	// Everyone converges on the cached result afterwards.
	if _, ready, err := cache.Ensure(ctx, "/archive/clip.mp4"); err != nil || !ready {
		t.Fatalf("post-race Ensure = (%v, %v)", ready, err)
	}
	if invocations.Load() != 1 {
		t.Fatalf("cache hit ran a redundant encode, total %d", invocations.Load())
	}
}

func TestEnsureSurfacesEncodeFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := thumbs.NewCache(cfg, nil)
	var invocations atomic.Int64
	cache.SetRunner(stubRunner(&invocations, 0, true))

	_, _, err := cache.Ensure(context.Background(), "/archive/clip.mp4")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if entries, _ := os.ReadDir(cfg.Paths.ThumbnailDir); len(entries) != 0 {
		t.Fatalf("failed encode left %d files behind", len(entries))
	}
}

func TestPoolGeneratesInBackground(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := thumbs.NewCache(cfg, nil)
	var invocations atomic.Int64
	cache.SetRunner(stubRunner(&invocations, 0, false))

	pool := thumbs.NewPool(cache, 2, 8, nil)
	defer pool.Stop()

	if !pool.Submit("/archive/clip.mp4") {
		t.Fatal("submit rejected with empty queue")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(cache.Path("/archive/clip.mp4")); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("thumbnail never appeared")
}

func TestPoolRejectsWhenStopped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := thumbs.NewCache(cfg, nil)
	var invocations atomic.Int64
	cache.SetRunner(stubRunner(&invocations, 0, false))

	pool := thumbs.NewPool(cache, 1, 1, nil)
	pool.Stop()
	if pool.Submit("/archive/clip.mp4") {
		t.Fatal("stopped pool accepted work")
	}
}
