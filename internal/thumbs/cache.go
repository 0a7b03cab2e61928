package thumbs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"dashvault/internal/config"
	"dashvault/internal/logging"
	"dashvault/internal/services"
)

// Runner executes an external encode command. Tests substitute it to avoid
// spawning real ffmpeg processes.
type Runner func(ctx context.Context, binary string, args []string) error

func execRunner(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Cache produces thumbnails on demand and memoizes them on disk.
type Cache struct {
	cfg    *config.Config
	logger *slog.Logger
	runner Runner
	sem    *semaphore.Weighted

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewCache(cfg *config.Config, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	limit := int64(cfg.Thumbnails.MaxConcurrent)
	if limit <= 0 {
		limit = 1
	}
	return &Cache{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "thumbs"),
		runner:   execRunner,
		sem:      semaphore.NewWeighted(limit),
		inflight: make(map[string]struct{}),
	}
}

// SetRunner replaces the encode runner. Test hook.
func (c *Cache) SetRunner(runner Runner) {
	c.runner = runner
}

// Path returns the deterministic cache location for a source file at the
// configured dimensions. No catalog access and no filesystem access.
func (c *Cache) Path(sourcePath string) string {
	key := fmt.Sprintf("%s_%dx%d", sourcePath, c.cfg.Thumbnails.Width, c.cfg.Thumbnails.Height)
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.cfg.Paths.ThumbnailDir, hex.EncodeToString(sum[:])[:16]+".jpg")
}

// Ensure makes the thumbnail for sourcePath exist, returning its cache path
// and whether it is ready. A false ready with nil error means another request
// is already encoding the same output; callers retry shortly and find the
// file. Existence is checked both before and after acquiring the concurrency
// slot so a finished racing encode is never repeated.
func (c *Cache) Ensure(ctx context.Context, sourcePath string) (string, bool, error) {
	outPath := c.Path(sourcePath)
	if fileExists(outPath) {
		return outPath, true, nil
	}

	c.mu.Lock()
	if _, busy := c.inflight[outPath]; busy {
		c.mu.Unlock()
		return outPath, false, nil
	}
	c.inflight[outPath] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inflight, outPath)
		c.mu.Unlock()
	}()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return outPath, false, err
	}
	defer c.sem.Release(1)

	if fileExists(outPath) {
		return outPath, true, nil
	}

	if err := c.encode(ctx, sourcePath, outPath); err != nil {
		return outPath, false, err
	}
	return outPath, true, nil
}

func (c *Cache) encode(ctx context.Context, sourcePath, outPath string) error {
	encodeCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.Thumbnails.TimeoutSeconds)*time.Second)
	defer cancel()

	// Encode into a temp name and rename so a concurrent existence check
	// never observes a half-written file.
	tmpPath := outPath + ".tmp"
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%d", c.cfg.Thumbnails.TimestampSeconds),
		"-i", sourcePath,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", c.cfg.Thumbnails.Width, c.cfg.Thumbnails.Height),
		"-q:v", fmt.Sprintf("%d", c.cfg.Thumbnails.Quality),
		"-f", "image2",
		tmpPath,
	}
	if err := c.runner(encodeCtx, c.cfg.FFmpegBinary(), args); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrExternalTool, "thumbs", "encode", "thumbnail for "+sourcePath, err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "thumbs", "encode", "publishing thumbnail", err)
	}

	c.logger.Debug("generated thumbnail",
		logging.String("source", sourcePath),
		logging.String("thumbnail", outPath),
	)
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
