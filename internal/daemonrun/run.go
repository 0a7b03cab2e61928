// Package daemonrun assembles and runs the dashvault daemon process: logger,
// catalog store, job handlers, scheduler, and daemon lifecycle, terminating
// on SIGINT/SIGTERM.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"dashvault/internal/catalog"
	"dashvault/internal/config"
	"dashvault/internal/daemon"
	"dashvault/internal/identity"
	"dashvault/internal/importer"
	"dashvault/internal/ingest"
	"dashvault/internal/logging"
	"dashvault/internal/prober"
	"dashvault/internal/scheduler"
	"dashvault/internal/thumbs"
	"dashvault/internal/volumes"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides the configured log level when non-empty.
	LogLevel string
}

// Run starts the dashvault daemon runtime loop and blocks until the context
// is canceled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "dashvaultd.log")
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "dashvaultd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open catalog store", logging.Error(err))
		return err
	}
	defer store.Close()

	volCache := volumes.NewCache(
		time.Duration(cfg.Scanner.VolumeCacheTTL)*time.Second,
		func(ctx context.Context) ([]volumes.Volume, error) {
			return volumes.List(ctx, cfg.LsblkBinary(), 10*time.Second)
		},
	)

	thumbCache := thumbs.NewCache(cfg, logger)
	sched := buildScheduler(cfg, store, logger, volCache, thumbCache)

	d, err := daemon.New(cfg, store, logger, sched, volCache, thumbCache)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration, lock file, and catalog access"),
			logging.String(logging.FieldImpact, "daemon is not processing jobs"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("dashvault daemon shutting down")
	return nil
}

func buildScheduler(cfg *config.Config, store *catalog.Store, logger *slog.Logger, volCache *volumes.Cache, thumbCache *thumbs.Cache) *scheduler.Scheduler {
	reconciler := identity.NewReconciler(store, cfg, logger)
	imp := importer.New(store, cfg, logger)
	prb := prober.New(store, cfg, logger)

	sched := scheduler.New(store, cfg, logger)
	sched.Register(catalog.JobCardScan, ingest.NewScanHandler(store, cfg, volCache, reconciler, logger))
	sched.Register(catalog.JobImportBatch, ingest.NewImportHandler(store, cfg, volCache, imp, logger))
	sched.Register(catalog.JobProbeBatch, ingest.NewProbeBatchHandler(store, cfg, prb, logger))
	sched.Register(catalog.JobProbeSingle, ingest.NewProbeSingleHandler(store, prb))
	sched.Register(catalog.JobThumbBatch, ingest.NewThumbBatchHandler(store, cfg, thumbCache, logger))
	sched.Register(catalog.JobDeviceThumbnail, ingest.NewDeviceThumbHandler(store, cfg, thumbCache, logger))
	return sched
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
