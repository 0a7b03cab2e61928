package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"dashvault/internal/api"
	"dashvault/internal/catalog"
	"dashvault/internal/config"
	"dashvault/internal/logging"
	"dashvault/internal/preflight"
	"dashvault/internal/scheduler"
	"dashvault/internal/staging"
	"dashvault/internal/thumbs"
	"dashvault/internal/volumes"
)

// staleStagingAge is how old an orphaned staged file must be before the
// startup sweep removes it. Generous so a slow in-flight import from a
// previous run is never deleted out from under a restarted daemon.
const staleStagingAge = 24 * time.Hour

// Daemon coordinates the scheduler, volume monitor, thumbnail pool, and HTTP
// API, and enforces single-instance execution via a file lock.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *catalog.Store
	scheduler  *scheduler.Scheduler
	volumes    *volumes.Cache
	monitor    *volumes.Monitor
	thumbCache *thumbs.Cache
	thumbPool  *thumbs.Pool
	catalogSvc *api.CatalogService
	apiServer  *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger, sched *scheduler.Scheduler, volCache *volumes.Cache, thumbCache *thumbs.Cache) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || sched == nil {
		return nil, errors.New("daemon requires config, store, logger, and scheduler")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "dashvaultd.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		scheduler:  sched,
		volumes:    volCache,
		thumbCache: thumbCache,
		catalogSvc: api.NewCatalogService(store),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}

	if cfg.Scanner.AutoScanOnInsert {
		d.monitor = volumes.NewMonitor(logger, volCache, d.onVolumeInserted)
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiServer = srv
	return d, nil
}

// Start acquires the daemon lock and launches background processing.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another dashvault daemon instance is already running")
	}

	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if result.Passed {
			continue
		}
		d.logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported path or permissions"),
			logging.String(logging.FieldImpact, "imports touching this path will fail"),
		)
	}

	staging.CleanStale(d.cfg.Paths.StagingDir, staleStagingAge, d.logger)

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.scheduler.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start scheduler: %w", err)
	}
	d.cancel = cancel

	if d.thumbCache != nil {
		d.thumbPool = thumbs.NewPool(d.thumbCache, d.cfg.Thumbnails.PoolWorkers, d.cfg.Thumbnails.QueueSize, d.logger)
	}

	if d.monitor != nil {
		if err := d.monitor.Start(runCtx); err != nil {
			d.logger.Warn("volume monitor start failed", logging.Error(err))
		}
	}

	if d.apiServer != nil {
		if err := d.apiServer.start(runCtx); err != nil {
			d.stopComponents()
			_ = d.lock.Unlock()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("dashvault daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.stopComponents()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("dashvault daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
}

func (d *Daemon) stopComponents() {
	if d.apiServer != nil {
		d.apiServer.stop()
	}
	if d.monitor != nil {
		d.monitor.Stop()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.scheduler.Stop()
	if d.thumbPool != nil {
		d.thumbPool.Stop()
		d.thumbPool = nil
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr returns the bound API listener address, or empty when the API is
// disabled or not started.
func (d *Daemon) APIAddr() string {
	if d.apiServer == nil {
		return ""
	}
	return d.apiServer.addr()
}

// TriggerScan enqueues a card scan. An empty mountpoint scans every mounted
// dashcam card.
func (d *Daemon) TriggerScan(ctx context.Context, mountpoint string) (*catalog.Job, error) {
	var payload any
	if mountpoint != "" {
		payload = catalog.ScanPayload{Mountpoint: mountpoint}
	}
	job, err := d.store.Enqueue(ctx, catalog.JobCardScan, payload)
	if err != nil {
		return nil, fmt.Errorf("enqueue scan: %w", err)
	}
	d.logger.Info("card scan queued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("mountpoint", mountpoint),
	)
	return job, nil
}

// TriggerImport enqueues an import batch for a device. An empty fileIDs
// slice imports every pending file on the device.
func (d *Daemon) TriggerImport(ctx context.Context, deviceID int64, fileIDs []int64) (*catalog.Job, error) {
	device, err := d.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, fmt.Errorf("device %d not found", deviceID)
	}
	if len(fileIDs) == 0 {
		files, err := d.store.ListDeviceFiles(ctx, deviceID, catalog.ImportPending, catalog.ImportFailed)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			fileIDs = append(fileIDs, file.ID)
		}
	}
	if len(fileIDs) == 0 {
		return nil, fmt.Errorf("device %d has no files awaiting import", deviceID)
	}
	job, err := d.store.CreateImportBatch(ctx, deviceID, fileIDs)
	if err != nil {
		return nil, fmt.Errorf("enqueue import: %w", err)
	}
	d.logger.Info("import batch queued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int64("device_id", deviceID),
		logging.Int("files", len(fileIDs)),
	)
	return job, nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		DatabasePath:   d.store.Path(),
		LockFilePath:   d.lockPath,
		MonitorRunning: d.monitor.Running(),
	}
	if stats, err := d.catalogSvc.JobStats(ctx); err == nil {
		status.JobStats = stats
	}
	if clips, devices, err := d.catalogSvc.Counts(ctx); err == nil {
		status.ClipCount = clips
		status.DeviceCount = devices
	}
	status.Dependencies = api.FromDependencyStatuses(preflight.CheckSystemDeps(d.cfg))
	return status
}

// onVolumeInserted reacts to a removable volume appearing. The kernel event
// usually precedes the desktop automount, so rather than scanning the device
// node directly we enqueue a full scan; the handler enumerates whatever is
// mounted by the time it runs, and retries resolve anything that is not.
func (d *Daemon) onVolumeInserted(ctx context.Context, device string) {
	active, err := d.store.ActiveJobByType(ctx, catalog.JobCardScan)
	if err != nil {
		d.logger.Warn("auto-scan lookup failed", logging.Error(err))
		return
	}
	if active != nil {
		d.logger.Debug("card scan already active, skipping auto-scan",
			logging.Int64(logging.FieldJobID, active.ID),
			logging.String(logging.FieldDevice, device),
		)
		return
	}
	job, err := d.store.Enqueue(ctx, catalog.JobCardScan, nil)
	if err != nil {
		d.logger.Warn("auto-scan enqueue failed",
			logging.Error(err),
			logging.String(logging.FieldDevice, device),
			logging.String(logging.FieldEventType, "auto_scan_failed"),
			logging.String(logging.FieldErrorHint, "trigger a scan manually"),
			logging.String(logging.FieldImpact, "inserted card will not be scanned automatically"),
		)
		return
	}
	d.logger.Info("card scan queued for inserted volume",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldDevice, device),
		logging.String(logging.FieldEventType, "auto_scan_queued"),
	)
}
