package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"dashvault/internal/catalog"
	"dashvault/internal/config"
	"dashvault/internal/identity"
	"dashvault/internal/logging"
	"dashvault/internal/scanner"
	"dashvault/internal/services"
	"dashvault/internal/volumes"
)

// ScanHandler processes card_scan jobs: it finds mounted dashcam cards,
// reconciles their identity, refreshes the file inventory, and chains the
// follow-up import and thumbnail batches.
type ScanHandler struct {
	store      *catalog.Store
	cfg        *config.Config
	volumes    *volumes.Cache
	reconciler *identity.Reconciler
	logger     *slog.Logger
}

func NewScanHandler(store *catalog.Store, cfg *config.Config, cache *volumes.Cache, reconciler *identity.Reconciler, logger *slog.Logger) *ScanHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ScanHandler{
		store:      store,
		cfg:        cfg,
		volumes:    cache,
		reconciler: reconciler,
		logger:     logging.NewComponentLogger(logger, "scan"),
	}
}

// ScanResult summarizes one card_scan run.
type ScanResult struct {
	CardsScanned int     `json:"cards_scanned"`
	FilesSeen    int     `json:"files_seen"`
	FilesPending int     `json:"files_pending"`
	ImportJobs   []int64 `json:"import_jobs,omitempty"`
}

func (h *ScanHandler) Execute(ctx context.Context, job *catalog.Job) (string, error) {
	var payload catalog.ScanPayload
	if job.PayloadJSON != "" {
		if err := catalog.DecodePayload(job.PayloadJSON, &payload); err != nil {
			return "", services.Wrap(services.ErrValidation, "scan", "payload", "malformed scan payload", err)
		}
	}

	targets, err := h.resolveTargets(ctx, payload)
	if err != nil {
		return "", err
	}
	if len(targets) == 0 {
		if payload.Mountpoint != "" {
			return "", services.Wrap(services.ErrUnavailable, "scan", "resolve", "no dashcam card at "+payload.Mountpoint, nil)
		}
		h.logger.Info("no dashcam cards mounted", logging.String(logging.FieldEventType, "scan_empty"))
		return encodeResult(ScanResult{})
	}

	result := ScanResult{}
	for i, target := range targets {
		// Progress is advisory; a dropped update is corrected by the next one.
		_ = h.store.UpdateProgress(ctx, job.ID,
			float64(i)/float64(len(targets))*100,
			fmt.Sprintf("Scanning %s", target.mountpoint))
		scanned, err := h.scanCard(ctx, target)
		if err != nil {
			return "", err
		}
		result.CardsScanned++
		result.FilesSeen += scanned.FilesSeen
		result.FilesPending += scanned.FilesPending
		result.ImportJobs = append(result.ImportJobs, scanned.ImportJobs...)
	}
	return encodeResult(result)
}

type scanTarget struct {
	mountpoint string
	volumeUID  string
	label      string
}

func (h *ScanHandler) resolveTargets(ctx context.Context, payload catalog.ScanPayload) ([]scanTarget, error) {
	vols, err := h.volumes.Snapshot(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "scan", "enumerate", "listing removable volumes", err)
	}

	if payload.Mountpoint != "" {
		if !scanner.IsDashcamCard(payload.Mountpoint) {
			return nil, nil
		}
		target := scanTarget{mountpoint: payload.Mountpoint, volumeUID: payload.VolumeUID, label: payload.Label}
		if target.volumeUID == "" {
			if vol, err := volumes.FindByMountpoint(vols, payload.Mountpoint); err == nil {
				target.volumeUID = vol.UID()
				if target.label == "" {
					target.label = vol.Label
				}
			}
		}
		if target.volumeUID == "" {
			// Unenumerable mounts (manual bind mounts, tests) still scan;
			// identity then rests on the marker file alone.
			target.volumeUID = payload.Mountpoint
		}
		return []scanTarget{target}, nil
	}

	var targets []scanTarget
	for _, vol := range vols {
		if !vol.Removable || !h.underMountRoot(vol.Mountpoint) || !scanner.IsDashcamCard(vol.Mountpoint) {
			continue
		}
		targets = append(targets, scanTarget{mountpoint: vol.Mountpoint, volumeUID: vol.UID(), label: vol.Label})
	}
	return targets, nil
}

func (h *ScanHandler) underMountRoot(mountpoint string) bool {
	for _, root := range h.cfg.Scanner.MountRoots {
		root = filepath.Clean(root)
		if mountpoint == root || strings.HasPrefix(mountpoint, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (h *ScanHandler) scanCard(ctx context.Context, target scanTarget) (ScanResult, error) {
	device, created, err := h.reconciler.Register(ctx, target.mountpoint, target.volumeUID, target.label)
	if err != nil {
		return ScanResult{}, err
	}

	scanStart := time.Now().UTC()
	files, err := scanner.Scan(target.mountpoint)
	if err != nil {
		return ScanResult{}, err
	}

	for _, file := range files {
		if _, err := h.store.UpsertDeviceFile(ctx, &catalog.DeviceFile{
			DeviceID:    device.ID,
			RelPath:     file.RelPath,
			SizeBytes:   file.SizeBytes,
			ModTime:     file.ModTime,
			Fingerprint: file.Fingerprint,
			Camera:      file.Camera,
			Mode:        file.Mode,
			RecordedAt:  file.RecordedAt,
		}); err != nil {
			return ScanResult{}, err
		}
	}

	missing, err := h.store.MarkFilesMissing(ctx, device.ID, scanStart)
	if err != nil {
		return ScanResult{}, err
	}

	// A record created by this scan may really be a legacy card that never
	// got a marker file; fold it into the older record when the fingerprints
	// say so.
	if created {
		merged, didMerge, err := h.reconciler.MaybeMergeLegacy(ctx, device)
		if err != nil {
			return ScanResult{}, err
		}
		if didMerge {
			device = merged
		}
	}

	pending, err := h.store.ListDeviceFiles(ctx, device.ID, catalog.ImportPending)
	if err != nil {
		return ScanResult{}, err
	}

	result := ScanResult{FilesSeen: len(files), FilesPending: len(pending)}
	if len(pending) > 0 {
		fileIDs := make([]int64, 0, len(pending))
		for _, file := range pending {
			fileIDs = append(fileIDs, file.ID)
		}
		importJob, err := h.store.CreateImportBatch(ctx, device.ID, fileIDs)
		if err != nil {
			return ScanResult{}, err
		}
		result.ImportJobs = append(result.ImportJobs, importJob.ID)
	}

	if _, err := h.store.CreateDeviceThumbBatch(ctx, device.ID, target.mountpoint); err != nil {
		return ScanResult{}, err
	}

	h.logger.Info("card scanned",
		logging.Int64("device_id", device.ID),
		logging.String(logging.FieldDevice, target.mountpoint),
		logging.Int("files_seen", len(files)),
		logging.Int("files_pending", len(pending)),
		logging.Int64("files_missing", missing),
		logging.String(logging.FieldEventType, "card_scanned"),
	)
	return result, nil
}

func encodeResult(result any) (string, error) {
	encoded, err := catalog.EncodePayload(result)
	if err != nil {
		return "", fmt.Errorf("encode scan result: %w", err)
	}
	return encoded, nil
}
