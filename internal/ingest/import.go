package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dashvault/internal/catalog"
	"dashvault/internal/config"
	"dashvault/internal/identity"
	"dashvault/internal/importer"
	"dashvault/internal/logging"
	"dashvault/internal/services"
	"dashvault/internal/volumes"
)

// ImportHandler processes import_batch jobs. Item failures are collected
// into the batch outcome; only a structural problem (bad payload, unknown
// device) or an unmounted card fails the whole job.
type ImportHandler struct {
	store    *catalog.Store
	cfg      *config.Config
	volumes  *volumes.Cache
	importer *importer.Importer
	logger   *slog.Logger
}

func NewImportHandler(store *catalog.Store, cfg *config.Config, cache *volumes.Cache, imp *importer.Importer, logger *slog.Logger) *ImportHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ImportHandler{
		store:    store,
		cfg:      cfg,
		volumes:  cache,
		importer: imp,
		logger:   logging.NewComponentLogger(logger, "import"),
	}
}

func (h *ImportHandler) Execute(ctx context.Context, job *catalog.Job) (string, error) {
	var payload catalog.ImportPayload
	if err := catalog.DecodePayload(job.PayloadJSON, &payload); err != nil {
		return "", services.Wrap(services.ErrValidation, "import", "payload", "malformed import payload", err)
	}
	if payload.DeviceID == 0 || len(payload.FileIDs) == 0 {
		return "", services.Wrap(services.ErrValidation, "import", "payload", "import payload missing device or files", nil)
	}

	device, err := h.store.GetDevice(ctx, payload.DeviceID)
	if err != nil {
		return "", err
	}
	if device == nil {
		return "", services.Wrap(services.ErrNotFound, "import", "device", fmt.Sprintf("device %d not in catalog", payload.DeviceID), nil)
	}

	mountpoint, err := h.resolveMountpoint(ctx, device)
	if err != nil {
		return "", err
	}

	outcome := catalog.BatchOutcome{}
	var newClipIDs []int64
	progress := newProgressTracker(h.store, job.ID, len(payload.FileIDs), h.cfg.Workflow.ProgressCommitEvery, &outcome)

	for _, fileID := range payload.FileIDs {
		file, err := h.store.GetDeviceFile(ctx, fileID)
		if err != nil {
			return "", err
		}
		if file == nil || file.DeviceID != device.ID {
			outcome.Skipped = append(outcome.Skipped, fileID)
			progress.advance(ctx, "Importing recordings")
			continue
		}
		if file.ImportState == catalog.ImportImported || file.ImportState == catalog.ImportDuplicate {
			outcome.Skipped = append(outcome.Skipped, fileID)
			progress.advance(ctx, "Importing recordings")
			continue
		}

		result, err := h.importer.ImportFile(ctx, device, file, mountpoint)
		if err != nil {
			outcome.Failed = append(outcome.Failed, catalog.ItemFailure{ID: fileID, Error: catalog.TruncateError(err.Error())})
			if setErr := h.store.SetFileFailed(ctx, fileID, err.Error()); setErr != nil {
				return "", setErr
			}
			h.logger.Warn("file import failed",
				logging.Int64("file_id", fileID),
				logging.String("rel_path", file.RelPath),
				logging.Error(err),
				logging.String(logging.FieldEventType, "import_item_failed"),
			)
			progress.advance(ctx, "Importing recordings")
			continue
		}

		outcome.Completed = append(outcome.Completed, fileID)
		if !result.Duplicate {
			newClipIDs = append(newClipIDs, result.Clip.ID)
		}
		progress.advance(ctx, "Importing recordings")
	}

	message := fmt.Sprintf("Imported %d of %d files", len(outcome.Completed), len(payload.FileIDs))
	if len(outcome.Failed) > 0 {
		message = fmt.Sprintf("%s, %d failed", message, len(outcome.Failed))
	}
	progress.flush(ctx, message)

	// Fresh clips need metadata; chain the probe batch before finishing so a
	// crash after this point cannot lose it.
	if len(newClipIDs) > 0 {
		if _, err := h.store.CreateProbeBatch(ctx, newClipIDs); err != nil {
			return "", err
		}
	}

	h.logger.Info("import batch finished",
		logging.Int64("device_id", device.ID),
		logging.Int("completed", len(outcome.Completed)),
		logging.Int("failed", len(outcome.Failed)),
		logging.Int("skipped", len(outcome.Skipped)),
		logging.String(logging.FieldEventType, "import_batch_finished"),
	)
	return catalog.EncodeOutcome(outcome)
}

// resolveMountpoint finds where the device's card is currently mounted:
// first by volume identifier against the enumerated volumes, then by marker
// file under the configured mount roots. A card that is not mounted is a
// retry-later condition, not a failure.
func (h *ImportHandler) resolveMountpoint(ctx context.Context, device *catalog.Device) (string, error) {
	if device.VolumeUID != "" {
		if vols, err := h.volumes.Snapshot(ctx); err == nil {
			for _, vol := range vols {
				if vol.UID() == device.VolumeUID {
					return vol.Mountpoint, nil
				}
			}
		}
		if info, err := os.Stat(device.VolumeUID); err == nil && info.IsDir() {
			// Volume UID falls back to the mountpoint for unenumerable
			// mounts; honor it when it still exists.
			return device.VolumeUID, nil
		}
	}

	if device.CardID != "" {
		for _, root := range h.cfg.Scanner.MountRoots {
			entries, err := os.ReadDir(root)
			if err != nil {
				continue
			}
			for _, entry := range entries {
				if !entry.IsDir() {
					continue
				}
				candidate := filepath.Join(root, entry.Name())
				if cardID, ok := identity.ReadMarker(candidate); ok && cardID == device.CardID {
					return candidate, nil
				}
			}
		}
	}
	return "", services.Wrap(services.ErrUnavailable, "import", "mount", "card not currently mounted; will retry when reinserted", nil)
}
