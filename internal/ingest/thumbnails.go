package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"dashvault/internal/catalog"
	"dashvault/internal/config"
	"dashvault/internal/importer"
	"dashvault/internal/logging"
	"dashvault/internal/services"
	"dashvault/internal/thumbs"
)

// ThumbBatchHandler processes thumb_batch jobs: best-effort thumbnail
// generation for an explicit clip list, or every archived clip when the list
// is empty.
type ThumbBatchHandler struct {
	store  *catalog.Store
	cfg    *config.Config
	cache  *thumbs.Cache
	logger *slog.Logger
}

func NewThumbBatchHandler(store *catalog.Store, cfg *config.Config, cache *thumbs.Cache, logger *slog.Logger) *ThumbBatchHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ThumbBatchHandler{
		store:  store,
		cfg:    cfg,
		cache:  cache,
		logger: logging.NewComponentLogger(logger, "thumb-batch"),
	}
}

func (h *ThumbBatchHandler) Execute(ctx context.Context, job *catalog.Job) (string, error) {
	var payload catalog.ThumbPayload
	if job.PayloadJSON != "" {
		if err := catalog.DecodePayload(job.PayloadJSON, &payload); err != nil {
			return "", services.Wrap(services.ErrValidation, "thumbs", "payload", "malformed thumbnail payload", err)
		}
	}

	clipIDs := payload.ClipIDs
	if len(clipIDs) == 0 {
		clips, err := h.store.ListClips(ctx, 0)
		if err != nil {
			return "", err
		}
		for _, clip := range clips {
			clipIDs = append(clipIDs, clip.ID)
		}
	}

	outcome, err := generateForClips(ctx, h.store, h.cfg, h.cache, job, clipIDs)
	if err != nil {
		return "", err
	}
	return catalog.EncodeOutcome(outcome)
}

// DeviceThumbHandler processes thumb_device_batch jobs: thumbnails for every
// clip imported from one card. Each scan supersedes the previous queued
// batch for the card, so the handler always reflects the latest inventory.
type DeviceThumbHandler struct {
	store  *catalog.Store
	cfg    *config.Config
	cache  *thumbs.Cache
	logger *slog.Logger
}

func NewDeviceThumbHandler(store *catalog.Store, cfg *config.Config, cache *thumbs.Cache, logger *slog.Logger) *DeviceThumbHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DeviceThumbHandler{
		store:  store,
		cfg:    cfg,
		cache:  cache,
		logger: logging.NewComponentLogger(logger, "thumb-device"),
	}
}

func (h *DeviceThumbHandler) Execute(ctx context.Context, job *catalog.Job) (string, error) {
	var payload catalog.DeviceThumbPayload
	if err := catalog.DecodePayload(job.PayloadJSON, &payload); err != nil {
		return "", services.Wrap(services.ErrValidation, "thumbs", "payload", "malformed thumbnail payload", err)
	}
	if payload.DeviceID == 0 {
		return "", services.Wrap(services.ErrValidation, "thumbs", "payload", "thumbnail payload missing device", nil)
	}

	files, err := h.store.ListDeviceFiles(ctx, payload.DeviceID, catalog.ImportImported, catalog.ImportDuplicate)
	if err != nil {
		return "", err
	}

	seen := make(map[int64]struct{}, len(files))
	var clipIDs []int64
	for _, file := range files {
		if file.ClipID == nil {
			continue
		}
		if _, dup := seen[*file.ClipID]; dup {
			continue
		}
		seen[*file.ClipID] = struct{}{}
		clipIDs = append(clipIDs, *file.ClipID)
	}

	outcome, err := generateForClips(ctx, h.store, h.cfg, h.cache, job, clipIDs)
	if err != nil {
		return "", err
	}
	return catalog.EncodeOutcome(outcome)
}

func generateForClips(ctx context.Context, store *catalog.Store, cfg *config.Config, cache *thumbs.Cache, job *catalog.Job, clipIDs []int64) (catalog.BatchOutcome, error) {
	outcome := catalog.BatchOutcome{}
	progress := newProgressTracker(store, job.ID, len(clipIDs), cfg.Workflow.ProgressCommitEvery, &outcome)

	for _, clipID := range clipIDs {
		clip, err := store.GetClip(ctx, clipID)
		if err != nil {
			return outcome, err
		}
		if clip == nil {
			outcome.Skipped = append(outcome.Skipped, clipID)
			progress.advance(ctx, "Generating thumbnails")
			continue
		}

		_, ready, err := cache.Ensure(ctx, importer.AbsolutePath(cfg, clip))
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return outcome, ctx.Err()
			}
			outcome.Failed = append(outcome.Failed, catalog.ItemFailure{ID: clipID, Error: catalog.TruncateError(err.Error())})
		case !ready:
			// Another request is already encoding this output.
			outcome.Skipped = append(outcome.Skipped, clipID)
		default:
			outcome.Completed = append(outcome.Completed, clipID)
		}
		progress.advance(ctx, "Generating thumbnails")
	}

	message := fmt.Sprintf("Generated %d of %d thumbnails", len(outcome.Completed), len(clipIDs))
	if len(outcome.Failed) > 0 {
		message = fmt.Sprintf("%s, %d failed", message, len(outcome.Failed))
	}
	progress.flush(ctx, message)
	return outcome, nil
}
