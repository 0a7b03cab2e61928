package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"dashvault/internal/catalog"
	"dashvault/internal/config"
	"dashvault/internal/logging"
	"dashvault/internal/prober"
	"dashvault/internal/services"
)

// ProbeBatchHandler processes probe_batch jobs. An empty clip list means
// "everything whose metadata is missing or from an older probe version".
type ProbeBatchHandler struct {
	store  *catalog.Store
	cfg    *config.Config
	prober *prober.Prober
	logger *slog.Logger
}

func NewProbeBatchHandler(store *catalog.Store, cfg *config.Config, p *prober.Prober, logger *slog.Logger) *ProbeBatchHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ProbeBatchHandler{
		store:  store,
		cfg:    cfg,
		prober: p,
		logger: logging.NewComponentLogger(logger, "probe"),
	}
}

func (h *ProbeBatchHandler) Execute(ctx context.Context, job *catalog.Job) (string, error) {
	var payload catalog.ProbePayload
	if job.PayloadJSON != "" {
		if err := catalog.DecodePayload(job.PayloadJSON, &payload); err != nil {
			return "", services.Wrap(services.ErrValidation, "probe", "payload", "malformed probe payload", err)
		}
	}

	clipIDs := payload.ClipIDs
	if len(clipIDs) == 0 {
		clips, err := h.store.ClipsNeedingProbe(ctx, h.cfg.Probe.Version)
		if err != nil {
			return "", err
		}
		for _, clip := range clips {
			clipIDs = append(clipIDs, clip.ID)
		}
	}

	outcome := catalog.BatchOutcome{}
	progress := newProgressTracker(h.store, job.ID, len(clipIDs), h.cfg.Workflow.ProgressCommitEvery, &outcome)
	for _, clipID := range clipIDs {
		if err := h.probeOne(ctx, clipID, &outcome); err != nil {
			return "", err
		}
		progress.advance(ctx, "Extracting clip metadata")
	}

	message := fmt.Sprintf("Probed %d of %d clips", len(outcome.Completed), len(clipIDs))
	if len(outcome.Failed) > 0 {
		message = fmt.Sprintf("%s, %d failed", message, len(outcome.Failed))
	}
	progress.flush(ctx, message)
	return catalog.EncodeOutcome(outcome)
}

func (h *ProbeBatchHandler) probeOne(ctx context.Context, clipID int64, outcome *catalog.BatchOutcome) error {
	clip, err := h.store.GetClip(ctx, clipID)
	if err != nil {
		return err
	}
	if clip == nil {
		outcome.Skipped = append(outcome.Skipped, clipID)
		return nil
	}
	if err := h.prober.ProbeClip(ctx, clip); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcome.Failed = append(outcome.Failed, catalog.ItemFailure{ID: clipID, Error: catalog.TruncateError(err.Error())})
		return nil
	}
	outcome.Completed = append(outcome.Completed, clipID)
	return nil
}

// ProbeSingleHandler processes probe_single jobs, the targeted re-probe the
// API exposes for one clip.
type ProbeSingleHandler struct {
	store  *catalog.Store
	prober *prober.Prober
}

func NewProbeSingleHandler(store *catalog.Store, p *prober.Prober) *ProbeSingleHandler {
	return &ProbeSingleHandler{store: store, prober: p}
}

func (h *ProbeSingleHandler) Execute(ctx context.Context, job *catalog.Job) (string, error) {
	var payload catalog.SingleProbePayload
	if err := catalog.DecodePayload(job.PayloadJSON, &payload); err != nil {
		return "", services.Wrap(services.ErrValidation, "probe", "payload", "malformed probe payload", err)
	}
	clip, err := h.store.GetClip(ctx, payload.ClipID)
	if err != nil {
		return "", err
	}
	if clip == nil {
		return "", services.Wrap(services.ErrNotFound, "probe", "clip", fmt.Sprintf("clip %d not in catalog", payload.ClipID), nil)
	}
	if err := h.prober.ProbeClip(ctx, clip); err != nil {
		return "", err
	}
	return catalog.EncodeOutcome(catalog.BatchOutcome{Completed: []int64{clip.ID}})
}
