package prober

import (
	"context"
	"log/slog"
	"math"
	"time"

	"dashvault/internal/catalog"
	"dashvault/internal/config"
	"dashvault/internal/importer"
	"dashvault/internal/logging"
	"dashvault/internal/media/ffprobe"
	"dashvault/internal/services"
)

// Prober runs ffprobe against archived clips and stores the result.
type Prober struct {
	store  *catalog.Store
	cfg    *config.Config
	logger *slog.Logger
}

func New(store *catalog.Store, cfg *config.Config, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Prober{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "prober"),
	}
}

// ProbeClip inspects one clip and persists its metadata. Clips already
// extracted at the current probe version are skipped. A tool failure is
// recorded on the clip and returned so batch accounting marks the item
// failed; the clip never stays in "pending" after an attempt.
func (p *Prober) ProbeClip(ctx context.Context, clip *catalog.Clip) error {
	if clip.MetadataStatus == catalog.MetadataExtracted && clip.ProbeVersion >= p.cfg.Probe.Version {
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.Probe.TimeoutSeconds)*time.Second)
	defer cancel()

	result, err := ffprobe.Inspect(probeCtx, p.cfg.FFprobeBinary(), importer.AbsolutePath(p.cfg, clip))
	if err != nil {
		if markErr := p.store.MarkClipProbeFailed(ctx, clip.ID, p.cfg.Probe.Version, err.Error()); markErr != nil {
			return markErr
		}
		p.logger.Warn("probe failed",
			logging.Int64("clip_id", clip.ID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "probe_failed"),
		)
		return services.Wrap(services.ErrExternalTool, "prober", "probe", "probing "+clip.ArchivePath, err)
	}

	meta := metadataFromResult(result, p.cfg.Probe.Version)
	if err := p.store.UpdateClipMetadata(ctx, clip.ID, meta); err != nil {
		return err
	}

	p.logger.Info("probed clip",
		logging.Int64("clip_id", clip.ID),
		logging.Float64("duration_seconds", meta.DurationSeconds),
		logging.Bool("partial", meta.Partial),
		logging.String(logging.FieldEventType, "probe_extracted"),
	)
	return nil
}

func metadataFromResult(result ffprobe.Result, version int) catalog.ClipMetadata {
	meta := catalog.ClipMetadata{
		BitRate:      result.BitRate(),
		RawOutput:    string(result.RawJSON()),
		ProbeVersion: version,
	}
	if duration := result.DurationSeconds(); !math.IsNaN(duration) && duration > 0 {
		meta.DurationSeconds = duration
	}

	if video := result.PrimaryVideoStream(); video != nil {
		meta.Width = video.Width
		meta.Height = video.Height
		meta.FPS = video.FPS()
		meta.VideoCodec = video.CodecName
		meta.Rotation = video.Rotation()
	}
	if audio := result.PrimaryAudioStream(); audio != nil {
		meta.AudioCodec = audio.CodecName
	}

	meta.Partial = meta.DurationSeconds <= 0 || meta.Width <= 0 || meta.Height <= 0 || meta.VideoCodec == ""
	return meta
}
