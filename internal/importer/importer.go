package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"dashvault/internal/catalog"
	"dashvault/internal/config"
	"dashvault/internal/fileutil"
	"dashvault/internal/logging"
	"dashvault/internal/services"
)

const hashChunkSize = 1 << 20

// Importer promotes device files into the archive.
type Importer struct {
	store  *catalog.Store
	cfg    *config.Config
	logger *slog.Logger
}

func New(store *catalog.Store, cfg *config.Config, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Importer{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "importer"),
	}
}

// Result reports where a device file ended up. Duplicate means the content
// already existed in the archive and the staged copy was discarded.
type Result struct {
	Clip      *catalog.Clip
	Duplicate bool
}

// ImportFile copies one recording off the card, hashes it, and records it in
// the catalog. The operation is retry-safe: a crash before the catalog write
// leaves only an orphaned staged file and the device file stays pending.
func (i *Importer) ImportFile(ctx context.Context, device *catalog.Device, file *catalog.DeviceFile, mountpoint string) (*Result, error) {
	srcPath := filepath.Join(mountpoint, filepath.FromSlash(file.RelPath))
	if _, err := os.Stat(srcPath); err != nil {
		return nil, services.Wrap(services.ErrNotFound, "importer", "import", "source file missing: "+file.RelPath, err)
	}

	staged := filepath.Join(i.cfg.Paths.StagingDir, uuid.NewString()+path.Ext(file.RelPath))
	if err := fileutil.CopyFile(srcPath, staged); err != nil {
		return nil, services.Wrap(services.ErrTransient, "importer", "stage", "staging "+file.RelPath, err)
	}

	hash, sizeBytes, err := hashFile(staged)
	if err != nil {
		_ = os.Remove(staged)
		return nil, services.Wrap(services.ErrTransient, "importer", "hash", "hashing "+file.RelPath, err)
	}

	existing, err := i.store.ClipByHash(ctx, hash)
	if err != nil {
		_ = os.Remove(staged)
		return nil, err
	}
	if existing != nil {
		_ = os.Remove(staged)
		if err := i.store.AddClipSource(ctx, existing.ID, device.ID, file.RelPath); err != nil {
			return nil, err
		}
		if err := i.store.SetFileImported(ctx, file.ID, existing.ID, true); err != nil {
			return nil, err
		}
		i.logger.Info("deduplicated recording",
			logging.String("rel_path", file.RelPath),
			logging.Int64("clip_id", existing.ID),
			logging.String(logging.FieldEventType, "import_duplicate"),
		)
		return &Result{Clip: existing, Duplicate: true}, nil
	}

	archiveRel := ArchiveRelPath(hash, file.RelPath, file.RecordedAt)
	destPath := filepath.Join(i.cfg.Paths.ArchiveDir, filepath.FromSlash(archiveRel))
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		_ = os.Remove(staged)
		return nil, services.Wrap(services.ErrTransient, "importer", "archive", "creating archive directory", err)
	}
	if err := fileutil.MoveFile(staged, destPath); err != nil {
		_ = os.Remove(staged)
		return nil, services.Wrap(services.ErrTransient, "importer", "archive", "moving "+file.RelPath+" into archive", err)
	}

	clip, err := i.store.InsertClip(ctx, &catalog.Clip{
		SHA256:       hash,
		ArchivePath:  archiveRel,
		OriginalName: path.Base(file.RelPath),
		SizeBytes:    sizeBytes,
		Camera:       file.Camera,
		Mode:         file.Mode,
		RecordedAt:   file.RecordedAt,
	})
	if err != nil {
		return nil, err
	}
	if err := i.store.AddClipSource(ctx, clip.ID, device.ID, file.RelPath); err != nil {
		return nil, err
	}
	if err := i.store.SetFileImported(ctx, file.ID, clip.ID, false); err != nil {
		return nil, err
	}

	i.logger.Info("archived recording",
		logging.String("rel_path", file.RelPath),
		logging.String("archive_path", archiveRel),
		logging.Int64("clip_id", clip.ID),
		logging.String(logging.FieldEventType, "import_archived"),
	)
	return &Result{Clip: clip}, nil
}

// ArchiveRelPath builds the archive-relative destination for a recording:
// YYYY/MM/DD buckets from the recorded-at timestamp (import time when the
// filename carried none), with a hash prefix to keep names collision-free
// while preserving the original filename.
func ArchiveRelPath(hash, relPath string, recordedAt *time.Time) string {
	bucket := time.Now().UTC()
	if recordedAt != nil {
		bucket = *recordedAt
	}
	name := path.Base(relPath)
	return fmt.Sprintf("%04d/%02d/%02d/%s_%s", bucket.Year(), bucket.Month(), bucket.Day(), hash[:16], name)
}

// AbsolutePath resolves a clip's archive-relative path against the configured
// archive root.
func AbsolutePath(cfg *config.Config, clip *catalog.Clip) string {
	return filepath.Join(cfg.Paths.ArchiveDir, filepath.FromSlash(clip.ArchivePath))
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.CopyBuffer(hasher, f, make([]byte, hashChunkSize))
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}
