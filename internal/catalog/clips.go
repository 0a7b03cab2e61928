package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertClip records a newly promoted clip in the archive.
func (s *Store) InsertClip(ctx context.Context, clip *Clip) (*Clip, error) {
	if clip == nil {
		return nil, errors.New("clip is nil")
	}
	timestamp := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO clips (
            sha256, archive_path, original_name, size_bytes,
            camera, mode, recorded_at, imported_at, metadata_status
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		clip.SHA256,
		clip.ArchivePath,
		clip.OriginalName,
		clip.SizeBytes,
		nullableString(clip.Camera),
		nullableString(clip.Mode),
		nullableTime(clip.RecordedAt),
		formatTime(timestamp),
		MetadataPending,
	)
	if err != nil {
		return nil, fmt.Errorf("insert clip: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetClip(ctx, id)
}

// GetClip fetches a clip by identifier. Returns nil when absent.
func (s *Store) GetClip(ctx context.Context, id int64) (*Clip, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)
	clip, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get clip: %w", err)
	}
	return clip, nil
}

// ClipByHash fetches a clip by content hash. Returns nil when absent; this is
// the dedup lookup the importer relies on.
func (s *Store) ClipByHash(ctx context.Context, sha256 string) (*Clip, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE sha256 = ?`, sha256)
	clip, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clip by hash: %w", err)
	}
	return clip, nil
}

// ListClips returns clips newest first, optionally limited.
func (s *Store) ListClips(ctx context.Context, limit int) ([]*Clip, error) {
	query := `SELECT ` + clipColumns + ` FROM clips ORDER BY imported_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var clips []*Clip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip)
	}
	return clips, rows.Err()
}

// ClipsNeedingProbe returns clips whose metadata is missing, failed, or from
// an older probe version.
func (s *Store) ClipsNeedingProbe(ctx context.Context, probeVersion int) ([]*Clip, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+clipColumns+` FROM clips
         WHERE metadata_status != ? OR probe_version < ? ORDER BY id`,
		MetadataExtracted,
		probeVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("clips needing probe: %w", err)
	}
	defer rows.Close()

	var clips []*Clip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip)
	}
	return clips, rows.Err()
}

// UpdateClipMetadata stores extracted stream metadata for a clip.
func (s *Store) UpdateClipMetadata(ctx context.Context, id int64, meta ClipMetadata) error {
	status := MetadataExtracted
	if meta.Partial {
		status = MetadataPartial
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE clips SET duration_seconds = ?, width = ?, height = ?, fps = ?,
             video_codec = ?, audio_codec = ?, bit_rate = ?, rotation = ?,
             probe_output = ?, probe_version = ?, metadata_status = ?, metadata_error = NULL
         WHERE id = ?`,
		meta.DurationSeconds,
		meta.Width,
		meta.Height,
		meta.FPS,
		nullableString(meta.VideoCodec),
		nullableString(meta.AudioCodec),
		meta.BitRate,
		meta.Rotation,
		nullableString(meta.RawOutput),
		meta.ProbeVersion,
		status,
		id,
	); err != nil {
		return fmt.Errorf("update clip metadata: %w", err)
	}
	return nil
}

// MarkClipProbeFailed records a probe failure. The message is truncated to
// the stored maximum.
func (s *Store) MarkClipProbeFailed(ctx context.Context, id int64, probeVersion int, message string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE clips SET probe_version = ?, metadata_status = ?, metadata_error = ? WHERE id = ?`,
		probeVersion,
		MetadataFailed,
		nullableString(TruncateError(message)),
		id,
	); err != nil {
		return fmt.Errorf("mark clip probe failed: %w", err)
	}
	return nil
}

// ClipMetadata carries the stream attributes extracted by a probe. RawOutput
// preserves the tool's original JSON so future probe versions can reprocess
// without re-running the tool. Partial marks a probe that succeeded but could
// not fill every field (e.g. no video stream duration).
type ClipMetadata struct {
	DurationSeconds float64
	Width           int
	Height          int
	FPS             float64
	VideoCodec      string
	AudioCodec      string
	BitRate         int64
	Rotation        int
	RawOutput       string
	ProbeVersion    int
	Partial         bool
}

// AddClipSource records the card and path a clip was imported from. Repeat
// imports of the same source are ignored.
func (s *Store) AddClipSource(ctx context.Context, clipID, deviceID int64, relPath string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT OR IGNORE INTO clip_sources (clip_id, device_id, rel_path, imported_at)
         VALUES (?, ?, ?, ?)`,
		clipID,
		deviceID,
		relPath,
		formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("add clip source: %w", err)
	}
	return nil
}

// ClipSources returns the provenance rows for a clip.
func (s *Store) ClipSources(ctx context.Context, clipID int64) ([]*ClipSource, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, clip_id, device_id, rel_path, imported_at FROM clip_sources WHERE clip_id = ? ORDER BY id`,
		clipID,
	)
	if err != nil {
		return nil, fmt.Errorf("clip sources: %w", err)
	}
	defer rows.Close()

	var sources []*ClipSource
	for rows.Next() {
		var (
			src         ClipSource
			importedRaw sql.NullString
		)
		if err := rows.Scan(&src.ID, &src.ClipID, &src.DeviceID, &src.RelPath, &importedRaw); err != nil {
			return nil, err
		}
		if imported, err := parseTimeString(importedRaw.String); err == nil {
			src.ImportedAt = imported
		}
		sources = append(sources, &src)
	}
	return sources, rows.Err()
}

// ReparentClipSources moves a device's provenance rows to another device,
// dropping rows the target already holds. Returns the number of rows moved.
func (s *Store) ReparentClipSources(ctx context.Context, fromDeviceID, toDeviceID int64) (int64, error) {
	// Drop rows that would collide with existing provenance on the target.
	if err := s.execWithoutResultRetry(
		ctx,
		`DELETE FROM clip_sources WHERE device_id = ? AND (clip_id, rel_path) IN (
             SELECT clip_id, rel_path FROM clip_sources WHERE device_id = ?
         )`,
		fromDeviceID,
		toDeviceID,
	); err != nil {
		return 0, fmt.Errorf("prune colliding clip sources: %w", err)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE clip_sources SET device_id = ? WHERE device_id = ?`,
		toDeviceID,
		fromDeviceID,
	)
	if err != nil {
		return 0, fmt.Errorf("reparent clip sources: %w", err)
	}
	return res.RowsAffected()
}

// ClipCount returns the number of archived clips.
func (s *Store) ClipCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM clips`).Scan(&count); err != nil {
		return 0, fmt.Errorf("clip count: %w", err)
	}
	return count, nil
}
