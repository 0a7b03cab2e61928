package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CreateImportBatch enqueues an import_batch job for the given device files.
func (s *Store) CreateImportBatch(ctx context.Context, deviceID int64, fileIDs []int64) (*Job, error) {
	if len(fileIDs) == 0 {
		return nil, errors.New("import batch requires at least one file")
	}
	return s.Enqueue(ctx, JobImportBatch, ImportPayload{DeviceID: deviceID, FileIDs: fileIDs})
}

// CreateProbeBatch enqueues a probe_batch job. With no clip IDs the handler
// probes every clip whose metadata is missing or from an older probe version.
func (s *Store) CreateProbeBatch(ctx context.Context, clipIDs []int64) (*Job, error) {
	return s.Enqueue(ctx, JobProbeBatch, ProbePayload{ClipIDs: clipIDs})
}

// EnqueueClipProbe enqueues a probe_single job for one clip. If an active
// probe for the same clip already exists it is returned instead of creating
// a duplicate.
func (s *Store) EnqueueClipProbe(ctx context.Context, clipID int64) (*Job, error) {
	existing, err := s.findActiveJobForClip(ctx, JobProbeSingle, clipID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return s.Enqueue(ctx, JobProbeSingle, SingleProbePayload{ClipID: clipID})
}

// CreateThumbBatch enqueues a thumb_batch job for the given clips. An active
// thumb_batch is reused rather than stacking duplicate work.
func (s *Store) CreateThumbBatch(ctx context.Context, clipIDs []int64) (*Job, error) {
	if len(clipIDs) == 0 {
		return nil, errors.New("thumbnail batch requires at least one clip")
	}
	existing, err := s.ActiveJobByType(ctx, JobThumbBatch)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return s.Enqueue(ctx, JobThumbBatch, ThumbPayload{ClipIDs: clipIDs})
}

// CreateDeviceThumbBatch enqueues a thumb_device_batch job for a card. Any
// queued batch for the same device is canceled first: a newer scan makes the
// older file list obsolete.
func (s *Store) CreateDeviceThumbBatch(ctx context.Context, deviceID int64, mountpoint string) (*Job, error) {
	if err := s.supersedeQueuedDeviceThumbs(ctx, deviceID); err != nil {
		return nil, err
	}
	return s.Enqueue(ctx, JobDeviceThumbnail, DeviceThumbPayload{DeviceID: deviceID, Mountpoint: mountpoint})
}

func (s *Store) supersedeQueuedDeviceThumbs(ctx context.Context, deviceID int64) error {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE type = ? AND state = ?`,
		JobDeviceThumbnail,
		StateQueued,
	)
	if err != nil {
		return fmt.Errorf("query queued device thumb batches: %w", err)
	}
	defer rows.Close()

	var superseded []int64
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return err
		}
		var payload DeviceThumbPayload
		if err := DecodePayload(job.PayloadJSON, &payload); err != nil {
			continue
		}
		if payload.DeviceID == deviceID {
			superseded = append(superseded, job.ID)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range superseded {
		if _, err := s.MarkCanceled(ctx, id, SupersededMessage); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) findActiveJobForClip(ctx context.Context, jobType JobType, clipID int64) (*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE type = ? AND state IN (?, ?) ORDER BY id`,
		jobType,
		StateQueued,
		StateRunning,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query active jobs for clip: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		var payload SingleProbePayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
			continue
		}
		if payload.ClipID == clipID {
			return job, nil
		}
	}
	return nil, rows.Err()
}

// FinishedSince returns terminal jobs whose finished_at is at or after the
// provided time, for status displays.
func (s *Store) FinishedSince(ctx context.Context, since time.Time) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE state IN (?, ?, ?) AND finished_at >= ? ORDER BY finished_at DESC`,
		StateCompleted,
		StateFailed,
		StateCanceled,
		formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("query finished jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
