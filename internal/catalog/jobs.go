package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Enqueue inserts a new queued job with the provided payload.
func (s *Store) Enqueue(ctx context.Context, jobType JobType, payload any) (*Job, error) {
	payloadJSON, err := EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	timestamp := formatTime(time.Now())

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (type, state, payload_json, progress_percent, created_at, updated_at)
         VALUES (?, ?, ?, 0, ?, ?)`,
		jobType,
		StateQueued,
		nullableString(payloadJSON),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier. Returns nil when no job exists.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ClaimNext atomically claims the oldest queued job for a lane, moving it to
// running. The claim is a compare-and-set: the select finds a candidate and
// the conditional update wins only if the job is still queued, so two lanes
// polling the same database never both run one job. Returns nil when the
// lane's queue is empty.
func (s *Store) ClaimNext(ctx context.Context, lane Lane) (*Job, error) {
	ctx = ensureContext(ctx)
	types := TypesForLane(lane)
	placeholders := makePlaceholders(len(types))
	args := make([]any, 0, len(types)+1)
	args = append(args, StateQueued)
	for _, jt := range types {
		args = append(args, jt)
	}

	for {
		row := s.db.QueryRowContext(
			ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE state = ? AND type IN (`+placeholders+`) ORDER BY id LIMIT 1`,
			args...,
		)
		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select claimable job: %w", err)
		}

		now := time.Now().UTC()
		timestamp := formatTime(now)
		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs SET state = ?, started_at = ?, updated_at = ? WHERE id = ? AND state = ?`,
			StateRunning,
			timestamp,
			timestamp,
			job.ID,
			StateQueued,
		)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 1 {
			job.State = StateRunning
			job.StartedAt = &now
			job.UpdatedAt = now
			return job, nil
		}
		// Lost the race; another worker claimed it first. Look again.
	}
}

// UpdateProgress records progress for a running job.
func (s *Store) UpdateProgress(ctx context.Context, id int64, percent float64, message string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET progress_percent = ?, progress_message = ?, updated_at = ? WHERE id = ?`,
		percent,
		nullableString(message),
		formatTime(time.Now()),
		id,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// UpdateBatchProgress records progress for a running batch job together with
// the per-item outcome so far, so callers polling the job see which items
// already landed instead of waiting for the terminal result.
func (s *Store) UpdateBatchProgress(ctx context.Context, id int64, percent float64, message string, outcome BatchOutcome) error {
	encoded, err := EncodeOutcome(outcome)
	if err != nil {
		return fmt.Errorf("update batch progress: %w", err)
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET progress_percent = ?, progress_message = ?, result_json = ?,
             updated_at = ? WHERE id = ? AND state = ?`,
		percent,
		nullableString(message),
		nullableString(encoded),
		formatTime(time.Now()),
		id,
		StateRunning,
	); err != nil {
		return fmt.Errorf("update batch progress: %w", err)
	}
	return nil
}

// MarkCompleted finishes a job successfully, storing its serialized result.
func (s *Store) MarkCompleted(ctx context.Context, id int64, resultJSON string) error {
	timestamp := formatTime(time.Now())
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET state = ?, result_json = ?, progress_percent = 100,
             error_message = NULL, finished_at = ?, updated_at = ? WHERE id = ?`,
		StateCompleted,
		nullableString(resultJSON),
		timestamp,
		timestamp,
		id,
	); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed finishes a job with an error. The message is truncated so a
// runaway tool dump cannot bloat the database.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	timestamp := formatTime(time.Now())
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET state = ?, error_message = ?, finished_at = ?, updated_at = ? WHERE id = ?`,
		StateFailed,
		nullableString(TruncateError(message)),
		timestamp,
		timestamp,
		id,
	); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// MarkCanceled cancels a job that has not finished, recording the reason.
func (s *Store) MarkCanceled(ctx context.Context, id int64, reason string) (bool, error) {
	timestamp := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET state = ?, error_message = ?, finished_at = ?, updated_at = ?
         WHERE id = ? AND state IN (?, ?)`,
		StateCanceled,
		nullableString(TruncateError(reason)),
		timestamp,
		timestamp,
		id,
		StateQueued,
		StateRunning,
	)
	if err != nil {
		return false, fmt.Errorf("mark canceled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel rows affected: %w", err)
	}
	return affected > 0, nil
}

// RecoverInterrupted repairs jobs left running by a crashed or killed daemon.
// Foreground jobs are idempotent, so they go back to queued for a clean rerun.
// Background thumbnail jobs are failed instead; the next scan recreates them.
func (s *Store) RecoverInterrupted(ctx context.Context) (requeued, failed int64, err error) {
	timestamp := formatTime(time.Now())

	fgTypes := TypesForLane(LaneForeground)
	fgArgs := make([]any, 0, len(fgTypes)+4)
	fgArgs = append(fgArgs, StateQueued, InterruptedRecoveryMessage, timestamp, StateRunning)
	for _, jt := range fgTypes {
		fgArgs = append(fgArgs, jt)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET state = ?, progress_percent = 0, progress_message = ?,
             started_at = NULL, updated_at = ?
         WHERE state = ? AND type IN (`+makePlaceholders(len(fgTypes))+`)`,
		fgArgs...,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("requeue interrupted foreground jobs: %w", err)
	}
	if requeued, err = res.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("requeue rows affected: %w", err)
	}

	bgTypes := TypesForLane(LaneBackground)
	bgArgs := make([]any, 0, len(bgTypes)+5)
	bgArgs = append(bgArgs, StateFailed, InterruptedBackgroundMessage, timestamp, timestamp, StateRunning)
	for _, jt := range bgTypes {
		bgArgs = append(bgArgs, jt)
	}
	res, err = s.execWithRetry(
		ctx,
		`UPDATE jobs SET state = ?, error_message = ?, finished_at = ?, updated_at = ?
         WHERE state = ? AND type IN (`+makePlaceholders(len(bgTypes))+`)`,
		bgArgs...,
	)
	if err != nil {
		return requeued, 0, fmt.Errorf("fail interrupted background jobs: %w", err)
	}
	if failed, err = res.RowsAffected(); err != nil {
		return requeued, 0, fmt.Errorf("fail rows affected: %w", err)
	}
	return requeued, failed, nil
}

// RequeueStale returns foreground jobs whose progress has not moved since the
// cutoff back to queued. Background jobs are left alone; stale thumbnail work
// is cheaper to recreate than to replay.
func (s *Store) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	timestamp := formatTime(time.Now())
	fgTypes := TypesForLane(LaneForeground)
	args := make([]any, 0, len(fgTypes)+5)
	args = append(args, StateQueued, InterruptedRecoveryMessage, timestamp, StateRunning, formatTime(cutoff))
	for _, jt := range fgTypes {
		args = append(args, jt)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET state = ?, progress_percent = 0, progress_message = ?,
             started_at = NULL, updated_at = ?
         WHERE state = ? AND updated_at < ? AND type IN (`+makePlaceholders(len(fgTypes))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// ListJobs returns jobs filtered by state set (or all jobs when no state is
// provided), newest first.
func (s *Store) ListJobs(ctx context.Context, states ...JobState) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY id DESC`

	if len(states) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(states))
		args := make([]any, len(states))
		for i, state := range states {
			args[i] = state
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE state IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
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

// ActiveJobByType returns the oldest queued or running job of a type, or nil.
func (s *Store) ActiveJobByType(ctx context.Context, jobType JobType) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE type = ? AND state IN (?, ?) ORDER BY id LIMIT 1`,
		jobType,
		StateQueued,
		StateRunning,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active job by type: %w", err)
	}
	return job, nil
}

// JobStats returns a count of jobs grouped by state.
func (s *Store) JobStats(ctx context.Context) (map[JobState]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[JobState]int)
	for rows.Next() {
		var state JobState
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}
