package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertDeviceFile records a file observed during a card scan. An existing
// row for the same device/path keeps its import state when the fingerprint
// is unchanged; a changed fingerprint means the file was rewritten on the
// card and must be re-imported.
func (s *Store) UpsertDeviceFile(ctx context.Context, file *DeviceFile) (*DeviceFile, error) {
	if file == nil {
		return nil, errors.New("file is nil")
	}
	timestamp := formatTime(time.Now())

	existing, err := s.deviceFileByPath(ctx, file.DeviceID, file.RelPath)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		res, err := s.execWithRetry(
			ctx,
			`INSERT INTO device_files (
                device_id, rel_path, size_bytes, mtime, fingerprint,
                camera, mode, recorded_at, import_state, last_seen
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			file.DeviceID,
			file.RelPath,
			file.SizeBytes,
			formatTime(file.ModTime),
			file.Fingerprint,
			nullableString(file.Camera),
			nullableString(file.Mode),
			nullableTime(file.RecordedAt),
			ImportPending,
			timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("insert device file: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		return s.GetDeviceFile(ctx, id)
	}

	importState := existing.ImportState
	if existing.Fingerprint != file.Fingerprint {
		importState = ImportPending
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE device_files SET size_bytes = ?, mtime = ?, fingerprint = ?,
             camera = ?, mode = ?, recorded_at = ?, import_state = ?, last_seen = ?
         WHERE id = ?`,
		file.SizeBytes,
		formatTime(file.ModTime),
		file.Fingerprint,
		nullableString(file.Camera),
		nullableString(file.Mode),
		nullableTime(file.RecordedAt),
		importState,
		timestamp,
		existing.ID,
	); err != nil {
		return nil, fmt.Errorf("update device file: %w", err)
	}
	return s.GetDeviceFile(ctx, existing.ID)
}

// GetDeviceFile fetches a device file by identifier. Returns nil when absent.
func (s *Store) GetDeviceFile(ctx context.Context, id int64) (*DeviceFile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deviceFileColumns+` FROM device_files WHERE id = ?`, id)
	file, err := scanDeviceFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device file: %w", err)
	}
	return file, nil
}

func (s *Store) deviceFileByPath(ctx context.Context, deviceID int64, relPath string) (*DeviceFile, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+deviceFileColumns+` FROM device_files WHERE device_id = ? AND rel_path = ?`,
		deviceID,
		relPath,
	)
	file, err := scanDeviceFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("device file by path: %w", err)
	}
	return file, nil
}

// MarkFilesMissing flags files on a device that were not seen in the latest
// scan. Returns the number of rows affected.
func (s *Store) MarkFilesMissing(ctx context.Context, deviceID int64, seenBefore time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE device_files SET import_state = ? WHERE device_id = ? AND last_seen < ? AND import_state != ?`,
		ImportMissing,
		deviceID,
		formatTime(seenBefore),
		ImportMissing,
	)
	if err != nil {
		return 0, fmt.Errorf("mark files missing: %w", err)
	}
	return res.RowsAffected()
}

// ListDeviceFiles returns a device's files, optionally filtered by import state.
func (s *Store) ListDeviceFiles(ctx context.Context, deviceID int64, states ...ImportState) ([]*DeviceFile, error) {
	query := `SELECT ` + deviceFileColumns + ` FROM device_files WHERE device_id = ?`
	args := []any{deviceID}
	if len(states) > 0 {
		query += ` AND import_state IN (` + makePlaceholders(len(states)) + `)`
		for _, state := range states {
			args = append(args, state)
		}
	}
	query += ` ORDER BY rel_path`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list device files: %w", err)
	}
	defer rows.Close()

	var files []*DeviceFile
	for rows.Next() {
		file, err := scanDeviceFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// FingerprintsByDevice returns the set of file fingerprints recorded for a device.
func (s *Store) FingerprintsByDevice(ctx context.Context, deviceID int64) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint FROM device_files WHERE device_id = ?`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("fingerprints by device: %w", err)
	}
	defer rows.Close()

	fingerprints := make(map[string]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		fingerprints[fp] = struct{}{}
	}
	return fingerprints, rows.Err()
}

// SetFileImported marks a device file as promoted into the archive,
// linked to the clip it produced (or matched during dedup).
func (s *Store) SetFileImported(ctx context.Context, fileID, clipID int64, duplicate bool) error {
	state := ImportImported
	if duplicate {
		state = ImportDuplicate
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE device_files SET import_state = ?, clip_id = ?, error_message = NULL WHERE id = ?`,
		state,
		clipID,
		fileID,
	); err != nil {
		return fmt.Errorf("set file imported: %w", err)
	}
	return nil
}

// SetFileFailed records an import failure on a device file. The message is
// truncated to the stored maximum.
func (s *Store) SetFileFailed(ctx context.Context, fileID int64, message string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE device_files SET import_state = ?, error_message = ? WHERE id = ?`,
		ImportFailed,
		nullableString(TruncateError(message)),
		fileID,
	); err != nil {
		return fmt.Errorf("set file failed: %w", err)
	}
	return nil
}

// ReparentDeviceFiles moves a device's file rows to another device, skipping
// paths the target already tracks. Used when merging two records that turned
// out to be the same card. Returns the number of rows moved.
func (s *Store) ReparentDeviceFiles(ctx context.Context, fromDeviceID, toDeviceID int64) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE device_files SET device_id = ?
         WHERE device_id = ? AND rel_path NOT IN (
             SELECT rel_path FROM device_files WHERE device_id = ?
         )`,
		toDeviceID,
		fromDeviceID,
		toDeviceID,
	)
	if err != nil {
		return 0, fmt.Errorf("reparent device files: %w", err)
	}
	return res.RowsAffected()
}
