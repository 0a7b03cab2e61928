package catalog

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, type, state, payload_json, result_json, progress_percent, progress_message, error_message, created_at, updated_at, started_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		jobType         string
		state           string
		payload         sql.NullString
		result          sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		errorMessage    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		startedRaw      sql.NullString
		finishedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&jobType,
		&state,
		&payload,
		&result,
		&progressPercent,
		&progressMessage,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		Type:            JobType(jobType),
		State:           JobState(state),
		PayloadJSON:     payload.String,
		ResultJSON:      result.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		ErrorMessage:    errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	return job, nil
}

const deviceColumns = "id, card_id, token, volume_uid, label, first_seen, last_seen"

func scanDevice(scanner interface{ Scan(dest ...any) error }) (*Device, error) {
	var (
		id        int64
		cardID    sql.NullString
		token     string
		volumeUID sql.NullString
		label     sql.NullString
		firstRaw  sql.NullString
		lastRaw   sql.NullString
	)

	if err := scanner.Scan(&id, &cardID, &token, &volumeUID, &label, &firstRaw, &lastRaw); err != nil {
		return nil, err
	}

	device := &Device{
		ID:        id,
		CardID:    cardID.String,
		Token:     token,
		VolumeUID: volumeUID.String,
		Label:     label.String,
	}
	if first, err := parseTimeString(firstRaw.String); err == nil {
		device.FirstSeen = first
	}
	if last, err := parseTimeString(lastRaw.String); err == nil {
		device.LastSeen = last
	}
	return device, nil
}

const deviceFileColumns = "id, device_id, rel_path, size_bytes, mtime, fingerprint, camera, mode, recorded_at, import_state, clip_id, error_message, last_seen"

func scanDeviceFile(scanner interface{ Scan(dest ...any) error }) (*DeviceFile, error) {
	var (
		id           int64
		deviceID     int64
		relPath      string
		sizeBytes    int64
		mtimeRaw     sql.NullString
		fingerprint  string
		camera       sql.NullString
		mode         sql.NullString
		recordedRaw  sql.NullString
		importState  string
		clipID       sql.NullInt64
		errorMessage sql.NullString
		lastSeenRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&deviceID,
		&relPath,
		&sizeBytes,
		&mtimeRaw,
		&fingerprint,
		&camera,
		&mode,
		&recordedRaw,
		&importState,
		&clipID,
		&errorMessage,
		&lastSeenRaw,
	); err != nil {
		return nil, err
	}

	file := &DeviceFile{
		ID:           id,
		DeviceID:     deviceID,
		RelPath:      relPath,
		SizeBytes:    sizeBytes,
		Fingerprint:  fingerprint,
		Camera:       camera.String,
		Mode:         mode.String,
		ImportState:  ImportState(importState),
		ErrorMessage: errorMessage.String,
	}
	if mtime, err := parseTimeString(mtimeRaw.String); err == nil {
		file.ModTime = mtime
	}
	if recordedRaw.Valid {
		if recorded, err := parseTimeString(recordedRaw.String); err == nil {
			file.RecordedAt = &recorded
		}
	}
	if clipID.Valid {
		file.ClipID = &clipID.Int64
	}
	if lastSeen, err := parseTimeString(lastSeenRaw.String); err == nil {
		file.LastSeen = lastSeen
	}
	return file, nil
}

const clipColumns = "id, sha256, archive_path, original_name, size_bytes, camera, mode, recorded_at, imported_at, duration_seconds, width, height, fps, video_codec, audio_codec, bit_rate, rotation, probe_output, probe_version, metadata_status, metadata_error"

func scanClip(scanner interface{ Scan(dest ...any) error }) (*Clip, error) {
	var (
		id            int64
		sha256        string
		archivePath   string
		originalName  string
		sizeBytes     int64
		camera        sql.NullString
		mode          sql.NullString
		recordedRaw   sql.NullString
		importedRaw   sql.NullString
		duration      sql.NullFloat64
		width         sql.NullInt64
		height        sql.NullInt64
		fps           sql.NullFloat64
		videoCodec    sql.NullString
		audioCodec    sql.NullString
		bitRate       sql.NullInt64
		rotation      sql.NullInt64
		probeOutput   sql.NullString
		probeVersion  sql.NullInt64
		metadataState string
		metadataError sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sha256,
		&archivePath,
		&originalName,
		&sizeBytes,
		&camera,
		&mode,
		&recordedRaw,
		&importedRaw,
		&duration,
		&width,
		&height,
		&fps,
		&videoCodec,
		&audioCodec,
		&bitRate,
		&rotation,
		&probeOutput,
		&probeVersion,
		&metadataState,
		&metadataError,
	); err != nil {
		return nil, err
	}

	clip := &Clip{
		ID:              id,
		SHA256:          sha256,
		ArchivePath:     archivePath,
		OriginalName:    originalName,
		SizeBytes:       sizeBytes,
		Camera:          camera.String,
		Mode:            mode.String,
		DurationSeconds: duration.Float64,
		Width:           int(width.Int64),
		Height:          int(height.Int64),
		FPS:             fps.Float64,
		VideoCodec:      videoCodec.String,
		AudioCodec:      audioCodec.String,
		BitRate:         bitRate.Int64,
		Rotation:        int(rotation.Int64),
		ProbeOutput:     probeOutput.String,
		ProbeVersion:    int(probeVersion.Int64),
		MetadataStatus:  MetadataStatus(metadataState),
		MetadataError:   metadataError.String,
	}
	if recordedRaw.Valid {
		if recorded, err := parseTimeString(recordedRaw.String); err == nil {
			clip.RecordedAt = &recorded
		}
	}
	if imported, err := parseTimeString(importedRaw.String); err == nil {
		clip.ImportedAt = imported
	}
	return clip, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

// timeLayout is a fixed-width RFC 3339 form. RFC3339Nano trims trailing
// zeros, which breaks lexicographic ordering of stored timestamps in SQL
// comparisons such as stale-job cutoffs.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
