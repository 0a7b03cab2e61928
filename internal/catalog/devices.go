package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertDevice creates a new device record. first_seen and last_seen start
// equal so a freshly created record is distinguishable from one with history.
func (s *Store) InsertDevice(ctx context.Context, cardID, token, volumeUID, label string) (*Device, error) {
	timestamp := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO devices (card_id, token, volume_uid, label, first_seen, last_seen)
         VALUES (?, ?, ?, ?, ?, ?)`,
		nullableString(cardID),
		token,
		nullableString(volumeUID),
		nullableString(label),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert device: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetDevice(ctx, id)
}

// GetDevice fetches a device by identifier. Returns nil when absent.
func (s *Store) GetDevice(ctx context.Context, id int64) (*Device, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return device, nil
}

// DeviceByCardID fetches a device by its card identity marker. Returns nil
// when absent.
func (s *Store) DeviceByCardID(ctx context.Context, cardID string) (*Device, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE card_id = ?`, cardID)
	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("device by card id: %w", err)
	}
	return device, nil
}

// DeviceByToken fetches a device by its assigned token. Returns nil when absent.
func (s *Store) DeviceByToken(ctx context.Context, token string) (*Device, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE token = ?`, token)
	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("device by token: %w", err)
	}
	return device, nil
}

// DeviceByVolumeUID fetches the most recently seen device matching a volume
// UID. Returns nil when absent.
func (s *Store) DeviceByVolumeUID(ctx context.Context, volumeUID string) (*Device, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE volume_uid = ? ORDER BY last_seen DESC LIMIT 1`,
		volumeUID,
	)
	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("device by volume uid: %w", err)
	}
	return device, nil
}

// ListDevices returns all known devices ordered by most recent activity.
func (s *Store) ListDevices(ctx context.Context) ([]*Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

// TouchDevice updates last_seen plus the current volume identity for a device.
func (s *Store) TouchDevice(ctx context.Context, id int64, volumeUID, label string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE devices SET last_seen = ?, volume_uid = ?, label = ? WHERE id = ?`,
		formatTime(time.Now()),
		nullableString(volumeUID),
		nullableString(label),
		id,
	); err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	return nil
}

// SetDeviceCardID records the identity marker written to a card.
func (s *Store) SetDeviceCardID(ctx context.Context, id int64, cardID string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE devices SET card_id = ? WHERE id = ?`,
		nullableString(cardID),
		id,
	); err != nil {
		return fmt.Errorf("set device card id: %w", err)
	}
	return nil
}

// DeleteDevice removes a device; file rows cascade.
func (s *Store) DeleteDevice(ctx context.Context, id int64) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM devices WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}
