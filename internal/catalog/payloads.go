package catalog

import (
	"encoding/json"
	"fmt"
)

// ScanPayload is the input for a card_scan job.
type ScanPayload struct {
	Mountpoint string `json:"mountpoint"`
	VolumeUID  string `json:"volume_uid,omitempty"`
	Label      string `json:"label,omitempty"`
}

// ImportPayload is the input for an import_batch job.
type ImportPayload struct {
	DeviceID int64   `json:"device_id"`
	FileIDs  []int64 `json:"file_ids"`
}

// ProbePayload is the input for a probe_batch job. An empty ClipIDs slice
// means probe every clip whose metadata is missing or stale.
type ProbePayload struct {
	ClipIDs []int64 `json:"clip_ids,omitempty"`
}

// SingleProbePayload is the input for a probe_single job.
type SingleProbePayload struct {
	ClipID int64 `json:"clip_id"`
}

// ThumbPayload is the input for a thumb_batch job.
type ThumbPayload struct {
	ClipIDs []int64 `json:"clip_ids"`
}

// DeviceThumbPayload is the input for a thumb_device_batch job.
type DeviceThumbPayload struct {
	DeviceID   int64  `json:"device_id"`
	Mountpoint string `json:"mountpoint"`
}

// ItemFailure captures one failed item inside a batch outcome.
type ItemFailure struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

// BatchOutcome summarizes a batch job's per-item results. A batch with
// partial failures still completes; the failures live here.
type BatchOutcome struct {
	Completed []int64       `json:"completed"`
	Failed    []ItemFailure `json:"failed,omitempty"`
	Skipped   []int64       `json:"skipped,omitempty"`
}

// EncodePayload serializes a job payload for storage.
func EncodePayload(payload any) (string, error) {
	if payload == nil {
		return "", nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

// DecodePayload deserializes a stored job payload into out.
func DecodePayload(raw string, out any) error {
	if raw == "" {
		return fmt.Errorf("decode payload: empty payload")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// EncodeOutcome serializes a batch outcome for the job result column.
func EncodeOutcome(outcome BatchOutcome) (string, error) {
	data, err := json.Marshal(outcome)
	if err != nil {
		return "", fmt.Errorf("encode outcome: %w", err)
	}
	return string(data), nil
}

// DecodeOutcome deserializes a stored batch outcome.
func DecodeOutcome(raw string) (BatchOutcome, error) {
	var outcome BatchOutcome
	if raw == "" {
		return outcome, nil
	}
	if err := json.Unmarshal([]byte(raw), &outcome); err != nil {
		return outcome, fmt.Errorf("decode outcome: %w", err)
	}
	return outcome, nil
}
