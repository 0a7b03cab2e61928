package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a queued unit of work in a transport-friendly format.
type Job struct {
	ID           int64           `json:"id"`
	Type         string          `json:"type"`
	State        string          `json:"state"`
	Lane         string          `json:"lane"`
	Progress     JobProgress     `json:"progress"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
	UpdatedAt    string          `json:"updatedAt,omitempty"`
	StartedAt    string          `json:"startedAt,omitempty"`
	FinishedAt   string          `json:"finishedAt,omitempty"`
}

// JobProgress captures batch progress for a job.
type JobProgress struct {
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// Device describes a known SD card.
type Device struct {
	ID        int64  `json:"id"`
	CardID    string `json:"cardId"`
	VolumeUID string `json:"volumeUid,omitempty"`
	Label     string `json:"label,omitempty"`
	FirstSeen string `json:"firstSeen,omitempty"`
	LastSeen  string `json:"lastSeen,omitempty"`
}

// DeviceFile describes one recording observed on a card.
type DeviceFile struct {
	ID           int64  `json:"id"`
	DeviceID     int64  `json:"deviceId"`
	RelPath      string `json:"relPath"`
	SizeBytes    int64  `json:"sizeBytes"`
	ModTime      string `json:"modTime,omitempty"`
	Fingerprint  string `json:"fingerprint"`
	Camera       string `json:"camera,omitempty"`
	Mode         string `json:"mode,omitempty"`
	RecordedAt   string `json:"recordedAt,omitempty"`
	ImportState  string `json:"importState"`
	ClipID       *int64 `json:"clipId,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	LastSeen     string `json:"lastSeen,omitempty"`
}

// Clip describes an archived recording.
type Clip struct {
	ID           int64  `json:"id"`
	SHA256       string `json:"sha256"`
	ArchivePath  string `json:"archivePath"`
	OriginalName string `json:"originalName"`
	SizeBytes    int64  `json:"sizeBytes"`
	Camera       string `json:"camera,omitempty"`
	Mode         string `json:"mode,omitempty"`
	RecordedAt   string `json:"recordedAt,omitempty"`
	ImportedAt   string `json:"importedAt,omitempty"`

	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	FPS             float64 `json:"fps,omitempty"`
	VideoCodec      string  `json:"videoCodec,omitempty"`
	AudioCodec      string  `json:"audioCodec,omitempty"`
	BitRate         int64   `json:"bitRate,omitempty"`
	Rotation        int     `json:"rotation,omitempty"`
	ProbeVersion    int     `json:"probeVersion,omitempty"`
	MetadataStatus  string  `json:"metadataStatus"`
	MetadataError   string  `json:"metadataError,omitempty"`
}

// DependencyStatus reports availability of an external tool.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running        bool               `json:"running"`
	PID            int                `json:"pid"`
	DatabasePath   string             `json:"databasePath"`
	LockFilePath   string             `json:"lockFilePath"`
	MonitorRunning bool               `json:"monitorRunning"`
	JobStats       map[string]int     `json:"jobStats,omitempty"`
	ClipCount      int                `json:"clipCount"`
	DeviceCount    int                `json:"deviceCount"`
	Dependencies   []DependencyStatus `json:"dependencies,omitempty"`
}

// ScanRequest asks the daemon to scan one card or all mounted cards.
type ScanRequest struct {
	Mountpoint string `json:"mountpoint,omitempty"`
}

// ImportRequest asks the daemon to import pending files from a device.
type ImportRequest struct {
	DeviceID int64   `json:"deviceId"`
	FileIDs  []int64 `json:"fileIds,omitempty"`
}

// JobListResponse wraps a job listing.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// DeviceListResponse wraps a device listing.
type DeviceListResponse struct {
	Devices []Device `json:"devices"`
}

// DeviceFilesResponse wraps the files of one device.
type DeviceFilesResponse struct {
	Device Device       `json:"device"`
	Files  []DeviceFile `json:"files"`
}

// ClipListResponse wraps a clip listing.
type ClipListResponse struct {
	Clips []Clip `json:"clips"`
}

// ClipResponse wraps a single clip.
type ClipResponse struct {
	Clip Clip `json:"clip"`
}
