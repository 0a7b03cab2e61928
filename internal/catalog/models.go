package catalog

import (
	"strings"
	"time"
	"unicode/utf8"
)

// JobType identifies the work a queued job performs.
type JobType string

const (
	JobCardScan        JobType = "card_scan"
	JobImportBatch     JobType = "import_batch"
	JobProbeBatch      JobType = "probe_batch"
	JobProbeSingle     JobType = "probe_single"
	JobThumbBatch      JobType = "thumb_batch"
	JobDeviceThumbnail JobType = "thumb_device_batch"
)

// JobState represents the lifecycle of a job.
type JobState string

const (
	StateQueued    JobState = "queued"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCanceled  JobState = "canceled"
)

// Lane partitions job types into user-facing foreground work and
// best-effort background work. Each lane is drained by its own worker,
// so a long thumbnail batch never delays an import.
type Lane string

const (
	LaneForeground Lane = "foreground"
	LaneBackground Lane = "background"
)

var foregroundTypes = []JobType{JobCardScan, JobImportBatch, JobProbeBatch, JobProbeSingle}
var backgroundTypes = []JobType{JobThumbBatch, JobDeviceThumbnail}

var allJobTypes = func() []JobType {
	types := make([]JobType, 0, len(foregroundTypes)+len(backgroundTypes))
	types = append(types, foregroundTypes...)
	types = append(types, backgroundTypes...)
	return types
}()

var jobTypeSet = func() map[JobType]struct{} {
	set := make(map[JobType]struct{}, len(allJobTypes))
	for _, jt := range allJobTypes {
		set[jt] = struct{}{}
	}
	return set
}()

var allStates = []JobState{StateQueued, StateRunning, StateCompleted, StateFailed, StateCanceled}

var stateSet = func() map[JobState]struct{} {
	set := make(map[JobState]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// InterruptedRecoveryMessage is recorded when a foreground job is requeued
// after a daemon restart.
const InterruptedRecoveryMessage = "Re-queued: worker was interrupted"

// InterruptedBackgroundMessage is recorded when a background job is failed
// after a daemon restart; the next scan recreates the work.
const InterruptedBackgroundMessage = "Interrupted by daemon restart; will be recreated on next scan"

// SupersededMessage is recorded when a queued device thumbnail batch is
// replaced by one from a newer scan.
const SupersededMessage = "Superseded by newer scan"

// maxErrorMessageLen bounds stored error text so a pathological tool dump
// cannot bloat the database.
const maxErrorMessageLen = 1000

// Job represents a unit of queued work persisted in SQLite.
type Job struct {
	ID              int64
	Type            JobType
	State           JobState
	PayloadJSON     string
	ResultJSON      string
	ProgressPercent float64
	ProgressMessage string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// Lane returns the lane the job's type belongs to.
func (j *Job) Lane() Lane {
	return LaneForType(j.Type)
}

// IsTerminal reports whether the job has reached a final state.
func (j *Job) IsTerminal() bool {
	switch j.State {
	case StateCompleted, StateFailed, StateCanceled:
		return true
	default:
		return false
	}
}

// LaneForType maps a job type to its lane.
func LaneForType(jt JobType) Lane {
	switch jt {
	case JobThumbBatch, JobDeviceThumbnail:
		return LaneBackground
	default:
		return LaneForeground
	}
}

// TypesForLane returns the job types drained by a lane, in claim priority order.
func TypesForLane(lane Lane) []JobType {
	var src []JobType
	if lane == LaneBackground {
		src = backgroundTypes
	} else {
		src = foregroundTypes
	}
	cp := make([]JobType, len(src))
	copy(cp, src)
	return cp
}

// AllJobTypes returns the ordered list of known job types.
func AllJobTypes() []JobType {
	cp := make([]JobType, len(allJobTypes))
	copy(cp, allJobTypes)
	return cp
}

// ParseJobType converts a string into a known JobType.
func ParseJobType(value string) (JobType, bool) {
	normalized := JobType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := jobTypeSet[normalized]
	return normalized, ok
}

// ParseJobState converts a string into a known JobState.
func ParseJobState(value string) (JobState, bool) {
	normalized := JobState(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// Device represents a known SD card.
type Device struct {
	ID        int64
	CardID    string
	Token     string
	VolumeUID string
	Label     string
	FirstSeen time.Time
	LastSeen  time.Time
}

// IsFresh reports whether the device record was created and never updated
// since, within the provided tolerance. Used to distinguish a brand-new
// record from one with scan history.
func (d *Device) IsFresh(tolerance time.Duration) bool {
	delta := d.LastSeen.Sub(d.FirstSeen)
	if delta < 0 {
		delta = -delta
	}
	return delta <= tolerance
}

// ImportState tracks a device file's journey into the archive.
type ImportState string

const (
	ImportPending   ImportState = "pending"
	ImportImported  ImportState = "imported"
	ImportDuplicate ImportState = "duplicate"
	ImportFailed    ImportState = "failed"
	ImportMissing   ImportState = "missing"
)

// DeviceFile represents one recording observed on a card.
type DeviceFile struct {
	ID           int64
	DeviceID     int64
	RelPath      string
	SizeBytes    int64
	ModTime      time.Time
	Fingerprint  string
	Camera       string
	Mode         string
	RecordedAt   *time.Time
	ImportState  ImportState
	ClipID       *int64
	ErrorMessage string
	LastSeen     time.Time
}

// MetadataStatus tracks whether a clip's stream metadata has been extracted.
type MetadataStatus string

const (
	MetadataPending   MetadataStatus = "pending"
	MetadataExtracted MetadataStatus = "extracted"
	MetadataPartial   MetadataStatus = "partial"
	MetadataFailed    MetadataStatus = "failed"
)

// Clip represents an imported recording in the archive, keyed by content hash.
type Clip struct {
	ID           int64
	SHA256       string
	ArchivePath  string
	OriginalName string
	SizeBytes    int64
	Camera       string
	Mode         string
	RecordedAt   *time.Time
	ImportedAt   time.Time

	DurationSeconds float64
	Width           int
	Height          int
	FPS             float64
	VideoCodec      string
	AudioCodec      string
	BitRate         int64
	Rotation        int
	ProbeOutput     string
	ProbeVersion    int
	MetadataStatus  MetadataStatus
	MetadataError   string
}

// ClipSource records which card and path a clip was imported from.
// A clip deduplicated across cards accumulates one source per origin.
type ClipSource struct {
	ID         int64
	ClipID     int64
	DeviceID   int64
	RelPath    string
	ImportedAt time.Time
}

// TruncateError bounds an error message to the stored maximum, cutting on a
// rune boundary so the stored text stays valid UTF-8.
func TruncateError(message string) string {
	if len(message) <= maxErrorMessageLen {
		return message
	}
	cut := maxErrorMessageLen
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}
