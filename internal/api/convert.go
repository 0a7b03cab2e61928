package api

import (
	"encoding/json"
	"time"

	"dashvault/internal/catalog"
	"dashvault/internal/deps"
)

// FromJob converts a catalog job to its API representation.
func FromJob(job *catalog.Job) Job {
	if job == nil {
		return Job{}
	}

	dto := Job{
		ID:    job.ID,
		Type:  string(job.Type),
		State: string(job.State),
		Lane:  string(job.Lane()),
		Progress: JobProgress{
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    formatTimestamp(job.CreatedAt),
		UpdatedAt:    formatTimestamp(job.UpdatedAt),
	}
	if job.StartedAt != nil {
		dto.StartedAt = formatTimestamp(*job.StartedAt)
	}
	if job.FinishedAt != nil {
		dto.FinishedAt = formatTimestamp(*job.FinishedAt)
	}
	if raw := job.PayloadJSON; raw != "" {
		dto.Payload = json.RawMessage(raw)
	}
	if raw := job.ResultJSON; raw != "" {
		dto.Result = json.RawMessage(raw)
	}
	return dto
}

// FromJobs converts a slice of catalog jobs.
func FromJobs(jobs []*catalog.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromDevice converts a catalog device to its API representation.
func FromDevice(device *catalog.Device) Device {
	if device == nil {
		return Device{}
	}
	return Device{
		ID:        device.ID,
		CardID:    device.CardID,
		VolumeUID: device.VolumeUID,
		Label:     device.Label,
		FirstSeen: formatTimestamp(device.FirstSeen),
		LastSeen:  formatTimestamp(device.LastSeen),
	}
}

// FromDevices converts a slice of catalog devices.
func FromDevices(devices []*catalog.Device) []Device {
	out := make([]Device, 0, len(devices))
	for _, device := range devices {
		out = append(out, FromDevice(device))
	}
	return out
}

// FromDeviceFile converts a catalog device file to its API representation.
func FromDeviceFile(file *catalog.DeviceFile) DeviceFile {
	if file == nil {
		return DeviceFile{}
	}
	dto := DeviceFile{
		ID:           file.ID,
		DeviceID:     file.DeviceID,
		RelPath:      file.RelPath,
		SizeBytes:    file.SizeBytes,
		ModTime:      formatTimestamp(file.ModTime),
		Fingerprint:  file.Fingerprint,
		Camera:       file.Camera,
		Mode:         file.Mode,
		ImportState:  string(file.ImportState),
		ClipID:       file.ClipID,
		ErrorMessage: file.ErrorMessage,
		LastSeen:     formatTimestamp(file.LastSeen),
	}
	if file.RecordedAt != nil {
		dto.RecordedAt = formatTimestamp(*file.RecordedAt)
	}
	return dto
}

// FromDeviceFiles converts a slice of catalog device files.
func FromDeviceFiles(files []*catalog.DeviceFile) []DeviceFile {
	out := make([]DeviceFile, 0, len(files))
	for _, file := range files {
		out = append(out, FromDeviceFile(file))
	}
	return out
}

// FromClip converts a catalog clip to its API representation. The raw probe
// output is omitted; it is reprocessing input, not display data.
func FromClip(clip *catalog.Clip) Clip {
	if clip == nil {
		return Clip{}
	}
	dto := Clip{
		ID:           clip.ID,
		SHA256:       clip.SHA256,
		ArchivePath:  clip.ArchivePath,
		OriginalName: clip.OriginalName,
		SizeBytes:    clip.SizeBytes,
		Camera:       clip.Camera,
		Mode:         clip.Mode,
		ImportedAt:   formatTimestamp(clip.ImportedAt),

		DurationSeconds: clip.DurationSeconds,
		Width:           clip.Width,
		Height:          clip.Height,
		FPS:             clip.FPS,
		VideoCodec:      clip.VideoCodec,
		AudioCodec:      clip.AudioCodec,
		BitRate:         clip.BitRate,
		Rotation:        clip.Rotation,
		ProbeVersion:    clip.ProbeVersion,
		MetadataStatus:  string(clip.MetadataStatus),
		MetadataError:   clip.MetadataError,
	}
	if clip.RecordedAt != nil {
		dto.RecordedAt = formatTimestamp(*clip.RecordedAt)
	}
	return dto
}

// FromClips converts a slice of catalog clips.
func FromClips(clips []*catalog.Clip) []Clip {
	out := make([]Clip, 0, len(clips))
	for _, clip := range clips {
		out = append(out, FromClip(clip))
	}
	return out
}

// FromDependencyStatuses converts external tool check results.
func FromDependencyStatuses(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		})
	}
	return out
}

// MergeJobStats converts state-keyed counts to string keys for transport.
func MergeJobStats(stats map[catalog.JobState]int) map[string]int {
	out := make(map[string]int, len(stats))
	for state, count := range stats {
		out[string(state)] = count
	}
	return out
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
