package api

import (
	"context"
	"strconv"
	"strings"

	"dashvault/internal/catalog"
)

// CatalogReader abstracts catalog persistence interactions needed for API queries.
type CatalogReader interface {
	ListJobs(ctx context.Context, states ...catalog.JobState) ([]*catalog.Job, error)
	GetJob(ctx context.Context, id int64) (*catalog.Job, error)
	JobStats(ctx context.Context) (map[catalog.JobState]int, error)
	ListDevices(ctx context.Context) ([]*catalog.Device, error)
	GetDevice(ctx context.Context, id int64) (*catalog.Device, error)
	DeviceByCardID(ctx context.Context, cardID string) (*catalog.Device, error)
	DeviceByVolumeUID(ctx context.Context, volumeUID string) (*catalog.Device, error)
	ListDeviceFiles(ctx context.Context, deviceID int64, states ...catalog.ImportState) ([]*catalog.DeviceFile, error)
	ListClips(ctx context.Context, limit int) ([]*catalog.Clip, error)
	GetClip(ctx context.Context, id int64) (*catalog.Clip, error)
	ClipCount(ctx context.Context) (int, error)
}

// CatalogService exposes read-only catalog operations returning API DTOs.
type CatalogService struct {
	store CatalogReader
}

// NewCatalogService constructs a CatalogService around the provided reader.
func NewCatalogService(store CatalogReader) *CatalogService {
	if store == nil {
		return nil
	}
	return &CatalogService{store: store}
}

// ListJobs returns jobs filtered by state.
func (s *CatalogService) ListJobs(ctx context.Context, states ...catalog.JobState) ([]Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.ListJobs(ctx, states...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// DescribeJob fetches a single job.
func (s *CatalogService) DescribeJob(ctx context.Context, id int64) (*Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	job, err := s.store.GetJob(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

// JobStats returns job counts keyed by state string.
func (s *CatalogService) JobStats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.JobStats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeJobStats(stats), nil
}

// ListDevices returns all known devices.
func (s *CatalogService) ListDevices(ctx context.Context) ([]Device, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	devices, err := s.store.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	return FromDevices(devices), nil
}

// ResolveDevice looks a device up by numeric ID, card ID, or volume UID,
// in that order. Returns nil when nothing matches.
func (s *CatalogService) ResolveDevice(ctx context.Context, ref string) (*catalog.Device, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return nil, nil
	}
	if id, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		if device, err := s.store.GetDevice(ctx, id); err != nil || device != nil {
			return device, err
		}
	}
	if device, err := s.store.DeviceByCardID(ctx, trimmed); err != nil || device != nil {
		return device, err
	}
	return s.store.DeviceByVolumeUID(ctx, trimmed)
}

// DeviceFiles returns a device and its observed files. The device is nil
// when the reference does not resolve.
func (s *CatalogService) DeviceFiles(ctx context.Context, ref string, states ...catalog.ImportState) (*Device, []DeviceFile, error) {
	device, err := s.ResolveDevice(ctx, ref)
	if err != nil || device == nil {
		return nil, nil, err
	}
	files, err := s.store.ListDeviceFiles(ctx, device.ID, states...)
	if err != nil {
		return nil, nil, err
	}
	dto := FromDevice(device)
	return &dto, FromDeviceFiles(files), nil
}

// ListClips returns archived clips, newest first, capped at limit when positive.
func (s *CatalogService) ListClips(ctx context.Context, limit int) ([]Clip, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	clips, err := s.store.ListClips(ctx, limit)
	if err != nil {
		return nil, err
	}
	return FromClips(clips), nil
}

// DescribeClip fetches a single clip.
func (s *CatalogService) DescribeClip(ctx context.Context, id int64) (*Clip, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	clip, err := s.store.GetClip(ctx, id)
	if err != nil || clip == nil {
		return nil, err
	}
	dto := FromClip(clip)
	return &dto, nil
}

// Counts returns total clips and devices for status output.
func (s *CatalogService) Counts(ctx context.Context) (clips, devices int, err error) {
	if s == nil || s.store == nil {
		return 0, 0, nil
	}
	clips, err = s.store.ClipCount(ctx)
	if err != nil {
		return 0, 0, err
	}
	all, err := s.store.ListDevices(ctx)
	if err != nil {
		return 0, 0, err
	}
	return clips, len(all), nil
}
