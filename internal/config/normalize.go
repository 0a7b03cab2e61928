package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeScanner(); err != nil {
		return err
	}
	c.normalizeProbe()
	c.normalizeThumbnails()
	c.normalizeWorkflow()
	c.normalizeMerge()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ThumbnailDir) == "" {
		c.Paths.ThumbnailDir = defaultThumbnailDir
	}
	if c.Paths.ThumbnailDir, err = expandPath(c.Paths.ThumbnailDir); err != nil {
		return fmt.Errorf("paths.thumbnail_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = defaultDatabasePath
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeScanner() error {
	if len(c.Scanner.MountRoots) == 0 {
		c.Scanner.MountRoots = []string{"/media", "/run/media"}
	}
	roots := make([]string, 0, len(c.Scanner.MountRoots))
	seen := make(map[string]struct{}, len(c.Scanner.MountRoots))
	for _, root := range c.Scanner.MountRoots {
		expanded, err := expandPath(strings.TrimSpace(root))
		if err != nil {
			return fmt.Errorf("scanner.mount_roots: %w", err)
		}
		if expanded == "" {
			continue
		}
		if _, exists := seen[expanded]; exists {
			continue
		}
		seen[expanded] = struct{}{}
		roots = append(roots, expanded)
	}
	c.Scanner.MountRoots = roots
	if c.Scanner.VolumeCacheTTL <= 0 {
		c.Scanner.VolumeCacheTTL = defaultVolumeCacheTTL
	}
	return nil
}

func (c *Config) normalizeProbe() {
	if c.Probe.TimeoutSeconds <= 0 {
		c.Probe.TimeoutSeconds = defaultProbeTimeout
	}
	if c.Probe.Version <= 0 {
		c.Probe.Version = defaultProbeVersion
	}
}

func (c *Config) normalizeThumbnails() {
	if c.Thumbnails.Width <= 0 {
		c.Thumbnails.Width = defaultThumbWidth
	}
	if c.Thumbnails.Height <= 0 {
		c.Thumbnails.Height = defaultThumbHeight
	}
	if c.Thumbnails.Quality <= 0 {
		c.Thumbnails.Quality = defaultThumbQuality
	}
	if c.Thumbnails.TimestampSeconds < 0 {
		c.Thumbnails.TimestampSeconds = defaultThumbTimestamp
	}
	if c.Thumbnails.MaxConcurrent <= 0 {
		c.Thumbnails.MaxConcurrent = defaultThumbMaxConcurrent
	}
	if c.Thumbnails.TimeoutSeconds <= 0 {
		c.Thumbnails.TimeoutSeconds = defaultThumbTimeout
	}
	if c.Thumbnails.PoolWorkers <= 0 {
		c.Thumbnails.PoolWorkers = defaultThumbPoolWorkers
	}
	if c.Thumbnails.QueueSize <= 0 {
		c.Thumbnails.QueueSize = defaultThumbQueueSize
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.StaleJobTimeout <= 0 {
		c.Workflow.StaleJobTimeout = defaultStaleJobTimeout
	}
	if c.Workflow.StaleCheckInterval <= 0 {
		c.Workflow.StaleCheckInterval = defaultStaleCheckInterval
	}
	if c.Workflow.ProgressCommitEvery <= 0 {
		c.Workflow.ProgressCommitEvery = defaultProgressCommitEvery
	}
}

func (c *Config) normalizeMerge() {
	if c.Merge.MinOverlapCount <= 0 {
		c.Merge.MinOverlapCount = defaultMergeMinOverlapCount
	}
	if c.Merge.MinOverlapRatio <= 0 {
		c.Merge.MinOverlapRatio = defaultMergeMinOverlapRatio
	}
	if c.Merge.NewRecordToleranceSeconds <= 0 {
		c.Merge.NewRecordToleranceSeconds = defaultNewRecordToleranceSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
