package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScanner(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateThumbnails(); err != nil {
		return err
	}
	if err := c.validateMerge(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		return errors.New("paths.archive_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		return errors.New("paths.database_path must be set")
	}
	return nil
}

func (c *Config) validateScanner() error {
	if len(c.Scanner.MountRoots) == 0 {
		return errors.New("scanner.mount_roots must include at least one directory")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":   c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":  c.Workflow.ErrorRetryInterval,
		"workflow.stale_job_timeout":     c.Workflow.StaleJobTimeout,
		"workflow.stale_check_interval":  c.Workflow.StaleCheckInterval,
		"workflow.progress_commit_every": c.Workflow.ProgressCommitEvery,
		"probe.timeout_seconds":          c.Probe.TimeoutSeconds,
		"probe.version":                  c.Probe.Version,
	}); err != nil {
		return err
	}
	if c.Workflow.StaleJobTimeout <= c.Workflow.StaleCheckInterval {
		return errors.New("workflow.stale_job_timeout must be greater than workflow.stale_check_interval")
	}
	return nil
}

func (c *Config) validateThumbnails() error {
	if err := ensurePositiveMap(map[string]int{
		"thumbnails.width":           c.Thumbnails.Width,
		"thumbnails.height":          c.Thumbnails.Height,
		"thumbnails.max_concurrent":  c.Thumbnails.MaxConcurrent,
		"thumbnails.timeout_seconds": c.Thumbnails.TimeoutSeconds,
		"thumbnails.pool_workers":    c.Thumbnails.PoolWorkers,
		"thumbnails.queue_size":      c.Thumbnails.QueueSize,
	}); err != nil {
		return err
	}
	if c.Thumbnails.Quality < 1 || c.Thumbnails.Quality > 31 {
		return errors.New("thumbnails.quality must be between 1 and 31")
	}
	if c.Thumbnails.TimestampSeconds < 0 {
		return errors.New("thumbnails.timestamp_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateMerge() error {
	if c.Merge.MinOverlapCount < 1 {
		return errors.New("merge.min_overlap_count must be >= 1")
	}
	if c.Merge.MinOverlapRatio <= 0 || c.Merge.MinOverlapRatio > 1 {
		return errors.New("merge.min_overlap_ratio must be between 0 and 1")
	}
	if c.Merge.NewRecordToleranceSeconds < 0 {
		return errors.New("merge.new_record_tolerance_seconds must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
