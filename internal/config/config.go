package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	ArchiveDir   string `toml:"archive_dir"`
	StagingDir   string `toml:"staging_dir"`
	ThumbnailDir string `toml:"thumbnail_dir"`
	LogDir       string `toml:"log_dir"`
	DatabasePath string `toml:"database_path"`
	APIBind      string `toml:"api_bind"`
	// APIToken, when set, requires Authorization: Bearer <token> on every
	// API request. Empty disables authentication (loopback-only default).
	APIToken string `toml:"api_token"`
}

// Scanner contains configuration for SD card scanning.
type Scanner struct {
	// MountRoots are directories searched for mounted cards when no explicit
	// mountpoint is given (e.g. /media, /run/media/<user>).
	MountRoots []string `toml:"mount_roots"`
	// VolumeCacheTTL is how long (seconds) an lsblk enumeration is reused
	// before the block device list is refreshed.
	VolumeCacheTTL int `toml:"volume_cache_ttl"`
	// AutoScanOnInsert enqueues a card scan when a removable volume mounts.
	AutoScanOnInsert bool `toml:"auto_scan_on_insert"`
}

// Probe contains configuration for metadata extraction via ffprobe.
type Probe struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	// Version tags extracted metadata; bumping it causes clips to be
	// re-probed on the next probe batch.
	Version int `toml:"version"`
}

// Thumbnails contains configuration for thumbnail generation.
type Thumbnails struct {
	Width            int `toml:"width"`
	Height           int `toml:"height"`
	Quality          int `toml:"quality"`
	TimestampSeconds int `toml:"timestamp_seconds"`
	MaxConcurrent    int `toml:"max_concurrent"`
	TimeoutSeconds   int `toml:"timeout_seconds"`
	PoolWorkers      int `toml:"pool_workers"`
	QueueSize        int `toml:"queue_size"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval   int `toml:"queue_poll_interval"`
	ErrorRetryInterval  int `toml:"error_retry_interval"`
	StaleJobTimeout     int `toml:"stale_job_timeout"`
	StaleCheckInterval  int `toml:"stale_check_interval"`
	ProgressCommitEvery int `toml:"progress_commit_every"`
}

// Merge contains thresholds for reconciling a re-formatted card with the
// device record it previously belonged to.
type Merge struct {
	// MinOverlapCount is the minimum number of shared file fingerprints
	// required before two device records are considered the same card.
	MinOverlapCount int `toml:"min_overlap_count"`
	// MinOverlapRatio is the minimum fraction of the candidate's fingerprints
	// that must also appear on the existing record.
	MinOverlapRatio float64 `toml:"min_overlap_ratio"`
	// NewRecordToleranceSeconds bounds how far apart first_seen and last_seen
	// may be for a device record to still count as freshly created.
	NewRecordToleranceSeconds int `toml:"new_record_tolerance_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dashvault.
//
// Configuration sections by subsystem:
//   - Paths: directories, database location, API bind address
//   - Scanner: card discovery and volume cache behavior
//   - Probe: ffprobe timeout and metadata versioning
//   - Thumbnails: dimensions, quality, and concurrency limits
//   - Workflow: daemon polling intervals and stale-job recovery
//   - Merge: device identity reconciliation thresholds
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Scanner    Scanner    `toml:"scanner"`
	Probe      Probe      `toml:"probe"`
	Thumbnails Thumbnails `toml:"thumbnails"`
	Workflow   Workflow   `toml:"workflow"`
	Merge      Merge      `toml:"merge"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dashvault/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/dashvault/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dashvault.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// ArchiveDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.ThumbnailDir, c.Paths.LogDir, filepath.Dir(c.Paths.DatabasePath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.ArchiveDir, 0o755)
	}
	return nil
}

// FFprobeBinary returns the ffprobe executable name used for metadata extraction.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// FFmpegBinary returns the ffmpeg executable name used for thumbnail generation.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// LsblkBinary returns the lsblk executable name used for volume enumeration.
func (c *Config) LsblkBinary() string {
	return "lsblk"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
