package preflight

import (
	"context"
	"path/filepath"
	"strings"

	"dashvault/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all filesystem preflight checks for the given config.
// The archive directory check is included only when one is configured,
// since the daemon tolerates offline archive storage at startup.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Thumbnail cache", cfg.Paths.ThumbnailDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Catalog directory", filepath.Dir(cfg.Paths.DatabasePath)),
	}

	if strings.TrimSpace(cfg.Paths.ArchiveDir) != "" {
		results = append(results, CheckDirectoryAccess("Archive directory", cfg.Paths.ArchiveDir))
	}

	return results
}
