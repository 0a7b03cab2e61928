package config

const (
	defaultArchiveDir                = "~/dashcam/archive"
	defaultStagingDir                = "~/.local/share/dashvault/staging"
	defaultThumbnailDir              = "~/.local/share/dashvault/thumbnails"
	defaultLogDir                    = "~/.local/share/dashvault/logs"
	defaultDatabasePath              = "~/.local/share/dashvault/dashvault.db"
	defaultAPIBind                   = "127.0.0.1:7519"
	defaultVolumeCacheTTL            = 30
	defaultProbeTimeout              = 30
	defaultProbeVersion              = 1
	defaultThumbWidth                = 320
	defaultThumbHeight               = 180
	defaultThumbQuality              = 2
	defaultThumbTimestamp            = 1
	defaultThumbMaxConcurrent        = 4
	defaultThumbTimeout              = 10
	defaultThumbPoolWorkers          = 2
	defaultThumbQueueSize            = 64
	defaultQueuePollInterval         = 5
	defaultErrorRetryInterval        = 10
	defaultStaleJobTimeout           = 600
	defaultStaleCheckInterval        = 60
	defaultProgressCommitEvery       = 25
	defaultMergeMinOverlapCount      = 10
	defaultMergeMinOverlapRatio      = 0.30
	defaultNewRecordToleranceSeconds = 5
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ArchiveDir:   defaultArchiveDir,
			StagingDir:   defaultStagingDir,
			ThumbnailDir: defaultThumbnailDir,
			LogDir:       defaultLogDir,
			DatabasePath: defaultDatabasePath,
			APIBind:      defaultAPIBind,
		},
		Scanner: Scanner{
			MountRoots:       []string{"/media", "/run/media"},
			VolumeCacheTTL:   defaultVolumeCacheTTL,
			AutoScanOnInsert: true,
		},
		Probe: Probe{
			TimeoutSeconds: defaultProbeTimeout,
			Version:        defaultProbeVersion,
		},
		Thumbnails: Thumbnails{
			Width:            defaultThumbWidth,
			Height:           defaultThumbHeight,
			Quality:          defaultThumbQuality,
			TimestampSeconds: defaultThumbTimestamp,
			MaxConcurrent:    defaultThumbMaxConcurrent,
			TimeoutSeconds:   defaultThumbTimeout,
			PoolWorkers:      defaultThumbPoolWorkers,
			QueueSize:        defaultThumbQueueSize,
		},
		Workflow: Workflow{
			QueuePollInterval:   defaultQueuePollInterval,
			ErrorRetryInterval:  defaultErrorRetryInterval,
			StaleJobTimeout:     defaultStaleJobTimeout,
			StaleCheckInterval:  defaultStaleCheckInterval,
			ProgressCommitEvery: defaultProgressCommitEvery,
		},
		Merge: Merge{
			MinOverlapCount:           defaultMergeMinOverlapCount,
			MinOverlapRatio:           defaultMergeMinOverlapRatio,
			NewRecordToleranceSeconds: defaultNewRecordToleranceSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
