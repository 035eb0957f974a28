package config

const (
	defaultDataDir                   = "~/bids"
	defaultStagingDir                = "~/.local/share/lossless/staging"
	defaultLogDir                    = "~/.local/share/lossless/logs"
	defaultLogRetentionDays          = 60
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultOpenNeuroEndpoint         = "https://openneuro.org/crn/graphql"
	defaultOpenNeuroRequestTimeout   = 30
	defaultOpenNeuroDownloadTimeout  = 900
	defaultOpenNeuroMaxRetries       = 3
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultNotifyDedupWindowSeconds  = 600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			CacheDir:   defaultCacheDir(),
		},
		OpenNeuro: OpenNeuro{
			Endpoint:        defaultOpenNeuroEndpoint,
			RequestTimeout:  defaultOpenNeuroRequestTimeout,
			DownloadTimeout: defaultOpenNeuroDownloadTimeout,
			MaxRetries:      defaultOpenNeuroMaxRetries,
		},
		Notifications: Notifications{
			RequestTimeout:     10,
			Ingest:             true,
			Preprocess:         true,
			Report:             true,
			Errors:             true,
			DedupWindowSeconds: defaultNotifyDedupWindowSeconds,
		},
		Workflow: Workflow{
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
			WatchScanInterval:  10,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
