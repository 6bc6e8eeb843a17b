package config

const (
	defaultDataDir         = "~/.local/share/bandstand"
	defaultLogDir          = "~/.local/share/bandstand/logs"
	defaultProviderBaseURL = "https://www.googleapis.com/youtube/v3"
	defaultDailyQuota      = 10000
	defaultCallsPerMinute  = 60
	defaultRequestTimeout  = 30
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultMatchThreshold  = 0.6
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Provider: Provider{
			BaseURL:         defaultProviderBaseURL,
			DailyQuotaLimit: defaultDailyQuota,
			CallsPerMinute:  defaultCallsPerMinute,
			RequestTimeout:  defaultRequestTimeout,
		},
		Pipeline: Pipeline{
			SourceDelaySeconds:  2,
			BatchDelaySeconds:   1,
			MatchThreshold:      defaultMatchThreshold,
			StaleSyncHours:      6,
			StatsRefreshMaxAge:  30,
			RateLimitRetryLimit: 3,
		},
		Lanes: Lanes{
			Discovery:   1,
			Enrichment:  10,
			Maintenance: 1,
		},
		Queue: Queue{
			PollInterval:       5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  15,
			HeartbeatTimeout:   120,
			MaxAttempts:        3,
			RetryBackoff:       30,
			StaleJobHours:      48,
		},
		Schedule: Schedule{
			DiscoveryTime:     "02:00",
			MatchingTime:      "03:30",
			PromotionTime:     "05:00",
			MaintenanceTime:   "06:30",
			ResyncWeekday:     "Sunday",
			ResyncTime:        "01:00",
			StatsRefreshHours: 6,
			TickSeconds:       30,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Runs:           true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
