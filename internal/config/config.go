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

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Provider contains configuration for the external video-hosting API.
type Provider struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	DailyQuotaLimit int64  `toml:"daily_quota_limit"`
	CallsPerMinute  int    `toml:"calls_per_minute"`
	RequestTimeout  int    `toml:"request_timeout"`
}

// Pipeline contains tuning for the ingestion workers.
type Pipeline struct {
	SourceDelaySeconds  int     `toml:"source_delay_seconds"`
	BatchDelaySeconds   int     `toml:"batch_delay_seconds"`
	MatchThreshold      float64 `toml:"match_threshold"`
	MaintenanceDryRun   bool    `toml:"maintenance_dry_run"`
	StaleSyncHours      int     `toml:"stale_sync_hours"`
	StatsRefreshMaxAge  int     `toml:"stats_refresh_max_age_days"`
	RateLimitRetryLimit int     `toml:"rate_limit_retry_limit"`
}

// Lanes contains per-lane worker concurrency.
type Lanes struct {
	Discovery   int `toml:"discovery"`
	Enrichment  int `toml:"enrichment"`
	Maintenance int `toml:"maintenance"`
}

// Queue contains configuration for the job queue runtime.
type Queue struct {
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	MaxAttempts        int `toml:"max_attempts"`
	RetryBackoff       int `toml:"retry_backoff_seconds"`
	StaleJobHours      int `toml:"stale_job_hours"`
}

// Schedule contains daily fire times per pipeline stage, in "HH:MM" local time.
type Schedule struct {
	DiscoveryTime     string `toml:"discovery_time"`
	MatchingTime      string `toml:"matching_time"`
	PromotionTime     string `toml:"promotion_time"`
	MaintenanceTime   string `toml:"maintenance_time"`
	ResyncWeekday     string `toml:"resync_weekday"`
	ResyncTime        string `toml:"resync_time"`
	StatsRefreshHours int    `toml:"stats_refresh_hours"`
	TickSeconds       int    `toml:"tick_seconds"`
}

// Notifications contains configuration for the new-video fan-out webhook.
type Notifications struct {
	WebhookURL     string `toml:"webhook_url"`
	RequestTimeout int    `toml:"request_timeout"`
	Runs           bool   `toml:"runs"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bandstand.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Provider: video-hosting API credentials, cost budget, call ceiling
//   - Pipeline: worker pacing, match threshold, maintenance behavior
//   - Lanes: queue lane concurrency
//   - Queue: polling, heartbeats, retry policy
//   - Schedule: stage fire times
//   - Notifications: new-video fan-out webhook
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Provider      Provider      `toml:"provider"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Lanes         Lanes         `toml:"lanes"`
	Queue         Queue         `toml:"queue"`
	Schedule      Schedule      `toml:"schedule"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bandstand/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded. The bool reports whether a file was
// found at the resolved path.
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

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the data and log directories if missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the catalog database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// QueueDatabasePath returns the location of the job queue database file.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(c.Provider.BaseURL), "/")
	c.Provider.APIKey = strings.TrimSpace(c.Provider.APIKey)
	c.Notifications.WebhookURL = strings.TrimSpace(c.Notifications.WebhookURL)
	return nil
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return filepath.Abs(path)
}
