package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLanes(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateProvider() error {
	if c.Provider.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/bandstand/config.toml"
		}
		return fmt.Errorf("provider.api_key is required; edit %s (create with 'bandstand config init')", defaultPath)
	}
	if c.Provider.BaseURL == "" {
		return errors.New("provider.base_url must be set")
	}
	if c.Provider.DailyQuotaLimit <= 0 {
		return errors.New("provider.daily_quota_limit must be positive")
	}
	if c.Provider.CallsPerMinute <= 0 {
		return errors.New("provider.calls_per_minute must be positive")
	}
	if c.Provider.RequestTimeout <= 0 {
		return errors.New("provider.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MatchThreshold < 0 || c.Pipeline.MatchThreshold > 1 {
		return errors.New("pipeline.match_threshold must be between 0 and 1")
	}
	if c.Pipeline.SourceDelaySeconds < 0 || c.Pipeline.BatchDelaySeconds < 0 {
		return errors.New("pipeline delays must not be negative")
	}
	if c.Pipeline.StatsRefreshMaxAge <= 0 {
		return errors.New("pipeline.stats_refresh_max_age_days must be positive")
	}
	return nil
}

func (c *Config) validateLanes() error {
	if c.Lanes.Discovery <= 0 || c.Lanes.Enrichment <= 0 || c.Lanes.Maintenance <= 0 {
		return errors.New("lane concurrency values must be positive")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.PollInterval <= 0 {
		return errors.New("queue.poll_interval must be positive")
	}
	if c.Queue.MaxAttempts <= 0 {
		return errors.New("queue.max_attempts must be positive")
	}
	if c.Queue.HeartbeatTimeout <= c.Queue.HeartbeatInterval {
		return errors.New("queue.heartbeat_timeout must exceed queue.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateSchedule() error {
	times := map[string]string{
		"schedule.discovery_time":   c.Schedule.DiscoveryTime,
		"schedule.matching_time":    c.Schedule.MatchingTime,
		"schedule.promotion_time":   c.Schedule.PromotionTime,
		"schedule.maintenance_time": c.Schedule.MaintenanceTime,
		"schedule.resync_time":      c.Schedule.ResyncTime,
	}
	for key, value := range times {
		if _, err := ParseClock(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if _, err := ParseWeekday(c.Schedule.ResyncWeekday); err != nil {
		return fmt.Errorf("schedule.resync_weekday: %w", err)
	}
	if c.Schedule.StatsRefreshHours <= 0 {
		return errors.New("schedule.stats_refresh_hours must be positive")
	}
	if c.Schedule.TickSeconds <= 0 {
		return errors.New("schedule.tick_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

// Clock is a time of day with minute resolution.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" into a Clock.
func ParseClock(value string) (Clock, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return Clock{}, fmt.Errorf("expected HH:MM, got %q", value)
	}
	return Clock{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// ParseWeekday converts a weekday name into time.Weekday.
func ParseWeekday(value string) (time.Weekday, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for day := time.Sunday; day <= time.Saturday; day++ {
		if strings.ToLower(day.String()) == normalized {
			return day, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", value)
}
