package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bandstand/internal/config"
)

func TestDefaultValidatesWithAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.APIKey = "test-key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := config.Default()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing api key")
	}
	if !strings.Contains(err.Error(), "provider.api_key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero quota", func(c *config.Config) { c.Provider.DailyQuotaLimit = 0 }},
		{"zero call ceiling", func(c *config.Config) { c.Provider.CallsPerMinute = 0 }},
		{"threshold above one", func(c *config.Config) { c.Pipeline.MatchThreshold = 1.5 }},
		{"zero stats refresh age", func(c *config.Config) { c.Pipeline.StatsRefreshMaxAge = 0 }},
		{"zero lane concurrency", func(c *config.Config) { c.Lanes.Discovery = 0 }},
		{"bad fire time", func(c *config.Config) { c.Schedule.DiscoveryTime = "25:99" }},
		{"bad weekday", func(c *config.Config) { c.Schedule.ResyncWeekday = "Someday" }},
		{"heartbeat timeout too low", func(c *config.Config) { c.Queue.HeartbeatTimeout = 1 }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Provider.APIKey = "test-key"
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[provider]
api_key = "abc123"
daily_quota_limit = 5000

[lanes]
enrichment = 4
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected to load %s, got %s exists=%v", path, resolved, exists)
	}
	if cfg.Provider.APIKey != "abc123" {
		t.Fatalf("api key not loaded: %q", cfg.Provider.APIKey)
	}
	if cfg.Provider.DailyQuotaLimit != 5000 {
		t.Fatalf("quota override not applied: %d", cfg.Provider.DailyQuotaLimit)
	}
	if cfg.Lanes.Enrichment != 4 {
		t.Fatalf("lane override not applied: %d", cfg.Lanes.Enrichment)
	}
	// Untouched sections keep defaults.
	if cfg.Lanes.Discovery != 1 {
		t.Fatalf("expected default discovery concurrency, got %d", cfg.Lanes.Discovery)
	}
}

func TestParseClock(t *testing.T) {
	clock, err := config.ParseClock("04:30")
	if err != nil {
		t.Fatalf("ParseClock failed: %v", err)
	}
	if clock.Hour != 4 || clock.Minute != 30 {
		t.Fatalf("unexpected clock: %+v", clock)
	}
	if _, err := config.ParseClock("nonsense"); err == nil {
		t.Fatal("expected error for invalid clock")
	}
}

func TestParseWeekday(t *testing.T) {
	day, err := config.ParseWeekday("sunday")
	if err != nil {
		t.Fatalf("ParseWeekday failed: %v", err)
	}
	if day != time.Sunday {
		t.Fatalf("expected Sunday, got %v", day)
	}
}
