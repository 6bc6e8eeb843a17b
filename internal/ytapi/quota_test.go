package ytapi

import (
	"testing"
	"time"
)

func TestQuotaAccumulates(t *testing.T) {
	quota := NewQuota(10000)
	quota.Add(CostSearch)
	quota.Add(CostVideoList)
	quota.Add(CostVideoList)

	if used := quota.Used(); used != 102 {
		t.Errorf("expected 102 units spent, got %d", used)
	}
	if ratio := quota.UsageRatio(); ratio != 0.0102 {
		t.Errorf("expected ratio 0.0102, got %v", ratio)
	}
}

func TestQuotaMarkExhausted(t *testing.T) {
	quota := NewQuota(10000)
	quota.Add(37)
	quota.MarkExhausted()

	if ratio := quota.UsageRatio(); ratio < 1.0 {
		t.Errorf("expected ratio at least 1.0, got %v", ratio)
	}
}

func TestQuotaRollover(t *testing.T) {
	quota := NewQuota(10000)
	quota.Add(9500)
	quota.resetAt = time.Now().Add(-time.Minute)

	if used := quota.Used(); used != 0 {
		t.Errorf("expected spend reset after window end, got %d", used)
	}
}

func TestNextResetTimeIsMidnightPacific(t *testing.T) {
	pacific, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skip("tz database unavailable")
	}
	now := time.Date(2024, 11, 10, 15, 30, 0, 0, pacific)
	reset := nextResetTime(now)

	local := reset.In(pacific)
	if local.Hour() != 0 || local.Minute() != 0 {
		t.Errorf("expected midnight reset, got %v", local)
	}
	if !reset.After(now) {
		t.Errorf("reset %v not after now %v", reset, now)
	}
}
