package ytapi

import (
	"sync"
	"time"
)

// Per-call costs in provider quota units.
const (
	CostChannelList   int64 = 1
	CostPlaylistItems int64 = 1
	CostVideoList     int64 = 1
	CostSearch        int64 = 100
)

// Quota tracks process-local daily quota-unit spend. The counter resets at
// midnight Pacific time, which is when the provider resets its budgets. It is
// not shared across processes; running multiple discovery workers against the
// same key can overrun the effective daily budget.
type Quota struct {
	mu      sync.Mutex
	limit   int64
	used    int64
	resetAt time.Time
}

// NewQuota builds a tracker for the given daily unit budget.
func NewQuota(limit int64) *Quota {
	return &Quota{limit: limit, resetAt: nextResetTime(time.Now())}
}

// Add records spent quota units.
func (q *Quota) Add(units int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	q.used += units
}

// Used returns the units spent in the current daily window.
func (q *Quota) Used() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	return q.used
}

// Limit returns the configured daily budget.
func (q *Quota) Limit() int64 {
	return q.limit
}

// UsageRatio returns the fraction of the daily budget already spent.
func (q *Quota) UsageRatio() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	if q.limit <= 0 {
		return 0
	}
	return float64(q.used) / float64(q.limit)
}

// MarkExhausted forces the tracker to the full budget. Used when the provider
// reports quota exhaustion before our local accounting expected it.
func (q *Quota) MarkExhausted() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	q.used = q.limit
}

func (q *Quota) rollover() {
	now := time.Now()
	if now.After(q.resetAt) {
		q.used = 0
		q.resetAt = nextResetTime(now)
	}
}

// nextResetTime returns the next provider budget reset, midnight Pacific.
func nextResetTime(now time.Time) time.Time {
	pacific, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		pacific = time.UTC
	}
	local := now.In(pacific)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, pacific)
}
