package jobqueue

import "time"

// Status is the lifecycle state of a queued job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Lane names the concurrency pool a job runs in.
type Lane string

const (
	LaneDiscovery   Lane = "discovery"
	LaneEnrichment  Lane = "enrichment"
	LaneMaintenance Lane = "maintenance"
)

// Lanes lists every lane the workflow manager polls.
func Lanes() []Lane {
	return []Lane{LaneDiscovery, LaneEnrichment, LaneMaintenance}
}

// Job is one unit of queued work. Key is a deterministic identifier so
// re-enqueueing the same work is a harmless duplicate.
type Job struct {
	ID          int64
	Key         string
	Lane        Lane
	Type        string
	Payload     []byte
	Status      Status
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	HeartbeatAt *time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
