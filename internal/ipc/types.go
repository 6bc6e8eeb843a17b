package ipc

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon processing.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StageHealth describes readiness of a pipeline stage.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running       bool           `json:"running"`
	QueueStats    map[string]int `json:"queue_stats"`
	LastError     string         `json:"last_error"`
	LastJob       *Job           `json:"last_job"`
	LockPath      string         `json:"lock_path"`
	CatalogDBPath string         `json:"catalog_db_path"`
	QueueDBPath   string         `json:"queue_db_path"`
	StageHealth   []StageHealth  `json:"stage_health"`
	PromotedCount int64          `json:"promoted_count"`
	PID           int            `json:"pid"`
}

// Job is the wire representation of a queue job.
type Job struct {
	ID          int64  `json:"id"`
	Key         string `json:"key"`
	Lane        string `json:"lane"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	RunAfter    string `json:"run_after"`
	LastError   string `json:"last_error"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// QueueListRequest limits queue listing size.
type QueueListRequest struct {
	Limit int `json:"limit"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Jobs []Job `json:"jobs"`
}

// QueueDescribeRequest fetches a single job by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

// QueueDescribeResponse contains a single queue entry.
type QueueDescribeResponse struct {
	Job Job `json:"job"`
}

// QueueClearCompletedRequest removes completed jobs.
type QueueClearCompletedRequest struct{}

// QueueClearCompletedResponse reports number of removed entries.
type QueueClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// TriggerRequest enqueues a pipeline stage out of schedule.
type TriggerRequest struct {
	JobType string `json:"job_type"`
}

// TriggerResponse reports whether a job was enqueued.
type TriggerResponse struct {
	Enqueued bool   `json:"enqueued"`
	Message  string `json:"message"`
}

// Source is the wire representation of a discovery source.
type Source struct {
	ID         int64  `json:"id"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	ChannelID  string `json:"channel_id"`
	Active     bool   `json:"active"`
	SyncStatus string `json:"sync_status"`
	LastSyncAt string `json:"last_sync_at,omitempty"`
}

// SourceAddRequest registers a channel for discovery.
type SourceAddRequest struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	ChannelID string `json:"channel_id"`
}

// SourceAddResponse contains the registered source.
type SourceAddResponse struct {
	Source Source `json:"source"`
}

// SourceListRequest fetches all registered sources.
type SourceListRequest struct{}

// SourceListResponse contains every registered source.
type SourceListResponse struct {
	Sources []Source `json:"sources"`
}

// Run is the wire representation of a discovery audit row.
type Run struct {
	ID          int64    `json:"id"`
	JobType     string   `json:"job_type"`
	Status      string   `json:"status"`
	Found       int      `json:"found"`
	Added       int      `json:"added"`
	Updated     int      `json:"updated"`
	Errors      []string `json:"errors,omitempty"`
	StartedAt   string   `json:"started_at,omitempty"`
	CompletedAt string   `json:"completed_at,omitempty"`
}

// RunListRequest fetches recent audit rows.
type RunListRequest struct {
	Limit int `json:"limit"`
}

// RunListResponse contains recent audit rows.
type RunListResponse struct {
	Runs []Run `json:"runs"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
