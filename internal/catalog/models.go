package catalog

import "time"

// SyncStatus tracks where a channel source or staged video sits in the
// ingestion lifecycle.
type SyncStatus string

const (
	SyncPending   SyncStatus = "pending"
	SyncInFlight  SyncStatus = "syncing"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// JobStatus tracks the audit lifecycle of one pipeline run. Transitions only
// move forward: queued, then in_progress, then a terminal state.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// SourceKind selects which channel-owner table a discovery run reads.
type SourceKind string

const (
	SourceOrganization SourceKind = "organization"
	SourceCreator      SourceKind = "creator"
)

// Organization is a tracked channel owner whose videos feed the catalog.
type Organization struct {
	ID                int64
	Name              string
	ExternalChannelID string
	IsActive          bool
	SyncStatus        SyncStatus
	LastSyncAt        *time.Time
	CreatedAt         time.Time
}

// Creator is an independent channel owner tracked separately from
// organizations; its videos need ownership matching before promotion.
type Creator struct {
	ID                int64
	Name              string
	ExternalChannelID string
	IsActive          bool
	SyncStatus        SyncStatus
	LastSyncAt        *time.Time
	CreatedAt         time.Time
}

// StagedVideo is an ingested record not yet visible in the production
// catalog. OrganizationID may be nil until the matching stage resolves it.
type StagedVideo struct {
	ID              int64
	ExternalVideoID string
	Title           string
	Description     string
	ThumbnailURL    string
	DurationSeconds int
	PublishedAt     time.Time
	ViewCount       int64
	LikeCount       int64
	ChannelID       string
	Tags            []string
	OrganizationID  *int64
	CreatorID       *int64
	MatchConfidence *float64
	SyncStatus      SyncStatus
	LastSyncedAt    *time.Time
	CreatedAt       time.Time
}

// PromotedVideo is a production-catalog entry built from a resolved staged
// video. OrganizationID is always set.
type PromotedVideo struct {
	ID              int64
	ExternalVideoID string
	Title           string
	Description     string
	ThumbnailURL    string
	DurationSeconds int
	PublishedAt     time.Time
	ViewCount       int64
	LikeCount       int64
	OrganizationID  int64
	CategoryID      *int64
	EventName       string
	EventYear       int
	Tags            []string
	QualityScore    int
	IsHidden        bool
	CreatedAt       time.Time
}

// Category is a content bucket. Rows are loaded once per process into a
// read cache and never mutated here.
type Category struct {
	ID   int64
	Slug string
	Name string
}

// SyncJob is an append-only audit row for one pipeline run.
type SyncJob struct {
	ID             int64
	OrganizationID *int64
	CreatorID      *int64
	JobType        string
	Status         JobStatus
	VideosFound    int
	VideosAdded    int
	VideosUpdated  int
	Errors         []string
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
}

// UpsertResult reports what a staged upsert did.
type UpsertResult struct {
	Added   bool
	Updated bool
}

// DuplicateGroup describes staged or promoted rows sharing one external id.
type DuplicateGroup struct {
	ExternalVideoID string
	Count           int
}
