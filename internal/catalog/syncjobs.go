package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CreateSyncJob opens an audit row in the queued state.
func (s *Store) CreateSyncJob(ctx context.Context, jobType string, organizationID, creatorID *int64) (*SyncJob, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_jobs (organization_id, creator_id, job_type, status, errors_json, created_at)
         VALUES (?, ?, ?, ?, '[]', ?)`,
		nullableID(organizationID), nullableID(creatorID), jobType, JobQueued, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert sync job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.SyncJobByID(ctx, id)
}

// StartSyncJob moves a queued job to in_progress and stamps its start time.
func (s *Store) StartSyncJob(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		JobInProgress, now, id, JobQueued,
	)
	if err != nil {
		return fmt.Errorf("start sync job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("sync job %d is not queued", id)
	}
	return nil
}

// FinishSyncJob records the terminal state and counters for a run. Status
// must be completed or failed; a finished job never transitions again.
func (s *Store) FinishSyncJob(ctx context.Context, id int64, status JobStatus, found, added, updated int, runErrors []string) error {
	if status != JobCompleted && status != JobFailed {
		return fmt.Errorf("status %q is not terminal", status)
	}
	if runErrors == nil {
		runErrors = []string{}
	}
	errorsJSON, err := json.Marshal(runErrors)
	if err != nil {
		return fmt.Errorf("marshal job errors: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_jobs SET status = ?, videos_found = ?, videos_added = ?, videos_updated = ?,
            errors_json = ?, completed_at = ?
         WHERE id = ? AND status = ?`,
		status, found, added, updated, string(errorsJSON), now, id, JobInProgress,
	)
	if err != nil {
		return fmt.Errorf("finish sync job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("sync job %d is not in progress", id)
	}
	return nil
}

// SyncJobByID loads one audit row.
func (s *Store) SyncJobByID(ctx context.Context, id int64) (*SyncJob, error) {
	row := s.db.QueryRowContext(ctx, selectSyncJobColumns+` WHERE id = ?`, id)
	return scanSyncJob(row)
}

// RecentSyncJobs lists the newest audit rows for status reporting.
func (s *Store) RecentSyncJobs(ctx context.Context, limit int) ([]*SyncJob, error) {
	rows, err := s.db.QueryContext(ctx, selectSyncJobColumns+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*SyncJob
	for rows.Next() {
		job, err := scanSyncJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// FailStaleSyncJobs terminates in_progress audit rows whose runs started
// before the cutoff, marking them failed with an explanatory error.
func (s *Store) FailStaleSyncJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	stamp := cutoff.UTC().Format(time.RFC3339Nano)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	errorsJSON, err := json.Marshal([]string{"run abandoned: no completion recorded"})
	if err != nil {
		return 0, fmt.Errorf("marshal job errors: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_jobs SET status = ?, errors_json = ?, completed_at = ?
         WHERE status = ? AND started_at IS NOT NULL AND started_at < ?`,
		JobFailed, string(errorsJSON), now, JobInProgress, stamp,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale sync jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

const selectSyncJobColumns = `SELECT id, organization_id, creator_id, job_type, status,
    videos_found, videos_added, videos_updated, errors_json, started_at, completed_at, created_at
    FROM sync_jobs`

func scanSyncJob(scanner rowScanner) (*SyncJob, error) {
	var (
		job         SyncJob
		orgID       sql.NullInt64
		creatorID   sql.NullInt64
		status      string
		errorsJSON  string
		startedAt   sql.NullString
		completedAt sql.NullString
		createdRaw  string
	)
	err := scanner.Scan(
		&job.ID, &orgID, &creatorID, &job.JobType, &status,
		&job.VideosFound, &job.VideosAdded, &job.VideosUpdated, &errorsJSON,
		&startedAt, &completedAt, &createdRaw,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan sync job: %w", err)
	}
	if orgID.Valid {
		job.OrganizationID = &orgID.Int64
	}
	if creatorID.Valid {
		job.CreatorID = &creatorID.Int64
	}
	job.Status = JobStatus(status)
	if errorsJSON != "" {
		if err := json.Unmarshal([]byte(errorsJSON), &job.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal job errors: %w", err)
		}
	}
	job.StartedAt = parseNullableTime(startedAt)
	job.CompletedAt = parseNullableTime(completedAt)
	job.CreatedAt = parseTime(createdRaw)
	return &job, nil
}
