package jobqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"bandstand/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db           *sql.DB
	path         string
	maxAttempts  int
	retryBackoff time.Duration
}

// Open initializes or connects to the queue database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.QueueDatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:           db,
		path:         dbPath,
		maxAttempts:  cfg.Queue.MaxAttempts,
		retryBackoff: time.Duration(cfg.Queue.RetryBackoff) * time.Second,
	}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Enqueue inserts a job keyed by a deterministic identifier. A key that is
// already present leaves the queue unchanged and reports enqueued=false.
func (s *Store) Enqueue(ctx context.Context, key string, lane Lane, jobType string, payload []byte) (enqueued bool, err error) {
	if key == "" {
		return false, errors.New("job key must not be empty")
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO jobs (job_key, lane, job_type, payload_json, status, max_attempts, run_after, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key, lane, jobType, string(payload), StatusPending, s.maxAttempts, now, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("enqueue job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Claim atomically moves the oldest runnable pending job in a lane to
// running and returns it. A nil job means the lane is idle.
func (s *Store) Claim(ctx context.Context, lane Lane) (*Job, error) {
	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, selectJobColumns+`
        WHERE lane = ? AND status = ? AND run_after <= ?
        ORDER BY id ASC LIMIT 1`, lane, StatusPending, stamp)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, attempts = attempts + 1, heartbeat_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusRunning, stamp, stamp, job.ID, StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	job.Status = StatusRunning
	job.Attempts++
	job.HeartbeatAt = &now
	return job, nil
}

// Complete marks a running job as finished.
func (s *Store) Complete(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusCompleted, now, id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d is not running", id)
	}
	return nil
}

// Fail records a failed run. The job is rescheduled with exponential
// backoff until its attempts are exhausted, then marked failed for good.
func (s *Store) Fail(ctx context.Context, id int64, cause string) error {
	job, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339Nano)

	if job.Attempts >= job.MaxAttempts {
		_, err := s.db.ExecContext(ctx,
			`UPDATE jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			StatusFailed, cause, stamp, id,
		)
		if err != nil {
			return fmt.Errorf("fail job: %w", err)
		}
		return nil
	}

	delay := s.backoffDelay(job.Attempts)
	_, err = s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, last_error = ?, run_after = ?, heartbeat_at = NULL, updated_at = ? WHERE id = ?`,
		StatusPending, cause, now.Add(delay).Format(time.RFC3339Nano), stamp, id,
	)
	if err != nil {
		return fmt.Errorf("reschedule job: %w", err)
	}
	return nil
}

// RetryAt reschedules a running job to run again no sooner than the given
// time without burning an attempt beyond the one already counted.
func (s *Store) RetryAt(ctx context.Context, id int64, at time.Time, cause string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, last_error = ?, run_after = ?, attempts = attempts - 1, heartbeat_at = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusPending, cause, at.UTC().Format(time.RFC3339Nano), now, id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d is not running", id)
	}
	return nil
}

// UpdateHeartbeat stamps a running job as alive.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET heartbeat_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleRunning returns running jobs with heartbeats older than the
// cutoff to pending so another worker can pick them up.
func (s *Store) ReclaimStaleRunning(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, heartbeat_at = NULL, updated_at = ?
         WHERE status = ? AND (heartbeat_at IS NULL OR heartbeat_at < ?)`,
		StatusPending, now, StatusRunning, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale running: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// ExpireStalePending fails pending jobs created before the cutoff. The
// scheduler enqueues fresh deterministic keys each day, so anything this old
// is a leftover from a previous deployment.
func (s *Store) ExpireStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, last_error = 'expired before execution', updated_at = ?
         WHERE status = ? AND created_at < ?`,
		StatusFailed, now, StatusPending, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("expire stale pending: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// ByID loads one job.
func (s *Store) ByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, selectJobColumns+` WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %d not found", id)
	}
	return job, err
}

// ByKey loads one job by its deterministic key.
func (s *Store) ByKey(ctx context.Context, key string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, selectJobColumns+` WHERE job_key = ?`, key)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %q not found", key)
	}
	return job, err
}

// List returns the newest jobs for status reporting.
func (s *Store) List(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, selectJobColumns+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats counts jobs per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan job stats: %w", err)
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

// ClearCompleted removes finished jobs and returns how many were deleted.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func (s *Store) backoffDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(float64(s.retryBackoff) * math.Pow(2, float64(attempts-1)))
}

const selectJobColumns = `SELECT id, job_key, lane, job_type, payload_json, status, attempts, max_attempts,
    run_after, heartbeat_at, last_error, created_at, updated_at
    FROM jobs`

type rowScanner interface{ Scan(dest ...any) error }

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		job         Job
		lane        string
		payload     string
		status      string
		runAfterRaw string
		heartbeat   sql.NullString
		lastError   sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	err := scanner.Scan(
		&job.ID, &job.Key, &lane, &job.Type, &payload, &status, &job.Attempts, &job.MaxAttempts,
		&runAfterRaw, &heartbeat, &lastError, &createdRaw, &updatedRaw,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Lane = Lane(lane)
	job.Payload = []byte(payload)
	job.Status = Status(status)
	job.RunAfter = mustParseTime(runAfterRaw)
	if heartbeat.Valid {
		parsed := mustParseTime(heartbeat.String)
		job.HeartbeatAt = &parsed
	}
	job.LastError = lastError.String
	job.CreatedAt = mustParseTime(createdRaw)
	job.UpdatedAt = mustParseTime(updatedRaw)
	return &job, nil
}

func mustParseTime(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
