package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"bandstand/internal/config"
	"bandstand/internal/services"
)

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database and applies
// migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
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

	store := &Store{db: db, path: dbPath}
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

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// CreateOrganization inserts a tracked channel owner.
func (s *Store) CreateOrganization(ctx context.Context, name, externalChannelID string) (*Organization, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO organizations (name, external_channel_id, is_active, sync_status, created_at)
         VALUES (?, ?, 1, ?, ?)`,
		name, externalChannelID, SyncPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert organization: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.OrganizationByID(ctx, id)
}

// OrganizationByID loads one organization.
func (s *Store) OrganizationByID(ctx context.Context, id int64) (*Organization, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, external_channel_id, is_active, sync_status, last_sync_at, created_at FROM organizations WHERE id = ?`, id)
	org, err := scanOrganization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "load organization", fmt.Sprintf("organization %d not found", id), nil)
	}
	return org, err
}

// ActiveOrganizations lists organizations eligible for discovery, ordered by
// the staleness of their last sync.
func (s *Store) ActiveOrganizations(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, external_channel_id, is_active, sync_status, last_sync_at, created_at
        FROM organizations WHERE is_active = 1
        ORDER BY last_sync_at IS NOT NULL, last_sync_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// AllOrganizations lists every organization for matching candidates and
// status reporting.
func (s *Store) AllOrganizations(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, external_channel_id, is_active, sync_status, last_sync_at, created_at
        FROM organizations ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// UpdateOrganizationSync records the outcome of a discovery run for a source.
func (s *Store) UpdateOrganizationSync(ctx context.Context, id int64, status SyncStatus) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `UPDATE organizations SET sync_status = ?, last_sync_at = ? WHERE id = ?`, status, now, id)
	if err != nil {
		return fmt.Errorf("update organization sync: %w", err)
	}
	return nil
}

// SetOrganizationActive switches a source in or out of the daily discovery
// rotation. Inactive sources are still revisited by the full resync once
// their last sync ages past the recheck window.
func (s *Store) SetOrganizationActive(ctx context.Context, id int64, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE organizations SET is_active = ? WHERE id = ?`, boolColumn(active), id)
	if err != nil {
		return fmt.Errorf("set organization active: %w", err)
	}
	return nil
}

// CreateCreator inserts an independent channel owner.
func (s *Store) CreateCreator(ctx context.Context, name, externalChannelID string) (*Creator, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO creators (name, external_channel_id, is_active, sync_status, created_at)
         VALUES (?, ?, 1, ?, ?)`,
		name, externalChannelID, SyncPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert creator: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.CreatorByID(ctx, id)
}

// CreatorByID loads one creator.
func (s *Store) CreatorByID(ctx context.Context, id int64) (*Creator, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, external_channel_id, is_active, sync_status, last_sync_at, created_at FROM creators WHERE id = ?`, id)
	creator, err := scanCreator(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "load creator", fmt.Sprintf("creator %d not found", id), nil)
	}
	return creator, err
}

// ActiveCreators lists creators eligible for discovery.
func (s *Store) ActiveCreators(ctx context.Context) ([]*Creator, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, external_channel_id, is_active, sync_status, last_sync_at, created_at
        FROM creators WHERE is_active = 1
        ORDER BY last_sync_at IS NOT NULL, last_sync_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query creators: %w", err)
	}
	defer rows.Close()

	var creators []*Creator
	for rows.Next() {
		creator, err := scanCreator(rows)
		if err != nil {
			return nil, err
		}
		creators = append(creators, creator)
	}
	return creators, rows.Err()
}

// AllCreators lists every creator for status reporting.
func (s *Store) AllCreators(ctx context.Context) ([]*Creator, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, external_channel_id, is_active, sync_status, last_sync_at, created_at
        FROM creators ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query creators: %w", err)
	}
	defer rows.Close()

	var creators []*Creator
	for rows.Next() {
		creator, err := scanCreator(rows)
		if err != nil {
			return nil, err
		}
		creators = append(creators, creator)
	}
	return creators, rows.Err()
}

// UpdateCreatorSync records the outcome of a discovery run for a creator.
func (s *Store) UpdateCreatorSync(ctx context.Context, id int64, status SyncStatus) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `UPDATE creators SET sync_status = ?, last_sync_at = ? WHERE id = ?`, status, now, id)
	if err != nil {
		return fmt.Errorf("update creator sync: %w", err)
	}
	return nil
}

// SetCreatorActive switches a creator in or out of the daily discovery
// rotation.
func (s *Store) SetCreatorActive(ctx context.Context, id int64, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE creators SET is_active = ? WHERE id = ?`, boolColumn(active), id)
	if err != nil {
		return fmt.Errorf("set creator active: %w", err)
	}
	return nil
}

func boolColumn(value bool) int {
	if value {
		return 1
	}
	return 0
}

// ReclaimStuckSources resets sources left in "syncing" longer than the
// cutoff back to pending so the next discovery run retries them.
func (s *Store) ReclaimStuckSources(ctx context.Context, cutoff time.Time) (int64, error) {
	stamp := cutoff.UTC().Format(time.RFC3339Nano)
	var total int64
	for _, table := range []string{"organizations", "creators"} {
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET sync_status = ? WHERE sync_status = ? AND (last_sync_at IS NULL OR last_sync_at < ?)`, table),
			SyncPending, SyncInFlight, stamp,
		)
		if err != nil {
			return total, fmt.Errorf("reclaim stuck %s: %w", table, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanOrganization(scanner rowScanner) (*Organization, error) {
	var (
		org        Organization
		isActive   int
		status     string
		lastSync   sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&org.ID, &org.Name, &org.ExternalChannelID, &isActive, &status, &lastSync, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan organization: %w", err)
	}
	org.IsActive = isActive != 0
	org.SyncStatus = SyncStatus(status)
	org.LastSyncAt = parseNullableTime(lastSync)
	org.CreatedAt = parseTime(createdRaw)
	return &org, nil
}

func scanCreator(scanner rowScanner) (*Creator, error) {
	var (
		creator    Creator
		isActive   int
		status     string
		lastSync   sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&creator.ID, &creator.Name, &creator.ExternalChannelID, &isActive, &status, &lastSync, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan creator: %w", err)
	}
	creator.IsActive = isActive != 0
	creator.SyncStatus = SyncStatus(status)
	creator.LastSyncAt = parseNullableTime(lastSync)
	creator.CreatedAt = parseTime(createdRaw)
	return &creator, nil
}

func parseTime(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func parseNullableTime(raw sql.NullString) *time.Time {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func formatNullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}
