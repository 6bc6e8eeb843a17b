package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// UpsertStagedVideo creates or refreshes a staged record keyed by its
// external video id. New rows take the ownership links from the source.
// Existing rows refresh mutable fields only; an already-assigned
// organization or creator link is never overwritten.
func (s *Store) UpsertStagedVideo(ctx context.Context, video StagedVideo) (UpsertResult, error) {
	existing, err := s.StagedByExternalID(ctx, video.ExternalVideoID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return UpsertResult{}, err
	}

	now := time.Now().UTC()
	if existing == nil {
		if err := s.insertStaged(ctx, video, now); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{Added: true}, nil
	}

	orgID := existing.OrganizationID
	if orgID == nil {
		orgID = video.OrganizationID
	}
	creatorID := existing.CreatorID
	if creatorID == nil {
		creatorID = video.CreatorID
	}

	tagsJSON, err := marshalTags(video.Tags)
	if err != nil {
		return UpsertResult{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE staged_videos SET
            title = ?, description = ?, thumbnail_url = ?, duration_seconds = ?,
            published_at = ?, view_count = ?, like_count = ?, channel_id = ?, tags_json = ?,
            organization_id = ?, creator_id = ?, sync_status = ?, last_synced_at = ?
         WHERE id = ?`,
		video.Title, video.Description, video.ThumbnailURL, video.DurationSeconds,
		video.PublishedAt.UTC().Format(time.RFC3339Nano), video.ViewCount, video.LikeCount, video.ChannelID, tagsJSON,
		nullableID(orgID), nullableID(creatorID), SyncCompleted, now.Format(time.RFC3339Nano),
		existing.ID,
	)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("update staged video: %w", err)
	}
	return UpsertResult{Updated: true}, nil
}

func (s *Store) insertStaged(ctx context.Context, video StagedVideo, now time.Time) error {
	tagsJSON, err := marshalTags(video.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO staged_videos (
            external_video_id, title, description, thumbnail_url, duration_seconds,
            published_at, view_count, like_count, channel_id, tags_json,
            organization_id, creator_id, match_confidence, sync_status, last_synced_at, created_at
         ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		video.ExternalVideoID, video.Title, video.Description, video.ThumbnailURL, video.DurationSeconds,
		video.PublishedAt.UTC().Format(time.RFC3339Nano), video.ViewCount, video.LikeCount, video.ChannelID, tagsJSON,
		nullableID(video.OrganizationID), nullableID(video.CreatorID), nil,
		SyncCompleted, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert staged video: %w", err)
	}
	return nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	return string(encoded), nil
}

// StagedByExternalID returns the earliest staged row for an external video
// id, or sql.ErrNoRows wrapped when absent.
func (s *Store) StagedByExternalID(ctx context.Context, externalID string) (*StagedVideo, error) {
	row := s.db.QueryRowContext(ctx, selectStagedColumns+` WHERE external_video_id = ? ORDER BY created_at ASC, id ASC LIMIT 1`, externalID)
	video, err := scanStaged(row)
	if err != nil {
		return nil, err
	}
	return video, nil
}

// UnresolvedStaged lists staged rows awaiting organization matching: rows
// ingested from a creator channel with no organization link yet.
func (s *Store) UnresolvedStaged(ctx context.Context, limit int) ([]*StagedVideo, error) {
	rows, err := s.db.QueryContext(ctx, selectStagedColumns+`
        WHERE organization_id IS NULL AND creator_id IS NOT NULL
        ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unresolved staged: %w", err)
	}
	defer rows.Close()
	return collectStaged(rows)
}

// ResolvedUnpromoted lists staged rows with an organization link that have
// no production-catalog entry yet.
func (s *Store) ResolvedUnpromoted(ctx context.Context, limit int) ([]*StagedVideo, error) {
	rows, err := s.db.QueryContext(ctx, selectStagedColumns+`
        WHERE organization_id IS NOT NULL
          AND external_video_id NOT IN (SELECT external_video_id FROM promoted_videos)
        ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query resolved unpromoted: %w", err)
	}
	defer rows.Close()
	return collectStaged(rows)
}

// AssignOrganization resolves a staged row's ownership with the matcher's
// confidence.
func (s *Store) AssignOrganization(ctx context.Context, stagedID, organizationID int64, confidence float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE staged_videos SET organization_id = ?, match_confidence = ? WHERE id = ? AND organization_id IS NULL`,
		organizationID, confidence, stagedID,
	)
	if err != nil {
		return fmt.Errorf("assign organization: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("staged video %d already resolved or missing", stagedID)
	}
	return nil
}

const selectStagedColumns = `SELECT id, external_video_id, title, description, thumbnail_url, duration_seconds,
    published_at, view_count, like_count, channel_id, tags_json,
    organization_id, creator_id, match_confidence, sync_status, last_synced_at, created_at
    FROM staged_videos`

func scanStaged(scanner rowScanner) (*StagedVideo, error) {
	var (
		video       StagedVideo
		publishedAt sql.NullString
		tagsJSON    string
		orgID       sql.NullInt64
		creatorID   sql.NullInt64
		confidence  sql.NullFloat64
		status      string
		lastSynced  sql.NullString
		createdRaw  string
	)
	err := scanner.Scan(
		&video.ID, &video.ExternalVideoID, &video.Title, &video.Description, &video.ThumbnailURL, &video.DurationSeconds,
		&publishedAt, &video.ViewCount, &video.LikeCount, &video.ChannelID, &tagsJSON,
		&orgID, &creatorID, &confidence, &status, &lastSynced, &createdRaw,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan staged video: %w", err)
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &video.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if publishedAt.Valid {
		video.PublishedAt = parseTime(publishedAt.String)
	}
	if orgID.Valid {
		video.OrganizationID = &orgID.Int64
	}
	if creatorID.Valid {
		video.CreatorID = &creatorID.Int64
	}
	if confidence.Valid {
		video.MatchConfidence = &confidence.Float64
	}
	video.SyncStatus = SyncStatus(status)
	video.LastSyncedAt = parseNullableTime(lastSynced)
	video.CreatedAt = parseTime(createdRaw)
	return &video, nil
}

func collectStaged(rows *sql.Rows) ([]*StagedVideo, error) {
	var videos []*StagedVideo
	for rows.Next() {
		video, err := scanStaged(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
