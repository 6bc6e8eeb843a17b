package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// InsertPromotedVideo publishes a staged video into the production catalog.
// Promotion is insert-once per external video id: when a row already exists
// the call reports created=false and changes nothing.
func (s *Store) InsertPromotedVideo(ctx context.Context, video PromotedVideo) (created bool, err error) {
	existing, err := s.PromotedByExternalID(ctx, video.ExternalVideoID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	tagsJSON, err := json.Marshal(video.Tags)
	if err != nil {
		return false, fmt.Errorf("marshal tags: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO promoted_videos (
            external_video_id, title, description, thumbnail_url, duration_seconds,
            published_at, view_count, like_count, organization_id, category_id,
            event_name, event_year, tags_json, quality_score, is_hidden, created_at
         ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		video.ExternalVideoID, video.Title, video.Description, video.ThumbnailURL, video.DurationSeconds,
		video.PublishedAt.UTC().Format(time.RFC3339Nano), video.ViewCount, video.LikeCount,
		video.OrganizationID, nullableID(video.CategoryID),
		nullableText(video.EventName), nullableYear(video.EventYear),
		string(tagsJSON), video.QualityScore, boolToInt(video.IsHidden), now,
	)
	if err != nil {
		return false, fmt.Errorf("insert promoted video: %w", err)
	}
	return true, nil
}

// PromotedByExternalID returns the earliest promoted row for an external
// video id, or sql.ErrNoRows when absent.
func (s *Store) PromotedByExternalID(ctx context.Context, externalID string) (*PromotedVideo, error) {
	row := s.db.QueryRowContext(ctx, selectPromotedColumns+` WHERE external_video_id = ? ORDER BY created_at ASC, id ASC LIMIT 1`, externalID)
	return scanPromoted(row)
}

// PromotedCount reports how many rows the production catalog holds.
func (s *Store) PromotedCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM promoted_videos`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count promoted videos: %w", err)
	}
	return count, nil
}

// PromotedForStatsRefresh lists promoted rows whose counters have not been
// refreshed within staleAfter. Rows promoted more than maxAge ago are no
// longer refreshed.
func (s *Store) PromotedForStatsRefresh(ctx context.Context, staleAfter, maxAge time.Duration, limit int) ([]*PromotedVideo, error) {
	now := time.Now().UTC()
	staleCutoff := now.Add(-staleAfter).Format(time.RFC3339Nano)
	promotedAfter := now.Add(-maxAge).Format(time.RFC3339Nano)
	rows, err := s.db.QueryContext(ctx, selectPromotedColumns+`
        WHERE created_at >= ?
          AND id NOT IN (SELECT promoted_id FROM stats_refreshes WHERE refreshed_at >= ?)
        ORDER BY id ASC LIMIT ?`, promotedAfter, staleCutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query promoted for stats refresh: %w", err)
	}
	defer rows.Close()

	var videos []*PromotedVideo
	for rows.Next() {
		video, err := scanPromoted(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

// UpdatePromotedStats refreshes view and like counters on a promoted row
// and records the refresh time.
func (s *Store) UpdatePromotedStats(ctx context.Context, id int64, viewCount, likeCount int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE promoted_videos SET view_count = ?, like_count = ? WHERE id = ?`,
		viewCount, likeCount, id,
	); err != nil {
		return fmt.Errorf("update promoted stats: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO stats_refreshes (promoted_id, refreshed_at) VALUES (?, ?)
         ON CONFLICT(promoted_id) DO UPDATE SET refreshed_at = excluded.refreshed_at`,
		id, now,
	); err != nil {
		return fmt.Errorf("record stats refresh: %w", err)
	}
	return nil
}

const selectPromotedColumns = `SELECT id, external_video_id, title, description, thumbnail_url, duration_seconds,
    published_at, view_count, like_count, organization_id, category_id,
    event_name, event_year, tags_json, quality_score, is_hidden, created_at
    FROM promoted_videos`

func scanPromoted(scanner rowScanner) (*PromotedVideo, error) {
	var (
		video       PromotedVideo
		publishedAt sql.NullString
		categoryID  sql.NullInt64
		eventName   sql.NullString
		eventYear   sql.NullInt64
		tagsJSON    string
		isHidden    int
		createdRaw  string
	)
	err := scanner.Scan(
		&video.ID, &video.ExternalVideoID, &video.Title, &video.Description, &video.ThumbnailURL, &video.DurationSeconds,
		&publishedAt, &video.ViewCount, &video.LikeCount, &video.OrganizationID, &categoryID,
		&eventName, &eventYear, &tagsJSON, &video.QualityScore, &isHidden, &createdRaw,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan promoted video: %w", err)
	}
	if publishedAt.Valid {
		video.PublishedAt = parseTime(publishedAt.String)
	}
	if categoryID.Valid {
		video.CategoryID = &categoryID.Int64
	}
	video.EventName = eventName.String
	video.EventYear = int(eventYear.Int64)
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &video.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	video.IsHidden = isHidden != 0
	video.CreatedAt = parseTime(createdRaw)
	return &video, nil
}

func nullableText(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableYear(year int) any {
	if year == 0 {
		return nil
	}
	return year
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
