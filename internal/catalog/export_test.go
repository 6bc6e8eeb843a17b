package catalog

import (
	"context"
	"time"
)

// InsertStagedRowAt writes a staged row directly, bypassing the upsert
// lookup, so tests can fabricate the duplicate groups maintenance cleans up.
func (s *Store) InsertStagedRowAt(ctx context.Context, video StagedVideo, createdAt time.Time) error {
	return s.insertStaged(ctx, video, createdAt)
}

// BackdatePromoted rewrites a promoted row's creation time so tests can
// age rows past the stats refresh window.
func (s *Store) BackdatePromoted(ctx context.Context, id int64, createdAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE promoted_videos SET created_at = ? WHERE id = ?`,
		createdAt.UTC().Format(time.RFC3339Nano), id)
	return err
}
