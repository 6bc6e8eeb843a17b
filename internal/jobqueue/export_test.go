package jobqueue

import (
	"context"
	"fmt"
	"time"
)

// ForceRunAfter rewrites a job's run-after time so tests can make backoff
// delays elapse immediately.
func (s *Store) ForceRunAfter(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET run_after = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("force run after: %w", err)
	}
	return nil
}
