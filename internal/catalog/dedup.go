package catalog

import (
	"context"
	"fmt"
)

// DuplicateGroups finds external video ids with more than one row in the
// named table. Steady-state operation should produce none; duplicates can
// only appear from races between concurrent upserts.
func (s *Store) DuplicateGroups(ctx context.Context, table string) ([]DuplicateGroup, error) {
	if err := validateDedupTable(table); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT external_video_id, COUNT(1) FROM %s GROUP BY external_video_id HAVING COUNT(1) > 1`, table))
	if err != nil {
		return nil, fmt.Errorf("query duplicate groups: %w", err)
	}
	defer rows.Close()

	var groups []DuplicateGroup
	for rows.Next() {
		var group DuplicateGroup
		if err := rows.Scan(&group.ExternalVideoID, &group.Count); err != nil {
			return nil, fmt.Errorf("scan duplicate group: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// DeleteDuplicates removes all but the earliest-created row in every
// duplicate group and returns how many rows were (or would be) removed.
// With dryRun set, nothing is mutated.
func (s *Store) DeleteDuplicates(ctx context.Context, table string, dryRun bool) (int64, error) {
	if err := validateDedupTable(table); err != nil {
		return 0, err
	}
	if dryRun {
		return s.countDuplicateRows(ctx, table)
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE id NOT IN (
            SELECT keep_id FROM (
                SELECT external_video_id, id AS keep_id,
                    ROW_NUMBER() OVER (PARTITION BY external_video_id ORDER BY created_at ASC, id ASC) AS rn
                FROM %s
            ) WHERE rn = 1
        )`, table, table))
	if err != nil {
		return 0, fmt.Errorf("delete duplicates: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func (s *Store) countDuplicateRows(ctx context.Context, table string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(1) FROM %s WHERE id NOT IN (
            SELECT keep_id FROM (
                SELECT external_video_id, id AS keep_id,
                    ROW_NUMBER() OVER (PARTITION BY external_video_id ORDER BY created_at ASC, id ASC) AS rn
                FROM %s
            ) WHERE rn = 1
        )`, table, table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count duplicate rows: %w", err)
	}
	return count, nil
}

// DedupTables lists the tables maintenance deduplicates.
func DedupTables() []string {
	return []string{"staged_videos", "promoted_videos"}
}

func validateDedupTable(table string) error {
	for _, known := range DedupTables() {
		if table == known {
			return nil
		}
	}
	return fmt.Errorf("table %q is not deduplicated", table)
}
