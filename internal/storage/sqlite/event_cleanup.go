package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventCounts holds event count statistics for monitoring
type EventCounts struct {
	TotalEvents      int
	EventsByBuild    map[string]int
	EventsBySeverity map[string]int
	EventsByType     map[string]int
}

// Events recorded against a build are only meaningful while that build is
// stored. Retention therefore works in three passes:
//
//   - events of a build that has been pruned are dropped outright
//   - events older than their severity's retention window are dropped
//   - the oldest info/warning events are dropped to stay under the cap
//
// The last two passes never touch the newest build's events, so the latest
// check report stays complete however old or numerous it is.

// CleanupOrphanedEvents deletes events whose build is no longer stored.
// Events recorded without a build are left to the age and limit passes.
func (s *SQLiteStorage) CleanupOrphanedEvents(ctx context.Context, batchSize int) (int, error) {
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}
	return s.deleteEventsBatched(ctx, `
		build_id <> ''
		AND build_id NOT IN (SELECT id FROM builds)
	`, nil, batchSize, -1)
}

// CleanupEventsByAge deletes events older than their retention window:
// retentionDays for info and warning, criticalRetentionDays for error and
// critical. Events of the newest build are kept.
func (s *SQLiteStorage) CleanupEventsByAge(ctx context.Context, retentionDays, criticalRetentionDays, batchSize int) (int, error) {
	if retentionDays < 0 || criticalRetentionDays < 0 {
		return 0, fmt.Errorf("retention days cannot be negative")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	latest, err := s.latestBuildID(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	regularCutoff := now.AddDate(0, 0, -retentionDays).UnixNano()
	criticalCutoff := now.AddDate(0, 0, -criticalRetentionDays).UnixNano()

	deleted, err := s.deleteEventsBatched(ctx, `
		(build_id <> ? OR ? = '')
		AND timestamp < CASE WHEN severity IN ('error', 'critical') THEN ? ELSE ? END
	`, []any{latest, latest, criticalCutoff, regularCutoff}, batchSize, -1)
	if err != nil {
		return deleted, fmt.Errorf("failed to delete expired events: %w", err)
	}
	return deleted, nil
}

// CleanupEventsByGlobalLimit deletes the oldest info and warning events
// until at most globalLimit events remain. Error and critical events, and
// every event of the newest build, are never deleted here, so the table can
// stay above the limit.
func (s *SQLiteStorage) CleanupEventsByGlobalLimit(ctx context.Context, globalLimit, batchSize int) (int, error) {
	if globalLimit < 1 {
		return 0, fmt.Errorf("global limit must be at least 1")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM registry_events").Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to get event count: %w", err)
	}
	if total <= globalLimit {
		return 0, nil
	}

	latest, err := s.latestBuildID(ctx)
	if err != nil {
		return 0, err
	}
	deleted, err := s.deleteEventsBatched(ctx, `
		(build_id <> ? OR ? = '')
		AND severity NOT IN ('error', 'critical')
	`, []any{latest, latest}, batchSize, total-globalLimit)
	if err != nil {
		return deleted, fmt.Errorf("failed to enforce global limit: %w", err)
	}
	return deleted, nil
}

// latestBuildID returns the newest build's ID, or "" when nothing is stored.
func (s *SQLiteStorage) latestBuildID(ctx context.Context) (string, error) {
	build, err := s.LatestBuild(ctx)
	if errors.Is(err, ErrBuildNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find latest build: %w", err)
	}
	return build.ID, nil
}

// deleteEventsBatched deletes events matching where, oldest first, at most
// batchSize per statement. A non-negative capTotal caps the total deleted.
func (s *SQLiteStorage) deleteEventsBatched(ctx context.Context, where string, args []any, batchSize, capTotal int) (int, error) {
	query := fmt.Sprintf(`
		DELETE FROM registry_events
		WHERE id IN (
			SELECT id FROM registry_events
			WHERE %s
			ORDER BY timestamp ASC
			LIMIT ?
		)
	`, where)

	deleted := 0
	for capTotal < 0 || deleted < capTotal {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		limit := batchSize
		if capTotal >= 0 && capTotal-deleted < limit {
			limit = capTotal - deleted
		}
		result, err := s.db.ExecContext(ctx, query, append(args[:len(args):len(args)], limit)...)
		if err != nil {
			return deleted, fmt.Errorf("failed to execute delete: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		deleted += int(n)
		if n < int64(limit) {
			break
		}
	}
	return deleted, nil
}

// GetEventCounts returns detailed event count statistics for monitoring
func (s *SQLiteStorage) GetEventCounts(ctx context.Context) (*EventCounts, error) {
	counts := &EventCounts{
		EventsByBuild:    make(map[string]int),
		EventsBySeverity: make(map[string]int),
		EventsByType:     make(map[string]int),
	}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM registry_events").Scan(&counts.TotalEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to get total event count: %w", err)
	}

	for column, dest := range map[string]map[string]int{
		"build_id": counts.EventsByBuild,
		"severity": counts.EventsBySeverity,
		"type":     counts.EventsByType,
	} {
		if err := s.countBy(ctx, column, dest); err != nil {
			return nil, err
		}
	}
	return counts, nil
}

// countBy fills dest with event counts grouped by column
func (s *SQLiteStorage) countBy(ctx context.Context, column string, dest map[string]int) error {
	// column must be a trusted identifier
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s, COUNT(*)
		FROM registry_events
		GROUP BY %s
	`, column, column))
	if err != nil {
		return fmt.Errorf("failed to query events by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		dest[key] = count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating %s counts: %w", column, err)
	}
	return nil
}
