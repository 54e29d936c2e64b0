package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/steveyegge/modhook/internal/events"
)

// StoreEvent stores a new registry event in the database
func (s *SQLiteStorage) StoreEvent(ctx context.Context, event *events.RegistryEvent) error {
	// Marshal the Data field to JSON
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	query := `
		INSERT INTO registry_events (
			id, type, timestamp, build_id, module_id, interest_id,
			plugin, severity, message, data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		event.Timestamp.UnixNano(),
		event.BuildID,
		event.ModuleID,
		event.InterestID,
		event.Plugin,
		string(event.Severity),
		event.Message,
		string(dataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store registry event (type=%s, build=%s): %w", event.Type, event.BuildID, err)
	}

	return nil
}

// GetEvents retrieves events matching the given filter, most recent first
func (s *SQLiteStorage) GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.RegistryEvent, error) {
	query := `
		SELECT id, type, timestamp, build_id, module_id, interest_id,
		       plugin, severity, message, data
		FROM registry_events
		WHERE 1=1
	`
	args := []interface{}{}

	// Apply filters
	if filter.BuildID != "" {
		query += " AND build_id = ?"
		args = append(args, filter.BuildID)
	}
	if filter.InterestID != "" {
		query += " AND interest_id = ?"
		args = append(args, filter.InterestID)
	}
	if filter.Plugin != "" {
		query += " AND plugin = ?"
		args = append(args, filter.Plugin)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}
	if !filter.AfterTime.IsZero() {
		query += " AND timestamp > ?"
		args = append(args, filter.AfterTime.UnixNano())
	}
	if !filter.BeforeTime.IsZero() {
		query += " AND timestamp < ?"
		args = append(args, filter.BeforeTime.UnixNano())
	}

	// Order by timestamp descending (most recent first)
	query += " ORDER BY timestamp DESC"

	// Apply limit
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query registry events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

// GetEventsByBuild retrieves all events for a build in the order they occurred
func (s *SQLiteStorage) GetEventsByBuild(ctx context.Context, buildID string) ([]*events.RegistryEvent, error) {
	query := `
		SELECT id, type, timestamp, build_id, module_id, interest_id,
		       plugin, severity, message, data
		FROM registry_events
		WHERE build_id = ?
		ORDER BY timestamp ASC
	`

	rows, err := s.db.QueryContext(ctx, query, buildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query registry events by build: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

// scanEvents scans rows into RegistryEvent structs
func scanEvents(rows *sql.Rows) ([]*events.RegistryEvent, error) {
	var result []*events.RegistryEvent

	for rows.Next() {
		var event events.RegistryEvent
		var eventType, severity, dataJSON string
		var timestamp int64

		err := rows.Scan(
			&event.ID,
			&eventType,
			&timestamp,
			&event.BuildID,
			&event.ModuleID,
			&event.InterestID,
			&event.Plugin,
			&severity,
			&event.Message,
			&dataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registry event: %w", err)
		}

		event.Type = events.EventType(eventType)
		event.Severity = events.EventSeverity(severity)
		event.Timestamp = time.Unix(0, timestamp)

		// Unmarshal the JSON data field
		event.Data = make(map[string]interface{})
		if dataJSON != "" && dataJSON != "{}" && dataJSON != "null" {
			if err := json.Unmarshal([]byte(dataJSON), &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}

		result = append(result, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registry event rows: %w", err)
	}

	return result, nil
}
