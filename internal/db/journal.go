package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mescon/beepwatch/internal/domain"
)

const (
	// DefaultEventLimit is used when a query does not name a limit.
	DefaultEventLimit = 50
	// MaxEventLimit caps a single query.
	MaxEventLimit = 500
)

// timestampLayout is fixed width so stored timestamps compare correctly as text.
const timestampLayout = "2006-01-02T15:04:05.000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseTimestamp also accepts RFC3339Nano, which the driver produces when it
// converts a TIMESTAMP column to time.Time before the scan.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// EventFilter narrows QueryEvents and CountEvents. Zero values match everything.
type EventFilter struct {
	SessionID string
	EventType domain.EventType
	Limit     int
	Offset    int
}

// where renders the filter as a WHERE clause with its arguments.
func (f EventFilter) where() (string, []interface{}) {
	clause := " WHERE 1=1"
	var args []interface{}
	if f.SessionID != "" {
		clause += " AND session_id = ?"
		args = append(args, f.SessionID)
	}
	if f.EventType != "" {
		clause += " AND event_type = ?"
		args = append(args, string(f.EventType))
	}
	return clause, args
}

// SessionSummary is the rollup kept for each stopwatch session.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	FirstSeenAt  time.Time `json:"first_seen_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	BeepCount    int64     `json:"beep_count"`
	MaxElapsedMs int64     `json:"max_elapsed_ms"`
}

// elapsedOf returns the stopwatch time carried by an event, if any.
func elapsedOf(event domain.Event) int64 {
	for _, key := range []string{domain.KeyCurrentTime, domain.KeyStopTime, domain.KeyStartTime} {
		if v, ok := event.Millis(key); ok {
			return v
		}
	}
	return 0
}

// InsertEvent appends an event to the journal and updates its session rollup.
// Returns the new row id.
func (r *Repository) InsertEvent(event domain.Event) (int64, error) {
	data := event.EventData
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	ts := formatTimestamp(createdAt)

	var beeps int64
	if event.EventType == domain.TimeReached {
		beeps = 1
	}

	var id int64
	err = withRetry("insert event", func() error {
		tx, err := r.DB.Begin()
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		result, err := tx.Exec(
			"INSERT INTO events (session_id, event_type, event_data, created_at) VALUES (?, ?, ?, ?)",
			event.SessionID, string(event.EventType), string(payload), ts,
		)
		if err != nil {
			return err
		}
		if id, err = result.LastInsertId(); err != nil {
			return err
		}

		if _, err := tx.Exec(`
			INSERT INTO sessions (session_id, first_seen_at, last_seen_at, beep_count, max_elapsed_ms)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(session_id) DO UPDATE SET
				last_seen_at = excluded.last_seen_at,
				beep_count = sessions.beep_count + excluded.beep_count,
				max_elapsed_ms = MAX(sessions.max_elapsed_ms, excluded.max_elapsed_ms)`,
			event.SessionID, ts, ts, beeps, elapsedOf(event),
		); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// clampLimit maps a requested limit onto [1, MaxEventLimit].
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultEventLimit
	}
	if limit > MaxEventLimit {
		return MaxEventLimit
	}
	return limit
}

// QueryEvents returns journal entries matching filter, newest first.
func (r *Repository) QueryEvents(filter EventFilter) ([]domain.Event, error) {
	where, args := filter.where()
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := "SELECT id, session_id, event_type, event_data, created_at FROM events" + where + " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, clampLimit(filter.Limit), offset)

	rows, err := QueryWithRetry(r.DB, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// RecentEvents returns the latest limit events across all sessions, newest first.
func (r *Repository) RecentEvents(limit int) ([]domain.Event, error) {
	return r.QueryEvents(EventFilter{Limit: limit})
}

func scanEvent(rows *sql.Rows) (domain.Event, error) {
	var (
		event     domain.Event
		eventType string
		payload   string
		createdAt string
	)
	if err := rows.Scan(&event.ID, &event.SessionID, &eventType, &payload, &createdAt); err != nil {
		return domain.Event{}, fmt.Errorf("scan event: %w", err)
	}
	event.EventType = domain.EventType(eventType)
	if err := json.Unmarshal([]byte(payload), &event.EventData); err != nil {
		return domain.Event{}, fmt.Errorf("decode event %d data: %w", event.ID, err)
	}
	ts, err := parseTimestamp(createdAt)
	if err != nil {
		return domain.Event{}, fmt.Errorf("parse event %d timestamp: %w", event.ID, err)
	}
	event.CreatedAt = ts
	return event, nil
}

// CountEvents returns the number of journal entries matching filter.
// Limit and Offset are ignored.
func (r *Repository) CountEvents(filter EventFilter) (int64, error) {
	where, args := filter.where()
	var count int64
	if err := r.DB.QueryRow("SELECT COUNT(*) FROM events"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// ListSessions returns session rollups, most recently active first.
func (r *Repository) ListSessions(limit int) ([]SessionSummary, error) {
	rows, err := QueryWithRetry(r.DB, `
		SELECT session_id, first_seen_at, last_seen_at, beep_count, max_elapsed_ms
		FROM sessions ORDER BY last_seen_at DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]SessionSummary, 0)
	for rows.Next() {
		var (
			s           SessionSummary
			first, last string
		)
		if err := rows.Scan(&s.SessionID, &first, &last, &s.BeepCount, &s.MaxElapsedMs); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if s.FirstSeenAt, err = parseTimestamp(first); err != nil {
			return nil, fmt.Errorf("parse session %s first_seen_at: %w", s.SessionID, err)
		}
		if s.LastSeenAt, err = parseTimestamp(last); err != nil {
			return nil, fmt.Errorf("parse session %s last_seen_at: %w", s.SessionID, err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
