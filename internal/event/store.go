package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openclaw/eventmind/internal/db"
)

// ListFilter controls which events List returns.
type ListFilter struct {
	Source      string
	Since       time.Time
	Unprocessed bool
	Limit       int
	Offset      int
}

// Store persists normalized events.
type Store struct {
	db *db.DB
}

// NewStore creates a new event store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Save inserts the event. Redelivery of an already stored event_id is a no-op;
// the returned bool reports whether a row was written.
func (s *Store) Save(ctx context.Context, ev *Event) (bool, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return false, fmt.Errorf("marshalling payload: %w", err)
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events (event_id, timestamp, source, event_type, payload, processed, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, db.FormatTime(ts), ev.Source, ev.Type, string(payload),
		boolToInt(ev.Processed), db.FormatTime(time.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("inserting event: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Get returns the event with the given id, or nil if it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT event_id, timestamp, source, event_type, payload, processed
		FROM events WHERE event_id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return ev, err
}

// MarkProcessed flags the event as having completed a pipeline run.
func (s *Store) MarkProcessed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE events SET processed = 1 WHERE event_id = ?", id)
	if err != nil {
		return fmt.Errorf("marking event processed: %w", err)
	}
	return nil
}

// List returns events newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Event, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, filter.Source)
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, db.FormatTime(filter.Since))
	}
	if filter.Unprocessed {
		clauses = append(clauses, "processed = 0")
	}

	query := "SELECT event_id, timestamp, source, event_type, payload, processed FROM events"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

// Count returns the number of stored events.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (*Event, error) {
	var (
		ev        Event
		ts        string
		payload   string
		processed int
	)
	if err := sc.Scan(&ev.ID, &ts, &ev.Source, &ev.Type, &payload, &processed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning event: %w", err)
	}
	t, err := db.ParseTime(ts)
	if err != nil {
		return nil, err
	}
	ev.Timestamp = t
	ev.Processed = processed != 0
	ev.Payload = NormalizePayload(json.RawMessage(payload))
	return &ev, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
