package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/eventmind/internal/db"
)

// Store provides append and query operations for action log entries.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Log inserts a new entry and returns it with its id and timestamp filled in.
func (s *Store) Log(ctx context.Context, entry Entry) (*Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.AgentID == "" {
		entry.AgentID = DefaultAgent
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_log (
			entry_id, timestamp, agent_id, action_type, entity_type, entity_id,
			summary, rationale, confidence, pipeline_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		db.FormatTime(entry.Timestamp),
		entry.AgentID,
		string(entry.Action),
		entry.EntityType,
		entry.EntityID,
		entry.Summary,
		entry.Rationale,
		entry.Confidence,
		entry.PipelineID,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting action log entry: %w", err)
	}
	return &entry, nil
}

const selectEntry = `
	SELECT entry_id, timestamp, agent_id, action_type, entity_type, entity_id,
		summary, rationale, confidence, pipeline_id
	FROM action_log`

// GetByID retrieves a single entry, or nil if it does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, selectEntry+" WHERE entry_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// QueryFilter controls which entries are returned by Query.
type QueryFilter struct {
	Action     Action
	EntityType string
	EntityID   string
	PipelineID string
	Since      *time.Time
	Until      *time.Time
	Limit      int
	Offset     int
}

// Query returns entries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Action != "" {
		clauses = append(clauses, "action_type = ?")
		args = append(args, string(filter.Action))
	}
	if filter.EntityType != "" {
		clauses = append(clauses, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		clauses = append(clauses, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.PipelineID != "" {
		clauses = append(clauses, "pipeline_id = ?")
		args = append(args, filter.PipelineID)
	}
	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, db.FormatTime(*filter.Since))
	}
	if filter.Until != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, db.FormatTime(*filter.Until))
	}

	query := selectEntry
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying action log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// CountByAction returns entry counts keyed by action type.
func (s *Store) CountByAction(ctx context.Context) (map[Action]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT action_type, COUNT(*) FROM action_log GROUP BY action_type")
	if err != nil {
		return nil, fmt.Errorf("counting action log: %w", err)
	}
	defer rows.Close()

	out := map[Action]int{}
	for rows.Next() {
		var (
			a string
			n int
		)
		if err := rows.Scan(&a, &n); err != nil {
			return nil, err
		}
		out[Action(a)] = n
	}
	return out, rows.Err()
}

// DeleteBefore removes all entries older than the given time.
// Returns the number of deleted rows.
func (s *Store) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM action_log WHERE timestamp < ?",
		db.FormatTime(before),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting old action log entries: %w", err)
	}
	return res.RowsAffected()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var (
		e      Entry
		action string
		ts     string
	)
	err := sc.Scan(
		&e.ID, &ts, &e.AgentID, &action, &e.EntityType, &e.EntityID,
		&e.Summary, &e.Rationale, &e.Confidence, &e.PipelineID,
	)
	if err != nil {
		return nil, err
	}
	e.Action = Action(action)
	if e.Timestamp, err = db.ParseTime(ts); err != nil {
		return nil, err
	}
	return &e, nil
}
