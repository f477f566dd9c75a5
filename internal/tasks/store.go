package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/eventmind/internal/db"
)

// ErrInvalidStatus is returned for a status outside open/in_progress/done.
var ErrInvalidStatus = errors.New("invalid task status")

// Store manages persistence of tasks.
type Store struct {
	db *db.DB
}

// NewStore creates a new task store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create adds a new task.
func (s *Store) Create(ctx context.Context, t Task) (*Task, error) {
	if t.ID == "" {
		t.ID = "task-" + uuid.New().String()[:8]
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if !t.Status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, t.Status)
	}
	t.Priority = ParsePriority(string(t.Priority))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, description, priority, status, source_event_id, decision_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.Priority, t.Status, t.SourceEventID, t.DecisionID,
		db.FormatTime(t.CreatedAt), db.FormatTime(t.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting task: %w", err)
	}
	return &t, nil
}

const selectTask = `SELECT id, title, description, priority, status, source_event_id, decision_id, created_at, updated_at FROM tasks`

// GetByID retrieves a task by its ID, or nil if it does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, selectTask+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return t, nil
}

// List returns tasks matching the filter, most urgent first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Task, error) {
	query := selectTask + " WHERE 1=1"
	args := []any{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		query += " AND priority = ?"
		args = append(args, filter.Priority)
	}
	if filter.SourceEventID != "" {
		query += " AND source_event_id = ?"
		args = append(args, filter.SourceEventID)
	}

	query += " ORDER BY priority ASC, created_at ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// UpdateStatus changes the status of a task.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		status, db.FormatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// Workload counts unfinished tasks and how many of those are P0 or P1.
func (s *Store) Workload(ctx context.Context) (open, highPriority int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN priority IN (?, ?) THEN 1 ELSE 0 END), 0)
		FROM tasks WHERE status != ?`, P0, P1, StatusDone,
	).Scan(&open, &highPriority)
	return open, highPriority, err
}

// CountByStatus returns task counts keyed by status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting tasks: %w", err)
	}
	defer rows.Close()

	out := map[Status]int{StatusOpen: 0, StatusInProgress: 0, StatusDone: 0}
	for rows.Next() {
		var (
			st string
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[Status(st)] = n
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (*Task, error) {
	var (
		t                    Task
		createdAt, updatedAt string
	)
	if err := sc.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Status,
		&t.SourceEventID, &t.DecisionID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if t.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
