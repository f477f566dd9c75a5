package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openclaw/eventmind/internal/db"
)

// Stage names, in execution order.
const (
	StageEnrich  = "enrich"
	StageEmbed   = "embed"
	StageSimilar = "similar"
	StageAnalyze = "analyze"
	StageDecide  = "decide"
	StageAct     = "act"
)

// Outcomes that are not action outcomes.
const (
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// StageStatus records how far one stage got.
type StageStatus struct {
	Completed bool   `json:"completed"`
	Error     string `json:"error,omitempty"`
}

// Execution is the record of one pipeline run.
type Execution struct {
	PipelineID string                 `json:"pipeline_id"`
	EventID    string                 `json:"event_id"`
	Source     string                 `json:"source"`
	EventType  string                 `json:"event_type"`
	Stages     map[string]StageStatus `json:"stages"`
	Outcome    string                 `json:"outcome"`
	Error      string                 `json:"error,omitempty"`
	SkipReason string                 `json:"skip_reason,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	DurationMS int64                  `json:"duration_ms"`

	// Set in memory for callers; not persisted here.
	AnalysisID   string `json:"analysis_id,omitempty"`
	DecisionID   string `json:"decision_id,omitempty"`
	RelatedCount int    `json:"related_count"`
}

// FailedStages lists stages that recorded an error.
func (e *Execution) FailedStages() []string {
	var out []string
	for _, name := range []string{StageEnrich, StageEmbed, StageSimilar, StageAnalyze, StageDecide, StageAct} {
		if st, ok := e.Stages[name]; ok && st.Error != "" {
			out = append(out, name)
		}
	}
	return out
}

// ExecutionStore persists pipeline execution records.
type ExecutionStore struct {
	db *db.DB
}

// NewExecutionStore creates a new execution store.
func NewExecutionStore(database *db.DB) *ExecutionStore {
	return &ExecutionStore{db: database}
}

// Save appends an execution record.
func (s *ExecutionStore) Save(ctx context.Context, e *Execution) error {
	stages, err := json.Marshal(e.Stages)
	if err != nil {
		return fmt.Errorf("marshalling stages: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipeline_executions (pipeline_id, event_id, source, event_type, stages, outcome, error, started_at, finished_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.PipelineID, e.EventID, e.Source, e.EventType, string(stages), e.Outcome, e.Error,
		db.FormatTime(e.StartedAt), db.FormatTime(e.FinishedAt), e.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting pipeline execution: %w", err)
	}
	return nil
}

const selectExecution = `
	SELECT pipeline_id, event_id, source, event_type, stages, outcome, error, started_at, finished_at, duration_ms
	FROM pipeline_executions`

// Get returns an execution by pipeline id, or nil if it does not exist.
func (s *ExecutionStore) Get(ctx context.Context, id string) (*Execution, error) {
	e, err := scanExecution(s.db.QueryRowContext(ctx, selectExecution+" WHERE pipeline_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// ListFilter controls which executions List returns.
type ListFilter struct {
	EventID string
	Outcome string
	Limit   int
}

// List returns executions, newest first.
func (s *ExecutionStore) List(ctx context.Context, f ListFilter) ([]Execution, error) {
	query := selectExecution + " WHERE 1=1"
	var args []any
	if f.EventID != "" {
		query += " AND event_id = ?"
		args = append(args, f.EventID)
	}
	if f.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, f.Outcome)
	}
	query += " ORDER BY started_at DESC"
	if f.Limit <= 0 {
		f.Limit = 50
	}
	query += fmt.Sprintf(" LIMIT %d", f.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pipeline executions: %w", err)
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Count returns how many executions have been recorded.
func (s *ExecutionStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pipeline_executions").Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(sc scanner) (*Execution, error) {
	var (
		e                 Execution
		stages            string
		started, finished string
	)
	err := sc.Scan(&e.PipelineID, &e.EventID, &e.Source, &e.EventType, &stages, &e.Outcome, &e.Error,
		&started, &finished, &e.DurationMS)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(stages), &e.Stages); err != nil {
		return nil, fmt.Errorf("decoding stages: %w", err)
	}
	if e.StartedAt, err = db.ParseTime(started); err != nil {
		return nil, err
	}
	if e.FinishedAt, err = db.ParseTime(finished); err != nil {
		return nil, err
	}
	return &e, nil
}
