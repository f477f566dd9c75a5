package decision

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

// ErrAlreadyExecuted is returned when a decision is marked executed twice.
var ErrAlreadyExecuted = errors.New("decision already executed")

// ErrNotFound is returned when a decision id does not exist.
var ErrNotFound = errors.New("decision not found")

// Analysis is an immutable record of one generative-language call.
type Analysis struct {
	ID           string         `json:"analysis_id"`
	EventID      string         `json:"event_id"`
	Model        string         `json:"model"`
	Type         string         `json:"analysis_type"`
	PromptHash   string         `json:"prompt_hash"`
	InputSummary string         `json:"input_summary"`
	OutputRaw    string         `json:"output_raw"`
	Output       map[string]any `json:"output_structured"`
	Confidence   float64        `json:"confidence"`
	InputTokens  int            `json:"input_tokens"`
	OutputTokens int            `json:"output_tokens"`
	LatencyMS    int64          `json:"latency_ms"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Decision is a chosen action for an event. It is written once and updated
// once, when executed.
type Decision struct {
	ID              string          `json:"decision_id"`
	EventID         string          `json:"event_id"`
	AnalysisID      string          `json:"analysis_id"`
	Context         map[string]any  `json:"context"`
	ChosenAction    string          `json:"chosen_action"`
	Reasoning       string          `json:"reasoning"`
	Alternatives    []string        `json:"alternatives"`
	Priority        string          `json:"priority,omitempty"`
	Confidence      float64         `json:"confidence"`
	Executed        bool            `json:"executed"`
	ExecutionResult json.RawMessage `json:"execution_result,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ExecutedAt      *time.Time      `json:"executed_at,omitempty"`
}

type scanner interface {
	Scan(dest ...any) error
}

// AnalysisStore persists analysis records.
type AnalysisStore struct {
	db *db.DB
}

// NewAnalysisStore creates a new analysis store.
func NewAnalysisStore(database *db.DB) *AnalysisStore {
	return &AnalysisStore{db: database}
}

// Save appends an analysis record.
func (s *AnalysisStore) Save(ctx context.Context, a *Analysis) error {
	output := a.Output
	if output == nil {
		output = map[string]any{}
	}
	b, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("marshalling analysis output: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ai_analysis (analysis_id, event_id, model, analysis_type, prompt_hash, input_summary,
			output_raw, output_structured, confidence, input_tokens, output_tokens, latency_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EventID, a.Model, a.Type, a.PromptHash, a.InputSummary,
		a.OutputRaw, string(b), a.Confidence, a.InputTokens, a.OutputTokens, a.LatencyMS, a.Error,
		db.FormatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting analysis: %w", err)
	}
	return nil
}

const selectAnalysis = `
	SELECT analysis_id, event_id, model, analysis_type, prompt_hash, input_summary, output_raw,
		output_structured, confidence, input_tokens, output_tokens, latency_ms, error, created_at
	FROM ai_analysis`

// Get returns an analysis by id, or nil if it does not exist.
func (s *AnalysisStore) Get(ctx context.Context, id string) (*Analysis, error) {
	a, err := scanAnalysis(s.db.QueryRowContext(ctx, selectAnalysis+" WHERE analysis_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// ForEvent lists an event's analyses, newest first.
func (s *AnalysisStore) ForEvent(ctx context.Context, eventID string, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectAnalysis+`
		WHERE event_id = ? ORDER BY created_at DESC LIMIT ?`, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAnalysis(sc scanner) (*Analysis, error) {
	var (
		a         Analysis
		output    string
		createdAt string
	)
	err := sc.Scan(&a.ID, &a.EventID, &a.Model, &a.Type, &a.PromptHash, &a.InputSummary, &a.OutputRaw,
		&output, &a.Confidence, &a.InputTokens, &a.OutputTokens, &a.LatencyMS, &a.Error, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(output), &a.Output); err != nil {
		return nil, fmt.Errorf("decoding analysis output: %w", err)
	}
	if a.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// DecisionStore persists decisions.
type DecisionStore struct {
	db *db.DB
}

// NewDecisionStore creates a new decision store.
func NewDecisionStore(database *db.DB) *DecisionStore {
	return &DecisionStore{db: database}
}

// Save inserts a new, unexecuted decision.
func (s *DecisionStore) Save(ctx context.Context, d *Decision) error {
	dctx := d.Context
	if dctx == nil {
		dctx = map[string]any{}
	}
	ctxJSON, err := json.Marshal(dctx)
	if err != nil {
		return fmt.Errorf("marshalling decision context: %w", err)
	}
	alts := d.Alternatives
	if alts == nil {
		alts = []string{}
	}
	altJSON, err := json.Marshal(alts)
	if err != nil {
		return fmt.Errorf("marshalling alternatives: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ai_decisions (decision_id, event_id, analysis_id, context, chosen_action, reasoning,
			alternatives, priority, confidence, executed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		d.ID, d.EventID, d.AnalysisID, string(ctxJSON), d.ChosenAction, d.Reasoning,
		string(altJSON), d.Priority, d.Confidence, db.FormatTime(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting decision: %w", err)
	}
	return nil
}

const selectDecision = `
	SELECT decision_id, event_id, analysis_id, context, chosen_action, reasoning, alternatives,
		priority, confidence, executed, execution_result, created_at, executed_at
	FROM ai_decisions`

// Get returns a decision by id, or nil if it does not exist.
func (s *DecisionStore) Get(ctx context.Context, id string) (*Decision, error) {
	d, err := scanDecision(s.db.QueryRowContext(ctx, selectDecision+" WHERE decision_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// ForEvent lists an event's decisions, newest first.
func (s *DecisionStore) ForEvent(ctx context.Context, eventID string) ([]Decision, error) {
	rows, err := s.db.QueryContext(ctx, selectDecision+" WHERE event_id = ? ORDER BY created_at DESC", eventID)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// MarkExecuted records the execution result. It succeeds at most once per
// decision; later calls return ErrAlreadyExecuted.
func (s *DecisionStore) MarkExecuted(ctx context.Context, id string, result any, at time.Time) error {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshalling execution result: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE ai_decisions SET executed = 1, execution_result = ?, executed_at = ?
		WHERE decision_id = ? AND executed = 0`,
		string(b), db.FormatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("marking decision executed: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ai_decisions WHERE decision_id = ?", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking decision: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fmt.Errorf("%w: %s", ErrAlreadyExecuted, id)
}

func scanDecision(sc scanner) (*Decision, error) {
	var (
		d                  Decision
		ctxJSON, altJSON   string
		executed           int
		result, executedAt sql.NullString
		createdAt          string
	)
	err := sc.Scan(&d.ID, &d.EventID, &d.AnalysisID, &ctxJSON, &d.ChosenAction, &d.Reasoning, &altJSON,
		&d.Priority, &d.Confidence, &executed, &result, &createdAt, &executedAt)
	if err != nil {
		return nil, err
	}
	d.Executed = executed != 0
	if err := json.Unmarshal([]byte(ctxJSON), &d.Context); err != nil {
		return nil, fmt.Errorf("decoding decision context: %w", err)
	}
	if err := json.Unmarshal([]byte(altJSON), &d.Alternatives); err != nil {
		return nil, fmt.Errorf("decoding alternatives: %w", err)
	}
	if result.Valid && strings.TrimSpace(result.String) != "" {
		d.ExecutionResult = json.RawMessage(result.String)
	}
	if d.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if executedAt.Valid {
		t, err := db.ParseTime(executedAt.String)
		if err != nil {
			return nil, err
		}
		d.ExecutedAt = &t
	}
	return &d, nil
}
