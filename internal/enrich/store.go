package enrich

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/eventmind/internal/db"
	"github.com/openclaw/eventmind/internal/nlp"
)

// Record is one enrichment of an event. A non-empty Error marks a partial
// record written after the NL capability failed.
type Record struct {
	ID        string        `json:"enrichment_id"`
	EventID   string        `json:"event_id"`
	Entities  []nlp.Entity  `json:"entities"`
	Sentiment nlp.Sentiment `json:"sentiment"`
	Language  string        `json:"language"`
	RawText   string        `json:"raw_text"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store persists enrichment records.
type Store struct {
	db *db.DB
}

// NewStore creates a new enrichment store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Save inserts a record, assigning an id and timestamp if missing.
func (s *Store) Save(ctx context.Context, r *Record) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Entities == nil {
		r.Entities = []nlp.Entity{}
	}
	entities, err := json.Marshal(r.Entities)
	if err != nil {
		return fmt.Errorf("marshalling entities: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO nlp_enrichment (enrichment_id, event_id, entities, sentiment_score, sentiment_magnitude, language, raw_text, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EventID, string(entities), r.Sentiment.Score, r.Sentiment.Magnitude,
		r.Language, r.RawText, r.Error, db.FormatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting enrichment: %w", err)
	}
	return nil
}

// Current returns the latest successful enrichment for the event, or nil.
func (s *Store) Current(ctx context.Context, eventID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+`
		WHERE event_id = ? AND error = ''
		ORDER BY created_at DESC LIMIT 1`, eventID)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ForEvents returns the latest successful enrichment of each listed event.
func (s *Store) ForEvents(ctx context.Context, eventIDs []string) (map[string]*Record, error) {
	out := make(map[string]*Record, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(eventIDs)), ",")
	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE error = '' AND event_id IN (`+placeholders+`)
		ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying enrichments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		// Ascending order, so the newest record wins.
		out[r.EventID] = r
	}
	return out, rows.Err()
}

// CountForEvent returns how many records (including failed ones) exist.
func (s *Store) CountForEvent(ctx context.Context, eventID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nlp_enrichment WHERE event_id = ?", eventID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting enrichments: %w", err)
	}
	return n, nil
}

const selectColumns = `SELECT enrichment_id, event_id, entities, sentiment_score, sentiment_magnitude, language, raw_text, error, created_at FROM nlp_enrichment`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		r         Record
		entities  string
		createdAt string
	)
	if err := sc.Scan(&r.ID, &r.EventID, &entities, &r.Sentiment.Score, &r.Sentiment.Magnitude,
		&r.Language, &r.RawText, &r.Error, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning enrichment: %w", err)
	}
	if err := json.Unmarshal([]byte(entities), &r.Entities); err != nil {
		return nil, fmt.Errorf("decoding entities: %w", err)
	}
	t, err := db.ParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = t
	return &r, nil
}
