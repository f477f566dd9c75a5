package semantic

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/eventmind/internal/db"
)

// LinkTypeSimilar marks links discovered by FindSimilar.
const LinkTypeSimilar = "similar"

// Embedding is a stored vector for one version of an event's text.
type Embedding struct {
	ID          string    `json:"embedding_id"`
	EventID     string    `json:"event_id"`
	ContentHash string    `json:"content_hash"`
	Vector      []float32 `json:"-"`
	Model       string    `json:"model"`
	Preview     string    `json:"preview"`
	Source      string    `json:"source"`
	Timestamp   time.Time `json:"timestamp"`
	CreatedAt   time.Time `json:"created_at"`
}

// Link is a directed edge from the event that was looked up to a match.
type Link struct {
	ID            string    `json:"link_id"`
	SourceEventID string    `json:"source_event_id"`
	TargetEventID string    `json:"target_event_id"`
	Similarity    float64   `json:"similarity"`
	LinkType      string    `json:"link_type"`
	CreatedAt     time.Time `json:"created_at"`
}

// QueryLog records one search for later analysis.
type QueryLog struct {
	Query         string
	Filters       map[string]any
	ResultCount   int
	TopSimilarity float64
	Latency       time.Duration
}

// CandidateFilter bounds the scan window for similarity search.
type CandidateFilter struct {
	Source         string
	Since          time.Time
	ExcludeEventID string
	Limit          int
}

// Store persists embeddings, links and the search query log.
type Store struct {
	db *db.DB
}

// NewStore creates a new semantic store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Insert stores an embedding unless one already exists for the same
// (event_id, content_hash). It reports whether a row was written.
func (s *Store) Insert(ctx context.Context, e *Embedding) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO embeddings (embedding_id, event_id, content_hash, vector, dimensions, model, preview, source, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EventID, e.ContentHash, db.EncodeVector(e.Vector), len(e.Vector),
		e.Model, e.Preview, e.Source, db.FormatTime(e.Timestamp), db.FormatTime(e.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("inserting embedding: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Exists reports whether the event already has an embedding for hash.
func (s *Store) Exists(ctx context.Context, eventID, hash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM embeddings WHERE event_id = ? AND content_hash = ?", eventID, hash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking embedding: %w", err)
	}
	return n > 0, nil
}

// Latest returns the most recently written embedding of an event, or nil.
func (s *Store) Latest(ctx context.Context, eventID string) (*Embedding, error) {
	row := s.db.QueryRowContext(ctx, selectEmbedding+`
		WHERE event_id = ? ORDER BY created_at DESC LIMIT 1`, eventID)
	e, err := scanEmbedding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// CountForEvent returns how many embeddings an event has.
func (s *Store) CountForEvent(ctx context.Context, eventID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings WHERE event_id = ?", eventID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return n, nil
}

// Candidates returns embeddings inside the filter window, newest first.
func (s *Store) Candidates(ctx context.Context, f CandidateFilter) ([]Embedding, error) {
	var (
		clauses []string
		args    []any
	)
	if f.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, f.Source)
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, db.FormatTime(f.Since))
	}
	if f.ExcludeEventID != "" {
		clauses = append(clauses, "event_id != ?")
		args = append(args, f.ExcludeEventID)
	}

	query := selectEmbedding
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	var out []Embedding
	for rows.Next() {
		e, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// SaveLink upserts a directed link. The id is derived from the endpoints so
// repeated lookups refresh the score instead of piling up rows.
func (s *Store) SaveLink(ctx context.Context, l *Link) error {
	if l.LinkType == "" {
		l.LinkType = LinkTypeSimilar
	}
	if l.ID == "" {
		l.ID = linkID(l.SourceEventID, l.TargetEventID, l.LinkType)
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO semantic_links (link_id, source_event_id, target_event_id, similarity, link_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(link_id) DO UPDATE SET similarity = excluded.similarity`,
		l.ID, l.SourceEventID, l.TargetEventID, l.Similarity, l.LinkType, db.FormatTime(l.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving link: %w", err)
	}
	return nil
}

// LinksFrom returns links whose source is eventID, strongest first.
func (s *Store) LinksFrom(ctx context.Context, eventID string) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT link_id, source_event_id, target_event_id, similarity, link_type, created_at
		FROM semantic_links WHERE source_event_id = ?
		ORDER BY similarity DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	defer rows.Close()

	var out []Link
	for rows.Next() {
		var (
			l         Link
			createdAt string
		)
		if err := rows.Scan(&l.ID, &l.SourceEventID, &l.TargetEventID, &l.Similarity, &l.LinkType, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		if l.CreatedAt, err = db.ParseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LogQuery appends a search to the query log.
func (s *Store) LogQuery(ctx context.Context, q QueryLog) error {
	filters, err := json.Marshal(q.Filters)
	if err != nil {
		return fmt.Errorf("marshalling filters: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO search_queries (query_id, query, filters, result_count, top_similarity, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), q.Query, string(filters), q.ResultCount, q.TopSimilarity,
		q.Latency.Milliseconds(), db.FormatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("logging search query: %w", err)
	}
	return nil
}

func linkID(source, target, linkType string) string {
	sum := sha256.Sum256([]byte(source + "|" + target + "|" + linkType))
	return "lnk-" + hex.EncodeToString(sum[:])[:16]
}

const selectEmbedding = `SELECT embedding_id, event_id, content_hash, vector, model, preview, source, timestamp, created_at FROM embeddings`

type scanner interface {
	Scan(dest ...any) error
}

func scanEmbedding(sc scanner) (*Embedding, error) {
	var (
		e         Embedding
		blob      []byte
		ts        string
		createdAt string
	)
	if err := sc.Scan(&e.ID, &e.EventID, &e.ContentHash, &blob, &e.Model, &e.Preview, &e.Source, &ts, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning embedding: %w", err)
	}
	vec, err := db.DecodeVector(blob)
	if err != nil {
		return nil, err
	}
	e.Vector = vec
	if e.Timestamp, err = db.ParseTime(ts); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &e, nil
}
