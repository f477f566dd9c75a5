package cluster

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openclaw/eventmind/internal/db"
)

// Tag identity for clustering output.
const (
	TagTypeCluster = "cluster"
	TagSource      = "auto_organizer"
	TagConfidence  = 0.6
)

// Cluster is one group of related events from a clustering run.
type Cluster struct {
	ID          string    `json:"cluster_id"`
	Namespace   string    `json:"namespace"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
	Centroid    []float32 `json:"-"`
	MemberCount int       `json:"member_count"`
	SampleIDs   []string  `json:"sample_event_ids"`
	MemberIDs   []string  `json:"member_event_ids"`
	LastUpdated time.Time `json:"last_updated"`
}

// Tag attaches a label to an event.
type Tag struct {
	ID         string    `json:"tag_id"`
	EventID    string    `json:"event_id"`
	ClusterID  string    `json:"cluster_id"`
	Type       string    `json:"tag_type"`
	Value      string    `json:"tag_value"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists clusters and event tags.
type Store struct {
	db *db.DB
}

// NewStore creates a new cluster store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Replace swaps the cluster set of namespace and the cluster tags of
// memberIDs for the given rows, in one transaction. Rows outside the
// namespace, and tags from other sources or types, are untouched.
func (s *Store) Replace(ctx context.Context, namespace string, clusters []Cluster, memberIDs []string, tags []Tag) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM semantic_clusters WHERE namespace = ?", namespace); err != nil {
			return fmt.Errorf("deleting clusters in %s: %w", namespace, err)
		}
		for _, c := range clusters {
			if err := insertCluster(ctx, tx, c); err != nil {
				return err
			}
		}

		if err := deleteTags(ctx, tx, memberIDs); err != nil {
			return err
		}
		for _, t := range tags {
			if err := insertTag(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// deleteBatch keeps IN lists well under SQLite's variable limit.
const deleteBatch = 500

func deleteTags(ctx context.Context, tx *sql.Tx, eventIDs []string) error {
	for start := 0; start < len(eventIDs); start += deleteBatch {
		batch := eventIDs[start:min(start+deleteBatch, len(eventIDs))]
		args := []any{TagSource, TagTypeCluster}
		for _, id := range batch {
			args = append(args, id)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		_, err := tx.ExecContext(ctx, `
			DELETE FROM event_tags
			WHERE source = ? AND tag_type = ? AND event_id IN (`+placeholders+`)`, args...)
		if err != nil {
			return fmt.Errorf("deleting cluster tags: %w", err)
		}
	}
	return nil
}

func insertCluster(ctx context.Context, tx *sql.Tx, c Cluster) error {
	samples, err := json.Marshal(nonNil(c.SampleIDs))
	if err != nil {
		return fmt.Errorf("marshalling sample ids: %w", err)
	}
	members, err := json.Marshal(nonNil(c.MemberIDs))
	if err != nil {
		return fmt.Errorf("marshalling member ids: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO semantic_clusters (cluster_id, namespace, label, description, centroid, member_count, sample_ids, member_ids, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Namespace, c.Label, c.Description, db.EncodeVector(c.Centroid),
		c.MemberCount, string(samples), string(members), db.FormatTime(c.LastUpdated),
	)
	if err != nil {
		return fmt.Errorf("inserting cluster %s: %w", c.ID, err)
	}
	return nil
}

func insertTag(ctx context.Context, tx *sql.Tx, t Tag) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO event_tags (tag_id, event_id, cluster_id, tag_type, tag_value, confidence, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.EventID, t.ClusterID, t.Type, t.Value, t.Confidence, t.Source, db.FormatTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting tag %s: %w", t.ID, err)
	}
	return nil
}

// List returns clusters whose namespace starts with prefix (all when
// empty), largest first.
func (s *Store) List(ctx context.Context, prefix string) ([]Cluster, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cluster_id, namespace, label, description, centroid, member_count, sample_ids, member_ids, last_updated
		FROM semantic_clusters WHERE namespace LIKE ? || '%'
		ORDER BY last_updated DESC, member_count DESC, cluster_id ASC`, prefix)
	if err != nil {
		return nil, fmt.Errorf("querying clusters: %w", err)
	}
	defer rows.Close()

	var out []Cluster
	for rows.Next() {
		var (
			c                Cluster
			centroid         []byte
			samples, members string
			lastUpdated      string
		)
		if err := rows.Scan(&c.ID, &c.Namespace, &c.Label, &c.Description, &centroid,
			&c.MemberCount, &samples, &members, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scanning cluster: %w", err)
		}
		if c.Centroid, err = db.DecodeVector(centroid); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(samples), &c.SampleIDs); err != nil {
			return nil, fmt.Errorf("decoding sample ids: %w", err)
		}
		if err := json.Unmarshal([]byte(members), &c.MemberIDs); err != nil {
			return nil, fmt.Errorf("decoding member ids: %w", err)
		}
		if c.LastUpdated, err = db.ParseTime(lastUpdated); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TagsForEvent returns every tag attached to an event.
func (s *Store) TagsForEvent(ctx context.Context, eventID string) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag_id, event_id, cluster_id, tag_type, tag_value, confidence, source, created_at
		FROM event_tags WHERE event_id = ? ORDER BY created_at DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		var (
			t         Tag
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.EventID, &t.ClusterID, &t.Type, &t.Value, &t.Confidence, &t.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		if t.CreatedAt, err = db.ParseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
