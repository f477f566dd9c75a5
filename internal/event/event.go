// Package event defines the normalized event envelope consumed by every
// pipeline stage, along with payload normalization and text extraction.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Well-known sources. Adapters may emit others.
const (
	SourceGmail        = "gmail"
	SourceMail         = "mail"
	SourceCalendar     = "calendar"
	SourceDrive        = "drive"
	SourceFile         = "file"
	SourceAudio        = "audio"
	SourceImage        = "image"
	SourceOrchestrator = "orchestrator"
)

// TypeActionTaken marks an event emitted after the pipeline acted.
const TypeActionTaken = "action_taken"

// Event is the normalized envelope produced by source adapters.
type Event struct {
	ID        string         `json:"event_id"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Type      string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
	Processed bool           `json:"processed"`
}

// envelope is the wire shape; payload may be a JSON object, a JSON string, or
// anything else.
type envelope struct {
	ID        string          `json:"event_id"`
	Timestamp string          `json:"timestamp"`
	Source    string          `json:"source"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Processed bool            `json:"processed"`
}

// Decode parses an envelope, normalizes its payload and fills in a derived
// event_id when the adapter did not provide one.
func Decode(data []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding event envelope: %w", err)
	}
	if env.Source == "" {
		return nil, fmt.Errorf("event envelope is missing source")
	}

	ev := &Event{
		ID:        env.ID,
		Source:    env.Source,
		Type:      env.Type,
		Payload:   NormalizePayload(env.Payload),
		Processed: env.Processed,
	}

	if env.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, env.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("parsing event timestamp %q: %w", env.Timestamp, err)
		}
		ev.Timestamp = ts.UTC()
	}

	if ev.ID == "" {
		ev.ID = ev.contentID()
	}
	return ev, nil
}

// UnmarshalJSON lets Event be decoded directly from an envelope.
func (e *Event) UnmarshalJSON(data []byte) error {
	ev, err := Decode(data)
	if err != nil {
		return err
	}
	*e = *ev
	return nil
}

// DeriveID returns a stable event id for a source-specific key such as a
// message id or a file revision, so redelivery yields the same id.
func DeriveID(source, key string) string {
	sum := sha256.Sum256([]byte(key))
	return source + "-" + hex.EncodeToString(sum[:])[:16]
}

// contentID derives an id from everything the envelope carries. Map keys are
// sorted by encoding/json, so the payload encoding is canonical.
func (e *Event) contentID() string {
	payload, _ := json.Marshal(e.Payload)
	key := strings.Join([]string{
		e.Source,
		e.Type,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		string(payload),
	}, "|")
	return DeriveID(e.Source, key)
}

// Labels returns the payload's "labels" entry as strings, if present.
func (e *Event) Labels() []string {
	raw, ok := e.Payload["labels"].([]any)
	if !ok {
		if ss, ok := e.Payload["labels"].([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
