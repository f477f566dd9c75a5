// Package tasks is the local task list that automated actions write to.
package tasks

import (
	"strings"
	"time"
)

// Status represents the lifecycle stage of a task.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Priority ranks tasks from P0 (most urgent) to P3.
type Priority string

const (
	P0 Priority = "P0"
	P1 Priority = "P1"
	P2 Priority = "P2"
	P3 Priority = "P3"
)

// ParsePriority maps free-form model output onto P0..P3. Lower ranks than P3
// collapse to P3; anything unrecognised is P2.
func ParsePriority(s string) Priority {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "P0", "URGENT", "CRITICAL":
		return P0
	case "P1", "HIGH":
		return P1
	case "P2", "MEDIUM", "NORMAL":
		return P2
	case "P3", "P4", "LOW":
		return P3
	}
	return P2
}

// Task is a unit of follow-up work, usually created from a decision.
type Task struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Priority      Priority  `json:"priority"`
	Status        Status    `json:"status"`
	SourceEventID string    `json:"source_event_id,omitempty"`
	DecisionID    string    `json:"decision_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ListFilter controls which tasks to return.
type ListFilter struct {
	Status        Status
	Priority      Priority
	SourceEventID string
	Limit         int
	Offset        int
}
