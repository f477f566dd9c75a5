// Package audit records every automated action the pipeline takes or
// declines to take.
package audit

import "time"

// Action describes what was done.
type Action string

const (
	ActionDecide       Action = "DECIDE"
	ActionCreateTask   Action = "CREATE_TASK"
	ActionFlagHuman    Action = "FLAG_HUMAN"
	ActionReviewNeeded Action = "REVIEW_NEEDED"
)

// Entity types an entry can point at.
const (
	EntityDecision = "decision"
	EntityTask     = "task"
	EntityEvent    = "event"
)

// DefaultAgent is the agent id used for entries written by the dispatcher.
const DefaultAgent = "eventmind"

// Entry is a single action log record.
type Entry struct {
	ID         string    `json:"entry_id"`
	Timestamp  time.Time `json:"timestamp"`
	AgentID    string    `json:"agent_id"`
	Action     Action    `json:"action_type"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Summary    string    `json:"summary"`
	Rationale  string    `json:"rationale"`
	Confidence float64   `json:"confidence"`
	PipelineID string    `json:"pipeline_id,omitempty"`
}
