// Package notifications persists alerts for a human and forwards them to an
// optional webhook.
package notifications

import "time"

// Severity indicates the importance of a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// NotificationType categorises what triggered the notification.
type NotificationType string

const (
	TypeHumanReview  NotificationType = "human_review"
	TypeReviewNeeded NotificationType = "review_needed"
	TypePipelineFail NotificationType = "pipeline_failure"
)

// Notification is a single alert record.
type Notification struct {
	ID         string           `json:"id"`
	Type       NotificationType `json:"type"`
	Severity   Severity         `json:"severity"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	EventID    string           `json:"event_id,omitempty"`
	DecisionID string           `json:"decision_id,omitempty"`
	Delivered  bool             `json:"delivered"`
	CreatedAt  time.Time        `json:"created_at"`
}
