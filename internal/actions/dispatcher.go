// Package actions executes decisions under a confidence gate and records
// what was done.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openclaw/eventmind/internal/audit"
	"github.com/openclaw/eventmind/internal/decision"
	"github.com/openclaw/eventmind/internal/event"
	"github.com/openclaw/eventmind/internal/notifications"
	"github.com/openclaw/eventmind/internal/tasks"
)

// ConfidenceGate is the minimum decision confidence for automatic execution.
const ConfidenceGate = 0.6

// Outcome tags.
const (
	OutcomeFlaggedForReview = "flagged_for_review"
	OutcomeTaskCreated      = "create_task"
	OutcomeFlaggedForHuman  = "flagged_for_human"
	OutcomeLogged           = "logged"
	OutcomeHandlerFailed    = "handler_failed"
)

// Handler names.
const (
	HandlerCreateTask = "create-task"
	HandlerLogOnly    = "log-only"
	HandlerFlagHuman  = "flag-for-human"
)

var handlerByAction = map[string]string{
	"create_task": HandlerCreateTask,
	"archive":     HandlerLogOnly,
	"ignore":      HandlerLogOnly,
	"log":         HandlerLogOnly,
	"reply":       HandlerFlagHuman,
	"forward":     HandlerFlagHuman,
	"escalate":    HandlerFlagHuman,
	"flag":        HandlerFlagHuman,
}

// HandlerFor returns the handler name for an action. Unmapped actions are
// log-only.
func HandlerFor(action string) string {
	if h, ok := handlerByAction[action]; ok {
		return h
	}
	return HandlerLogOnly
}

// Outcome is the single result of acting on a decision.
type Outcome struct {
	ActionTaken    string `json:"action_taken"`
	Handler        string `json:"handler,omitempty"`
	Reason         string `json:"reason,omitempty"`
	TaskID         string `json:"task_id,omitempty"`
	NotificationID string `json:"notification_id,omitempty"`
	LogEntryID     string `json:"log_entry_id,omitempty"`
	ActionNeeded   string `json:"action_needed,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Executed reports whether the decision was carried out rather than gated.
func (o *Outcome) Executed() bool {
	return o.ActionTaken != OutcomeFlaggedForReview
}

// Request is what a handler acts on.
type Request struct {
	Decision   *decision.Decision
	Event      *event.Event
	PipelineID string
}

// Dispatcher routes decisions to handlers.
type Dispatcher struct {
	decisions *decision.DecisionStore
	log       *audit.Store
	tasks     *tasks.Store
	notifier  *notifications.Dispatcher
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatcher creates an action dispatcher.
func NewDispatcher(decisions *decision.DecisionStore, log *audit.Store, taskStore *tasks.Store, notifier *notifications.Dispatcher, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		decisions: decisions,
		log:       log,
		tasks:     taskStore,
		notifier:  notifier,
		logger:    logger.With("component", "actions"),
		now:       time.Now,
	}
}

// Execute acts on a decision. Below the confidence gate nothing is executed:
// a REVIEW_NEEDED entry is logged and the decision stays unexecuted.
// Otherwise the mapped handler runs and the decision is marked executed once,
// with a handler failure recorded in the outcome. The returned error is for
// storage failures only.
func (d *Dispatcher) Execute(ctx context.Context, req Request) (*Outcome, error) {
	dec := req.Decision
	if dec.Confidence < ConfidenceGate {
		entry, err := d.log.Log(ctx, audit.Entry{
			Action:     audit.ActionReviewNeeded,
			EntityType: audit.EntityDecision,
			EntityID:   dec.ID,
			Summary:    fmt.Sprintf("Low confidence decision: %s", dec.ChosenAction),
			Rationale:  dec.Reasoning,
			Confidence: dec.Confidence,
			PipelineID: req.PipelineID,
		})
		if err != nil {
			return nil, err
		}
		d.logger.Info("decision gated", "decision_id", dec.ID, "action", dec.ChosenAction, "confidence", dec.Confidence)
		return &Outcome{
			ActionTaken: OutcomeFlaggedForReview,
			Reason:      "low_confidence",
			LogEntryID:  entry.ID,
		}, nil
	}

	handler := HandlerFor(dec.ChosenAction)
	var (
		out *Outcome
		err error
	)
	switch handler {
	case HandlerCreateTask:
		out, err = d.createTask(ctx, req)
	case HandlerFlagHuman:
		out, err = d.flagHuman(ctx, req)
	default:
		out, err = d.logOnly(ctx, req)
	}
	if err != nil {
		d.logger.Warn("action handler failed", "decision_id", dec.ID, "handler", handler, "error", err)
		out = &Outcome{ActionTaken: OutcomeHandlerFailed, Error: err.Error()}
	}
	out.Handler = handler

	if err := d.decisions.MarkExecuted(ctx, dec.ID, out, d.now().UTC()); err != nil {
		return out, err
	}
	return out, nil
}

func (d *Dispatcher) createTask(ctx context.Context, req Request) (*Outcome, error) {
	dec := req.Decision
	task, err := d.tasks.Create(ctx, tasks.Task{
		Title:         taskTitle(req),
		Description:   dec.Reasoning,
		Priority:      tasks.ParsePriority(dec.Priority),
		SourceEventID: dec.EventID,
		DecisionID:    dec.ID,
	})
	if err != nil {
		return nil, err
	}
	entry, err := d.log.Log(ctx, audit.Entry{
		Action:     audit.ActionCreateTask,
		EntityType: audit.EntityTask,
		EntityID:   task.ID,
		Summary:    fmt.Sprintf("Created task from %s event", sourceOf(req)),
		Rationale:  dec.Reasoning,
		Confidence: dec.Confidence,
		PipelineID: req.PipelineID,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{ActionTaken: OutcomeTaskCreated, TaskID: task.ID, LogEntryID: entry.ID}, nil
}

func (d *Dispatcher) logOnly(ctx context.Context, req Request) (*Outcome, error) {
	dec := req.Decision
	action := dec.ChosenAction
	if action == "" {
		action = "none"
	}
	entry, err := d.log.Log(ctx, audit.Entry{
		Action:     audit.ActionDecide,
		EntityType: audit.EntityEvent,
		EntityID:   dec.EventID,
		Summary:    "Decided: " + action,
		Rationale:  dec.Reasoning,
		Confidence: dec.Confidence,
		PipelineID: req.PipelineID,
	})
	if err != nil {
		return nil, err
	}
	taken := dec.ChosenAction
	if taken == "" {
		taken = OutcomeLogged
	}
	return &Outcome{ActionTaken: taken, LogEntryID: entry.ID}, nil
}

func (d *Dispatcher) flagHuman(ctx context.Context, req Request) (*Outcome, error) {
	dec := req.Decision
	task, err := d.tasks.Create(ctx, tasks.Task{
		Title:         fmt.Sprintf("[Human needed] %s: %s", dec.ChosenAction, event.Truncate(dec.EventID, 40)),
		Description:   dec.Reasoning,
		Priority:      tasks.P1,
		SourceEventID: dec.EventID,
		DecisionID:    dec.ID,
	})
	if err != nil {
		return nil, err
	}
	entry, err := d.log.Log(ctx, audit.Entry{
		Action:     audit.ActionFlagHuman,
		EntityType: audit.EntityEvent,
		EntityID:   dec.EventID,
		Summary:    "Flagged for human: " + dec.ChosenAction,
		Rationale:  dec.Reasoning,
		Confidence: dec.Confidence,
		PipelineID: req.PipelineID,
	})
	if err != nil {
		return nil, err
	}
	n, err := d.notifier.Dispatch(ctx, notifications.Notification{
		Type:       notifications.TypeHumanReview,
		Severity:   notifications.SeverityWarning,
		Title:      fmt.Sprintf("Review needed: %s", dec.ChosenAction),
		Message:    dec.Reasoning,
		EventID:    dec.EventID,
		DecisionID: dec.ID,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{
		ActionTaken:    OutcomeFlaggedForHuman,
		TaskID:         task.ID,
		NotificationID: n.ID,
		LogEntryID:     entry.ID,
		ActionNeeded:   dec.ChosenAction,
	}, nil
}

func taskTitle(req Request) string {
	if req.Event != nil {
		if s := event.StringField(req.Event.Payload, "subject"); s != "" {
			return "[AI] " + event.Truncate(s, 80)
		}
		if s := event.StringField(req.Event.Payload, "title"); s != "" {
			return "[AI] " + event.Truncate(s, 80)
		}
	}
	if req.Decision.Reasoning != "" {
		return "[AI] " + event.Truncate(req.Decision.Reasoning, 80)
	}
	return "[AI] Untitled"
}

func sourceOf(req Request) string {
	if req.Event != nil && req.Event.Source != "" {
		return req.Event.Source
	}
	return "unknown"
}
