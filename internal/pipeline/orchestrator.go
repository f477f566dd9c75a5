// Package pipeline runs one event through enrichment, embedding, analysis,
// decision and action, and records how far it got.
package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/eventmind/internal/actions"
	"github.com/openclaw/eventmind/internal/decision"
	"github.com/openclaw/eventmind/internal/enrich"
	"github.com/openclaw/eventmind/internal/event"
	"github.com/openclaw/eventmind/internal/nlp"
	"github.com/openclaw/eventmind/internal/notifications"
	"github.com/openclaw/eventmind/internal/semantic"
	"github.com/openclaw/eventmind/internal/tasks"
)

const (
	analysisEntities = 10
	decisionEntities = 5
	similarTopK      = 5
	defaultAnalysis  = decision.TypeSummarize
)

// Observer is told about every finished pipeline run, skipped runs included.
type Observer interface {
	PipelineCompleted(ctx context.Context, exec *Execution)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, exec *Execution)

func (f ObserverFunc) PipelineCompleted(ctx context.Context, exec *Execution) { f(ctx, exec) }

// Options configures routing and cycle prevention.
type Options struct {
	SkipSources    []string
	SkipEventTypes []string
	AnalysisTypes  map[string]string
}

// Deps are the components a pipeline run drives.
type Deps struct {
	Events     *event.Store
	Enricher   *enrich.Stage
	Semantic   *semantic.Service
	Decisions  *decision.Engine
	Actions    *actions.Dispatcher
	Tasks      *tasks.Store
	Executions *ExecutionStore
	// Notifier, when set, receives a pipeline_failure notification for
	// runs that end in an error.
	Notifier *notifications.Dispatcher
}

// Orchestrator processes events. It holds no per-event state, so
// ProcessEvent may be called concurrently.
type Orchestrator struct {
	deps      Deps
	filter    *CycleFilter
	analysis  map[string]string
	observers []Observer
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an orchestrator.
func New(deps Deps, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		deps:     deps,
		filter:   NewCycleFilter(opts.SkipSources, opts.SkipEventTypes),
		analysis: opts.AnalysisTypes,
		logger:   logger.With("component", "pipeline"),
		now:      time.Now,
	}
}

// AddObserver registers o. It must be called before events are processed.
func (o *Orchestrator) AddObserver(obs Observer) {
	o.observers = append(o.observers, obs)
}

// Executions returns the execution record store.
func (o *Orchestrator) Executions() *ExecutionStore { return o.deps.Executions }

// Events returns the event store.
func (o *Orchestrator) Events() *event.Store { return o.deps.Events }

// AnalysisType picks the analysis type for a source.
func (o *Orchestrator) AnalysisType(source string) string {
	if t, ok := o.analysis[source]; ok && decision.KnownType(t) {
		return t
	}
	return defaultAnalysis
}

// ProcessEvent runs the full pipeline for ev. Stage failures and panics are
// recorded in the returned Execution; the error return is reserved for
// failing to persist the execution record itself.
func (o *Orchestrator) ProcessEvent(ctx context.Context, ev *event.Event) (*Execution, error) {
	exec := &Execution{
		PipelineID: newPipelineID(),
		EventID:    ev.ID,
		Source:     ev.Source,
		EventType:  ev.Type,
		Stages:     map[string]StageStatus{},
		StartedAt:  o.now().UTC(),
	}

	if skip, reason := o.filter.Skip(ev); skip {
		exec.Outcome = OutcomeSkipped
		exec.SkipReason = reason
		exec.FinishedAt = exec.StartedAt
		o.logger.Debug("skipping pipeline-originated event", "event_id", ev.ID, "reason", reason)
		o.notify(ctx, exec)
		return exec, nil
	}

	if err := o.run(ctx, ev, exec); err != nil {
		exec.Outcome = OutcomeFailed
		exec.Error = err.Error()
		o.logger.Warn("pipeline failed", "pipeline_id", exec.PipelineID, "event_id", ev.ID, "error", err)
		o.reportFailure(ctx, exec)
	} else if err := o.deps.Events.MarkProcessed(ctx, ev.ID); err != nil {
		o.logger.Warn("marking event processed", "event_id", ev.ID, "error", err)
	}

	exec.FinishedAt = o.now().UTC()
	exec.DurationMS = exec.FinishedAt.Sub(exec.StartedAt).Milliseconds()

	if err := o.deps.Executions.Save(ctx, exec); err != nil {
		return exec, err
	}
	o.logger.Info("pipeline finished", "pipeline_id", exec.PipelineID, "event_id", ev.ID,
		"outcome", exec.Outcome, "duration_ms", exec.DurationMS)
	o.notify(ctx, exec)
	return exec, nil
}

// run executes the stages in order. A panic in any stage is turned into an
// error naming the stage that was running.
func (o *Orchestrator) run(ctx context.Context, ev *event.Event, exec *Execution) (err error) {
	current := "store"
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panic", "stage", current, "panic", r, "stack", string(debug.Stack()))
			exec.Stages[current] = StageStatus{Error: fmt.Sprint(r)}
			err = fmt.Errorf("panic in %s stage: %v", current, r)
		}
	}()
	fail := func(stage string, e error) error {
		exec.Stages[stage] = StageStatus{Error: e.Error()}
		return fmt.Errorf("%s stage: %w", stage, e)
	}

	if _, err := o.deps.Events.Save(ctx, ev); err != nil {
		return fmt.Errorf("storing event: %w", err)
	}

	current = StageEnrich
	enriched, err := o.deps.Enricher.Enrich(ctx, ev)
	if err != nil {
		return fail(StageEnrich, err)
	}
	st := StageStatus{Completed: true}
	if enriched.Failed() {
		st = StageStatus{Error: enriched.Record.Error}
	}
	exec.Stages[StageEnrich] = st

	current = StageEmbed
	var related []semantic.Match
	if _, err := o.deps.Semantic.Embed(ctx, ev); err != nil {
		o.logger.Warn("embedding failed", "event_id", ev.ID, "error", err)
		exec.Stages[StageEmbed] = StageStatus{Error: err.Error()}
	} else {
		exec.Stages[StageEmbed] = StageStatus{Completed: true}

		current = StageSimilar
		related, err = o.deps.Semantic.FindSimilar(ctx, ev.ID, similarTopK)
		if err != nil {
			o.logger.Warn("similarity lookup failed", "event_id", ev.ID, "error", err)
			exec.Stages[StageSimilar] = StageStatus{Error: err.Error()}
		} else {
			exec.Stages[StageSimilar] = StageStatus{Completed: true}
		}
	}
	exec.RelatedCount = len(related)

	current = StageAnalyze
	analysis, err := o.deps.Decisions.Analyze(ctx, ev, o.AnalysisType(ev.Source), analysisContext(enriched))
	if err != nil {
		return fail(StageAnalyze, err)
	}
	exec.AnalysisID = analysis.ID
	exec.Stages[StageAnalyze] = StageStatus{Completed: analysis.Error == "", Error: analysis.Error}

	current = StageDecide
	decisionCtx, err := o.decisionContext(ctx, enriched, analysis, len(related))
	if err != nil {
		return fail(StageDecide, err)
	}
	dec, err := o.deps.Decisions.MakeDecision(ctx, ev, decisionCtx)
	if err != nil {
		return fail(StageDecide, err)
	}
	exec.DecisionID = dec.ID
	exec.Stages[StageDecide] = StageStatus{Completed: true}

	current = StageAct
	outcome, err := o.deps.Actions.Execute(ctx, actions.Request{
		Decision:   dec,
		Event:      ev,
		PipelineID: exec.PipelineID,
	})
	if err != nil {
		return fail(StageAct, err)
	}
	exec.Stages[StageAct] = StageStatus{Completed: outcome.Error == "", Error: outcome.Error}
	exec.Outcome = outcome.ActionTaken
	return nil
}

// decisionContext assembles what the decide prompt sees besides the event.
func (o *Orchestrator) decisionContext(ctx context.Context, enriched *enrich.Result, analysis *decision.Analysis, related int) (map[string]any, error) {
	open, high, err := o.deps.Tasks.Workload(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting open tasks: %w", err)
	}

	out := map[string]any{
		"analysis_summary": analysis.Output,
		"related_events":   related,
		"current_workload": map[string]any{
			"open_task_count":     open,
			"high_priority_count": high,
		},
	}
	if rec := usableEnrichment(enriched); rec != nil {
		var names []string
		for _, e := range salientEntities(rec, decisionEntities) {
			names = append(names, e.Name)
		}
		out["enrichment"] = map[string]any{
			"entities":  names,
			"sentiment": sentimentContext(rec),
		}
	}
	return out, nil
}

// analysisContext passes the enrichment's salient entities and sentiment to
// the analyze prompt. It is nil when enrichment produced nothing usable.
func analysisContext(enriched *enrich.Result) map[string]any {
	rec := usableEnrichment(enriched)
	if rec == nil {
		return nil
	}
	out := map[string]any{"sentiment": sentimentContext(rec)}
	if ents := salientEntities(rec, analysisEntities); len(ents) > 0 {
		out["nlp_entities"] = ents
	}
	return out
}

func usableEnrichment(enriched *enrich.Result) *enrich.Record {
	if enriched == nil || enriched.Record == nil || enriched.Record.Error != "" {
		return nil
	}
	return enriched.Record
}

func sentimentContext(rec *enrich.Record) map[string]any {
	return map[string]any{
		"score":     rec.Sentiment.Score,
		"magnitude": rec.Sentiment.Magnitude,
	}
}

// salientEntities returns at most n entities, most salient first.
func salientEntities(rec *enrich.Record, n int) []nlp.Entity {
	ents := slices.Clone(rec.Entities)
	slices.SortStableFunc(ents, func(a, b nlp.Entity) int {
		return cmp.Compare(b.Salience, a.Salience)
	})
	if len(ents) > n {
		ents = ents[:n]
	}
	return ents
}

func (o *Orchestrator) reportFailure(ctx context.Context, exec *Execution) {
	if o.deps.Notifier == nil {
		return
	}
	_, err := o.deps.Notifier.Dispatch(ctx, notifications.Notification{
		Type:     notifications.TypePipelineFail,
		Severity: notifications.SeverityCritical,
		Title:    "Pipeline failed for " + exec.EventID,
		Message:  exec.Error,
		EventID:  exec.EventID,
	})
	if err != nil {
		o.logger.Warn("recording pipeline failure notification", "pipeline_id", exec.PipelineID, "error", err)
	}
}

func (o *Orchestrator) notify(ctx context.Context, exec *Execution) {
	for _, obs := range o.observers {
		obs.PipelineCompleted(ctx, exec)
	}
}

func newPipelineID() string {
	return "pipe-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
