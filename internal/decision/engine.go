// Package decision turns events into structured analyses and chosen
// actions using a generative-language provider.
package decision

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/eventmind/internal/event"
	"github.com/openclaw/eventmind/internal/llm"
)

const (
	maxTokens         = 2048
	summaryLimit      = 500
	rawOutputLimit    = 5000
	fallbackConf      = 0.3
	defaultParsedConf = 0.5
)

// Engine runs analyses and decisions and records every call.
type Engine struct {
	provider  llm.Provider
	model     string
	analyses  *AnalysisStore
	decisions *DecisionStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewEngine creates a decision engine.
func NewEngine(provider llm.Provider, model string, analyses *AnalysisStore, decisions *DecisionStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		provider:  provider,
		model:     model,
		analyses:  analyses,
		decisions: decisions,
		logger:    logger.With("component", "decision"),
		now:       time.Now,
	}
}

// Analyses returns the analysis store.
func (e *Engine) Analyses() *AnalysisStore { return e.analyses }

// Decisions returns the decision store.
func (e *Engine) Decisions() *DecisionStore { return e.decisions }

// Analyze runs one analysis and persists it. Provider and parse failures are
// recorded in the returned Analysis rather than returned; only storage errors
// are returned.
func (e *Engine) Analyze(ctx context.Context, ev *event.Event, analysisType string, extra map[string]any) (*Analysis, error) {
	prompt, rendering, err := BuildPrompt(ev, analysisType, extra)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		ID:           newID("ai-"),
		EventID:      ev.ID,
		Model:        e.model,
		Type:         analysisType,
		PromptHash:   PromptHash(prompt),
		InputSummary: event.Truncate(rendering, summaryLimit),
		Output:       map[string]any{},
	}

	start := time.Now()
	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Model:       e.model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: 0,
		JSONMode:    true,
	})
	a.LatencyMS = time.Since(start).Milliseconds()

	if err != nil {
		a.Error = err.Error()
		e.logger.Warn("analysis failed", "event_id", ev.ID, "type", analysisType, "error", err)
	} else {
		if resp.Model != "" {
			a.Model = resp.Model
		}
		a.InputTokens, a.OutputTokens = resp.InputTokens, resp.OutputTokens
		a.OutputRaw = event.Truncate(resp.Content, rawOutputLimit)
		a.Output = ParseOutput(resp.Content)
		a.Confidence = Confidence(a.Output, defaultParsedConf)
	}
	a.CreatedAt = e.now().UTC()

	if err := e.analyses.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// MakeDecision runs a "decide" analysis with the given context and records
// the chosen action.
func (e *Engine) MakeDecision(ctx context.Context, ev *event.Event, extra map[string]any) (*Decision, error) {
	a, err := e.Analyze(ctx, ev, TypeDecide, extra)
	if err != nil {
		return nil, err
	}

	d := &Decision{
		ID:           newID("dec-"),
		EventID:      ev.ID,
		AnalysisID:   a.ID,
		Context:      extra,
		ChosenAction: strings.ToLower(strings.TrimSpace(event.StringField(a.Output, "recommended_action"))),
		Reasoning:    event.StringField(a.Output, "reasoning"),
		Alternatives: stringList(a.Output["alternatives"]),
		Priority:     strings.ToUpper(event.StringField(a.Output, "priority")),
		Confidence:   Confidence(a.Output, 0),
		CreatedAt:    e.now().UTC(),
	}
	if a.Error != "" {
		d.Confidence = 0
	}
	if err := e.decisions.Save(ctx, d); err != nil {
		return nil, err
	}
	e.logger.Debug("decision recorded", "event_id", ev.ID, "decision_id", d.ID,
		"action", d.ChosenAction, "confidence", d.Confidence)
	return d, nil
}

// ParseOutput decodes a model response into an object. Anything that is not
// a JSON object, an empty response included, becomes a low-confidence
// wrapper around the raw text.
func ParseOutput(raw string) map[string]any {
	obj, err := llm.ParseObject(raw)
	if err != nil {
		return map[string]any{"raw_response": raw, "confidence": fallbackConf}
	}
	return obj
}

// Confidence reads the "confidence" field clamped to [0,1], or def when it
// is missing or not a number.
func Confidence(output map[string]any, def float64) float64 {
	var c float64
	switch v := output["confidence"].(type) {
	case float64:
		c = v
	case int:
		c = float64(v)
	default:
		return def
	}
	if math.IsNaN(c) {
		return def
	}
	return min(max(c, 0), 1)
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if s, ok := v.(string); ok && s != "" {
			return []string{s}
		}
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case string:
			out = append(out, t)
		case map[string]any:
			if a := event.StringField(t, "action"); a != "" {
				out = append(out, a)
				continue
			}
			out = append(out, event.StringField(map[string]any{"v": t}, "v"))
		default:
			out = append(out, fmt.Sprint(t))
		}
	}
	return out
}

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
