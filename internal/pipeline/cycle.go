package pipeline

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/openclaw/eventmind/internal/event"
)

var (
	builtinSkipSources = []string{event.SourceOrchestrator, "pipeline"}
	builtinSkipTypes   = []string{event.TypeActionTaken}
)

// CycleFilter recognises events the pipeline itself produced.
type CycleFilter struct {
	sources []string
	types   []string
}

// NewCycleFilter builds a filter from extra source patterns and event
// types. The orchestrator and pipeline sources and the action_taken type
// are always skipped. Invalid patterns are dropped.
func NewCycleFilter(sourcePatterns, eventTypes []string) *CycleFilter {
	f := &CycleFilter{
		sources: append([]string(nil), builtinSkipSources...),
		types:   append([]string(nil), builtinSkipTypes...),
	}
	for _, p := range sourcePatterns {
		if doublestar.ValidatePattern(p) {
			f.sources = append(f.sources, p)
		}
	}
	f.types = append(f.types, eventTypes...)
	return f
}

// Skip reports whether ev must not be processed, and why.
func (f *CycleFilter) Skip(ev *event.Event) (bool, string) {
	for _, t := range f.types {
		if ev.Type == t {
			return true, "event type " + t
		}
	}
	for _, p := range f.sources {
		if ok, _ := doublestar.Match(p, ev.Source); ok {
			return true, "source " + ev.Source
		}
	}
	return false, ""
}
