// Package enrich runs the NL-analysis capability over event text and keeps
// the result as an enrichment record.
package enrich

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openclaw/eventmind/internal/event"
	"github.com/openclaw/eventmind/internal/nlp"
)

const maxRawText = 10000

// Result describes what one Enrich call did.
type Result struct {
	Record  *Record
	Skipped bool // a current enrichment already existed
	NoText  bool // the payload carried no extractable text
}

// Failed reports whether the NL capability failed and a partial record was
// written instead.
func (r *Result) Failed() bool {
	return r != nil && r.Record != nil && r.Record.Error != ""
}

// Stage enriches events.
type Stage struct {
	store    *Store
	analyzer nlp.Analyzer
	logger   *slog.Logger
}

// NewStage creates an enrichment stage.
func NewStage(store *Store, analyzer nlp.Analyzer, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{store: store, analyzer: analyzer, logger: logger.With("component", "enrich")}
}

// Store returns the underlying record store.
func (s *Stage) Store() *Store { return s.store }

// Enrich extracts text from ev and records its entities, sentiment and
// language. Only storage failures are returned as errors; a failing NL
// capability yields an error-flagged record and a nil error.
func (s *Stage) Enrich(ctx context.Context, ev *event.Event) (*Result, error) {
	text := event.ExtractText(ev.Payload, event.EnrichmentFields)
	if text == "" {
		s.logger.Debug("no text to enrich", "event_id", ev.ID)
		return &Result{NoText: true}, nil
	}

	// Best-effort dedup; concurrent deliveries may both get past this.
	existing, err := s.store.Current(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("checking existing enrichment: %w", err)
	}
	if existing != nil {
		s.logger.Debug("enrichment exists, skipping", "event_id", ev.ID)
		return &Result{Record: existing, Skipped: true}, nil
	}

	rec := &Record{
		EventID: ev.ID,
		RawText: event.Truncate(text, maxRawText),
	}

	analysis, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		s.logger.Warn("nl analysis failed", "event_id", ev.ID, "error", err)
		rec.Error = err.Error()
	} else {
		rec.Entities = analysis.Entities
		rec.Sentiment = analysis.Sentiment
		rec.Language = analysis.Language
	}

	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return &Result{Record: rec}, nil
}
