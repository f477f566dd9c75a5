package semantic

import (
	"context"

	"github.com/openclaw/eventmind/internal/event"
)

// BackfillStats summarizes a Backfill run.
type BackfillStats struct {
	Embedded  int `json:"embedded"`
	Unchanged int `json:"unchanged"`
	NoText    int `json:"no_text"`
	Failed    int `json:"failed"`
}

// BackfillProgress is called after each event with its position (1-based)
// and the outcome of embedding it.
type BackfillProgress func(done int, ev *event.Event, res *EmbedResult, err error)

// Backfill embeds every event lacking an embedding for its current text.
// Failures are counted and reported through progress; they do not stop the
// run. Only context cancellation ends it early.
func (s *Service) Backfill(ctx context.Context, events []event.Event, progress BackfillProgress) (BackfillStats, error) {
	var stats BackfillStats
	for i := range events {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		ev := &events[i]
		res, err := s.Embed(ctx, ev)
		switch {
		case err != nil:
			stats.Failed++
			s.logger.Warn("backfill embedding failed", "event_id", ev.ID, "error", err)
		case res.NoText:
			stats.NoText++
		case res.Created:
			stats.Embedded++
		default:
			stats.Unchanged++
		}
		if progress != nil {
			progress(i+1, ev, res, err)
		}
	}
	return stats, nil
}
