package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/openclaw/eventmind/internal/event"
	"github.com/openclaw/eventmind/internal/progress"
	"github.com/openclaw/eventmind/internal/semantic"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed stored events that lack an embedding for their current text",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		events, err := a.events.List(ctx, event.ListFilter{Source: source})
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No stored events.")
			return nil
		}

		reporter := progress.NewReporter("Embedding events")
		reporter.Start(len(events))
		stats, err := a.semantic.Backfill(ctx, events, func(done int, ev *event.Event, res *semantic.EmbedResult, err error) {
			msg := ev.ID + " unchanged"
			switch {
			case err != nil:
				msg = ev.ID + " failed: " + err.Error()
			case res.NoText:
				msg = ev.ID + " has no text"
			case res.Created:
				msg = ev.ID + " embedded"
			}
			reporter.Update(done, msg)
		})
		reporter.Finish(fmt.Sprintf("Backfill: %d embedded, %d unchanged, %d without text, %d failed",
			stats.Embedded, stats.Unchanged, stats.NoText, stats.Failed))
		return err
	},
}

func init() {
	backfillCmd.Flags().String("source", "", "only events from this source")
	rootCmd.AddCommand(backfillCmd)
}
