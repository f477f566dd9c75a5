package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/eventmind/internal/audit"
	"github.com/openclaw/eventmind/internal/cluster"
	"github.com/openclaw/eventmind/internal/decision"
	"github.com/openclaw/eventmind/internal/notifications"
	"github.com/openclaw/eventmind/internal/pipeline"
	"github.com/openclaw/eventmind/internal/semantic"
	"github.com/openclaw/eventmind/internal/server"
	"github.com/openclaw/eventmind/internal/tasks"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, live feed and clustering scheduler",
	Long: `Starts the eventmind HTTP server. Adapters POST event envelopes to
/api/events; each one runs through the pipeline synchronously. Clustering runs
on the configured interval and can be triggered with POST /api/clusters/run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		port := a.cfg.Server.Port
		if servePort != 0 {
			port = servePort
		}

		srv := server.New(server.Config{
			Port:     port,
			AllowAll: a.cfg.Server.AllowAllOrigins,
			Metrics:  a.metrics.Handler(),
		}, a.db, a.logger)
		a.orch.AddObserver(srv.Hub())

		r := srv.Router()
		pipeline.RegisterRoutes(r, a.orch)
		semantic.RegisterRoutes(r, a.semantic)
		cluster.RegisterRoutes(r, a.clusters, &a.clusterMu)
		decision.RegisterRoutes(r, a.decisions)
		audit.RegisterRoutes(r, a.actionLog)
		tasks.RegisterRoutes(r, a.tasks)
		notifications.RegisterRoutes(r, a.notifier)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go a.scheduleClustering(ctx, a.cfg.Clustering.Interval)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		fmt.Fprintf(os.Stderr, "eventmind %s serving on :%d\n", Version, port)

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// scheduleClustering runs clustering every interval until ctx is done. A
// non-positive interval disables the scheduler.
func (a *app) scheduleClustering(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, ran, err := a.runClustering(ctx)
			switch {
			case !ran:
				a.logger.Info("clustering already running, skipping tick")
			case err != nil && !errors.Is(err, context.Canceled):
				a.logger.Error("scheduled clustering failed", "error", err)
			case err == nil && res.Skipped:
				a.logger.Info("scheduled clustering skipped", "reason", res.Reason)
			}
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
