package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openclaw/eventmind/internal/cluster"
	"github.com/openclaw/eventmind/internal/pipeline"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scraping metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading metrics: %v", err)
	}
	return string(body)
}

func TestPipelineCompleted(t *testing.T) {
	m := New()
	start := time.Now()
	ctx := context.Background()

	m.PipelineCompleted(ctx, &pipeline.Execution{
		Outcome:    "create_task",
		StartedAt:  start,
		FinishedAt: start.Add(250 * time.Millisecond),
		Stages: map[string]pipeline.StageStatus{
			pipeline.StageEnrich: {Completed: true},
			pipeline.StageEmbed:  {Error: "embedding service down"},
		},
	})
	m.PipelineCompleted(ctx, &pipeline.Execution{Outcome: pipeline.OutcomeSkipped})
	m.PipelineCompleted(ctx, &pipeline.Execution{Outcome: pipeline.OutcomeSkipped})

	out := scrape(t, m)
	for _, want := range []string{
		`eventmind_pipeline_runs_total{outcome="create_task"} 1`,
		`eventmind_pipeline_runs_total{outcome="skipped"} 2`,
		`eventmind_pipeline_stage_errors_total{stage="embed"} 1`,
		`eventmind_pipeline_duration_seconds_count 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
	if strings.Contains(out, `stage="enrich"`) {
		t.Error("completed stages should not count as errors")
	}
}

func TestClusterRun(t *testing.T) {
	m := New()
	m.ClusterRun(&cluster.RunResult{K: 3, Clusters: 3, Tags: 25}, nil)
	m.ClusterRun(&cluster.RunResult{Skipped: true, Reason: "not enough events"}, nil)
	m.ClusterRun(nil, errors.New("database is locked"))

	out := scrape(t, m)
	for _, want := range []string{
		`eventmind_cluster_runs_total{result="ok"} 1`,
		`eventmind_cluster_runs_total{result="skipped"} 1`,
		`eventmind_cluster_runs_total{result="error"} 1`,
		`eventmind_clusters 3`,
		`eventmind_cluster_tagged_events 25`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.PipelineCompleted(context.Background(), &pipeline.Execution{Outcome: "logged"})
	m.ClusterRun(&cluster.RunResult{}, nil)
}
