// Package metrics exposes pipeline and clustering counters for Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openclaw/eventmind/internal/cluster"
	"github.com/openclaw/eventmind/internal/pipeline"
)

const namespace = "eventmind"

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pipelineRuns    *prometheus.CounterVec
	stageErrors     *prometheus.CounterVec
	pipelineSeconds prometheus.Summary
	clusterRuns     *prometheus.CounterVec
	clusterCount    prometheus.Gauge
	clusterTagged   prometheus.Gauge
}

// New creates a Metrics with its own registry, so tests and multiple servers
// in one process do not collide on the default one.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.pipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Pipeline runs by outcome",
	}, []string{"outcome"})
	m.stageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_stage_errors_total",
		Help:      "Stage failures recorded in pipeline runs",
	}, []string{"stage"})
	m.pipelineSeconds = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace:  namespace,
		Name:       "pipeline_duration_seconds",
		Help:       "Time spent processing one event",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	})
	m.clusterRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cluster_runs_total",
		Help:      "Clustering runs by result",
	}, []string{"result"})
	m.clusterCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "clusters",
		Help:      "Clusters written by the last completed clustering run",
	})
	m.clusterTagged = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cluster_tagged_events",
		Help:      "Events tagged by the last completed clustering run",
	})

	m.registry.MustRegister(
		m.pipelineRuns,
		m.stageErrors,
		m.pipelineSeconds,
		m.clusterRuns,
		m.clusterCount,
		m.clusterTagged,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// PipelineCompleted records one finished pipeline run.
func (m *Metrics) PipelineCompleted(ctx context.Context, exec *pipeline.Execution) {
	if m == nil {
		return
	}
	outcome := exec.Outcome
	if outcome == "" {
		outcome = "unknown"
	}
	m.pipelineRuns.WithLabelValues(outcome).Inc()
	for _, stage := range exec.FailedStages() {
		m.stageErrors.WithLabelValues(stage).Inc()
	}
	if exec.Outcome != pipeline.OutcomeSkipped {
		m.pipelineSeconds.Observe(exec.FinishedAt.Sub(exec.StartedAt).Seconds())
	}
}

// ClusterRun records the result of one clustering run.
func (m *Metrics) ClusterRun(res *cluster.RunResult, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.clusterRuns.WithLabelValues("error").Inc()
	case res.Skipped:
		m.clusterRuns.WithLabelValues("skipped").Inc()
	default:
		m.clusterRuns.WithLabelValues("ok").Inc()
		m.clusterCount.Set(float64(res.Clusters))
		m.clusterTagged.Set(float64(res.Tags))
	}
}
