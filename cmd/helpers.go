package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openclaw/eventmind/internal/actions"
	"github.com/openclaw/eventmind/internal/audit"
	"github.com/openclaw/eventmind/internal/cluster"
	"github.com/openclaw/eventmind/internal/config"
	"github.com/openclaw/eventmind/internal/db"
	"github.com/openclaw/eventmind/internal/decision"
	"github.com/openclaw/eventmind/internal/embeddings"
	"github.com/openclaw/eventmind/internal/enrich"
	"github.com/openclaw/eventmind/internal/event"
	"github.com/openclaw/eventmind/internal/llm"
	"github.com/openclaw/eventmind/internal/metrics"
	"github.com/openclaw/eventmind/internal/nlp"
	"github.com/openclaw/eventmind/internal/notifications"
	"github.com/openclaw/eventmind/internal/pipeline"
	"github.com/openclaw/eventmind/internal/semantic"
	"github.com/openclaw/eventmind/internal/tasks"
)

// app holds every component, built once per process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
	db       *db.DB

	events    *event.Store
	semantic  *semantic.Service
	clusters  *cluster.Engine
	decisions *decision.Engine
	tasks     *tasks.Store
	actionLog *audit.Store
	notifier  *notifications.Dispatcher
	orch      *pipeline.Orchestrator
	metrics   *metrics.Metrics

	// clusterMu keeps clustering single-flight across the scheduler and
	// the HTTP trigger.
	clusterMu sync.Mutex
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `eventmind init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newApp loads configuration, creates the capability clients and wires
// every component. Configuration errors surface here, before any write.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	logger, closeLog := config.SetupLogger(cfg.LogFile, level)
	slog.SetDefault(logger)

	provider, err := llm.NewProviderWithTimeout(string(cfg.Provider), cfg.Model, cfg.LLM.RequestTimeout)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	embedder, err := embeddings.NewEmbedderWithTimeout(string(cfg.EmbeddingProvider), cfg.EmbeddingModel, cfg.LLM.RequestTimeout)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		db:       database,
		events:   event.NewStore(database),
		metrics:  metrics.New(),
	}

	enrichStore := enrich.NewStore(database)
	embeddingStore := semantic.NewStore(database)
	a.semantic = semantic.NewService(embeddingStore, embedder, enrichStore, semantic.Options{
		TopK:                  cfg.Search.TopK,
		DaysBack:              cfg.Search.DaysBack,
		MinSimilarity:         cfg.Search.MinSimilarity,
		CandidateLimit:        cfg.Search.CandidateLimit,
		LinkThreshold:         cfg.Search.LinkThreshold,
		SimilarWindowDays:     cfg.Search.SimilarWindowDays,
		SimilarCandidateLimit: cfg.Search.SimilarCandidateLimit,
	}, logger)

	var labeler cluster.Labeler
	if cfg.Clustering.UseLLM {
		labeler = cluster.NewLLMLabeler(provider, cfg.Model)
	}
	a.clusters = cluster.NewEngine(embeddingStore, cluster.NewStore(database), labeler, cluster.Options{
		DaysBack:       cfg.Clustering.DaysBack,
		CandidateLimit: cfg.Clustering.CandidateLimit,
		MinCandidates:  cfg.Clustering.MinCandidates,
		Seed:           cfg.Clustering.Seed,
		MaxIterations:  cfg.Clustering.MaxIterations,
		SampleSize:     cfg.Clustering.SampleSize,
		LabelSamples:   cfg.Clustering.LabelSamples,
		Policy:         cluster.StepK,
	}, logger)

	decisionStore := decision.NewDecisionStore(database)
	a.decisions = decision.NewEngine(provider, cfg.Model, decision.NewAnalysisStore(database), decisionStore, logger)
	a.tasks = tasks.NewStore(database)
	a.actionLog = audit.NewStore(database)
	a.notifier = notifications.NewDispatcher(notifications.NewStore(database), cfg.Notifications.WebhookURL, logger)

	a.orch = pipeline.New(pipeline.Deps{
		Events:     a.events,
		Enricher:   enrich.NewStage(enrichStore, nlp.NewLLMAnalyzer(provider, cfg.Model), logger),
		Semantic:   a.semantic,
		Decisions:  a.decisions,
		Actions:    actions.NewDispatcher(decisionStore, a.actionLog, a.tasks, a.notifier, logger),
		Tasks:      a.tasks,
		Executions: pipeline.NewExecutionStore(database),
		Notifier:   a.notifier,
	}, pipeline.Options{
		SkipSources:    cfg.Pipeline.SkipSources,
		SkipEventTypes: cfg.Pipeline.SkipEventTypes,
		AnalysisTypes:  cfg.Pipeline.AnalysisTypes,
	}, logger)
	a.orch.AddObserver(a.metrics)

	return a, nil
}

// runClustering runs one clustering pass unless another is in flight.
func (a *app) runClustering(ctx context.Context) (res *cluster.RunResult, ran bool, err error) {
	if !a.clusterMu.TryLock() {
		return nil, false, nil
	}
	defer a.clusterMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			res, ran, err = nil, true, fmt.Errorf("panic in clustering: %v", r)
		}
		a.metrics.ClusterRun(res, err)
	}()
	res, err = a.clusters.Run(ctx)
	return res, true, err
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", "error", err)
	}
	a.closeLog()
}
