package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/eventmind/internal/actions"
	"github.com/openclaw/eventmind/internal/audit"
	"github.com/openclaw/eventmind/internal/db"
	"github.com/openclaw/eventmind/internal/decision"
	"github.com/openclaw/eventmind/internal/embeddings/embedtest"
	"github.com/openclaw/eventmind/internal/enrich"
	"github.com/openclaw/eventmind/internal/event"
	"github.com/openclaw/eventmind/internal/llm/llmtest"
	"github.com/openclaw/eventmind/internal/nlp"
	"github.com/openclaw/eventmind/internal/notifications"
	"github.com/openclaw/eventmind/internal/semantic"
	"github.com/openclaw/eventmind/internal/tasks"
)

const (
	analysisReply = `{"summary": "CFO wants the budget reviewed", "confidence": 0.8}`
	decideReply   = `{"recommended_action": "create_task", "reasoning": "explicit request", "priority": "p1", "confidence": 0.9}`
)

type fixture struct {
	db       *db.DB
	llm      *llmtest.MockProvider
	embedder *embedtest.Static
	analyzer *nlp.Static
	deps     Deps
	orch     *Orchestrator
}

func setupPipeline(t *testing.T, opts Options, replies ...string) *fixture {
	t.Helper()
	d, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	mock := llmtest.NewMockProvider(decideReply)
	mock.Replies = replies
	emb := embedtest.New(8)
	analyzer := &nlp.Static{Result: &nlp.Analysis{
		Entities: []nlp.Entity{
			{Name: "Acme", Type: "ORGANIZATION", Salience: 0.4},
			{Name: "Dana", Type: "PERSON", Salience: 0.9},
			{Name: "Q1", Type: "DATE", Salience: 0.3},
			{Name: "Budget", Type: "OTHER", Salience: 0.8},
			{Name: "Finance", Type: "ORGANIZATION", Salience: 0.5},
			{Name: "Zebulon", Type: "PERSON", Salience: 0.01},
		},
		Sentiment: nlp.Sentiment{Score: -0.2, Magnitude: 0.6},
		Language:  "en",
	}}

	decisions := decision.NewDecisionStore(d)
	taskStore := tasks.NewStore(d)
	notifier := notifications.NewDispatcher(notifications.NewStore(d), "", nil)
	enrichStore := enrich.NewStore(d)
	deps := Deps{
		Events:     event.NewStore(d),
		Enricher:   enrich.NewStage(enrichStore, analyzer, nil),
		Semantic:   semantic.NewService(semantic.NewStore(d), emb, enrichStore, semantic.DefaultOptions(), nil),
		Decisions:  decision.NewEngine(mock, "test-model", decision.NewAnalysisStore(d), decisions, nil),
		Actions:    actions.NewDispatcher(decisions, audit.NewStore(d), taskStore, notifier, nil),
		Tasks:      taskStore,
		Executions: NewExecutionStore(d),
		Notifier:   notifier,
	}
	if opts.AnalysisTypes == nil {
		opts.AnalysisTypes = map[string]string{"gmail": "triage", "calendar": "summarize"}
	}
	return &fixture{
		db:       d,
		llm:      mock,
		embedder: emb,
		analyzer: analyzer,
		deps:     deps,
		orch:     New(deps, opts, nil),
	}
}

func gmailEvent(id string) *event.Event {
	return &event.Event{
		ID:        id,
		Timestamp: time.Now().UTC().Add(-time.Hour),
		Source:    "gmail",
		Type:      "received",
		Payload: map[string]any{
			"subject": "Budget review ASAP",
			"from":    "cfo@example.com",
			"body":    "Please review the Q1 numbers before Friday.",
		},
	}
}

func countRows(t *testing.T, d *db.DB, table string) int {
	t.Helper()
	var n int
	if err := d.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}

var allTables = []string{
	"events", "nlp_enrichment", "embeddings", "semantic_links", "ai_analysis",
	"ai_decisions", "pipeline_executions", "action_log", "tasks", "notifications",
}

func TestProcessEventHappyPath(t *testing.T) {
	f := setupPipeline(t, Options{}, analysisReply, decideReply)
	ctx := context.Background()

	exec, err := f.orch.ProcessEvent(ctx, gmailEvent("gmail-1"))
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if !strings.HasPrefix(exec.PipelineID, "pipe-") || len(exec.PipelineID) != len("pipe-")+12 {
		t.Errorf("PipelineID = %q", exec.PipelineID)
	}
	if exec.Outcome != actions.OutcomeTaskCreated {
		t.Fatalf("Outcome = %q, error = %q", exec.Outcome, exec.Error)
	}
	for _, stage := range []string{StageEnrich, StageEmbed, StageSimilar, StageAnalyze, StageDecide, StageAct} {
		if st := exec.Stages[stage]; !st.Completed || st.Error != "" {
			t.Errorf("stage %s = %+v", stage, st)
		}
	}
	if len(exec.FailedStages()) != 0 {
		t.Errorf("FailedStages = %v", exec.FailedStages())
	}

	stored, err := f.orch.Executions().Get(ctx, exec.PipelineID)
	if err != nil || stored == nil {
		t.Fatalf("Get execution: %v, %v", stored, err)
	}
	if stored.Outcome != actions.OutcomeTaskCreated || !stored.Stages[StageAct].Completed {
		t.Errorf("stored execution = %+v", stored)
	}

	ev, err := f.deps.Events.Get(ctx, "gmail-1")
	if err != nil || ev == nil {
		t.Fatalf("Get event: %v, %v", ev, err)
	}
	if !ev.Processed {
		t.Error("event should be marked processed")
	}

	list, err := f.deps.Tasks.List(ctx, tasks.ListFilter{SourceEventID: "gmail-1"})
	if err != nil {
		t.Fatalf("List tasks: %v", err)
	}
	if len(list) != 1 || list[0].Priority != tasks.P1 {
		t.Errorf("tasks = %+v", list)
	}

	if f.llm.CallCount() != 2 {
		t.Fatalf("expected analyze and decide calls, got %d", f.llm.CallCount())
	}
	if !strings.Contains(f.llm.Calls[0].Messages[0].Content, "triage") {
		t.Error("gmail events should get a triage analysis")
	}
	analyzePrompt := f.llm.Calls[0].Messages[0].Content
	for _, want := range []string{"Additional Context", "nlp_entities", "Zebulon", "magnitude"} {
		if !strings.Contains(analyzePrompt, want) {
			t.Errorf("analyze prompt missing %q", want)
		}
	}
	prompt := f.llm.LastPrompt()
	for _, want := range []string{"open_task_count", "high_priority_count", "related_events", "analysis_summary", "Dana", "magnitude"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("decision prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "Zebulon") {
		t.Error("only the five most salient entities belong in the decision context")
	}
}

func TestProcessEventSkipsPipelineOriginatedEvents(t *testing.T) {
	f := setupPipeline(t, Options{SkipSources: []string{"pipeline/**"}})

	var seen []*Execution
	f.orch.AddObserver(ObserverFunc(func(ctx context.Context, exec *Execution) {
		seen = append(seen, exec)
	}))

	tests := []struct {
		name   string
		source string
		typ    string
	}{
		{"orchestrator source", "orchestrator", "received"},
		{"pipeline source", "pipeline", "received"},
		{"configured pattern", "pipeline/actions", "received"},
		{"prior action type", "gmail", "action_taken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := gmailEvent("ev-" + tt.source + "-" + tt.typ)
			ev.Source, ev.Type = tt.source, tt.typ

			exec, err := f.orch.ProcessEvent(context.Background(), ev)
			if err != nil {
				t.Fatalf("ProcessEvent: %v", err)
			}
			if exec.Outcome != OutcomeSkipped || exec.SkipReason == "" {
				t.Errorf("execution = %+v", exec)
			}
		})
	}

	for _, table := range allTables {
		if n := countRows(t, f.db, table); n != 0 {
			t.Errorf("%s has %d rows after skipped events", table, n)
		}
	}
	if f.llm.CallCount() != 0 || f.analyzer.Calls != 0 || f.embedder.Calls != 0 {
		t.Error("skipped events must not reach any capability")
	}
	if len(seen) != len(tests) {
		t.Errorf("observer saw %d executions, want %d", len(seen), len(tests))
	}
}

func TestCycleFilterOnlyMatchesWholeSources(t *testing.T) {
	f := NewCycleFilter(nil, nil)
	for _, src := range []string{"pipelines", "gmail", "pipeline/x"} {
		if skip, _ := f.Skip(&event.Event{Source: src}); skip {
			t.Errorf("source %q should not be skipped without a pattern", src)
		}
	}
	if skip, _ := NewCycleFilter([]string{"[bad"}, nil).Skip(&event.Event{Source: "gmail"}); skip {
		t.Error("invalid pattern should be ignored")
	}
}

func TestAnalysisTypeBySource(t *testing.T) {
	f := setupPipeline(t, Options{AnalysisTypes: map[string]string{
		"gmail":    "triage",
		"calendar": "summarize",
		"drive":    "classify",
		"image":    "extract",
		"slack":    "bogus",
	}})

	tests := map[string]string{
		"gmail":    "triage",
		"calendar": "summarize",
		"drive":    "classify",
		"image":    "extract",
		"slack":    "summarize",
		"audio":    "summarize",
	}
	for source, want := range tests {
		if got := f.orch.AnalysisType(source); got != want {
			t.Errorf("AnalysisType(%q) = %q, want %q", source, got, want)
		}
	}
}

func TestEmbeddingFailureIsNotFatal(t *testing.T) {
	f := setupPipeline(t, Options{}, analysisReply, decideReply)
	f.embedder.Err = errors.New("embedding service down")

	exec, err := f.orch.ProcessEvent(context.Background(), gmailEvent("gmail-2"))
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if exec.Outcome != actions.OutcomeTaskCreated {
		t.Errorf("Outcome = %q, error = %q", exec.Outcome, exec.Error)
	}
	if st := exec.Stages[StageEmbed]; st.Completed || !strings.Contains(st.Error, "embedding service down") {
		t.Errorf("embed stage = %+v", st)
	}
	if _, ok := exec.Stages[StageSimilar]; ok {
		t.Error("similarity lookup should not run without an embedding")
	}
	if got := exec.FailedStages(); len(got) != 1 || got[0] != StageEmbed {
		t.Errorf("FailedStages = %v", got)
	}
}

func TestEnrichmentFailureIsRecorded(t *testing.T) {
	f := setupPipeline(t, Options{}, analysisReply, decideReply)
	f.analyzer.Err = errors.New("nl api quota")

	exec, err := f.orch.ProcessEvent(context.Background(), gmailEvent("gmail-3"))
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if st := exec.Stages[StageEnrich]; st.Completed || st.Error == "" {
		t.Errorf("enrich stage = %+v", st)
	}
	if exec.Outcome != actions.OutcomeTaskCreated {
		t.Errorf("Outcome = %q", exec.Outcome)
	}
	if strings.Contains(f.llm.LastPrompt(), "magnitude") {
		t.Error("a failed enrichment should not feed the decision context")
	}
}

func TestStageErrorIsRecordedNotRaised(t *testing.T) {
	f := setupPipeline(t, Options{}, analysisReply, decideReply)
	if _, err := f.db.Exec("DROP TABLE ai_decisions"); err != nil {
		t.Fatalf("dropping table: %v", err)
	}

	exec, err := f.orch.ProcessEvent(context.Background(), gmailEvent("gmail-4"))
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if exec.Outcome != OutcomeFailed || !strings.Contains(exec.Error, "decide stage") {
		t.Errorf("execution = %+v", exec)
	}
	if !exec.Stages[StageAnalyze].Completed {
		t.Error("analyze stage should have completed")
	}
	if st := exec.Stages[StageDecide]; st.Error == "" {
		t.Errorf("decide stage = %+v", st)
	}
	if _, ok := exec.Stages[StageAct]; ok {
		t.Error("act stage should not run after decide failed")
	}

	// Earlier writes stay.
	if n := countRows(t, f.db, "ai_analysis"); n != 2 {
		t.Errorf("ai_analysis rows = %d, want 2", n)
	}
	if n := countRows(t, f.db, "pipeline_executions"); n != 1 {
		t.Errorf("pipeline_executions rows = %d", n)
	}
	ev, _ := f.deps.Events.Get(context.Background(), "gmail-4")
	if ev == nil || ev.Processed {
		t.Errorf("failed run should leave the event unprocessed: %+v", ev)
	}

	pending, err := f.deps.Notifier.Store().List(context.Background(), notifications.ListFilter{
		Type: notifications.TypePipelineFail,
	})
	if err != nil {
		t.Fatalf("listing notifications: %v", err)
	}
	if len(pending) != 1 || pending[0].EventID != "gmail-4" {
		t.Errorf("notifications = %+v", pending)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	f := setupPipeline(t, Options{}, analysisReply, decideReply)
	f.deps.Tasks = nil
	f.orch = New(f.deps, Options{}, nil)

	exec, err := f.orch.ProcessEvent(context.Background(), gmailEvent("gmail-5"))
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if exec.Outcome != OutcomeFailed || !strings.Contains(exec.Error, "panic in decide stage") {
		t.Errorf("execution = %+v", exec)
	}
	if st := exec.Stages[StageDecide]; st.Error == "" {
		t.Errorf("decide stage = %+v", st)
	}
	stored, err := f.orch.Executions().Get(context.Background(), exec.PipelineID)
	if err != nil || stored == nil || stored.Outcome != OutcomeFailed {
		t.Errorf("stored execution = %+v, %v", stored, err)
	}
}

func TestLowConfidenceDecisionIsGated(t *testing.T) {
	f := setupPipeline(t, Options{}, analysisReply,
		`{"recommended_action": "escalate", "reasoning": "unsure", "confidence": 0.4}`)

	exec, err := f.orch.ProcessEvent(context.Background(), gmailEvent("gmail-6"))
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if exec.Outcome != actions.OutcomeFlaggedForReview {
		t.Errorf("Outcome = %q", exec.Outcome)
	}
	if n := countRows(t, f.db, "tasks"); n != 0 {
		t.Errorf("tasks = %d", n)
	}
	if n := countRows(t, f.db, "notifications"); n != 0 {
		t.Errorf("notifications = %d", n)
	}
}

func TestObserversSeeCompletedRuns(t *testing.T) {
	f := setupPipeline(t, Options{}, analysisReply, decideReply)

	var (
		mu  sync.Mutex
		ids []string
	)
	f.orch.AddObserver(ObserverFunc(func(ctx context.Context, exec *Execution) {
		mu.Lock()
		defer mu.Unlock()
		ids = append(ids, exec.PipelineID)
	}))

	exec, err := f.orch.ProcessEvent(context.Background(), gmailEvent("gmail-7"))
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if len(ids) != 1 || ids[0] != exec.PipelineID {
		t.Errorf("observer ids = %v", ids)
	}
}

func TestRoutes(t *testing.T) {
	f := setupPipeline(t, Options{}, analysisReply, decideReply)
	r := chi.NewRouter()
	RegisterRoutes(r, f.orch)

	body := `{"event_id": "gmail-9", "timestamp": "2026-03-14T09:30:00Z", "source": "gmail",
		"event_type": "received", "payload": "{\"subject\": \"Budget review ASAP\"}"}`
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/events = %d: %s", w.Code, w.Body.String())
	}
	var exec Execution
	if err := json.NewDecoder(w.Body).Decode(&exec); err != nil {
		t.Fatalf("decoding execution: %v", err)
	}
	if exec.EventID != "gmail-9" || exec.Outcome != actions.OutcomeTaskCreated {
		t.Errorf("execution = %+v", exec)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(`{"payload": {}}`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("envelope without source = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/events/gmail-9", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Budget review ASAP") {
		t.Errorf("GET event = %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/events/missing", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("GET missing event = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/executions?event_id=gmail-9", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var execs []Execution
	if err := json.NewDecoder(w.Body).Decode(&execs); err != nil {
		t.Fatalf("decoding executions: %v", err)
	}
	if len(execs) != 1 || execs[0].PipelineID != exec.PipelineID {
		t.Errorf("executions = %+v", execs)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/executions/"+exec.PipelineID, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("GET execution = %d", w.Code)
	}
}
