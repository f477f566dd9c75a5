package db

// schema contains the full database schema. New tables are added here.
// Timestamps are TEXT in TimeLayout so string comparison orders them.
const schema = `
CREATE TABLE IF NOT EXISTS events (
    event_id TEXT PRIMARY KEY,
    timestamp TEXT NOT NULL,
    source TEXT NOT NULL,
    event_type TEXT NOT NULL DEFAULT '',
    payload TEXT NOT NULL DEFAULT '{}',
    processed INTEGER NOT NULL DEFAULT 0,
    received_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_source ON events(source);

CREATE TABLE IF NOT EXISTS nlp_enrichment (
    enrichment_id TEXT PRIMARY KEY,
    event_id TEXT NOT NULL,
    entities TEXT NOT NULL DEFAULT '[]',
    sentiment_score REAL NOT NULL DEFAULT 0,
    sentiment_magnitude REAL NOT NULL DEFAULT 0,
    language TEXT NOT NULL DEFAULT '',
    raw_text TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nlp_enrichment_event ON nlp_enrichment(event_id);

CREATE TABLE IF NOT EXISTS embeddings (
    embedding_id TEXT PRIMARY KEY,
    event_id TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    vector BLOB NOT NULL,
    dimensions INTEGER NOT NULL,
    model TEXT NOT NULL DEFAULT '',
    preview TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    timestamp TEXT NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE(event_id, content_hash)
);
CREATE INDEX IF NOT EXISTS idx_embeddings_timestamp ON embeddings(timestamp);
CREATE INDEX IF NOT EXISTS idx_embeddings_source ON embeddings(source);

CREATE TABLE IF NOT EXISTS semantic_links (
    link_id TEXT PRIMARY KEY,
    source_event_id TEXT NOT NULL,
    target_event_id TEXT NOT NULL,
    similarity REAL NOT NULL,
    link_type TEXT NOT NULL DEFAULT 'similar',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_semantic_links_source ON semantic_links(source_event_id);
CREATE INDEX IF NOT EXISTS idx_semantic_links_target ON semantic_links(target_event_id);

CREATE TABLE IF NOT EXISTS semantic_clusters (
    cluster_id TEXT PRIMARY KEY,
    namespace TEXT NOT NULL,
    label TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    centroid BLOB,
    member_count INTEGER NOT NULL DEFAULT 0,
    sample_ids TEXT NOT NULL DEFAULT '[]',
    member_ids TEXT NOT NULL DEFAULT '[]',
    last_updated TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_semantic_clusters_namespace ON semantic_clusters(namespace);

CREATE TABLE IF NOT EXISTS event_tags (
    tag_id TEXT PRIMARY KEY,
    event_id TEXT NOT NULL,
    cluster_id TEXT NOT NULL DEFAULT '',
    tag_type TEXT NOT NULL,
    tag_value TEXT NOT NULL,
    confidence REAL NOT NULL DEFAULT 0,
    source TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_event_tags_event ON event_tags(event_id);

CREATE TABLE IF NOT EXISTS ai_analysis (
    analysis_id TEXT PRIMARY KEY,
    event_id TEXT NOT NULL,
    model TEXT NOT NULL DEFAULT '',
    analysis_type TEXT NOT NULL,
    prompt_hash TEXT NOT NULL,
    input_summary TEXT NOT NULL DEFAULT '',
    output_raw TEXT NOT NULL DEFAULT '',
    output_structured TEXT NOT NULL DEFAULT '{}',
    confidence REAL NOT NULL DEFAULT 0,
    input_tokens INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    latency_ms INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ai_analysis_event ON ai_analysis(event_id);

CREATE TABLE IF NOT EXISTS ai_decisions (
    decision_id TEXT PRIMARY KEY,
    event_id TEXT NOT NULL,
    analysis_id TEXT NOT NULL,
    context TEXT NOT NULL DEFAULT '{}',
    chosen_action TEXT NOT NULL DEFAULT '',
    reasoning TEXT NOT NULL DEFAULT '',
    alternatives TEXT NOT NULL DEFAULT '[]',
    priority TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL DEFAULT 0,
    executed INTEGER NOT NULL DEFAULT 0,
    execution_result TEXT,
    created_at TEXT NOT NULL,
    executed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_ai_decisions_event ON ai_decisions(event_id);

CREATE TABLE IF NOT EXISTS pipeline_executions (
    pipeline_id TEXT PRIMARY KEY,
    event_id TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    event_type TEXT NOT NULL DEFAULT '',
    stages TEXT NOT NULL DEFAULT '{}',
    outcome TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_pipeline_executions_event ON pipeline_executions(event_id);

CREATE TABLE IF NOT EXISTS action_log (
    entry_id TEXT PRIMARY KEY,
    timestamp TEXT NOT NULL,
    agent_id TEXT NOT NULL,
    action_type TEXT NOT NULL,
    entity_type TEXT NOT NULL DEFAULT '',
    entity_id TEXT NOT NULL DEFAULT '',
    summary TEXT NOT NULL DEFAULT '',
    rationale TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL DEFAULT 0,
    pipeline_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_action_log_timestamp ON action_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_action_log_type ON action_log(action_type);

CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    priority TEXT NOT NULL DEFAULT 'P2' CHECK(priority IN ('P0','P1','P2','P3')),
    status TEXT NOT NULL DEFAULT 'open' CHECK(status IN ('open','in_progress','done')),
    source_event_id TEXT NOT NULL DEFAULT '',
    decision_id TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    severity TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    event_id TEXT NOT NULL DEFAULT '',
    decision_id TEXT NOT NULL DEFAULT '',
    delivered INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS search_queries (
    query_id TEXT PRIMARY KEY,
    query TEXT NOT NULL,
    filters TEXT NOT NULL DEFAULT '{}',
    result_count INTEGER NOT NULL DEFAULT 0,
    top_similarity REAL NOT NULL DEFAULT 0,
    latency_ms INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
`
