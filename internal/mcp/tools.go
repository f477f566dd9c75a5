package mcp

import "github.com/mark3labs/mcp-go/mcp"

var searchEventsTool = mcp.NewTool("search_events",
	mcp.WithDescription("Search stored events semantically. Returns matching events ranked by similarity, with extracted entities and sentiment when available."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("top_k",
		mcp.Description("Maximum number of results to return (default 10, max 100)"),
	),
	mcp.WithString("source",
		mcp.Description("Only return events from this source, e.g. gmail or calendar"),
	),
	mcp.WithNumber("days_back",
		mcp.Description("Only search events from the last N days (default 365)"),
	),
	mcp.WithNumber("min_similarity",
		mcp.Description("Minimum cosine similarity between 0 and 1 (default 0.5)"),
	),
)

var findSimilarTool = mcp.NewTool("find_similar_events",
	mcp.WithDescription("Find recent events similar to a stored event and record the links."),
	mcp.WithString("event_id",
		mcp.Required(),
		mcp.Description("ID of the event to compare against"),
	),
	mcp.WithNumber("top_k",
		mcp.Description("Maximum number of results to return (default 10)"),
	),
)

var processEventTool = mcp.NewTool("process_event",
	mcp.WithDescription("Run an event envelope through the pipeline: enrichment, embedding, analysis, decision and action."),
	mcp.WithString("envelope",
		mcp.Required(),
		mcp.Description(`Event envelope as JSON: {"event_id", "timestamp", "source", "event_type", "payload"}`),
	),
)

var getDecisionTool = mcp.NewTool("get_decision",
	mcp.WithDescription("Get a recorded decision, including its reasoning, confidence and execution result."),
	mcp.WithString("decision_id",
		mcp.Required(),
		mcp.Description("Decision ID, e.g. dec-1a2b3c4d5e6f"),
	),
)

var listClustersTool = mcp.NewTool("list_clusters",
	mcp.WithDescription("List labeled topic clusters from the latest clustering runs."),
	mcp.WithString("namespace",
		mcp.Description("Only clusters whose namespace starts with this prefix, e.g. clu-20260314-"),
	),
)
