package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/openclaw/eventmind/internal/event"
	"github.com/openclaw/eventmind/internal/semantic"
)

func (s *Server) handleSearchEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	q := semantic.Query{
		Text:     query,
		TopK:     request.GetInt("top_k", 0),
		Source:   request.GetString("source", ""),
		DaysBack: request.GetInt("days_back", 0),
	}
	if args := request.GetArguments(); args["min_similarity"] != nil {
		v := request.GetFloat("min_similarity", 0)
		q.MinSimilarity = &v
	}

	matches, err := s.deps.Semantic.Search(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText("No matching events found. Events are searchable once they have been processed or backfilled."), nil
	}
	return mcp.NewToolResultText(formatMatches(matches)), nil
}

func (s *Server) handleFindSimilar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("event_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: event_id"), nil
	}

	matches, err := s.deps.Semantic.FindSimilar(ctx, id, request.GetInt("top_k", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("similarity lookup failed: %v", err)), nil
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No similar events found for %q.", id)), nil
	}
	return mcp.NewToolResultText(formatMatches(matches)), nil
}

func (s *Server) handleProcessEvent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("envelope")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: envelope"), nil
	}
	ev, err := event.Decode([]byte(raw))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid envelope: %v", err)), nil
	}

	exec, err := s.deps.Orchestrator.ProcessEvent(ctx, ev)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("processing failed: %v", err)), nil
	}
	return jsonResult(exec)
}

func (s *Server) handleGetDecision(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("decision_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: decision_id"), nil
	}

	d, err := s.deps.Decisions.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading decision: %v", err)), nil
	}
	if d == nil {
		return mcp.NewToolResultError(fmt.Sprintf("decision %q not found", id)), nil
	}
	return jsonResult(d)
}

func (s *Server) handleListClusters(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clusters, err := s.deps.Clusters.List(ctx, request.GetString("namespace", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing clusters: %v", err)), nil
	}
	if len(clusters) == 0 {
		return mcp.NewToolResultText("No clusters yet. Clustering runs once at least 20 events have embeddings."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d cluster(s):\n", len(clusters))
	for _, c := range clusters {
		fmt.Fprintf(&sb, "\n%s  %s (%d events)\n", c.ID, c.Label, c.MemberCount)
		if c.Description != "" {
			sb.WriteString(c.Description + "\n")
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// formatMatches renders matches as plain text for agent consumption.
func formatMatches(matches []semantic.Match) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d event(s):\n", len(matches))

	for i, m := range matches {
		fmt.Fprintf(&sb, "\n--- Result %d ---\n", i+1)
		fmt.Fprintf(&sb, "Event: %s\n", m.EventID)
		fmt.Fprintf(&sb, "Source: %s\n", m.Source)
		if !m.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "Time: %s\n", m.Timestamp.UTC().Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(&sb, "Similarity: %.1f%%\n", m.Similarity*100)

		if e := m.Enrichment; e != nil && e.Error == "" {
			if len(e.Entities) > 0 {
				names := make([]string, 0, len(e.Entities))
				for _, ent := range e.Entities {
					names = append(names, ent.Name)
				}
				fmt.Fprintf(&sb, "Entities: %s\n", strings.Join(names, ", "))
			}
			fmt.Fprintf(&sb, "Sentiment: %.2f\n", e.Sentiment.Score)
		}

		sb.WriteString("\n")
		sb.WriteString(m.Preview)
		sb.WriteString("\n")
	}

	return sb.String()
}
