// Package mcp exposes event search, similarity, processing and decisions as
// MCP tools for agents.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/openclaw/eventmind/internal/cluster"
	"github.com/openclaw/eventmind/internal/decision"
	"github.com/openclaw/eventmind/internal/pipeline"
	"github.com/openclaw/eventmind/internal/semantic"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Deps are the components the tools call into.
type Deps struct {
	Semantic     *semantic.Service
	Orchestrator *pipeline.Orchestrator
	Decisions    *decision.DecisionStore
	Clusters     *cluster.Store
}

// Server wraps an MCP server exposing eventmind tools.
type Server struct {
	deps Deps
	mcp  *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(deps Deps) *Server {
	s := &Server{deps: deps}

	s.mcp = server.NewMCPServer(
		"eventmind",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchEventsTool, s.handleSearchEvents)
	s.mcp.AddTool(findSimilarTool, s.handleFindSimilar)
	s.mcp.AddTool(processEventTool, s.handleProcessEvent)
	s.mcp.AddTool(getDecisionTool, s.handleGetDecision)
	s.mcp.AddTool(listClustersTool, s.handleListClusters)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
