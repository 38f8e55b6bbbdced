package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/corpus-agent/internal/llm"
)

// Config holds the server's dependencies.
type Config struct {
	Answerer Answerer
	Searcher Searcher
	Store    StatusStore
	LLM      llm.Client
}

// Server wraps an MCP server with the knowledge base tools registered.
type Server struct {
	server *mcp.Server
}

// NewServer creates a configured MCP server.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "corpus-agent",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_knowledge_base",
		Description: "Ask a question and get an answer grounded in the indexed knowledge base. Runs hybrid retrieval with automatic query reformulation before answering.",
	}, makeAskHandler(cfg.Answerer))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_knowledge_base",
		Description: "Search the knowledge base and return raw matching passages with scores. Use ask_knowledge_base for a synthesized answer.",
	}, makeSearchHandler(cfg.Searcher, cfg.LLM))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_status",
		Description: "Report what the knowledge base currently holds: chunk count and indexed source documents.",
	}, makeStatusHandler(cfg.Store))

	return &Server{server: server}
}

// Run serves over stdio and blocks until the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
