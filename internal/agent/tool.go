// Package agent routes user queries to capabilities: a registry of named
// tools and an LLM-backed dispatcher that classifies each query to one of
// them, with a guaranteed conversational fallback.
package agent

import (
	"context"

	"github.com/bull/corpus-agent/internal/llm"
)

// Request carries one user query into a tool.
type Request struct {
	Query    string        // The user's utterance
	History  []llm.Message // Conversation so far, owned by the caller
	Category string        // Optional metadata filter for retrieval tools
}

// Tool is a capability the dispatcher can route a query to. Description is
// what the classifier model reads to pick a tool, so it must say what kinds
// of questions the tool answers.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, req Request) (string, error)
}
