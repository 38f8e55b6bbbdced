package agent

import (
	"context"

	"github.com/bull/corpus-agent/internal/llm"
)

// RAGToolName identifies the knowledge-base retrieval tool.
const RAGToolName = "rag_tool"

// Answerer is the retrieval pipeline the RAG tool drives.
// *retrieval.Orchestrator satisfies it.
type Answerer interface {
	Answer(ctx context.Context, query, category string, history []llm.Message) (string, error)
}

// RAGTool answers queries from the indexed document corpus via the retrieval
// orchestrator.
type RAGTool struct {
	pipeline Answerer
}

// NewRAGTool creates the retrieval tool over the given pipeline.
func NewRAGTool(pipeline Answerer) *RAGTool {
	return &RAGTool{pipeline: pipeline}
}

func (t *RAGTool) Name() string { return RAGToolName }

func (t *RAGTool) Description() string {
	return "Answers questions using a knowledge base of previously indexed documents. " +
		"Use it when the user asks about specific content from an indexed file or " +
		"the document collection."
}

// Execute runs the retrieval pipeline for the query, optionally restricted to
// req.Category.
func (t *RAGTool) Execute(ctx context.Context, req Request) (string, error) {
	return t.pipeline.Answer(ctx, req.Query, req.Category, req.History)
}
