package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/corpus-agent/internal/index"
	"github.com/bull/corpus-agent/internal/llm"
	"github.com/bull/corpus-agent/internal/storage"
)

// Answerer produces a grounded answer for a query. Satisfied by
// retrieval.Orchestrator.
type Answerer interface {
	Answer(ctx context.Context, query, category string, history []llm.Message) (string, error)
}

// Searcher runs hybrid retrieval. Satisfied by index.Hybrid.
type Searcher interface {
	HybridSearch(ctx context.Context, query string, vector []float32, limit int, category string) []index.Result
}

// StatusStore reports what the index currently holds. Satisfied by
// storage.QdrantStore.
type StatusStore interface {
	ListSources(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (uint64, error)
}

// makeAskHandler creates the ask_knowledge_base tool handler. The full
// retrieval pipeline runs behind it, including query reformulation when the
// first pass looks insufficient.
func makeAskHandler(answerer Answerer) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		if input.Query == "" {
			return nil, AskOutput{}, fmt.Errorf("query must not be empty")
		}

		category := ""
		if input.Category != "" {
			category = storage.NormalizeCategory(input.Category)
		}

		answer, err := answerer.Answer(ctx, input.Query, category, nil)
		if err != nil {
			return nil, AskOutput{}, fmt.Errorf("answer failed: %w", err)
		}
		return nil, AskOutput{Answer: answer}, nil
	}
}

// makeSearchHandler creates the search_knowledge_base tool handler. It
// exposes raw hybrid retrieval without validation or synthesis, for clients
// that want the passages themselves.
func makeSearchHandler(searcher Searcher, client llm.Client) func(
	context.Context, *mcp.CallToolRequest, SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
		*mcp.CallToolResult, SearchOutput, error,
	) {
		if input.Query == "" {
			return nil, SearchOutput{}, fmt.Errorf("query must not be empty")
		}
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = 10
		}

		vector, err := client.GenerateEmbedding(ctx, input.Query)
		if err != nil {
			return nil, SearchOutput{}, fmt.Errorf("embed query: %w", err)
		}

		category := ""
		if input.Category != "" {
			category = storage.NormalizeCategory(input.Category)
		}

		results := searcher.HybridSearch(ctx, input.Query, vector, maxResults, category)
		if len(results) == 0 {
			return nil, SearchOutput{
				Results: []SearchHit{},
				Message: "No matching passages found. Try broader search terms.",
			}, nil
		}

		hits := make([]SearchHit, len(results))
		for i, r := range results {
			tags := r.Tags
			if tags == nil {
				tags = []string{}
			}
			hits[i] = SearchHit{
				ChunkID:       r.ChunkID,
				Source:        r.SourceID,
				Category:      r.Category,
				Tags:          tags,
				Text:          r.Text,
				SemanticScore: r.SemanticScore,
				KeywordScore:  r.KeywordScore,
			}
		}
		return nil, SearchOutput{Results: hits}, nil
	}
}

// makeStatusHandler creates the index_status tool handler.
func makeStatusHandler(store StatusStore) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		sources, err := store.ListSources(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("list sources: %w", err)
		}
		count, err := store.Count(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("count chunks: %w", err)
		}
		if sources == nil {
			sources = []string{}
		}

		return nil, StatusOutput{
			TotalChunks:  int(count),
			TotalSources: len(sources),
			Sources:      sources,
		}, nil
	}
}
