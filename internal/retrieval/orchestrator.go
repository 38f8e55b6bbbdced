// Package retrieval drives the answer pipeline for one query: search the
// hybrid index, validate the retrieved context, reformulate and re-search
// when it falls short, then synthesize a grounded answer.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/corpus-agent/internal/index"
	"github.com/bull/corpus-agent/internal/llm"
)

// DefaultResultLimit is the per-search result budget. Generous on purpose:
// the merge step dedupes and the synthesis prompt carries all survivors.
const DefaultResultLimit = 12

// InsufficientContextReply is returned verbatim when retrieval produces
// nothing to ground an answer in.
const InsufficientContextReply = "I could not find relevant information in the knowledge base to answer your question."

// contextDelimiter separates chunk texts in the synthesis prompt.
const contextDelimiter = "\n\n---\n\n"

const sufficiencyPrompt = `You are validating search results. Given the retrieved CONTEXT and the user's QUESTION, decide whether the context contains the information needed to answer the question.

CONTEXT:
%s

QUESTION:
%s

Reply with exactly YES or NO.`

const reformulatePrompt = `The following question did not retrieve useful results from a semantic document search. Rewrite it as a short, keyword-focused search query that preserves the original intent. Return only the rewritten query, nothing else.

Question: %s`

const synthesisPrompt = `Answer the user's QUESTION using only the CONTEXT extracted from indexed documents below. If the context does not contain the answer, say explicitly that you do not have enough information.

CONTEXT:
%s

QUESTION:
%s`

// Searcher is the slice of the hybrid index the orchestrator needs.
type Searcher interface {
	HybridSearch(ctx context.Context, query string, vector []float32, limit int, category string) []index.Result
}

// Orchestrator runs the two-pass retrieval pipeline. A single embedding of
// the raw user utterance is frequently a poor semantic match for document
// register, so an insufficient first pass triggers one reformulated retry.
type Orchestrator struct {
	searcher Searcher
	client   llm.Client
	limit    int
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator. A non-positive limit falls back to
// DefaultResultLimit.
func NewOrchestrator(searcher Searcher, client llm.Client, limit int, logger *slog.Logger) *Orchestrator {
	if limit <= 0 {
		limit = DefaultResultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		searcher: searcher,
		client:   client,
		limit:    limit,
		logger:   logger,
	}
}

// Answer runs the full pipeline for one query. category optionally restricts
// the semantic path to one metadata category; history provides conversation
// context to the synthesis call only.
func (o *Orchestrator) Answer(ctx context.Context, query, category string, history []llm.Message) (string, error) {
	first := o.search(ctx, query, category)
	merged := first

	if !o.sufficient(ctx, query, first) {
		if rewritten, ok := o.reformulate(ctx, query); ok {
			o.logger.Info("reformulated query", "original", query, "rewritten", rewritten)
			second := o.search(ctx, rewritten, category)
			merged = mergeResults(first, second)
		}
	}

	if len(merged) == 0 {
		return InsufficientContextReply, nil
	}

	texts := make([]string, len(merged))
	for i, r := range merged {
		texts[i] = r.Text
	}
	prompt := fmt.Sprintf(synthesisPrompt, strings.Join(texts, contextDelimiter), query)

	answer, err := o.client.GenerateText(ctx, prompt, history)
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}
	return answer, nil
}

// search embeds the query and runs one hybrid search. Embedding failures
// degrade to an empty result set.
func (o *Orchestrator) search(ctx context.Context, query, category string) []index.Result {
	vector, err := o.client.GenerateEmbedding(ctx, query)
	if err != nil {
		o.logger.Warn("query embedding failed", "error", err)
		return nil
	}
	return o.searcher.HybridSearch(ctx, query, vector, o.limit, category)
}

// sufficient asks the model whether the retrieved context answers the query.
// No results is automatically insufficient, with no model call. The decision
// is the presence of an affirmative token in the reply; a failed call counts
// as sufficient so a flaky validator cannot trigger a wasted second pass.
func (o *Orchestrator) sufficient(ctx context.Context, query string, results []index.Result) bool {
	if len(results) == 0 {
		return false
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	prompt := fmt.Sprintf(sufficiencyPrompt, strings.Join(texts, contextDelimiter), query)

	reply, err := o.client.GenerateText(ctx, prompt, nil)
	if err != nil {
		o.logger.Warn("sufficiency validation failed, keeping first-pass results", "error", err)
		return true
	}
	return strings.Contains(strings.ToUpper(reply), "YES")
}

// reformulate asks the model for a retrieval-friendly rewrite of the query.
// Returns false when the rewrite is unusable or textually identical to the
// original (case-insensitive), in which case the first pass stands.
func (o *Orchestrator) reformulate(ctx context.Context, query string) (string, bool) {
	reply, err := o.client.GenerateText(ctx, fmt.Sprintf(reformulatePrompt, query), nil)
	if err != nil {
		o.logger.Warn("reformulation failed, keeping first-pass results", "error", err)
		return "", false
	}

	rewritten := strings.TrimSpace(strings.Trim(strings.TrimSpace(reply), `"`))
	if rewritten == "" || strings.EqualFold(rewritten, strings.TrimSpace(query)) {
		return "", false
	}
	return rewritten, true
}

// mergeResults unions two result sets by chunk ID. First-pass results take
// precedence on collision; relative order is all first-pass results, then
// new second-pass results.
func mergeResults(first, second []index.Result) []index.Result {
	seen := make(map[string]bool, len(first))
	merged := make([]index.Result, 0, len(first)+len(second))
	for _, r := range first {
		seen[r.ChunkID] = true
		merged = append(merged, r)
	}
	for _, r := range second {
		if !seen[r.ChunkID] {
			seen[r.ChunkID] = true
			merged = append(merged, r)
		}
	}
	return merged
}
