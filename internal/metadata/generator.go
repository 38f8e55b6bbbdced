// Package metadata asks the language model to suggest a category and tags
// for a document, used when indexing with auto-tagging enabled.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/corpus-agent/internal/llm"
	"github.com/bull/corpus-agent/internal/storage"
)

// DefaultMaxChars is the maximum document length sent to the model before
// truncation. Rough budget of 16k tokens at ~4 characters per token.
const DefaultMaxChars = 64000

// Suggestion is the model's proposed metadata for a document.
type Suggestion struct {
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// Generator produces metadata suggestions using the configured model.
type Generator struct {
	llm      llm.Client
	maxChars int
	logger   *slog.Logger
}

// NewGenerator creates a metadata generator. maxChars <= 0 selects
// DefaultMaxChars.
func NewGenerator(client llm.Client, maxChars int, logger *slog.Logger) *Generator {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{llm: client, maxChars: maxChars, logger: logger}
}

const suggestPrompt = `Analyze this document and suggest metadata for a knowledge base:
1. A single short category word grouping documents of this kind (for example: setup, api, troubleshooting, architecture)
2. Up to five short topical tags

Document path: %s

Document content:
%s

Respond with a JSON object only:
{"category": "one lowercase word", "tags": ["tag1", "tag2"]}`

// Suggest analyzes document content and proposes a category and tags. The
// category comes back normalized; a model failure or unusable reply degrades
// to the default category with no tags rather than failing the sync.
func (g *Generator) Suggest(ctx context.Context, path, content string) Suggestion {
	fallback := Suggestion{Category: storage.NormalizeCategory("")}

	prompt := fmt.Sprintf(suggestPrompt, path, g.truncate(content))
	reply, err := g.llm.GenerateText(ctx, prompt, nil)
	if err != nil {
		g.logger.Warn("metadata suggestion failed", "path", path, "error", err)
		return fallback
	}

	raw, ok := llm.ExtractJSONObject(reply)
	if !ok {
		g.logger.Warn("metadata reply had no JSON object", "path", path)
		return fallback
	}

	var parsed Suggestion
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		g.logger.Warn("metadata reply unparseable", "path", path, "error", err)
		return fallback
	}

	return Suggestion{
		Category: storage.NormalizeCategory(parsed.Category),
		Tags:     storage.NormalizeTags(parsed.Tags),
	}
}

// truncate caps content length, cutting at a line boundary when one is near.
func (g *Generator) truncate(content string) string {
	if len(content) <= g.maxChars {
		return content
	}
	g.logger.Warn("truncating document for metadata suggestion",
		"from", len(content), "to", g.maxChars)

	cut := content[:g.maxChars]
	if i := strings.LastIndexByte(cut, '\n'); i > g.maxChars/2 {
		cut = cut[:i]
	}
	return cut
}
