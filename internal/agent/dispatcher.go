package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bull/corpus-agent/internal/llm"
	"github.com/bull/corpus-agent/internal/storage"
)

// DefaultToolName is the guaranteed fallback when classification fails or
// suggests an unregistered tool.
const DefaultToolName = "general_conversation"

// ErrMalformedResponse indicates the classifier model returned output that
// could not be parsed as the expected JSON. It is always recovered with the
// fallback tool, never surfaced to the user.
var ErrMalformedResponse = errors.New("agent: malformed classifier response")

const selectToolPrompt = `You are an intelligent dispatcher. Analyze the user's query and select the single most suitable tool from this list to answer it.

Available tools as JSON:
%s

Return ONLY a JSON object with the key "tool_name" holding the name of the selected tool, for example: {"tool_name": "general_conversation"}

Do not add any explanation, comment, or text outside the JSON object.

User query: %q`

const extractCategoryPrompt = `Decide whether the user's query explicitly names a knowledge-base category to restrict the search to (for example "in the security documents" or "from the cooking notes").

Return ONLY a JSON object: {"category": "<single lowercase word>"} when a category is clearly named, or {"category": null} when none is.

User query: %q`

// Dispatcher classifies queries to tools using the generation capability.
// Model output is untrusted input: it is validated against the registry and
// any failure falls back to DefaultToolName. SelectTool never errors.
type Dispatcher struct {
	client llm.Client
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher backed by the given model client.
func NewDispatcher(client llm.Client, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{client: client, logger: logger}
}

// SelectTool picks the registered tool best matching the query. Any failure
// (provider error, unparseable output, unregistered name) selects
// DefaultToolName.
func (d *Dispatcher) SelectTool(ctx context.Context, query string, registry *Registry) string {
	name, err := d.classify(ctx, query, registry)
	if err != nil {
		d.logger.Warn("tool classification failed, using default", "error", err)
		return DefaultToolName
	}
	return name
}

// classify runs the selection call and validates the result against the
// registry.
func (d *Dispatcher) classify(ctx context.Context, query string, registry *Registry) (string, error) {
	specs, err := json.MarshalIndent(registry.Specs(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal tool specs: %w", err)
	}

	reply, err := d.client.GenerateText(ctx, fmt.Sprintf(selectToolPrompt, specs, query), nil)
	if err != nil {
		return "", err
	}

	// Models wrap JSON in markdown fences or prose; extract the object first.
	raw, _ := llm.ExtractJSONObject(reply)
	var parsed struct {
		ToolName string `json:"tool_name"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", fmt.Errorf("%w: %q", ErrMalformedResponse, reply)
	}
	if parsed.ToolName == "" {
		return "", fmt.Errorf("%w: no tool_name in %q", ErrMalformedResponse, reply)
	}
	if _, ok := registry.Get(parsed.ToolName); !ok {
		return "", fmt.Errorf("%w: unregistered tool %q", ErrMalformedResponse, parsed.ToolName)
	}
	return parsed.ToolName, nil
}

// ExtractCategory asks the model whether the query names a category filter.
// Absence of a detectable category yields the empty string, never an error.
func (d *Dispatcher) ExtractCategory(ctx context.Context, query string) string {
	reply, err := d.client.GenerateText(ctx, fmt.Sprintf(extractCategoryPrompt, query), nil)
	if err != nil {
		d.logger.Warn("category extraction failed, searching unfiltered", "error", err)
		return ""
	}

	raw, _ := llm.ExtractJSONObject(reply)
	var parsed struct {
		Category *string `json:"category"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		d.logger.Warn("category extraction returned malformed output", "reply", reply)
		return ""
	}
	if parsed.Category == nil {
		return ""
	}
	category := storage.NormalizeCategory(*parsed.Category)
	if category == storage.DefaultCategory {
		return ""
	}
	return category
}
