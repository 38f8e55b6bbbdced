// Package llm defines the text-generation and embedding capability consumed
// by the rest of the agent, with OpenAI and Ollama providers.
package llm

import (
	"context"
	"errors"
	"regexp"
)

// ErrUnavailable indicates the provider could not be reached or refused the call.
var ErrUnavailable = errors.New("llm: provider unavailable")

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Client is the capability interface implemented by each provider.
// Failures are reported as typed errors, never as error text embedded in the
// generated content.
type Client interface {
	// GenerateText produces a completion for prompt, with history providing
	// prior conversation context.
	GenerateText(ctx context.Context, prompt string, history []Message) (string, error)

	// GenerateEmbedding produces a fixed-length vector for one text.
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GenerateEmbeddings produces one vector per input text, in order.
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// EmbeddingDimension is the vector length this provider produces. All
	// vectors in one index must come from the same provider configuration.
	EmbeddingDimension() int
}

// jsonObjectPattern matches the first brace-delimited blob in model output.
// Models frequently wrap JSON in markdown fences or prose.
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSONObject pulls an embedded JSON object out of free-form model
// output. Returns the raw input and false when no object is present.
func ExtractJSONObject(s string) (string, bool) {
	if m := jsonObjectPattern.FindString(s); m != "" {
		return m, true
	}
	return s, false
}

// toFloat32 converts a provider float64 vector to the float32 form used by
// storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
