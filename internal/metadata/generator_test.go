package metadata

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bull/corpus-agent/internal/llm"
)

type fakeLLM struct {
	reply      string
	err        error
	lastPrompt string
}

func (f *fakeLLM) GenerateText(_ context.Context, prompt string, _ []llm.Message) (string, error) {
	f.lastPrompt = prompt
	return f.reply, f.err
}

func (f *fakeLLM) GenerateEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLLM) GenerateEmbeddings(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLLM) EmbeddingDimension() int { return 0 }

func TestSuggest(t *testing.T) {
	fake := &fakeLLM{reply: `{"category": "Setup", "tags": ["Install", "install", "Docker"]}`}
	gen := NewGenerator(fake, 0, nil)

	got := gen.Suggest(context.Background(), "docs/install.md", "How to install.")

	assert.Equal(t, "setup", got.Category)
	assert.Equal(t, []string{"install", "docker"}, got.Tags)
	assert.Contains(t, fake.lastPrompt, "docs/install.md")
	assert.Contains(t, fake.lastPrompt, "How to install.")
}

func TestSuggest_JSONInsideProse(t *testing.T) {
	fake := &fakeLLM{reply: "Sure, here you go:\n```json\n{\"category\": \"api\", \"tags\": [\"auth\"]}\n```"}
	gen := NewGenerator(fake, 0, nil)

	got := gen.Suggest(context.Background(), "docs/api.md", "Auth endpoints.")

	assert.Equal(t, "api", got.Category)
	assert.Equal(t, []string{"auth"}, got.Tags)
}

func TestSuggest_Degrades(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeLLM
	}{
		{"provider error", &fakeLLM{err: llm.ErrUnavailable}},
		{"no json object", &fakeLLM{reply: "category: setup"}},
		{"unparseable json", &fakeLLM{reply: `{"category": }`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := NewGenerator(tt.fake, 0, nil)
			got := gen.Suggest(context.Background(), "doc.md", "text")
			assert.Equal(t, "general", got.Category)
			assert.Empty(t, got.Tags)
		})
	}
}

func TestSuggest_TruncatesLongContent(t *testing.T) {
	fake := &fakeLLM{reply: `{"category": "general", "tags": []}`}
	gen := NewGenerator(fake, 200, nil)

	content := strings.Repeat("line of text\n", 100)
	gen.Suggest(context.Background(), "big.md", content)

	assert.Less(t, len(fake.lastPrompt), len(content))
	assert.NotContains(t, fake.lastPrompt, content)
}
