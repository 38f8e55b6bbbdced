package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultOllamaBaseURL points at a local Ollama server.
	DefaultOllamaBaseURL = "http://localhost:11434"

	// DefaultOllamaEmbeddingDimension matches nomic-embed-text.
	DefaultOllamaEmbeddingDimension = 768
)

// OllamaClient implements Client against a local Ollama server's HTTP API.
type OllamaClient struct {
	baseURL        string
	chatModel      string
	embeddingModel string
	dimension      int
	httpClient     *http.Client
}

// NewOllamaClient creates an Ollama-backed client. chatModel and
// embeddingModel are required; an empty baseURL falls back to the local
// default.
func NewOllamaClient(baseURL, chatModel, embeddingModel string, dimension int) (*OllamaClient, error) {
	if chatModel == "" || embeddingModel == "" {
		return nil, fmt.Errorf("ollama chat and embedding models must be configured")
	}
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if dimension <= 0 {
		dimension = DefaultOllamaEmbeddingDimension
	}
	return &OllamaClient{
		baseURL:        baseURL,
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		dimension:      dimension,
		httpClient: &http.Client{
			// Generations on local hardware can be slow.
			Timeout: 5 * time.Minute,
		},
	}, nil
}

// EmbeddingDimension returns the configured vector length.
func (c *OllamaClient) EmbeddingDimension() int { return c.dimension }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// GenerateText produces a chat completion via /api/chat.
func (c *OllamaClient) GenerateText(ctx context.Context, prompt string, history []Message) (string, error) {
	messages := make([]ollamaMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, ollamaMessage{Role: string(RoleUser), Content: prompt})

	var resp ollamaChatResponse
	err := c.post(ctx, "/api/chat", ollamaChatRequest{
		Model:    c.chatModel,
		Messages: messages,
		Stream:   false,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// GenerateEmbedding produces a vector via /api/embeddings.
func (c *OllamaClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaEmbeddingResponse
	err := c.post(ctx, "/api/embeddings", ollamaEmbeddingRequest{
		Model:  c.embeddingModel,
		Prompt: text,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", ErrUnavailable)
	}
	return toFloat32(resp.Embedding), nil
}

// GenerateEmbeddings produces vectors one text at a time; the Ollama
// embeddings endpoint has no batch form.
func (c *OllamaClient) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := c.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// post sends a JSON request and decodes the JSON response.
func (c *OllamaClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s returned %d: %s", ErrUnavailable, path, resp.StatusCode, data)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
