package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// DefaultOpenAIChatModel is used when no chat model is configured.
	DefaultOpenAIChatModel = openai.ChatModelGPT4o

	// DefaultOpenAIEmbeddingModel is the embedding model; its vectors are
	// DefaultOpenAIEmbeddingDimension long.
	DefaultOpenAIEmbeddingModel     = "text-embedding-3-small"
	DefaultOpenAIEmbeddingDimension = 1536

	// embeddingBatchSize balances requests-per-minute vs tokens-per-minute
	// rate limits.
	embeddingBatchSize = 500
)

// OpenAIClient implements Client against the OpenAI API.
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	dimension      int
}

// NewOpenAIClient creates an OpenAI-backed client. It reads OPENAI_API_KEY
// from the environment and returns an error if not set. Empty model names
// fall back to the defaults.
func NewOpenAIClient(chatModel, embeddingModel string, dimension int) (*OpenAIClient, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if chatModel == "" {
		chatModel = DefaultOpenAIChatModel
	}
	if embeddingModel == "" {
		embeddingModel = DefaultOpenAIEmbeddingModel
	}
	if dimension <= 0 {
		dimension = DefaultOpenAIEmbeddingDimension
	}

	// openai-go reads OPENAI_API_KEY from the environment.
	client := openai.NewClient()

	return &OpenAIClient{
		client:         &client,
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		dimension:      dimension,
	}, nil
}

// EmbeddingDimension returns the configured vector length.
func (c *OpenAIClient) EmbeddingDimension() int { return c.dimension }

// GenerateText produces a chat completion for prompt with history as context.
func (c *OpenAIClient) GenerateText(ctx context.Context, prompt string, history []Message) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    c.chatModel,
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: chat completion returned no choices", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateEmbedding produces a vector for a single text.
func (c *OpenAIClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateEmbeddings produces vectors for the given texts. Requests are
// batched and retried with exponential backoff on rate limit errors.
func (c *OpenAIClient) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	var all [][]float32
	for i := 0; i < len(texts); i += embeddingBatchSize {
		end := min(i+embeddingBatchSize, len(texts))
		batch, err := c.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, batch...)
	}
	return all, nil
}

// embedBatchWithRetry generates embeddings for one batch. Rate limit errors
// (HTTP 429) are retried with exponential backoff; other errors are permanent.
func (c *OpenAIClient) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: c.embeddingModel,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrUnavailable, err))
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("%w: got %d embeddings for %d texts",
				ErrUnavailable, len(resp.Data), len(texts)))
		}
		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			embeddings[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return embeddings, err
}

// isRateLimitError checks for an HTTP 429 from the OpenAI API.
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
