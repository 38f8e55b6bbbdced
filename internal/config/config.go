// Package config reads runtime configuration from the environment, with a
// .env file loaded when present.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/bull/corpus-agent/internal/llm"
)

// Provider names accepted in AI_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config holds everything the binaries need to build their components.
type Config struct {
	Provider string // openai or ollama

	OpenAIChatModel      string
	OpenAIEmbeddingModel string

	OllamaBaseURL        string
	OllamaChatModel      string
	OllamaEmbeddingModel string

	EmbeddingDimension int // 0 means the provider's default

	QdrantHost       string
	QdrantPort       int
	QdrantCollection string

	ChunkSize    int
	ChunkOverlap int
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present, matching how the sync and agent
// binaries are run locally.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Provider: getEnv("AI_PROVIDER", ProviderOpenAI),

		OpenAIChatModel:      getEnv("OPENAI_CHAT_MODEL", ""),
		OpenAIEmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", ""),

		OllamaBaseURL:        getEnv("OLLAMA_BASE_URL", ""),
		OllamaChatModel:      getEnv("OLLAMA_CHAT_MODEL", "llama3.1"),
		OllamaEmbeddingModel: getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),

		EmbeddingDimension: getEnvInt("EMBEDDING_DIMENSION", 0),

		QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:       getEnvInt("QDRANT_PORT", 6334),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "corpus"),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
	}

	switch cfg.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q (expected %s or %s)",
			cfg.Provider, ProviderOpenAI, ProviderOllama)
	}

	return cfg, nil
}

// ResolveEmbeddingDimension returns the configured dimension, or the
// selected provider's default when unset. Useful when no model client is
// around to ask.
func (c *Config) ResolveEmbeddingDimension() int {
	if c.EmbeddingDimension > 0 {
		return c.EmbeddingDimension
	}
	if c.Provider == ProviderOllama {
		return llm.DefaultOllamaEmbeddingDimension
	}
	return llm.DefaultOpenAIEmbeddingDimension
}

// NewLLMClient builds the language model client the configuration selects.
func (c *Config) NewLLMClient() (llm.Client, error) {
	switch c.Provider {
	case ProviderOllama:
		return llm.NewOllamaClient(c.OllamaBaseURL, c.OllamaChatModel,
			c.OllamaEmbeddingModel, c.EmbeddingDimension)
	default:
		return llm.NewOpenAIClient(c.OpenAIChatModel, c.OpenAIEmbeddingModel,
			c.EmbeddingDimension)
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
