// Package main provides the conversational agent CLI and MCP server.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bull/corpus-agent/internal/agent"
	"github.com/bull/corpus-agent/internal/config"
	"github.com/bull/corpus-agent/internal/index"
	"github.com/bull/corpus-agent/internal/llm"
	mcpserver "github.com/bull/corpus-agent/internal/mcp"
	"github.com/bull/corpus-agent/internal/retrieval"
	"github.com/bull/corpus-agent/internal/storage"
)

// maxHistoryTurns bounds the conversation context sent to the model.
const maxHistoryTurns = 20

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Conversational agent over an indexed knowledge base",
	Long: `Chat with a knowledge base backed by hybrid semantic and keyword
retrieval. Run "agent chat" for the interactive terminal loop or
"agent serve" to expose the same capabilities over MCP.

Environment variables:
  AI_PROVIDER     openai (default) or ollama
  OPENAI_API_KEY  OpenAI API key (required with openai provider)
  QDRANT_HOST     Qdrant hostname (default: localhost)
  QDRANT_PORT     Qdrant gRPC port (default: 6334)`,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat loop in the terminal",
	RunE:  runChat,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the knowledge base tools over MCP on stdio",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// components holds everything both commands need.
type components struct {
	store        *storage.QdrantStore
	hybrid       *index.Hybrid
	client       llm.Client
	orchestrator *retrieval.Orchestrator
}

// setup connects to the store, builds the index, and warms the keyword side.
func setup(ctx context.Context) (*components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	client, err := cfg.NewLLMClient()
	if err != nil {
		return nil, fmt.Errorf("create model client: %w", err)
	}

	dimension := cfg.EmbeddingDimension
	if dimension <= 0 {
		dimension = client.EmbeddingDimension()
	}

	store, err := storage.NewQdrantStore(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, dimension)
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	hybrid := index.NewHybrid(store, slog.Default())
	if err := hybrid.Refresh(ctx); err != nil {
		// The agent still works semantically; keyword search warms up on
		// the next successful refresh.
		slog.Warn("keyword index warmup failed", "error", err)
	}

	orchestrator := retrieval.NewOrchestrator(hybrid, client, 0, slog.Default())

	return &components{
		store:        store,
		hybrid:       hybrid,
		client:       client,
		orchestrator: orchestrator,
	}, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	comps, err := setup(ctx)
	if err != nil {
		return err
	}
	defer comps.store.Close()

	registry := agent.NewRegistry()
	if err := registry.Register(agent.NewRAGTool(comps.orchestrator)); err != nil {
		return err
	}
	if err := registry.Register(agent.NewGeneralConversationTool(comps.client)); err != nil {
		return err
	}
	dispatcher := agent.NewDispatcher(comps.client, slog.Default())

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Println(boldGreen("Knowledge base agent"))
	fmt.Println("Type your question and press Enter. Type 'exit' or press Ctrl+C to quit.")
	fmt.Println()

	var history []llm.Message
	scanner := bufio.NewScanner(os.Stdin)
	// Pasted questions can exceed the default 64 KiB token limit, which
	// would end the loop as if stdin had closed.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") {
			break
		}

		reply := respond(ctx, dispatcher, registry, input, history)
		fmt.Printf("%s%s\n\n", boldCyan("Agent: "), reply)

		history = append(history,
			llm.Message{Role: llm.RoleUser, Content: input},
			llm.Message{Role: llm.RoleAssistant, Content: reply},
		)
		if len(history) > maxHistoryTurns*2 {
			history = history[len(history)-maxHistoryTurns*2:]
		}
	}

	return nil
}

// respond routes one utterance through the dispatcher and selected tool.
// Failures come back as readable text so the loop never crashes mid-session.
func respond(ctx context.Context, dispatcher *agent.Dispatcher, registry *agent.Registry, input string, history []llm.Message) string {
	name := dispatcher.SelectTool(ctx, input, registry)
	tool, ok := registry.Get(name)
	if !ok {
		return "No tool available to handle that request."
	}

	req := agent.Request{Query: input, History: history}
	if name == agent.RAGToolName {
		req.Category = dispatcher.ExtractCategory(ctx, input)
	}

	reply, err := tool.Execute(ctx, req)
	if err != nil {
		slog.Error("tool execution failed", "tool", name, "error", err)
		return "Something went wrong while answering. Check that the model provider and vector store are reachable, then try again."
	}
	return reply
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	comps, err := setup(ctx)
	if err != nil {
		return err
	}
	defer comps.store.Close()

	server := mcpserver.NewServer(&mcpserver.Config{
		Answerer: comps.orchestrator,
		Searcher: comps.hybrid,
		Store:    comps.store,
		LLM:      comps.client,
	})

	slog.Info("serving MCP on stdio")
	return server.Run(ctx)
}
