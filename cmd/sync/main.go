// Package main provides the sync CLI for loading documents into the index.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/corpus-agent/internal/chunker"
	"github.com/bull/corpus-agent/internal/config"
	"github.com/bull/corpus-agent/internal/index"
	"github.com/bull/corpus-agent/internal/indexer"
	"github.com/bull/corpus-agent/internal/metadata"
	"github.com/bull/corpus-agent/internal/source"
	"github.com/bull/corpus-agent/internal/storage"
)

var (
	flagDir      string
	flagRepo     string
	flagRepoPath string
	flagCategory string
	flagTags     []string
	flagAutoTag  bool
	flagClear    bool
	flagPerPage  bool
)

var rootCmd = &cobra.Command{
	Use:   "sync",
	Short: "Knowledge base indexing tool",
	Long:  "CLI tool for loading documents into the Qdrant-backed knowledge base",
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index documents from a directory or GitHub repository",
	Long: `Loads documents from a source, splits them into passages, embeds them,
and stores them in Qdrant. Re-indexing the same source replaces its
passages in place.

Environment variables:
  AI_PROVIDER     openai (default) or ollama
  OPENAI_API_KEY  OpenAI API key for embeddings (required with openai)
  QDRANT_HOST     Qdrant hostname (default: localhost)
  QDRANT_PORT     Qdrant gRPC port (default: 6334)
  GITHUB_TOKEN    GitHub token for higher rate limits (optional)`,
	RunE: runIndex,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the index currently holds",
	RunE:  runStatus,
}

func init() {
	indexCmd.Flags().StringVar(&flagDir, "dir", "", "Directory of .md and .txt files to index")
	indexCmd.Flags().StringVar(&flagRepo, "github", "", "GitHub repository to index, as owner/repo")
	indexCmd.Flags().StringVar(&flagRepoPath, "github-path", "", "Directory inside the repository (default: repository root)")
	indexCmd.Flags().StringVar(&flagCategory, "category", "", "Category label for every indexed document")
	indexCmd.Flags().StringSliceVar(&flagTags, "tags", nil, "Tags for every indexed document")
	indexCmd.Flags().BoolVar(&flagAutoTag, "auto-tag", false, "Ask the model to suggest category and tags per document")
	indexCmd.Flags().BoolVar(&flagClear, "clear", false, "Clear the collection before indexing")
	indexCmd.Flags().BoolVar(&flagPerPage, "per-page", false, "Split each markdown section separately, keeping section titles")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newSource() (source.Source, error) {
	switch {
	case flagDir != "" && flagRepo != "":
		return nil, fmt.Errorf("use either --dir or --github, not both")
	case flagDir != "":
		return source.NewFilesystemSource(flagDir)
	case flagRepo != "":
		owner, repo, ok := strings.Cut(flagRepo, "/")
		if !ok || owner == "" || repo == "" {
			return nil, fmt.Errorf("--github must be owner/repo, got %q", flagRepo)
		}
		return source.NewGitHubSource(owner, repo, flagRepoPath)
	default:
		return nil, fmt.Errorf("one of --dir or --github is required")
	}
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	src, err := newSource()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	client, err := cfg.NewLLMClient()
	if err != nil {
		return fmt.Errorf("create model client: %w", err)
	}

	dimension := cfg.EmbeddingDimension
	if dimension <= 0 {
		dimension = client.EmbeddingDimension()
	}

	fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.QdrantHost, cfg.QdrantPort)
	store, err := storage.NewQdrantStore(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, dimension)
	if err != nil {
		return fmt.Errorf("connect to qdrant: %w", err)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	if flagClear {
		fmt.Println("Clearing existing collection...")
		if err := store.ClearCollection(ctx); err != nil {
			return fmt.Errorf("clear collection: %w", err)
		}
	}

	splitter, err := chunker.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return err
	}

	var generator *metadata.Generator
	if flagAutoTag {
		generator = metadata.NewGenerator(client, 0, slog.Default())
	}

	hybrid := index.NewHybrid(store, slog.Default())
	pipeline := indexer.NewPipeline(src, splitter, client, generator, hybrid, slog.Default())

	fmt.Println()
	fmt.Println("Indexing documents...")
	result, err := pipeline.Run(ctx, indexer.Options{
		Category: flagCategory,
		Tags:     flagTags,
		AutoTag:  flagAutoTag,
		PerPage:  flagPerPage,
	})
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Sync complete")
	fmt.Printf("  Documents: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
	fmt.Printf("  Chunks: %d\n", result.TotalChunks)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Second))
	if result.CommitSHA != "" {
		fmt.Printf("  Commit: %s\n", result.CommitSHA)
	}

	if len(result.FailedDocs) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := storage.NewQdrantStore(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, cfg.ResolveEmbeddingDimension())
	if err != nil {
		return fmt.Errorf("connect to qdrant: %w", err)
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}
	sources, err := store.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	fmt.Printf("Collection: %s\n", cfg.QdrantCollection)
	fmt.Printf("Chunks: %d\n", count)
	fmt.Printf("Sources: %d\n", len(sources))
	for _, s := range sources {
		fmt.Printf("  - %s\n", s)
	}
	return nil
}
