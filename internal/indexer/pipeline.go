// Package indexer runs the ingestion pipeline: load documents from a source,
// split them into passages, embed, and add them to the index.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bull/corpus-agent/internal/chunker"
	"github.com/bull/corpus-agent/internal/llm"
	"github.com/bull/corpus-agent/internal/metadata"
	"github.com/bull/corpus-agent/internal/source"
	"github.com/bull/corpus-agent/internal/storage"
)

// Index receives finished chunks. Satisfied by index.Hybrid.
type Index interface {
	Add(ctx context.Context, chunks []storage.Chunk) error
}

// Options control how documents are tagged and split during a sync.
type Options struct {
	Category string   // Category for every document, unless AutoTag
	Tags     []string // Tags for every document, unless AutoTag
	AutoTag  bool     // Ask the model to suggest category and tags per document
	PerPage  bool     // Split each page separately instead of the whole document
}

// Versioned is implemented by sources that can report a source-level
// version, like source.GitHubSource's latest commit.
type Versioned interface {
	LatestCommitSHA(ctx context.Context) (string, error)
}

// Result contains statistics about one sync run.
type Result struct {
	TotalDocs      int
	TotalChunks    int
	SuccessfulDocs int
	FailedDocs     []FailedDoc
	CommitSHA      string // Source version at sync time, when the source reports one
	Duration       time.Duration
}

// FailedDoc records a document that could not be indexed.
type FailedDoc struct {
	Path   string
	Reason string
}

// Pipeline orchestrates the full ingestion process from source to index.
type Pipeline struct {
	source    source.Source
	splitter  *chunker.Splitter
	llm       llm.Client
	generator *metadata.Generator
	index     Index
	logger    *slog.Logger
}

// NewPipeline creates an ingestion pipeline. generator may be nil when
// auto-tagging is never requested.
func NewPipeline(
	src source.Source,
	splitter *chunker.Splitter,
	client llm.Client,
	generator *metadata.Generator,
	index Index,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:    src,
		splitter:  splitter,
		llm:       client,
		generator: generator,
		index:     index,
		logger:    logger,
	}
}

// Run lists every document in the source and indexes them. Documents that
// fail to load or embed are recorded and skipped so one bad file cannot
// abort a sync.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	result := &Result{}

	if versioned, ok := p.source.(Versioned); ok {
		sha, err := versioned.LatestCommitSHA(ctx)
		if err != nil {
			p.logger.Warn("source version probe failed", "error", err)
		} else {
			result.CommitSHA = sha
			p.logger.Info("source version", "commit", sha)
		}
	}

	paths, err := p.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	result.TotalDocs = len(paths)
	p.logger.Info("starting sync", "documents", len(paths))

	for _, path := range paths {
		chunks, err := p.processDocument(ctx, path, opts)
		if err != nil {
			p.logger.Warn("failed to index document", "path", path, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				Path:   path,
				Reason: err.Error(),
			})
			continue
		}
		result.SuccessfulDocs++
		result.TotalChunks += chunks
	}

	result.Duration = time.Since(start)
	p.logger.Info("sync complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)

	return result, nil
}

// processDocument indexes a single document and returns its chunk count.
func (p *Pipeline) processDocument(ctx context.Context, path string, opts Options) (int, error) {
	doc, err := p.source.Fetch(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	if len(doc.Pages) == 0 {
		p.logger.Debug("skipping empty document", "path", path)
		return 0, nil
	}

	category := storage.NormalizeCategory(opts.Category)
	tags := storage.NormalizeTags(opts.Tags)
	if opts.AutoTag && p.generator != nil {
		suggestion := p.generator.Suggest(ctx, path, documentText(doc))
		category = suggestion.Category
		tags = suggestion.Tags
		p.logger.Debug("auto-tagged document",
			"path", path, "category", category, "tags", tags)
	}

	texts := p.splitDocument(doc, opts.PerPage)
	if len(texts) == 0 {
		return 0, nil
	}

	embeddings, err := p.llm.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embeddings: %w", err)
	}
	if len(embeddings) != len(texts) {
		return 0, fmt.Errorf("embeddings: got %d vectors for %d texts", len(embeddings), len(texts))
	}

	now := time.Now()
	chunks := make([]storage.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = storage.Chunk{
			ID:          storage.ChunkID(path, i),
			Text:        text,
			SourceID:    path,
			Sequence:    i,
			ContentHash: storage.HashText(text),
			Category:    category,
			Tags:        tags,
			CreatedAt:   now,
			Embedding:   embeddings[i],
		}
	}

	if err := p.index.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("add to index: %w", err)
	}

	p.logger.Info("indexed document", "path", path, "chunks", len(chunks))
	return len(chunks), nil
}

// splitDocument produces the passage texts for a document. Per-page mode
// splits each page on its own and prefixes the page title, so section
// context survives into the passages; otherwise the whole document is
// joined and split as one text.
func (p *Pipeline) splitDocument(doc *source.Document, perPage bool) []string {
	if !perPage {
		return p.splitter.Split(documentText(doc))
	}

	var texts []string
	for _, page := range doc.Pages {
		for _, piece := range p.splitter.Split(page.Text) {
			if page.Title != "" && !strings.HasPrefix(piece, page.Title) {
				piece = page.Title + "\n\n" + piece
			}
			texts = append(texts, piece)
		}
	}
	return texts
}

// documentText joins a document's pages back into one text.
func documentText(doc *source.Document) string {
	parts := make([]string, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		parts = append(parts, page.Text)
	}
	return strings.Join(parts, "\n\n")
}
