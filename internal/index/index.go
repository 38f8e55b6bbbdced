package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bull/corpus-agent/internal/storage"
)

// Store is the durable chunk store the hybrid index builds on.
// *storage.QdrantStore satisfies it.
type Store interface {
	UpsertChunks(ctx context.Context, chunks []storage.Chunk) error
	Search(ctx context.Context, vector []float32, limit int, category string) ([]storage.ScoredChunk, error)
	All(ctx context.Context) ([]storage.Chunk, error)
}

// Hybrid owns the durable vector store plus a derived in-memory keyword
// structure over the same chunks. The keyword structure is a cache: it is
// rebuilt wholesale from the store after every Add and swapped in atomically,
// so a search racing an Add observes either the old structure or the new one,
// never a partial rebuild.
type Hybrid struct {
	store   Store
	keyword atomic.Pointer[keywordIndex]
	logger  *slog.Logger
}

// NewHybrid creates a hybrid index over the given store. The keyword
// structure starts empty; call Refresh to populate it from persisted state.
func NewHybrid(store Store, logger *slog.Logger) *Hybrid {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hybrid{store: store, logger: logger}
	h.keyword.Store(buildKeywordIndex(nil))
	return h
}

// Add persists the chunks and then rebuilds the keyword structure by
// re-scanning the store's current contents. Every chunk must carry an
// embedding. Chunk IDs are deterministic, so re-adding an unchanged source
// upserts in place.
func (h *Hybrid) Add(ctx context.Context, chunks []storage.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for i, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("chunk %d has no ID", i)
		}
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %d (%s) has no embedding", i, chunk.ID)
		}
	}

	if err := h.store.UpsertChunks(ctx, chunks); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}
	return h.Refresh(ctx)
}

// Refresh rebuilds the keyword structure from the store. Called at startup so
// restarts see all previously indexed chunks, and after every Add.
func (h *Hybrid) Refresh(ctx context.Context) error {
	chunks, err := h.store.All(ctx)
	if err != nil {
		return fmt.Errorf("scan store for keyword rebuild: %w", err)
	}
	h.keyword.Store(buildKeywordIndex(chunks))
	h.logger.Debug("keyword structure rebuilt", "chunks", len(chunks))
	return nil
}

// SemanticSearch runs nearest-neighbor search by vector distance, optionally
// restricted to one category. Backend errors degrade to an empty result set;
// callers treat empty as "no information found".
func (h *Hybrid) SemanticSearch(ctx context.Context, vector []float32, limit int, category string) []Result {
	scored, err := h.store.Search(ctx, vector, limit, category)
	if err != nil {
		h.logger.Warn("semantic search failed", "error", err)
		return nil
	}

	results := make([]Result, 0, len(scored))
	for _, sc := range scored {
		results = append(results, Result{
			ChunkID:       sc.Chunk.ID,
			Text:          sc.Chunk.Text,
			SourceID:      sc.Chunk.SourceID,
			Category:      sc.Chunk.Category,
			Tags:          sc.Chunk.Tags,
			SemanticScore: sc.Score,
			Semantic:      true,
		})
	}
	return results
}

// KeywordSearch runs BM25 ranking over the current keyword structure.
// The category filter does not apply here; only semantic search respects it.
func (h *Hybrid) KeywordSearch(query string, limit int) []Result {
	return h.keyword.Load().search(query, limit)
}

// HybridSearch runs semantic and keyword search independently and unions the
// results by chunk ID. On collision the semantic variant survives; merged
// order is all semantic hits in native order, then keyword-only hits in
// native order, truncated to limit.
func (h *Hybrid) HybridSearch(ctx context.Context, query string, vector []float32, limit int, category string) []Result {
	semantic := h.SemanticSearch(ctx, vector, limit, category)
	keyword := h.KeywordSearch(query, limit)

	seen := make(map[string]bool, len(semantic))
	merged := make([]Result, 0, len(semantic)+len(keyword))
	for _, r := range semantic {
		seen[r.ChunkID] = true
		merged = append(merged, r)
	}
	for _, r := range keyword {
		if !seen[r.ChunkID] {
			merged = append(merged, r)
		}
	}

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
