// Package storage persists indexed chunks and their embedding vectors in
// Qdrant.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultCategory is assigned to chunks indexed without an explicit category.
const DefaultCategory = "general"

// chunkNamespace is the UUIDv5 namespace for chunk IDs. Changing it would
// orphan every previously indexed chunk.
var chunkNamespace = uuid.MustParse("a2b7c3de-4f15-5a26-9b37-c48d59e60f71")

// Chunk is the atomic unit of indexing and retrieval: one bounded passage of
// source text with its embedding vector and metadata.
type Chunk struct {
	ID          string    // Deterministic UUID derived from SourceID and Sequence
	Text        string    // Raw passage text
	SourceID    string    // Originating document path or identifier
	Sequence    int       // Order within the source, starting at 0
	ContentHash string    // SHA-256 of Text, for change detection
	Category    string    // Single lowercase label, DefaultCategory when unset
	Tags        []string  // Lowercase keywords, may be empty
	CreatedAt   time.Time // When the chunk was indexed
	Embedding   []float32 // Vector; length must match the store's dimension
}

// ScoredChunk pairs a chunk with its similarity score from vector search.
// Qdrant cosine scores are higher-is-better.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// ChunkID derives the stable identifier for a chunk. Re-indexing the same
// source with the same chunking parameters reproduces the same IDs, so adds
// behave as upserts.
func ChunkID(sourceID string, sequence int) string {
	name := fmt.Sprintf("%s:%d", sourceID, sequence)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// HashText returns the hex SHA-256 of a chunk's text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// NormalizeCategory lowercases a category label, substituting DefaultCategory
// for blank input.
func NormalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return DefaultCategory
	}
	return category
}

// NormalizeTags lowercases and deduplicates tags, preserving first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
