package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/corpus-agent/internal/storage"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"firewall", "blocks", "traffic"},
		tokenize("The firewall blocks traffic."))
	assert.Equal(t, []string{"tls", "1", "3", "handshake"},
		tokenize("TLS-1.3 Handshake"))
	assert.Empty(t, tokenize("the and of"))
	assert.Empty(t, tokenize("  ...  "))
}

func kwChunk(source string, seq int, text string) storage.Chunk {
	return storage.Chunk{
		ID:       storage.ChunkID(source, seq),
		Text:     text,
		SourceID: source,
		Sequence: seq,
		Category: storage.DefaultCategory,
	}
}

func TestKeywordSearch_RanksMatchingDocsFirst(t *testing.T) {
	ix := buildKeywordIndex([]storage.Chunk{
		kwChunk("a", 0, "cooking pasta requires boiling water and salt"),
		kwChunk("a", 1, "firewall rules control inbound network traffic"),
		kwChunk("a", 2, "the firewall inspects every packet of network traffic twice"),
	})

	results := ix.search("firewall network traffic", 10)
	require.Len(t, results, 2, "non-matching documents must be excluded")
	for _, r := range results {
		assert.True(t, r.Keyword)
		assert.Greater(t, r.KeywordScore, 0.0)
		assert.Contains(t, r.Text, "firewall")
	}
}

func TestKeywordSearch_NoMatches(t *testing.T) {
	ix := buildKeywordIndex([]storage.Chunk{
		kwChunk("a", 0, "cooking pasta requires boiling water"),
	})

	assert.Empty(t, ix.search("quantum chromodynamics", 5))
	assert.Empty(t, ix.search("the and of", 5), "stopword-only query matches nothing")
}

func TestKeywordSearch_LimitAndOrder(t *testing.T) {
	ix := buildKeywordIndex([]storage.Chunk{
		kwChunk("a", 0, "kubernetes"),
		kwChunk("a", 1, "kubernetes kubernetes deployment"),
		kwChunk("a", 2, "kubernetes cluster"),
		kwChunk("a", 3, "gardening tips"),
	})

	results := ix.search("kubernetes", 2)
	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].KeywordScore, results[1].KeywordScore,
		"results must be ordered by descending score")
}

func TestKeywordSearch_EmptyIndex(t *testing.T) {
	ix := buildKeywordIndex(nil)
	assert.Empty(t, ix.search("anything", 5))

	var nilIx *keywordIndex
	assert.Empty(t, nilIx.search("anything", 5))
}

func TestKeywordSearch_CarriesChunkMetadata(t *testing.T) {
	chunk := storage.Chunk{
		ID:       storage.ChunkID("doc.pdf", 4),
		Text:     "zero trust architecture guidance",
		SourceID: "doc.pdf",
		Sequence: 4,
		Category: "security",
		Tags:     []string{"zta"},
	}
	ix := buildKeywordIndex([]storage.Chunk{chunk})

	results := ix.search("zero trust", 1)
	require.Len(t, results, 1)
	assert.Equal(t, chunk.ID, results[0].ChunkID)
	assert.Equal(t, "doc.pdf", results[0].SourceID)
	assert.Equal(t, "security", results[0].Category)
	assert.Equal(t, []string{"zta"}, results[0].Tags)
	assert.False(t, results[0].Semantic)
}
