// Package index combines dense vector similarity search over the durable
// chunk store with an in-memory BM25 keyword ranking rebuilt from it.
package index

// Result is one search hit. It is ephemeral and never persisted.
// SemanticScore is a cosine similarity (higher is better) and is valid only
// when Semantic is set; KeywordScore is a BM25 relevance (higher is better)
// and is valid only when Keyword is set.
type Result struct {
	ChunkID       string
	Text          string
	SourceID      string
	Category      string
	Tags          []string
	SemanticScore float64
	KeywordScore  float64
	Semantic      bool
	Keyword       bool
}
