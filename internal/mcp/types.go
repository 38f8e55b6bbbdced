// Package mcp exposes the knowledge base over the Model Context Protocol,
// so MCP clients can ask questions and search passages directly.
package mcp

// AskInput defines the input parameters for the ask_knowledge_base tool.
type AskInput struct {
	// Query is the natural language question.
	Query string `json:"query" jsonschema:"required,description=The question to answer from the knowledge base"`
	// Category optionally restricts retrieval to one category.
	Category string `json:"category,omitempty" jsonschema:"description=Restrict retrieval to a single category label"`
}

// AskOutput contains the grounded answer.
type AskOutput struct {
	// Answer is the model's reply, grounded in retrieved passages.
	Answer string `json:"answer"`
}

// SearchInput defines the input parameters for the search_knowledge_base tool.
type SearchInput struct {
	// Query is the search text.
	Query string `json:"query" jsonschema:"required,description=The search query"`
	// Category optionally restricts results to one category.
	Category string `json:"category,omitempty" jsonschema:"description=Restrict results to a single category label"`
	// MaxResults caps the number of passages returned.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=50,default=10,description=Maximum number of passages to return"`
}

// SearchOutput contains the raw retrieval results.
type SearchOutput struct {
	Results []SearchHit `json:"results"`
	// Message provides context when there are no results.
	Message string `json:"message,omitempty"`
}

// SearchHit is one retrieved passage with its provenance and scores.
type SearchHit struct {
	ChunkID       string   `json:"chunk_id"`
	Source        string   `json:"source"`
	Category      string   `json:"category"`
	Tags          []string `json:"tags"`
	Text          string   `json:"text"`
	SemanticScore float64  `json:"semantic_score,omitempty"`
	KeywordScore  float64  `json:"keyword_score,omitempty"`
}

// StatusInput defines the input for the index_status tool. No parameters.
type StatusInput struct{}

// StatusOutput describes the current state of the index.
type StatusOutput struct {
	TotalChunks  int      `json:"total_chunks"`
	TotalSources int      `json:"total_sources"`
	Sources      []string `json:"sources"`
}
