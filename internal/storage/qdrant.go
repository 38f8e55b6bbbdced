package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore wraps the Qdrant client with connection management and health
// checks. Writes are durable before UpsertChunks returns; a fresh All after
// restart reflects every previously successful upsert.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantStore creates a Qdrant-backed store with health validation.
// It performs a health check with retry on startup and fails fast if Qdrant
// is unreachable.
func NewQdrantStore(host string, port int, collection string, dimension int) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	store := &QdrantStore{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}

	ctx := context.Background()
	if err := store.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}

	return store, nil
}

// Dimension returns the vector length this store was configured with.
func (s *QdrantStore) Dimension() int { return s.dimension }

// healthCheckWithRetry performs a health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(b, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the chunk collection if it does not exist, with
// cosine-distance vectors of the configured dimension and payload indexes for
// the filterable fields. Idempotent.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Without payload indexes, filtered search is drastically slower.
	for _, field := range []string{"source_id", "category"} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// ClearCollection deletes all chunks and recreates the collection.
func (s *QdrantStore) ClearCollection(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.EnsureCollection(ctx)
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// upsertWithRetry performs an upsert with exponential backoff retry.
func (s *QdrantStore) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return err
	}, backoff.WithContext(b, ctx))
}

// UpsertChunks stores chunks with their embeddings. Point IDs are the chunks'
// deterministic UUIDs, so re-indexing an unchanged source replaces its prior
// chunks in place. Batched in groups of 100.
func (s *QdrantStore) UpsertChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for i, chunk := range chunks {
		if len(chunk.Embedding) != s.dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(chunk.Embedding), s.dimension)
		}
	}

	batchSize := 100
	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))
		batch := chunks[i:end]

		points := make([]*qdrant.PointStruct, len(batch))
		for j, chunk := range batch {
			tags := make([]any, len(chunk.Tags))
			for k, tag := range chunk.Tags {
				tags[k] = tag
			}
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(chunk.ID),
				Vectors: qdrant.NewVectors(chunk.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					"text":         chunk.Text,
					"source_id":    chunk.SourceID,
					"sequence":     chunk.Sequence,
					"content_hash": chunk.ContentHash,
					"category":     chunk.Category,
					"tags":         tags,
					"created_at":   chunk.CreatedAt.Format(time.RFC3339),
				}),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// Search performs vector similarity search, optionally filtered to one
// category. Results are ordered best-first by cosine similarity.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, limit int, category string) ([]ScoredChunk, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}

	var filter *qdrant.Filter
	if category != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("category", category),
			},
		}
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	scored := make([]ScoredChunk, 0, len(results))
	for _, result := range results {
		scored = append(scored, ScoredChunk{
			Chunk: chunkFromPayload(result.Id.GetUuid(), result.Payload),
			Score: float64(result.Score),
		})
	}
	return scored, nil
}

// All returns every chunk in the store, ordered by source and sequence.
// Embeddings are not loaded; callers rebuilding the keyword structure need
// only texts and metadata.
func (s *QdrantStore) All(ctx context.Context) ([]Chunk, error) {
	var chunks []Chunk
	var offset *qdrant.PointId
	batchSize := uint32(256)

	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll chunks: %w", err)
		}

		for _, result := range results {
			chunks = append(chunks, chunkFromPayload(result.Id.GetUuid(), result.Payload))
		}

		if uint32(len(results)) < batchSize {
			break
		}
		offset = results[len(results)-1].Id
	}

	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].SourceID != chunks[j].SourceID {
			return chunks[i].SourceID < chunks[j].SourceID
		}
		return chunks[i].Sequence < chunks[j].Sequence
	})
	return chunks, nil
}

// SourceChunks returns all chunks for one source in sequence order.
// Returns ErrSourceNotFound when the source has no indexed chunks.
func (s *QdrantStore) SourceChunks(ctx context.Context, sourceID string) ([]Chunk, error) {
	var chunks []Chunk
	var offset *qdrant.PointId
	batchSize := uint32(256)

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("source_id", sourceID),
		},
	}

	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         filter,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll source chunks: %w", err)
		}

		for _, result := range results {
			chunks = append(chunks, chunkFromPayload(result.Id.GetUuid(), result.Payload))
		}

		if uint32(len(results)) < batchSize {
			break
		}
		offset = results[len(results)-1].Id
	}

	if len(chunks) == 0 {
		return nil, ErrSourceNotFound
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Sequence < chunks[j].Sequence
	})
	return chunks, nil
}

// ListSources returns the distinct source IDs present in the index, sorted.
func (s *QdrantStore) ListSources(ctx context.Context) ([]string, error) {
	var offset *qdrant.PointId
	batchSize := uint32(256)
	seen := make(map[string]bool)

	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude("source_id"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll sources: %w", err)
		}

		for _, result := range results {
			if id := result.Payload["source_id"].GetStringValue(); id != "" {
				seen[id] = true
			}
		}

		if uint32(len(results)) < batchSize {
			break
		}
		offset = results[len(results)-1].Id
	}

	sources := make([]string, 0, len(seen))
	for id := range seen {
		sources = append(sources, id)
	}
	sort.Strings(sources)
	return sources, nil
}

// Count returns the number of chunks in the collection.
func (s *QdrantStore) Count(ctx context.Context) (uint64, error) {
	collection, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection: %w", err)
	}
	return collection.GetPointsCount(), nil
}

// chunkFromPayload reconstructs a chunk from a Qdrant point payload.
func chunkFromPayload(id string, payload map[string]*qdrant.Value) Chunk {
	createdAt, err := time.Parse(time.RFC3339, payload["created_at"].GetStringValue())
	if err != nil {
		createdAt = time.Time{}
	}

	var tags []string
	if tagsVal, ok := payload["tags"]; ok && tagsVal.GetListValue() != nil {
		for _, val := range tagsVal.GetListValue().Values {
			if tag := val.GetStringValue(); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	return Chunk{
		ID:          id,
		Text:        payload["text"].GetStringValue(),
		SourceID:    payload["source_id"].GetStringValue(),
		Sequence:    int(payload["sequence"].GetIntegerValue()),
		ContentHash: payload["content_hash"].GetStringValue(),
		Category:    payload["category"].GetStringValue(),
		Tags:        tags,
		CreatedAt:   createdAt,
	}
}
