// Package vectorstore stores embedded course-content chunks in Qdrant and
// serves similarity search over them. Invalidation is coarse: all chunks of
// a course are deleted together before the course is re-indexed.
package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore wraps the Qdrant client with connection management and health
// checks.
type QdrantStore struct {
	client *qdrant.Client
	host   string
	port   int
}

// NewQdrantStore creates a Qdrant client and validates connectivity with a
// retried health check, failing fast if the server is unreachable.
func NewQdrantStore(host string, port int) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	store := &QdrantStore{client: client, host: host, port: port}

	if err := store.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return store, nil
}

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

// EnsureCollection creates the course content collection with cosine-distance
// 1536-dim vectors and payload indexes if it does not exist. Idempotent.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     VectorDimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	// Payload indexes for the filterable fields. Without these, filtered
	// deletes and searches degrade badly as the collection grows.
	fields := []string{"course_id", "source_type", "source_id"}
	for _, field := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: CollectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("create index for field %s: %w", field, err)
		}
	}

	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// upsertWithRetry performs an upsert with exponential backoff.
func (s *QdrantStore) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}, backoff.WithContext(b, ctx))
}

// UpsertChunks stores chunks with embeddings, batched in groups of 100.
func (s *QdrantStore) UpsertChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for i, chunk := range chunks {
		if len(chunk.Embedding) != VectorDimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(chunk.Embedding), VectorDimension)
		}
	}

	batchSize := 100
	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))
		batch := chunks[i:end]

		points := make([]*qdrant.PointStruct, len(batch))
		for j, chunk := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(chunk.ID),
				Vectors: qdrant.NewVectors(chunk.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					"course_id":   strconv.FormatInt(chunk.CourseID, 10),
					"source_id":   strconv.FormatInt(chunk.SourceID, 10),
					"source_type": string(chunk.SourceType),
					"chunk_index": chunk.ChunkIndex,
					"content":     chunk.Content,
				}),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DeleteByCourses bulk-deletes every chunk belonging to the given courses.
// Called before re-indexing so stale chunks never coexist with fresh text.
func (s *QdrantStore) DeleteByCourses(ctx context.Context, courseIDs []int64) error {
	if len(courseIDs) == 0 {
		return nil
	}

	keywords := make([]string, len(courseIDs))
	for i, id := range courseIDs {
		keywords[i] = strconv.FormatInt(id, 10)
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeywords("course_id", keywords...),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("delete chunks for %d courses: %w", len(courseIDs), err)
	}
	return nil
}

// Search performs vector similarity search over chunks, optionally filtered
// to a single course. Results are ordered by score descending.
func (s *QdrantStore) Search(ctx context.Context, embedding []float32, limit int, courseID int64) ([]*ScoredChunk, error) {
	if len(embedding) != VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(embedding), VectorDimension)
	}

	var filter *qdrant.Filter
	if courseID != 0 {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("course_id", strconv.FormatInt(courseID, 10)),
			},
		}
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(embedding...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	scored := make([]*ScoredChunk, 0, len(results))
	for _, result := range results {
		payload := result.Payload

		courseID, _ := strconv.ParseInt(payload["course_id"].GetStringValue(), 10, 64)
		sourceID, _ := strconv.ParseInt(payload["source_id"].GetStringValue(), 10, 64)

		scored = append(scored, &ScoredChunk{
			Chunk: &Chunk{
				ID:         result.Id.GetUuid(),
				CourseID:   courseID,
				SourceID:   sourceID,
				SourceType: SourceType(payload["source_type"].GetStringValue()),
				ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
				Content:    payload["content"].GetStringValue(),
			},
			Score: float64(result.Score),
		})
	}

	return scored, nil
}

// CountChunks returns the total number of chunk points in the collection.
func (s *QdrantStore) CountChunks(ctx context.Context) (uint64, error) {
	collection, err := s.client.GetCollectionInfo(ctx, CollectionName)
	if err != nil {
		return 0, fmt.Errorf("get collection info: %w", err)
	}
	return collection.GetPointsCount(), nil
}

// CountCourseChunks returns the number of chunks stored for one course.
func (s *QdrantStore) CountCourseChunks(ctx context.Context, courseID int64) (uint64, error) {
	result, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: CollectionName,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("course_id", strconv.FormatInt(courseID, 10)),
			},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("count chunks for course %d: %w", courseID, err)
	}
	return result, nil
}
