package repositories

import (
	"context"
	"fmt"

	"rag-assistant/internal/db"
)

// Number of points sent per upsert request. Each batch is a separate
// blocking call; a failed batch does not roll back batches already written.
const upsertBatchSize = 50

// Page size used when scrolling through a collection.
const scrollPageSize = 1000

// QdrantVectorRepository implements VectorRepository using Qdrant.
type QdrantVectorRepository struct {
	client *db.QdrantClient
}

// NewQdrantVectorRepository creates a new Qdrant-backed vector repository.
func NewQdrantVectorRepository(client *db.QdrantClient) VectorRepository {
	return &QdrantVectorRepository{
		client: client,
	}
}

// EnsureCollection creates the collection only if it is absent. Idempotent.
func (r *QdrantVectorRepository) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	exists, err := r.client.CollectionExists(ctx, name)
	if err != nil {
		return NewVectorRepositoryError("ensure_collection", err, "")
	}
	if exists {
		return nil
	}
	if err := r.client.CreateCollection(ctx, name, vectorSize); err != nil {
		return NewVectorRepositoryError("ensure_collection", err, "failed to create collection: "+name)
	}
	return nil
}

// CollectionExists checks if a collection exists.
func (r *QdrantVectorRepository) CollectionExists(ctx context.Context, name string) (bool, error) {
	exists, err := r.client.CollectionExists(ctx, name)
	if err != nil {
		return false, NewVectorRepositoryError("collection_exists", err, "")
	}
	return exists, nil
}

// CollectionStats returns point counts for a collection.
func (r *QdrantVectorRepository) CollectionStats(ctx context.Context, name string) (*CollectionStats, error) {
	exists, err := r.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, CollectionNotFoundError(name)
	}

	count, err := r.client.CountPoints(ctx, name, nil)
	if err != nil {
		return nil, NewVectorRepositoryError("collection_stats", err, "failed to count collection: "+name)
	}

	return &CollectionStats{
		Name:        name,
		PointsCount: count,
	}, nil
}

// UpsertPoints stores points in batches. At-least-once: a failure partway
// leaves earlier batches committed.
func (r *QdrantVectorRepository) UpsertPoints(ctx context.Context, collection string, points []*IndexedPoint) error {
	if len(points) == 0 {
		return nil
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}

		batch := make([]db.Point, 0, end-start)
		for _, p := range points[start:end] {
			batch = append(batch, db.Point{
				ID:      p.ID,
				Vector:  p.Vector,
				Payload: p.Payload,
			})
		}

		if err := r.client.UpsertPoints(ctx, collection, batch); err != nil {
			return NewVectorRepositoryError("upsert_points", err,
				fmt.Sprintf("failed to upsert batch starting at %d (%d points)", start, len(batch)))
		}
	}

	return nil
}

// Search returns ranked hits by cosine similarity. The score threshold drops
// low-confidence hits before the limit is applied.
func (r *QdrantVectorRepository) Search(ctx context.Context, collection string, vector []float32, opts *SearchOptions) ([]*ScoredPoint, error) {
	if opts == nil {
		opts = &SearchOptions{Limit: 10}
	}

	hits, err := r.client.Search(ctx, collection, vector, db.SearchParams{
		Limit:          opts.Limit,
		ScoreThreshold: opts.ScoreThreshold,
		Filter:         opts.Filter,
	})
	if err != nil {
		return nil, NewVectorRepositoryError("search", err, "query failed")
	}

	results := make([]*ScoredPoint, 0, len(hits))
	for _, hit := range hits {
		results = append(results, &ScoredPoint{
			ID:      hit.ID,
			Score:   hit.Score,
			Payload: hit.Payload,
		})
	}
	return results, nil
}

// Scroll lists matching points, following next_page_offset until the
// collection is exhausted or limit points have been collected.
func (r *QdrantVectorRepository) Scroll(ctx context.Context, collection string, filter map[string]interface{}, limit int) ([]*StoredPoint, error) {
	var results []*StoredPoint
	var offset interface{}

	for {
		pageLimit := scrollPageSize
		if limit > 0 && limit-len(results) < pageLimit {
			pageLimit = limit - len(results)
		}

		records, next, err := r.client.ScrollPage(ctx, collection, filter, pageLimit, offset)
		if err != nil {
			return nil, NewVectorRepositoryError("scroll", err, "scroll failed")
		}

		for _, rec := range records {
			results = append(results, &StoredPoint{
				ID:      rec.ID,
				Payload: rec.Payload,
			})
		}

		if next == nil || len(records) == 0 {
			break
		}
		if limit > 0 && len(results) >= limit {
			break
		}
		offset = next
	}

	return results, nil
}

// CountPoints counts points matching the filter.
func (r *QdrantVectorRepository) CountPoints(ctx context.Context, collection string, filter map[string]interface{}) (int, error) {
	count, err := r.client.CountPoints(ctx, collection, filter)
	if err != nil {
		return 0, NewVectorRepositoryError("count_points", err, "")
	}
	return count, nil
}

// DeletePoints removes points by ID.
func (r *QdrantVectorRepository) DeletePoints(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.client.DeletePoints(ctx, collection, ids); err != nil {
		return NewVectorRepositoryError("delete_points", err, fmt.Sprintf("failed to delete %d points", len(ids)))
	}
	return nil
}

// Ping checks if Qdrant is alive.
func (r *QdrantVectorRepository) Ping(ctx context.Context) error {
	if err := r.client.Healthz(ctx); err != nil {
		return NewVectorRepositoryError("ping", err, "Qdrant health check failed")
	}
	return nil
}
