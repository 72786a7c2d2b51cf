package repositories

import (
	"context"
)

// VectorRepository defines the interface for vector store operations.
// This abstracts Qdrant and allows for easy testing and implementation
// swapping; any store offering payload-tagged nearest-neighbor search,
// filtered scroll and idempotent collection creation is substitutable.
type VectorRepository interface {
	// Collection lifecycle
	EnsureCollection(ctx context.Context, name string, vectorSize int) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	CollectionStats(ctx context.Context, name string) (*CollectionStats, error)

	// Point operations
	UpsertPoints(ctx context.Context, collection string, points []*IndexedPoint) error
	Search(ctx context.Context, collection string, vector []float32, opts *SearchOptions) ([]*ScoredPoint, error)
	// Scroll lists points matching the filter, paginating through the
	// collection until exhausted or limit is reached (limit <= 0 means all).
	Scroll(ctx context.Context, collection string, filter map[string]interface{}, limit int) ([]*StoredPoint, error)
	CountPoints(ctx context.Context, collection string, filter map[string]interface{}) (int, error)
	DeletePoints(ctx context.Context, collection string, ids []string) error

	// Health
	Ping(ctx context.Context) error
}

// IndexedPoint is a point to be persisted: an ID, a dense vector and a
// payload carrying the chunk text plus metadata. The vector dimensionality
// must match the collection's configured size or the store rejects it.
type IndexedPoint struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload"`
}

// ScoredPoint is a similarity search hit with its cosine score.
type ScoredPoint struct {
	ID      string                 `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

// StoredPoint is a point returned by a scroll listing.
type StoredPoint struct {
	ID      string                 `json:"id"`
	Payload map[string]interface{} `json:"payload"`
}

// SearchOptions carries the optional knobs for a similarity search.
type SearchOptions struct {
	Limit          int
	ScoreThreshold float64
	Filter         map[string]interface{}
}

// CollectionStats reports point counts for a collection.
type CollectionStats struct {
	Name        string `json:"name"`
	PointsCount int    `json:"points_count"`
}

// MatchFilter builds a payload filter matching a single field value.
func MatchFilter(key string, value interface{}) map[string]interface{} {
	return map[string]interface{}{
		"must": []interface{}{
			matchCondition(key, value),
		},
	}
}

// SessionSequenceFilter builds a filter restricting points to a session and,
// when start/end are positive, to an inclusive sequence_num range.
func SessionSequenceFilter(sessionID string, start, end int) map[string]interface{} {
	must := []interface{}{
		matchCondition("session_id", sessionID),
	}
	if start > 0 || end > 0 {
		rng := map[string]interface{}{}
		if start > 0 {
			rng["gte"] = start
		}
		if end > 0 {
			rng["lte"] = end
		}
		must = append(must, map[string]interface{}{
			"key":   "sequence_num",
			"range": rng,
		})
	}
	return map[string]interface{}{"must": must}
}

func matchCondition(key string, value interface{}) map[string]interface{} {
	return map[string]interface{}{
		"key":   key,
		"match": map[string]interface{}{"value": value},
	}
}

// VectorRepositoryError represents errors from the vector repository.
type VectorRepositoryError struct {
	Operation string
	Err       error
	Message   string
}

func (e *VectorRepositoryError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Operation + ": " + e.Err.Error()
	}
	return e.Operation + ": unknown error"
}

func (e *VectorRepositoryError) Unwrap() error {
	return e.Err
}

// NewVectorRepositoryError creates a new vector repository error.
func NewVectorRepositoryError(operation string, err error, message string) *VectorRepositoryError {
	return &VectorRepositoryError{
		Operation: operation,
		Err:       err,
		Message:   message,
	}
}

// CollectionNotFoundError reports a missing collection.
func CollectionNotFoundError(name string) error {
	return NewVectorRepositoryError(
		"get_collection",
		nil,
		"collection not found: "+name,
	)
}
