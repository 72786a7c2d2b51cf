package models

// ChunkStrategy is a named chunk-size/overlap configuration. Each strategy
// produces an independent, parallel index of the same document.
type ChunkStrategy struct {
	ID           string `json:"id"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

// RollingWindowStrategyID tags chunks produced by the rolling-window pass.
const RollingWindowStrategyID = "rolling_window"

// DefaultChunkStrategies returns the strategies applied when a caller does
// not supply its own.
func DefaultChunkStrategies() []ChunkStrategy {
	return []ChunkStrategy{
		{ID: "small", ChunkSize: 500, ChunkOverlap: 50},
		{ID: "medium", ChunkSize: 1000, ChunkOverlap: 100},
		{ID: "large", ChunkSize: 2000, ChunkOverlap: 200},
	}
}

// Chunk is a contiguous slice of a document's text plus metadata, sized per
// a chunking strategy. Chunks are immutable once created; the indexing
// pipeline owns them until they are handed to the vector repository, which
// assigns each one a point ID and an embedding at persistence time.
type Chunk struct {
	Text       string                 `json:"text"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	StrategyID string                 `json:"strategy_id"`
	ChunkIndex int                    `json:"chunk_index"`
}

// SourceType distinguishes where a retrieved result came from.
type SourceType string

const (
	SourceDocument     SourceType = "document"
	SourceConversation SourceType = "conversation"
)

// RetrievedResult is a single ranked retrieval hit. For fused results Score
// is in [0,1]; for raw vector search it is the store's similarity value.
// Transient: produced per query, never persisted.
type RetrievedResult struct {
	ID          string                 `json:"id"`
	Text        string                 `json:"text"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Score       float64                `json:"score"`
	VectorScore float64                `json:"vector_score,omitempty"`
	FuzzyScore  float64                `json:"fuzzy_score,omitempty"`
	Strategy    string                 `json:"strategy"`
	SourceType  SourceType             `json:"source_type"`
}
