package services

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rag-assistant/internal/models"
	"rag-assistant/internal/repositories"
)

func setupTestMemoryService() (*MemoryService, *MockComputeClient, *MockVectorRepository, *MockSequenceStore) {
	mockCompute := new(MockComputeClient)
	mockVectorRepo := new(MockVectorRepository)
	mockSequences := new(MockSequenceStore)
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)
	return NewMemoryService(mockVectorRepo, mockCompute, mockSequences, logger), mockCompute, mockVectorRepo, mockSequences
}

func messagePoint(id, sessionID, content string, seq int) *repositories.StoredPoint {
	return &repositories.StoredPoint{
		ID: id,
		Payload: map[string]interface{}{
			"session_id":   sessionID,
			"content":      content,
			"role":         "user",
			"sequence_num": float64(seq),
			"timestamp":    1.0,
		},
	}
}

// ============================================================================
// Range merging
// ============================================================================

func TestMergeSequenceRangesDisjoint(t *testing.T) {
	// Hits {3, 10} with window 2: (1,5) and (8,12) stay disjoint, 8 > 5+1.
	merged := MergeSequenceRanges([]SequenceRange{{1, 5}, {8, 12}})
	assert.Equal(t, []SequenceRange{{1, 5}, {8, 12}}, merged)
}

func TestMergeSequenceRangesOverlapping(t *testing.T) {
	// Hits {3, 5} with window 2: (1,5) and (3,7) overlap and merge to (1,7).
	merged := MergeSequenceRanges([]SequenceRange{{1, 5}, {3, 7}})
	assert.Equal(t, []SequenceRange{{1, 7}}, merged)
}

func TestMergeSequenceRangesAdjacent(t *testing.T) {
	// Start equal to previous end + 1 counts as adjacent.
	merged := MergeSequenceRanges([]SequenceRange{{1, 4}, {5, 8}})
	assert.Equal(t, []SequenceRange{{1, 8}}, merged)
}

func TestMergeSequenceRangesUnsortedInput(t *testing.T) {
	merged := MergeSequenceRanges([]SequenceRange{{8, 12}, {1, 5}})
	assert.Equal(t, []SequenceRange{{1, 5}, {8, 12}}, merged)
}

func TestMergeSequenceRangesEmpty(t *testing.T) {
	assert.Nil(t, MergeSequenceRanges(nil))
}

// ============================================================================
// StoreMessage
// ============================================================================

func TestStoreMessageAssignsStoreSideSequence(t *testing.T) {
	service, mockCompute, mockRepo, mockSequences := setupTestMemoryService()

	mockRepo.On("EnsureCollection", mock.Anything, "memory", EmbeddingDimension).Return(nil)
	mockSequences.On("NextSequence", mock.Anything, "sess-1").Return(7, nil)
	mockCompute.On("EmbedQuery", mock.Anything, "hello").Return(testVector(), nil)
	mockRepo.On("UpsertPoints", mock.Anything, "memory", mock.MatchedBy(func(points []*repositories.IndexedPoint) bool {
		return len(points) == 1 &&
			points[0].Payload["session_id"] == "sess-1" &&
			points[0].Payload["sequence_num"] == 7 &&
			points[0].Payload["role"] == "user"
	})).Return(nil)

	msg, err := service.StoreMessage(context.Background(), "memory", "sess-1", "hello", models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, 7, msg.SequenceNum)
	assert.NotEmpty(t, msg.ID)
	mockRepo.AssertExpectations(t)
	mockSequences.AssertExpectations(t)
}

func TestStoreMessageRejectsUnknownRole(t *testing.T) {
	service, _, _, _ := setupTestMemoryService()

	_, err := service.StoreMessage(context.Background(), "memory", "sess-1", "hello", models.Role("wizard"))
	var validationErr *models.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

// ============================================================================
// RetrieveBySequence
// ============================================================================

func TestRetrieveBySequenceSortsBySequence(t *testing.T) {
	service, _, mockRepo, _ := setupTestMemoryService()

	mockRepo.On("Scroll", mock.Anything, "memory", mock.Anything, 0).Return([]*repositories.StoredPoint{
		messagePoint("b", "sess-1", "second", 2),
		messagePoint("a", "sess-1", "first", 1),
		messagePoint("c", "sess-1", "third", 3),
	}, nil)

	messages, err := service.RetrieveBySequence(context.Background(), "memory", "sess-1", 0, 0)
	require.NoError(t, err)

	require.Len(t, messages, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{messages[0].SequenceNum, messages[1].SequenceNum, messages[2].SequenceNum})
}

func TestRetrieveBySequenceKeepsStoreOrderWhenSequenceMissing(t *testing.T) {
	service, _, mockRepo, _ := setupTestMemoryService()

	noSeq := &repositories.StoredPoint{
		ID:      "x",
		Payload: map[string]interface{}{"session_id": "sess-1", "content": "untagged", "role": "user"},
	}
	mockRepo.On("Scroll", mock.Anything, "memory", mock.Anything, 0).Return([]*repositories.StoredPoint{
		messagePoint("b", "sess-1", "second", 2),
		noSeq,
		messagePoint("a", "sess-1", "first", 1),
	}, nil)

	messages, err := service.RetrieveBySequence(context.Background(), "memory", "sess-1", 0, 0)
	require.NoError(t, err)

	// Degraded: store-return order preserved.
	require.Len(t, messages, 3)
	assert.Equal(t, "second", messages[0].Content)
	assert.Equal(t, "untagged", messages[1].Content)
	assert.Equal(t, "first", messages[2].Content)
}

func TestRetrieveBySequenceBuildsRangeFilter(t *testing.T) {
	service, _, mockRepo, _ := setupTestMemoryService()

	mockRepo.On("Scroll", mock.Anything, "memory", mock.MatchedBy(func(filter map[string]interface{}) bool {
		must, ok := filter["must"].([]interface{})
		return ok && len(must) == 2
	}), 0).Return([]*repositories.StoredPoint{}, nil)

	_, err := service.RetrieveBySequence(context.Background(), "memory", "sess-1", 2, 6)
	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

// ============================================================================
// RetrieveAllMessages
// ============================================================================

func TestRetrieveAllMessagesDegradesToEmptyOnError(t *testing.T) {
	service, _, mockRepo, _ := setupTestMemoryService()

	mockRepo.On("Scroll", mock.Anything, "memory", mock.Anything, 0).Return(nil, errors.New("store down"))

	messages := service.RetrieveAllMessages(context.Background(), "memory", "sess-1")
	assert.Empty(t, messages)
}

// ============================================================================
// RetrieveContextRelevant
// ============================================================================

func TestRetrieveContextRelevantExpandsAndMergesWindows(t *testing.T) {
	service, mockCompute, mockRepo, _ := setupTestMemoryService()

	mockCompute.On("EmbedQuery", mock.Anything, "query").Return(testVector(), nil)

	// Semantic hits at sequence 3 and 10 with window 2: fetch (1,5), (8,12).
	mockRepo.On("Search", mock.Anything, "memory", mock.Anything, mock.MatchedBy(func(opts *repositories.SearchOptions) bool {
		return opts.ScoreThreshold == 0.6 && opts.Filter != nil
	})).Return([]*repositories.ScoredPoint{
		{ID: "h1", Score: 0.9, Payload: map[string]interface{}{"sequence_num": float64(3)}},
		{ID: "h2", Score: 0.8, Payload: map[string]interface{}{"sequence_num": float64(10)}},
	}, nil)

	firstRange := mock.MatchedBy(func(filter map[string]interface{}) bool {
		return rangeBounds(filter) == [2]int{1, 5}
	})
	secondRange := mock.MatchedBy(func(filter map[string]interface{}) bool {
		return rangeBounds(filter) == [2]int{8, 12}
	})
	mockRepo.On("Scroll", mock.Anything, "memory", firstRange, 0).Return([]*repositories.StoredPoint{
		messagePoint("a", "sess-1", "around three", 3),
	}, nil)
	mockRepo.On("Scroll", mock.Anything, "memory", secondRange, 0).Return([]*repositories.StoredPoint{
		messagePoint("b", "sess-1", "around ten", 10),
	}, nil)

	messages, err := service.RetrieveContextRelevant(context.Background(), "memory", "sess-1", "query", 2, 3)
	require.NoError(t, err)

	require.Len(t, messages, 2)
	assert.Equal(t, "around three", messages[0].Content)
	assert.Equal(t, "around ten", messages[1].Content)
	mockRepo.AssertExpectations(t)
}

func TestRetrieveContextRelevantDeduplicatesByContent(t *testing.T) {
	service, mockCompute, mockRepo, _ := setupTestMemoryService()

	mockCompute.On("EmbedQuery", mock.Anything, "query").Return(testVector(), nil)
	mockRepo.On("Search", mock.Anything, "memory", mock.Anything, mock.Anything).Return([]*repositories.ScoredPoint{
		{ID: "h1", Score: 0.9, Payload: map[string]interface{}{"sequence_num": float64(2)}},
	}, nil)
	mockRepo.On("Scroll", mock.Anything, "memory", mock.Anything, 0).Return([]*repositories.StoredPoint{
		messagePoint("a", "sess-1", "repeated", 1),
		messagePoint("b", "sess-1", "repeated", 2),
		messagePoint("c", "sess-1", "unique", 3),
	}, nil)

	messages, err := service.RetrieveContextRelevant(context.Background(), "memory", "sess-1", "query", 2, 3)
	require.NoError(t, err)

	require.Len(t, messages, 2)
	assert.Equal(t, "repeated", messages[0].Content)
	assert.Equal(t, "unique", messages[1].Content)
}

func TestRetrieveContextRelevantNoHits(t *testing.T) {
	service, mockCompute, mockRepo, _ := setupTestMemoryService()

	mockCompute.On("EmbedQuery", mock.Anything, "query").Return(testVector(), nil)
	mockRepo.On("Search", mock.Anything, "memory", mock.Anything, mock.Anything).Return([]*repositories.ScoredPoint{}, nil)

	messages, err := service.RetrieveContextRelevant(context.Background(), "memory", "sess-1", "query", 2, 3)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestRetrieveContextRelevantRestrictsToSession(t *testing.T) {
	service, mockCompute, mockRepo, _ := setupTestMemoryService()

	mockCompute.On("EmbedQuery", mock.Anything, "query").Return(testVector(), nil)
	mockRepo.On("Search", mock.Anything, "memory", mock.Anything, mock.MatchedBy(func(opts *repositories.SearchOptions) bool {
		must, ok := opts.Filter["must"].([]interface{})
		if !ok || len(must) != 1 {
			return false
		}
		cond := must[0].(map[string]interface{})
		match := cond["match"].(map[string]interface{})
		return cond["key"] == "session_id" && match["value"] == "session-a"
	})).Return([]*repositories.ScoredPoint{}, nil)

	_, err := service.RetrieveContextRelevant(context.Background(), "memory", "session-a", "query", 2, 3)
	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

// rangeBounds extracts the gte/lte bounds of a session+sequence filter.
func rangeBounds(filter map[string]interface{}) [2]int {
	must, ok := filter["must"].([]interface{})
	if !ok {
		return [2]int{}
	}
	for _, cond := range must {
		m, ok := cond.(map[string]interface{})
		if !ok {
			continue
		}
		if rng, ok := m["range"].(map[string]interface{}); ok {
			gte, _ := rng["gte"].(int)
			lte, _ := rng["lte"].(int)
			return [2]int{gte, lte}
		}
	}
	return [2]int{}
}
