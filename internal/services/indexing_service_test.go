package services

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rag-assistant/internal/models"
	"rag-assistant/internal/repositories"
)

// stubCompute embeds without a sidecar so batch sizes can vary per strategy.
type stubCompute struct {
	parseText string
	parseErr  error
	embedErr  error
}

func (s *stubCompute) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	return make([]float32, EmbeddingDimension), nil
}

func (s *stubCompute) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = make([]float32, EmbeddingDimension)
	}
	return vectors, nil
}

func (s *stubCompute) ParseDocument(ctx context.Context, fileData []byte, filename string) (string, error) {
	return s.parseText, s.parseErr
}

func (s *stubCompute) Dimension() int { return EmbeddingDimension }

func (s *stubCompute) HealthCheck(ctx context.Context) error { return nil }

func setupTestIndexingService(compute ComputeClientInterface) (*IndexingService, *MockVectorRepository, *MockJobRepository) {
	mockVectorRepo := new(MockVectorRepository)
	mockJobRepo := new(MockJobRepository)
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)
	chunker := NewChunkerService(logger)
	scraper := NewScraperService(logger)
	service := NewIndexingService(chunker, compute, mockVectorRepo, mockJobRepo, scraper, logger)
	return service, mockVectorRepo, mockJobRepo
}

// ============================================================================
// ProcessText
// ============================================================================

func TestProcessTextIndexesAllStrategiesPlusRollingWindow(t *testing.T) {
	service, mockRepo, _ := setupTestIndexingService(&stubCompute{})

	mockRepo.On("EnsureCollection", mock.Anything, "docs", EmbeddingDimension).Return(nil)
	mockRepo.On("UpsertPoints", mock.Anything, "docs", mock.Anything).Return(nil)

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 80)
	result, err := service.ProcessText(context.Background(), "docs", "fox.txt", text, nil, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, result.DocumentID)
	assert.Equal(t, "fox.txt", result.Source)
	require.Len(t, result.Strategies, 4)
	for _, id := range []string{"small", "medium", "large", models.RollingWindowStrategyID} {
		strategy, ok := result.Strategies[id]
		require.True(t, ok, "missing strategy %s", id)
		assert.Equal(t, "success", strategy.Status)
		assert.Greater(t, strategy.Chunks, 0)
	}
	assert.Greater(t, result.TotalChunks, 4)
}

func TestProcessTextPointPayloads(t *testing.T) {
	service, mockRepo, _ := setupTestIndexingService(&stubCompute{})

	var captured []*repositories.IndexedPoint
	mockRepo.On("EnsureCollection", mock.Anything, "docs", EmbeddingDimension).Return(nil)
	mockRepo.On("UpsertPoints", mock.Anything, "docs", mock.Anything).Run(func(args mock.Arguments) {
		captured = append(captured, args.Get(2).([]*repositories.IndexedPoint)...)
	}).Return(nil)

	result, err := service.ProcessText(context.Background(), "docs", "note.txt", "A short note.",
		map[string]interface{}{"owner": "alice"}, nil)
	require.NoError(t, err)

	require.NotEmpty(t, captured)
	for _, point := range captured {
		assert.NotEmpty(t, point.ID)
		assert.Len(t, point.Vector, EmbeddingDimension)
		assert.Equal(t, result.DocumentID, point.Payload["document_id"])
		assert.NotEmpty(t, point.Payload["text"])
		assert.NotEmpty(t, point.Payload["strategy"])
		metadata := point.Payload["metadata"].(map[string]interface{})
		assert.Equal(t, "alice", metadata["owner"])
		assert.Equal(t, "note.txt", metadata["source"])
	}
}

func TestProcessTextPartialStrategyFailure(t *testing.T) {
	service, mockRepo, _ := setupTestIndexingService(&stubCompute{})

	rollingWindowBatch := mock.MatchedBy(func(points []*repositories.IndexedPoint) bool {
		return len(points) > 0 && points[0].Payload["strategy"] == models.RollingWindowStrategyID
	})
	mockRepo.On("EnsureCollection", mock.Anything, "docs", EmbeddingDimension).Return(nil)
	mockRepo.On("UpsertPoints", mock.Anything, "docs", rollingWindowBatch).Return(errors.New("write timeout"))
	mockRepo.On("UpsertPoints", mock.Anything, "docs", mock.Anything).Return(nil)

	text := strings.Repeat("word ", 400)
	result, err := service.ProcessText(context.Background(), "docs", "doc.txt", text, nil, nil)
	require.NoError(t, err)

	// Committed strategies survive the failed one.
	assert.Equal(t, "success", result.Strategies["small"].Status)
	assert.Equal(t, "error", result.Strategies[models.RollingWindowStrategyID].Status)
	assert.Contains(t, result.Strategies[models.RollingWindowStrategyID].Message, "write timeout")
}

func TestProcessTextEmptyText(t *testing.T) {
	service, _, _ := setupTestIndexingService(&stubCompute{})

	_, err := service.ProcessText(context.Background(), "docs", "empty.txt", "   ", nil, nil)
	var validationErr *models.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestProcessTextEmbedFailure(t *testing.T) {
	service, mockRepo, _ := setupTestIndexingService(&stubCompute{embedErr: errors.New("sidecar down")})

	mockRepo.On("EnsureCollection", mock.Anything, "docs", EmbeddingDimension).Return(nil)

	result, err := service.ProcessText(context.Background(), "docs", "doc.txt", "Some document text.", nil, nil)
	require.NoError(t, err)

	// Every strategy reports the embedding failure; nothing is upserted.
	for id, strategy := range result.Strategies {
		assert.Equal(t, "error", strategy.Status, "strategy %s", id)
	}
	assert.Zero(t, result.TotalChunks)
	mockRepo.AssertNotCalled(t, "UpsertPoints", mock.Anything, mock.Anything, mock.Anything)
}

// ============================================================================
// File handling
// ============================================================================

func TestProcessFilePlainTextReadDirectly(t *testing.T) {
	service, mockRepo, _ := setupTestIndexingService(&stubCompute{parseErr: errors.New("parser should not be called")})

	mockRepo.On("EnsureCollection", mock.Anything, "docs", EmbeddingDimension).Return(nil)
	mockRepo.On("UpsertPoints", mock.Anything, "docs", mock.Anything).Return(nil)

	result, err := service.ProcessFile(context.Background(), "docs", "readme.md", []byte("Markdown body."), nil)
	require.NoError(t, err)
	assert.Equal(t, "readme.md", result.Source)
}

func TestProcessFileBinaryGoesThroughParser(t *testing.T) {
	service, mockRepo, _ := setupTestIndexingService(&stubCompute{parseText: "Extracted report text."})

	var captured []*repositories.IndexedPoint
	mockRepo.On("EnsureCollection", mock.Anything, "docs", EmbeddingDimension).Return(nil)
	mockRepo.On("UpsertPoints", mock.Anything, "docs", mock.Anything).Run(func(args mock.Arguments) {
		captured = append(captured, args.Get(2).([]*repositories.IndexedPoint)...)
	}).Return(nil)

	_, err := service.ProcessFile(context.Background(), "docs", "report.pdf", []byte{0x25, 0x50, 0x44, 0x46}, nil)
	require.NoError(t, err)

	require.NotEmpty(t, captured)
	assert.Equal(t, "Extracted report text.", captured[0].Payload["text"])
}

func TestProcessFileUnsupportedType(t *testing.T) {
	service, _, _ := setupTestIndexingService(&stubCompute{})

	_, err := service.ProcessFile(context.Background(), "docs", "image.png", []byte{0x89}, nil)
	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Message, "unsupported file type")
}

func TestProcessFilePathNotFound(t *testing.T) {
	service, _, _ := setupTestIndexingService(&stubCompute{})

	_, err := service.ProcessFilePath(context.Background(), "docs", "/nonexistent/doc.txt", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document not found: /nonexistent/doc.txt")
}

// ============================================================================
// Async jobs
// ============================================================================

func TestEnqueueFileIndexExtractsBeforeQueueing(t *testing.T) {
	service, _, mockJobs := setupTestIndexingService(&stubCompute{})

	mockJobs.On("CreateJob", mock.Anything, mock.MatchedBy(func(job *repositories.Job) bool {
		return job.Type == repositories.JobTypeDocumentIndex &&
			job.Payload["collection"] == "docs" &&
			job.Payload["source"] == "notes.txt" &&
			job.Payload["text"] == "Note body."
	})).Return(nil)
	mockJobs.On("EnqueueJob", mock.Anything, mock.Anything).Return(nil)

	job, err := service.EnqueueFileIndex(context.Background(), "docs", "notes.txt", []byte("Note body."))
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	mockJobs.AssertExpectations(t)
}

func TestEnqueueFileIndexRejectsUnsupportedTypeBeforeQueueing(t *testing.T) {
	service, _, mockJobs := setupTestIndexingService(&stubCompute{})

	_, err := service.EnqueueFileIndex(context.Background(), "docs", "archive.zip", []byte{0x50})
	var validationErr *models.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	mockJobs.AssertNotCalled(t, "CreateJob", mock.Anything, mock.Anything)
}

func TestEnqueueURLIngest(t *testing.T) {
	service, _, mockJobs := setupTestIndexingService(&stubCompute{})

	mockJobs.On("CreateJob", mock.Anything, mock.MatchedBy(func(job *repositories.Job) bool {
		return job.Type == repositories.JobTypeURLIngest && job.Payload["url"] == "https://example.com/page"
	})).Return(nil)
	mockJobs.On("EnqueueJob", mock.Anything, mock.Anything).Return(nil)

	job, err := service.EnqueueURLIngest(context.Background(), "docs", "https://example.com/page")
	require.NoError(t, err)
	assert.Equal(t, repositories.JobTypeURLIngest, job.Type)
}

func TestProcessJobDocumentIndex(t *testing.T) {
	service, mockRepo, _ := setupTestIndexingService(&stubCompute{})

	mockRepo.On("EnsureCollection", mock.Anything, "docs", EmbeddingDimension).Return(nil)
	mockRepo.On("UpsertPoints", mock.Anything, "docs", mock.Anything).Return(nil)

	job := &repositories.Job{
		ID:   "job-1",
		Type: repositories.JobTypeDocumentIndex,
		Payload: map[string]interface{}{
			"collection": "docs",
			"source":     "queued.txt",
			"text":       "Queued document body.",
		},
	}
	result, err := service.ProcessJob(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, "queued.txt", result["source"])
	assert.NotEmpty(t, result["document_id"])
}

func TestProcessJobUnknownType(t *testing.T) {
	service, _, _ := setupTestIndexingService(&stubCompute{})

	job := &repositories.Job{
		ID:      "job-x",
		Type:    repositories.JobType("reindex"),
		Payload: map[string]interface{}{"collection": "docs"},
	}
	_, err := service.ProcessJob(context.Background(), job)
	assert.ErrorContains(t, err, "unknown job type")
}

// ============================================================================
// Listing
// ============================================================================

func TestListDocumentsAggregatesByDocument(t *testing.T) {
	service, mockRepo, _ := setupTestIndexingService(&stubCompute{})

	mockRepo.On("Scroll", mock.Anything, "docs", mock.Anything, 0).Return([]*repositories.StoredPoint{
		{ID: "p1", Payload: map[string]interface{}{"document_id": "d1", "metadata": map[string]interface{}{"source": "a.txt"}}},
		{ID: "p2", Payload: map[string]interface{}{"document_id": "d1"}},
		{ID: "p3", Payload: map[string]interface{}{"document_id": "d2", "metadata": map[string]interface{}{"source": "b.txt"}}},
		{ID: "p4", Payload: map[string]interface{}{"orphan": true}},
	}, nil)

	summaries, err := service.ListDocuments(context.Background(), "docs")
	require.NoError(t, err)

	require.Len(t, summaries, 2)
	assert.Equal(t, DocumentSummary{DocumentID: "d1", Source: "a.txt", Chunks: 2}, summaries[0])
	assert.Equal(t, DocumentSummary{DocumentID: "d2", Source: "b.txt", Chunks: 1}, summaries[1])
}
