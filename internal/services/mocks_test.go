package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"rag-assistant/internal/repositories"
)

// ============================================================================
// Shared mocks
// ============================================================================

type MockVectorRepository struct {
	mock.Mock
}

func (m *MockVectorRepository) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	args := m.Called(ctx, name, vectorSize)
	return args.Error(0)
}

func (m *MockVectorRepository) CollectionExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockVectorRepository) CollectionStats(ctx context.Context, name string) (*repositories.CollectionStats, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.CollectionStats), args.Error(1)
}

func (m *MockVectorRepository) UpsertPoints(ctx context.Context, collection string, points []*repositories.IndexedPoint) error {
	args := m.Called(ctx, collection, points)
	return args.Error(0)
}

func (m *MockVectorRepository) Search(ctx context.Context, collection string, vector []float32, opts *repositories.SearchOptions) ([]*repositories.ScoredPoint, error) {
	args := m.Called(ctx, collection, vector, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repositories.ScoredPoint), args.Error(1)
}

func (m *MockVectorRepository) Scroll(ctx context.Context, collection string, filter map[string]interface{}, limit int) ([]*repositories.StoredPoint, error) {
	args := m.Called(ctx, collection, filter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repositories.StoredPoint), args.Error(1)
}

func (m *MockVectorRepository) CountPoints(ctx context.Context, collection string, filter map[string]interface{}) (int, error) {
	args := m.Called(ctx, collection, filter)
	return args.Int(0), args.Error(1)
}

func (m *MockVectorRepository) DeletePoints(ctx context.Context, collection string, ids []string) error {
	args := m.Called(ctx, collection, ids)
	return args.Error(0)
}

func (m *MockVectorRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockComputeClient struct {
	mock.Mock
}

func (m *MockComputeClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockComputeClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockComputeClient) ParseDocument(ctx context.Context, fileData []byte, filename string) (string, error) {
	args := m.Called(ctx, fileData, filename)
	return args.String(0), args.Error(1)
}

func (m *MockComputeClient) Dimension() int {
	return EmbeddingDimension
}

func (m *MockComputeClient) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockSequenceStore struct {
	mock.Mock
}

func (m *MockSequenceStore) NextSequence(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

type MockAnswerGenerator struct {
	mock.Mock
}

func (m *MockAnswerGenerator) GenerateAnswer(ctx context.Context, question, contextText string) (string, error) {
	args := m.Called(ctx, question, contextText)
	return args.String(0), args.Error(1)
}

type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) CreateJob(ctx context.Context, job *repositories.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) GetJob(ctx context.Context, jobID string) (*repositories.Job, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.Job), args.Error(1)
}

func (m *MockJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status repositories.JobStatus, message string) error {
	args := m.Called(ctx, jobID, status, message)
	return args.Error(0)
}

func (m *MockJobRepository) UpdateJobResult(ctx context.Context, jobID string, result map[string]interface{}) error {
	args := m.Called(ctx, jobID, result)
	return args.Error(0)
}

func (m *MockJobRepository) EnqueueJob(ctx context.Context, job *repositories.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) DequeueJob(ctx context.Context, jobType repositories.JobType) (*repositories.Job, error) {
	args := m.Called(ctx, jobType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.Job), args.Error(1)
}

func (m *MockJobRepository) ListJobsByStatus(ctx context.Context, status repositories.JobStatus) ([]*repositories.Job, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repositories.Job), args.Error(1)
}

func (m *MockJobRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
