package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"rag-assistant/internal/models"
	"rag-assistant/internal/repositories"
)

// IndexingService runs the ingestion pipeline: chunk under every strategy,
// embed, and batch-upsert into the vector store.
type IndexingService struct {
	chunker    *ChunkerService
	compute    ComputeClientInterface
	vectorRepo repositories.VectorRepository
	jobRepo    repositories.JobRepository
	scraper    *ScraperService
	logger     *log.Logger
}

// NewIndexingService creates a new indexing service.
func NewIndexingService(
	chunker *ChunkerService,
	compute ComputeClientInterface,
	vectorRepo repositories.VectorRepository,
	jobRepo repositories.JobRepository,
	scraper *ScraperService,
	logger *log.Logger,
) *IndexingService {
	return &IndexingService{
		chunker:    chunker,
		compute:    compute,
		vectorRepo: vectorRepo,
		jobRepo:    jobRepo,
		scraper:    scraper,
		logger:     logger,
	}
}

// StrategyResult reports the outcome of indexing one strategy's chunks. A
// failed strategy does not roll back strategies already committed.
type StrategyResult struct {
	Status  string `json:"status"`
	Chunks  int    `json:"chunks"`
	Message string `json:"message,omitempty"`
}

// IndexResult is the outcome of indexing one document.
type IndexResult struct {
	DocumentID  string                    `json:"document_id"`
	Source      string                    `json:"source"`
	Collection  string                    `json:"collection"`
	Strategies  map[string]StrategyResult `json:"strategies"`
	TotalChunks int                       `json:"total_chunks"`
}

// ProcessText indexes already-extracted text under every chunking strategy
// plus the rolling-window pass. Each strategy gets its own per-strategy
// status so a partial failure still reports the strategies that committed.
func (s *IndexingService) ProcessText(ctx context.Context, collection, source, text string, metadata map[string]interface{}, strategies []models.ChunkStrategy) (*IndexResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &models.ValidationError{Field: "text", Message: "document text is empty"}
	}
	if len(strategies) == 0 {
		strategies = models.DefaultChunkStrategies()
	}

	if err := s.vectorRepo.EnsureCollection(ctx, collection, s.compute.Dimension()); err != nil {
		return nil, fmt.Errorf("failed to ensure collection %s: %w", collection, err)
	}

	docMetadata := copyMetadata(metadata)
	docMetadata["source"] = source

	byStrategy := s.chunker.ChunkWithStrategies(text, docMetadata, strategies)
	order := make([]string, 0, len(strategies)+1)
	for _, strategy := range strategies {
		order = append(order, strategy.ID)
	}
	byStrategy[models.RollingWindowStrategyID] = s.chunker.RollingWindowChunks(text, docMetadata, DefaultRollingWindowSize, DefaultRollingWindowStep)
	order = append(order, models.RollingWindowStrategyID)

	result := &IndexResult{
		DocumentID: uuid.New().String(),
		Source:     source,
		Collection: collection,
		Strategies: make(map[string]StrategyResult, len(order)),
	}

	for _, strategyID := range order {
		chunks := byStrategy[strategyID]
		if err := s.indexChunks(ctx, collection, result.DocumentID, chunks); err != nil {
			s.logger.Printf("Indexing strategy %s failed for %s: %v", strategyID, source, err)
			result.Strategies[strategyID] = StrategyResult{Status: "error", Message: err.Error()}
			continue
		}
		result.Strategies[strategyID] = StrategyResult{Status: "success", Chunks: len(chunks)}
		result.TotalChunks += len(chunks)
	}

	s.logger.Printf("Indexed %s into %s: %d chunks across %d strategies",
		source, collection, result.TotalChunks, len(order))
	return result, nil
}

// indexChunks embeds one strategy's chunks and upserts them as points.
func (s *IndexingService) indexChunks(ctx context.Context, collection, documentID string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.compute.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	points := make([]*repositories.IndexedPoint, len(chunks))
	for i, chunk := range chunks {
		points[i] = &repositories.IndexedPoint{
			ID:     uuid.New().String(),
			Vector: vectors[i],
			Payload: map[string]interface{}{
				"document_id": documentID,
				"text":        chunk.Text,
				"metadata":    chunk.Metadata,
				"chunk_index": chunk.ChunkIndex,
				"strategy":    chunk.StrategyID,
			},
		}
	}

	if err := s.vectorRepo.UpsertPoints(ctx, collection, points); err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}
	return nil
}

// ProcessFile indexes an uploaded file. Plain text formats are read
// directly; binary formats are parsed by the compute sidecar.
func (s *IndexingService) ProcessFile(ctx context.Context, collection, filename string, content []byte, strategies []models.ChunkStrategy) (*IndexResult, error) {
	text, err := s.extractText(ctx, filename, content)
	if err != nil {
		return nil, err
	}
	return s.ProcessText(ctx, collection, filename, text, nil, strategies)
}

// ProcessFilePath indexes a document on disk. An unresolvable path fails
// with a not-found error before any indexing work.
func (s *IndexingService) ProcessFilePath(ctx context.Context, collection, path string, strategies []models.ChunkStrategy) (*IndexResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("document not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return s.ProcessFile(ctx, collection, filepath.Base(path), content, strategies)
}

// ProcessURL scrapes a web page and indexes its text.
func (s *IndexingService) ProcessURL(ctx context.Context, collection, url string, strategies []models.ChunkStrategy) (*IndexResult, error) {
	text, err := s.scraper.ScrapeURL(ctx, url)
	if err != nil {
		return nil, err
	}
	return s.ProcessText(ctx, collection, url, text, nil, strategies)
}

func (s *IndexingService) extractText(ctx context.Context, filename string, content []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return string(content), nil
	case ".pdf", ".docx":
		text, err := s.compute.ParseDocument(ctx, content, filename)
		if err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", filename, err)
		}
		return text, nil
	default:
		return "", &models.ValidationError{Field: "filename", Message: "unsupported file type: " + filepath.Ext(filename)}
	}
}

// EnqueueDocumentIndex creates and queues an async indexing job for already
// extracted text.
func (s *IndexingService) EnqueueDocumentIndex(ctx context.Context, collection, source, text string) (*repositories.Job, error) {
	job := &repositories.Job{
		ID:   uuid.New().String(),
		Type: repositories.JobTypeDocumentIndex,
		Payload: map[string]interface{}{
			"collection": collection,
			"source":     source,
			"text":       text,
		},
	}
	return s.enqueue(ctx, job)
}

// EnqueueFileIndex extracts an upload's text synchronously and queues the
// indexing work, so the job payload carries plain text only.
func (s *IndexingService) EnqueueFileIndex(ctx context.Context, collection, filename string, content []byte) (*repositories.Job, error) {
	text, err := s.extractText(ctx, filename, content)
	if err != nil {
		return nil, err
	}
	return s.EnqueueDocumentIndex(ctx, collection, filename, text)
}

// EnqueueURLIngest creates and queues an async scrape-and-index job.
func (s *IndexingService) EnqueueURLIngest(ctx context.Context, collection, url string) (*repositories.Job, error) {
	job := &repositories.Job{
		ID:   uuid.New().String(),
		Type: repositories.JobTypeURLIngest,
		Payload: map[string]interface{}{
			"collection": collection,
			"url":        url,
		},
	}
	return s.enqueue(ctx, job)
}

func (s *IndexingService) enqueue(ctx context.Context, job *repositories.Job) (*repositories.Job, error) {
	if err := s.jobRepo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	if err := s.jobRepo.EnqueueJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	s.logger.Printf("Enqueued %s job %s", job.Type, job.ID)
	return job, nil
}

// CollectionStats returns point counts for a collection.
func (s *IndexingService) CollectionStats(ctx context.Context, collection string) (*repositories.CollectionStats, error) {
	return s.vectorRepo.CollectionStats(ctx, collection)
}

// DocumentSummary aggregates one indexed document's footprint.
type DocumentSummary struct {
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	Chunks     int    `json:"chunks"`
}

// ListDocuments scans a collection and aggregates its points per document.
func (s *IndexingService) ListDocuments(ctx context.Context, collection string) ([]DocumentSummary, error) {
	points, err := s.vectorRepo.Scroll(ctx, collection, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to scan collection %s: %w", collection, err)
	}

	byID := make(map[string]*DocumentSummary)
	var order []string
	for _, point := range points {
		docID, _ := point.Payload["document_id"].(string)
		if docID == "" {
			continue
		}
		summary, ok := byID[docID]
		if !ok {
			summary = &DocumentSummary{DocumentID: docID}
			if metadata, ok := point.Payload["metadata"].(map[string]interface{}); ok {
				summary.Source, _ = metadata["source"].(string)
			}
			byID[docID] = summary
			order = append(order, docID)
		}
		summary.Chunks++
	}

	summaries := make([]DocumentSummary, 0, len(order))
	for _, id := range order {
		summaries = append(summaries, *byID[id])
	}
	return summaries, nil
}

// JobStatus returns the current state of an async indexing job.
func (s *IndexingService) JobStatus(ctx context.Context, jobID string) (*repositories.Job, error) {
	return s.jobRepo.GetJob(ctx, jobID)
}

// ProcessJob executes one dequeued job and returns its result payload.
func (s *IndexingService) ProcessJob(ctx context.Context, job *repositories.Job) (map[string]interface{}, error) {
	collection, _ := job.Payload["collection"].(string)
	if collection == "" {
		return nil, fmt.Errorf("job %s has no collection", job.ID)
	}

	var result *IndexResult
	var err error
	switch job.Type {
	case repositories.JobTypeDocumentIndex:
		source, _ := job.Payload["source"].(string)
		text, _ := job.Payload["text"].(string)
		result, err = s.ProcessText(ctx, collection, source, text, nil, nil)
	case repositories.JobTypeURLIngest:
		url, _ := job.Payload["url"].(string)
		result, err = s.ProcessURL(ctx, collection, url, nil)
	default:
		return nil, fmt.Errorf("unknown job type: %s", job.Type)
	}
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"document_id":  result.DocumentID,
		"source":       result.Source,
		"collection":   result.Collection,
		"total_chunks": result.TotalChunks,
		"strategies":   result.Strategies,
	}, nil
}
