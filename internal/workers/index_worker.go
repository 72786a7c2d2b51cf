package workers

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"rag-assistant/internal/repositories"
	"rag-assistant/internal/services"
)

// IndexWorkerConfig holds configuration for the indexing worker.
type IndexWorkerConfig struct {
	// PollInterval is how often to check the queues for new jobs.
	PollInterval time.Duration

	// JobTypes lists the queues this worker drains, in priority order.
	JobTypes []repositories.JobType
}

// DefaultIndexWorkerConfig returns a worker configuration with sensible
// defaults.
func DefaultIndexWorkerConfig() IndexWorkerConfig {
	return IndexWorkerConfig{
		PollInterval: 2 * time.Second,
		JobTypes: []repositories.JobType{
			repositories.JobTypeDocumentIndex,
			repositories.JobTypeURLIngest,
		},
	}
}

// IndexWorker drains the document indexing queues in the background. Jobs
// are processed one at a time; indexing a large document is already the
// bottleneck, so there is no per-worker concurrency.
type IndexWorker struct {
	config   IndexWorkerConfig
	jobs     repositories.JobRepository
	indexing *services.IndexingService
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewIndexWorker creates a new indexing worker.
func NewIndexWorker(config IndexWorkerConfig, jobs repositories.JobRepository, indexing *services.IndexingService, logger *log.Logger) *IndexWorker {
	return &IndexWorker{
		config:   config,
		jobs:     jobs,
		indexing: indexing,
		logger:   logger,
	}
}

// Start begins polling for jobs. It returns immediately; processing happens
// on a background goroutine until Stop is called or ctx is cancelled.
func (w *IndexWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("index worker already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.run(runCtx)
	w.logger.Printf("Index worker started (poll interval %s)", w.config.PollInterval)
	return nil
}

// Stop shuts the worker down, waiting for an in-flight job to finish or the
// context to expire.
func (w *IndexWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	select {
	case <-done:
		w.logger.Printf("Index worker stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("index worker shutdown timed out: %w", ctx.Err())
	}
}

// IsRunning reports whether the worker is currently polling.
func (w *IndexWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *IndexWorker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drainOnce(ctx)
		}
	}
}

// drainOnce pulls at most one job per queue per tick.
func (w *IndexWorker) drainOnce(ctx context.Context) {
	for _, jobType := range w.config.JobTypes {
		if ctx.Err() != nil {
			return
		}

		job, err := w.jobs.DequeueJob(ctx, jobType)
		if err != nil {
			w.logger.Printf("Failed to dequeue %s job: %v", jobType, err)
			continue
		}
		if job == nil {
			continue
		}
		w.process(ctx, job)
	}
}

func (w *IndexWorker) process(ctx context.Context, job *repositories.Job) {
	w.logger.Printf("Processing %s job %s", job.Type, job.ID)
	start := time.Now()

	result, err := w.indexing.ProcessJob(ctx, job)
	if err != nil {
		w.logger.Printf("Job %s failed after %s: %v", job.ID, time.Since(start), err)
		if updateErr := w.jobs.UpdateJobStatus(ctx, job.ID, repositories.JobStatusFailed, err.Error()); updateErr != nil {
			w.logger.Printf("Failed to mark job %s failed: %v", job.ID, updateErr)
		}
		return
	}

	if err := w.jobs.UpdateJobResult(ctx, job.ID, result); err != nil {
		w.logger.Printf("Failed to store result for job %s: %v", job.ID, err)
	}
	if err := w.jobs.UpdateJobStatus(ctx, job.ID, repositories.JobStatusCompleted, "Indexing complete"); err != nil {
		w.logger.Printf("Failed to mark job %s completed: %v", job.ID, err)
	}
	w.logger.Printf("Job %s completed in %s", job.ID, time.Since(start))
}
