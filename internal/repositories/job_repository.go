package repositories

import (
	"context"
	"time"
)

// JobRepository defines the interface for the background job queue used by
// asynchronous document ingestion.
type JobRepository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, message string) error
	UpdateJobResult(ctx context.Context, jobID string, result map[string]interface{}) error

	EnqueueJob(ctx context.Context, job *Job) error
	DequeueJob(ctx context.Context, jobType JobType) (*Job, error)
	ListJobsByStatus(ctx context.Context, status JobStatus) ([]*Job, error)

	Ping(ctx context.Context) error
}

// Job represents a background job in the queue.
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Message     string                 `json:"message"`
	Payload     map[string]interface{} `json:"payload"`
	Result      map[string]interface{} `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// JobType represents the type of job.
type JobType string

const (
	JobTypeDocumentIndex JobType = "document_index"
	JobTypeURLIngest     JobType = "url_ingest"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Validate checks that the job carries the required fields.
func (j *Job) Validate() error {
	if j.ID == "" {
		return NewJobRepositoryError("validate", "", nil, "job ID is required")
	}
	if j.Type == "" {
		return NewJobRepositoryError("validate", j.ID, nil, "job type is required")
	}
	return nil
}

// JobRepositoryError represents errors from the job repository.
type JobRepositoryError struct {
	Operation string
	JobID     string
	Err       error
	Message   string
}

func (e *JobRepositoryError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Operation + ": " + e.Err.Error()
	}
	return e.Operation + ": unknown error"
}

func (e *JobRepositoryError) Unwrap() error {
	return e.Err
}

// NewJobRepositoryError creates a new job repository error.
func NewJobRepositoryError(operation, jobID string, err error, message string) *JobRepositoryError {
	return &JobRepositoryError{
		Operation: operation,
		JobID:     jobID,
		Err:       err,
		Message:   message,
	}
}

// JobNotFoundError reports a missing job.
func JobNotFoundError(jobID string) error {
	return NewJobRepositoryError("get_job", jobID, nil, "job not found: "+jobID)
}

// JobAlreadyExistsError reports a duplicate job ID.
func JobAlreadyExistsError(jobID string) error {
	return NewJobRepositoryError("create_job", jobID, nil, "job already exists: "+jobID)
}
