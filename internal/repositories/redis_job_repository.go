package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix    = "job:"
	jobQueuePrefix  = "job:queue:"
	jobStatusPrefix = "job:status:"
)

// RedisJobRepository implements JobRepository using Redis.
type RedisJobRepository struct {
	client *redis.Client
}

// NewRedisJobRepository creates a new Redis-based job repository.
func NewRedisJobRepository(client *redis.Client) *RedisJobRepository {
	return &RedisJobRepository{client: client}
}

// CreateJob creates a new job in the repository.
func (r *RedisJobRepository) CreateJob(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	exists, err := r.jobExists(ctx, job.ID)
	if err != nil {
		return NewJobRepositoryError("create_job", job.ID, err, "")
	}
	if exists {
		return JobAlreadyExistsError(job.ID)
	}

	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = JobStatusPending
	}

	return r.writeJob(ctx, job, "")
}

// GetJob retrieves a job by ID.
func (r *RedisJobRepository) GetJob(ctx context.Context, jobID string) (*Job, error) {
	data, err := r.client.Get(ctx, jobKeyPrefix+jobID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, JobNotFoundError(jobID)
	}
	if err != nil {
		return nil, NewJobRepositoryError("get_job", jobID, err, "")
	}

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, NewJobRepositoryError("get_job", jobID, err, "failed to unmarshal job")
	}
	return &job, nil
}

// UpdateJobStatus transitions a job to a new status, stamping start and
// completion times as appropriate.
func (r *RedisJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, message string) error {
	job, err := r.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	previous := job.Status
	now := time.Now()
	job.Status = status
	job.Message = message
	job.UpdatedAt = now

	switch status {
	case JobStatusProcessing:
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
	case JobStatusCompleted:
		job.CompletedAt = &now
	case JobStatusFailed:
		job.CompletedAt = &now
		job.Error = message
	}

	return r.writeJob(ctx, job, previous)
}

// UpdateJobResult attaches the result payload to a job.
func (r *RedisJobRepository) UpdateJobResult(ctx context.Context, jobID string, result map[string]interface{}) error {
	job, err := r.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Result = result
	job.UpdatedAt = time.Now()
	return r.writeJob(ctx, job, job.Status)
}

// EnqueueJob marks a job queued and pushes it onto its type queue.
func (r *RedisJobRepository) EnqueueJob(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if err := r.UpdateJobStatus(ctx, job.ID, JobStatusQueued, "Job queued for processing"); err != nil {
		return err
	}
	if err := r.client.RPush(ctx, jobQueuePrefix+string(job.Type), job.ID).Err(); err != nil {
		return NewJobRepositoryError("enqueue_job", job.ID, err, "failed to add to queue")
	}
	return nil
}

// DequeueJob pops the oldest queued job of the given type, marking it
// processing. Returns nil when the queue is empty.
func (r *RedisJobRepository) DequeueJob(ctx context.Context, jobType JobType) (*Job, error) {
	jobID, err := r.client.LPop(ctx, jobQueuePrefix+string(jobType)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, NewJobRepositoryError("dequeue_job", "", err, "")
	}

	if err := r.UpdateJobStatus(ctx, jobID, JobStatusProcessing, "Processing started"); err != nil {
		return nil, err
	}
	return r.GetJob(ctx, jobID)
}

// ListJobsByStatus returns all jobs currently in the given status.
func (r *RedisJobRepository) ListJobsByStatus(ctx context.Context, status JobStatus) ([]*Job, error) {
	ids, err := r.client.SMembers(ctx, jobStatusPrefix+string(status)).Result()
	if err != nil {
		return nil, NewJobRepositoryError("list_jobs_by_status", "", err, "")
	}

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := r.GetJob(ctx, id)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Ping checks if Redis is alive.
func (r *RedisJobRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisJobRepository) jobExists(ctx context.Context, jobID string) (bool, error) {
	n, err := r.client.Exists(ctx, jobKeyPrefix+jobID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// writeJob persists the job and keeps the status index sets in sync.
func (r *RedisJobRepository) writeJob(ctx context.Context, job *Job, previousStatus JobStatus) error {
	data, err := json.Marshal(job)
	if err != nil {
		return NewJobRepositoryError("write_job", job.ID, err, "failed to marshal job")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, jobKeyPrefix+job.ID, data, 0)
	if previousStatus != "" && previousStatus != job.Status {
		pipe.SRem(ctx, jobStatusPrefix+string(previousStatus), job.ID)
	}
	pipe.SAdd(ctx, jobStatusPrefix+string(job.Status), job.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return NewJobRepositoryError("write_job", job.ID, err, "failed to execute transaction")
	}
	return nil
}
