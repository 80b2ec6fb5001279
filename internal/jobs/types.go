// Package jobs defines the asynchronous reconciliation job model and the
// queue abstractions the API server uses to run submissions in the
// background.
package jobs

import (
	"context"
	"time"

	"github.com/dvloznov/recon-engine/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeReconcileRecord runs one candidate record through the full
	// reconciliation pipeline.
	JobTypeReconcileRecord JobType = "reconcile_record"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ReconcileRecordJob carries one candidate record through the queue.
type ReconcileRecordJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Candidate is the submitted record, before reconciliation.
	Candidate *domain.TransactionRecord `json:"candidate"`

	// RecordID is the persisted record's ID, set once the job completes.
	RecordID int64 `json:"record_id,omitempty"`

	// IsDuplicate mirrors the reconciled record's duplicate flag.
	IsDuplicate bool `json:"is_duplicate,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ReconcileRecordJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ReconcileRecordJob) GetType() JobType {
	return JobTypeReconcileRecord
}

// GetStatus implements the Job interface.
func (j *ReconcileRecordJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
// The abstraction allows different queue backends (in-memory, Cloud Tasks,
// Pub/Sub) without touching the handlers.
type Publisher interface {
	// PublishReconcile publishes a reconciliation job.
	PublishReconcile(ctx context.Context, job *ReconcileRecordJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job execution so clients can poll for the outcome.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ReconcileRecordJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ReconcileRecordJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ReconcileRecordJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
