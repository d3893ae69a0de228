// Package jobs defines the asynchronous work surface: job payloads, queue
// abstractions and job status tracking. Batch categorization runs through
// here so an upload of hundreds of rows never blocks the request that
// triggered it.
package jobs

import (
	"context"
	"time"
)

// JobType identifies what kind of work a job carries.
type JobType string

const (
	// JobTypeCategorize asks the model to categorize a batch of
	// transactions for one user.
	JobTypeCategorize JobType = "categorize_transactions"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// CategorizeJob is one batch-categorization request. TransactionIDs may be
// empty, which means "every uncategorized transaction the user has at the
// time the job runs".
type CategorizeJob struct {
	JobID          string    `json:"job_id"`
	UserID         uint      `json:"user_id"`
	TransactionIDs []uint    `json:"transaction_ids,omitempty"`
	Status         JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error holds the failure detail when Status is failed.
	Error string `json:"error,omitempty"`

	// Updated is how many transactions received a category.
	Updated int `json:"updated"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

func (j *CategorizeJob) GetID() string        { return j.JobID }
func (j *CategorizeJob) GetType() JobType     { return JobTypeCategorize }
func (j *CategorizeJob) GetStatus() JobStatus { return j.Status }

// Job is the generic surface shared by all job payloads.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// Publisher enqueues jobs. Implementations other than the in-memory queue
// (Cloud Tasks, Pub/Sub) would slot in behind this interface.
type Publisher interface {
	PublishCategorize(ctx context.Context, job *CategorizeJob) error
	Close() error
}

// Consumer pulls jobs off the queue and runs them through a handler.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error marks the job for retry
// until its retry budget runs out.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state so clients can poll for completion.
type JobStore interface {
	SaveJob(ctx context.Context, job *CategorizeJob) error
	GetJob(ctx context.Context, jobID string) (*CategorizeJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*CategorizeJob, error)
}

// JobFilter narrows a ListJobs call.
type JobFilter struct {
	UserID uint
	Status JobStatus
	Limit  int
}
