// Package jobs defines the asynchronous work items behind the webhook
// trigger and the queue abstractions they travel through.
package jobs

import (
	"context"
	"time"
)

// JobType identifies the kind of work a job carries.
type JobType string

const (
	// JobTypePostEvent runs the posting pipeline for one intake row.
	JobTypePostEvent JobType = "post_event"
)

// JobStatus is the queue-side lifecycle of a job. It is distinct from the
// intake row status: a job can complete while its row ends up ERROR.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// PostEventJob asks the pipeline to process one intake row. Failed jobs are
// never retried automatically: the row is marked ERROR and an operator
// re-queues it by resetting the status cell.
type PostEventJob struct {
	JobID string `json:"job_id"`

	// RowIndex is the 1-based intake sheet row to process.
	RowIndex int `json:"row_index"`

	// Kind is the webhook selector the caller used, kept for audit. The
	// pipeline re-derives the kind from the message body.
	Kind string `json:"kind,omitempty"`

	Status    JobStatus  `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	DoneAt    *time.Time `json:"done_at,omitempty"`

	// Result is the pipeline's status line on completion.
	Result string `json:"result,omitempty"`

	// Error holds the failure detail on a failed job.
	Error string `json:"error,omitempty"`
}

// Job is the generic view the queue machinery works with.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *PostEventJob) GetID() string        { return j.JobID }
func (j *PostEventJob) GetType() JobType     { return JobTypePostEvent }
func (j *PostEventJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs. The abstraction keeps the webhook handler unaware
// of the queue implementation.
type Publisher interface {
	PublishPostEvent(ctx context.Context, job *PostEventJob) error
	Close() error
}

// Consumer drains the queue through a handler.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming and waits for in-flight jobs.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error marks the job failed; it is
// not re-enqueued.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state so the API can answer status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *PostEventJob) error
	GetJob(ctx context.Context, jobID string) (*PostEventJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*PostEventJob, error)
}

// JobFilter selects jobs for listing.
type JobFilter struct {
	RowIndex int // 0 means any row
	Status   JobStatus
	Limit    int
}
