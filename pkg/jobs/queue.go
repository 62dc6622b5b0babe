package jobs

import (
	"context"
	"encoding/json"
)

// Queue is the work queue contract. Producers only submit and read;
// the worker-side methods are the single mutation path for job state.
//
// The dedup guarantee: two submissions racing on the same
// (queue, dedup key) while a prior job is non-terminal never create two
// jobs. Check-and-create is atomic in every implementation.
type Queue interface {
	// Submit enqueues one job. When opts.DedupKey collides with a
	// non-terminal job the existing job's handle is returned and no new
	// job is created.
	Submit(ctx context.Context, queue, kind string, payload json.RawMessage, opts SubmitOptions) (*Handle, error)

	// Job loads a job by queue and id. Returns ErrNotFound when unknown.
	Job(ctx context.Context, queue, jobID string) (*Job, error)

	// State returns the current lifecycle state of a job.
	State(ctx context.Context, queue, jobID string) (State, error)

	// Reserve hands the highest-priority ready job to a worker and marks
	// it active. Returns ErrNotFound when nothing is ready.
	Reserve(ctx context.Context, queue string) (*Job, error)

	// Progress records worker-reported progress on a non-terminal job.
	Progress(ctx context.Context, queue, jobID string, progress json.RawMessage) error

	// Complete transitions an active job to its successful terminal state.
	Complete(ctx context.Context, queue, jobID string, result json.RawMessage) error

	// Fail records a failed attempt. The job is re-queued with a
	// backoff-delayed run time until MaxAttempts is exhausted, then
	// transitions to failed permanently.
	Fail(ctx context.Context, queue, jobID string, cause error) error

	HealthCheck(ctx context.Context) error
	Close() error
}
