package jobs

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// JobStatus is the read model exposed to status queries. Progress is
// whatever the executing worker last reported; no monotonicity is enforced.
type JobStatus struct {
	JobID       string          `json:"job_id"`
	Queue       string          `json:"queue"`
	Kind        string          `json:"kind"`
	State       State           `json:"state"`
	Attempt     int             `json:"attempt"`
	Progress    json.RawMessage `json:"progress,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	ProcessedOn *time.Time      `json:"processed_on,omitempty"`
	FinishedOn  *time.Time      `json:"finished_on,omitempty"`
}

// StatusService answers progress queries. It is a pure read over the
// queue and never mutates job state.
type StatusService struct {
	queue Queue
}

// NewStatusService creates a status reader over a queue.
func NewStatusService(queue Queue) *StatusService {
	return &StatusService{queue: queue}
}

// Status returns the current lifecycle snapshot of one job.
// Returns ErrNotFound when the job id is unknown to the queue.
func (s *StatusService) Status(ctx context.Context, queue, jobID string) (*JobStatus, error) {
	if strings.TrimSpace(queue) == "" {
		return nil, jobsError(ErrValidation, "queue name is required")
	}
	if strings.TrimSpace(jobID) == "" {
		return nil, jobsError(ErrValidation, "job id is required")
	}

	job, err := s.queue.Job(ctx, queue, jobID)
	if err != nil {
		return nil, err
	}

	return &JobStatus{
		JobID:       job.ID,
		Queue:       job.Queue,
		Kind:        job.Kind,
		State:       job.State,
		Attempt:     job.Attempt,
		Progress:    job.Progress,
		Result:      job.Result,
		Error:       job.Error,
		ProcessedOn: job.ProcessedOn,
		FinishedOn:  job.FinishedOn,
	}, nil
}
