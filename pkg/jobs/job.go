// Package jobs implements the durable work queue the rest of the service
// programs against: deduplicated submission, priority ordering, retry with
// backoff, and read-only status tracking.
package jobs

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"
)

// State is the lifecycle state of a job.
type State string

const (
	// StateWaiting means the job is queued and not yet picked up.
	StateWaiting State = "waiting"
	// StateActive means a worker holds the job.
	StateActive State = "active"
	// StateCompleted is the successful terminal state.
	StateCompleted State = "completed"
	// StateFailed is the terminal state after retry exhaustion.
	StateFailed State = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// BackoffType selects the retry delay curve.
type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffExponential BackoffType = "exponential"
)

// BackoffPolicy computes the delay before a retried attempt.
type BackoffPolicy struct {
	Type      BackoffType   `json:"type"`
	BaseDelay time.Duration `json:"base_delay"`
}

// RetryPolicy bounds how often a failing job is re-queued.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts"`
	Backoff     BackoffPolicy `json:"backoff"`
}

// DefaultRetryPolicy is applied when a submission carries no policy.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 1,
	Backoff:     BackoffPolicy{Type: BackoffFixed, BaseDelay: time.Second},
}

func (p *RetryPolicy) normalize() {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.Backoff.Type == "" {
		p.Backoff.Type = DefaultRetryPolicy.Backoff.Type
	}
	if p.Backoff.BaseDelay <= 0 {
		p.Backoff.BaseDelay = DefaultRetryPolicy.Backoff.BaseDelay
	}
}

func (p RetryPolicy) validate() error {
	if p.Backoff.Type != BackoffFixed && p.Backoff.Type != BackoffExponential {
		return jobsError(ErrValidation, "unsupported backoff type "+string(p.Backoff.Type))
	}
	return nil
}

// Delay returns the wait before re-queueing after the given failed attempt
// (1-indexed). Exponential backoff doubles per attempt: base * 2^(attempt-1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch p.Backoff.Type {
	case BackoffExponential:
		factor := math.Pow(2, float64(attempt-1))
		return time.Duration(float64(p.Backoff.BaseDelay) * factor)
	default:
		return p.Backoff.BaseDelay
	}
}

// Job is one deferred unit of work with its own tracked lifecycle.
type Job struct {
	ID       string          `json:"id"`
	Queue    string          `json:"queue"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	DedupKey string          `json:"dedup_key,omitempty"`
	Priority int             `json:"priority"`
	Retry    RetryPolicy     `json:"retry"`

	State    State           `json:"state"`
	Attempt  int             `json:"attempt"`
	Progress json.RawMessage `json:"progress,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	RunAt       time.Time  `json:"run_at"`
	ProcessedOn *time.Time `json:"processed_on,omitempty"`
	FinishedOn  *time.Time `json:"finished_on,omitempty"`
}

// SubmitOptions tunes a single submission.
type SubmitOptions struct {
	// DedupKey scopes at-most-one-active-job enforcement within the queue.
	// Empty means no deduplication.
	DedupKey string
	// Priority orders ready jobs; higher values are dispatched first.
	Priority int
	// Retry overrides the default retry policy when MaxAttempts > 0.
	Retry *RetryPolicy
}

// Handle identifies a submitted job. Deduplicated is true when the
// submission collapsed onto an existing non-terminal job.
type Handle struct {
	JobID        string `json:"job_id"`
	Queue        string `json:"queue"`
	Deduplicated bool   `json:"deduplicated"`
}

// MarshalPayload marshals a payload value for submission.
func MarshalPayload(payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Join(jobsError(ErrValidation, "marshal job payload failed"), err)
	}
	return data, nil
}

func validateSubmission(queue, kind string) error {
	var errs []error
	if strings.TrimSpace(queue) == "" {
		errs = append(errs, jobsError(ErrValidation, "queue name is required"))
	}
	if strings.TrimSpace(kind) == "" {
		errs = append(errs, jobsError(ErrValidation, "job kind is required"))
	}
	return errors.Join(errs...)
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	copied := *job
	copied.Payload = cloneRaw(job.Payload)
	copied.Progress = cloneRaw(job.Progress)
	copied.Result = cloneRaw(job.Result)
	if job.ProcessedOn != nil {
		t := *job.ProcessedOn
		copied.ProcessedOn = &t
	}
	if job.FinishedOn != nil {
		t := *job.FinishedOn
		copied.FinishedOn = &t
	}
	return &copied
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
