package jobs

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
)

// MemoryQueue is the in-process Queue implementation. A single mutex
// serializes submissions so the dedup check-and-create is atomic.
type MemoryQueue struct {
	log logger.Logger

	mu     sync.Mutex
	queues map[string]*memoryQueueState
	seq    uint64
	closed bool
}

type memoryQueueState struct {
	jobs  map[string]*Job
	dedup map[string]string // dedup key -> non-terminal job id
	order map[string]uint64 // job id -> submission sequence
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue(log logger.Logger) *MemoryQueue {
	if log == nil {
		log = logger.Noop()
	}
	return &MemoryQueue{
		log:    log,
		queues: map[string]*memoryQueueState{},
	}
}

func (q *MemoryQueue) Submit(ctx context.Context, queue, kind string, payload json.RawMessage, opts SubmitOptions) (*Handle, error) {
	if err := validateSubmission(queue, kind); err != nil {
		observeSubmission(queue, submissionRejected)
		return nil, err
	}

	retry := DefaultRetryPolicy
	if opts.Retry != nil {
		retry = *opts.Retry
		retry.normalize()
		if err := retry.validate(); err != nil {
			observeSubmission(queue, submissionRejected)
			return nil, err
		}
	}

	queue = strings.TrimSpace(queue)
	dedupKey := strings.TrimSpace(opts.DedupKey)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, jobsError(ErrClosed, "queue is closed")
	}

	state := q.queueState(queue)
	if dedupKey != "" {
		if existingID, ok := state.dedup[dedupKey]; ok {
			observeSubmission(queue, submissionDeduplicated)
			q.log.Debug("submission deduplicated",
				"queue", queue, "kind", kind, "dedup_key", dedupKey, "job_id", existingID)
			return &Handle{JobID: existingID, Queue: queue, Deduplicated: true}, nil
		}
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		Queue:     queue,
		Kind:      strings.TrimSpace(kind),
		Payload:   cloneRaw(payload),
		DedupKey:  dedupKey,
		Priority:  opts.Priority,
		Retry:     retry,
		State:     StateWaiting,
		CreatedAt: now,
		RunAt:     now,
	}

	q.seq++
	state.jobs[job.ID] = job
	state.order[job.ID] = q.seq
	if dedupKey != "" {
		state.dedup[dedupKey] = job.ID
	}

	observeSubmission(queue, submissionCreated)
	q.log.Debug("job submitted", "queue", queue, "kind", kind, "job_id", job.ID)
	return &Handle{JobID: job.ID, Queue: queue}, nil
}

func (q *MemoryQueue) Job(ctx context.Context, queue, jobID string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.lookup(queue, jobID)
	if err != nil {
		return nil, err
	}
	return cloneJob(job), nil
}

func (q *MemoryQueue) State(ctx context.Context, queue, jobID string) (State, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.lookup(queue, jobID)
	if err != nil {
		return "", err
	}
	return job.State, nil
}

func (q *MemoryQueue) Reserve(ctx context.Context, queue string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, jobsError(ErrClosed, "queue is closed")
	}
	state, ok := q.queues[strings.TrimSpace(queue)]
	if !ok {
		return nil, jobsError(ErrNotFound, "no job ready")
	}

	now := time.Now().UTC()
	var best *Job
	var bestSeq uint64
	for id, job := range state.jobs {
		if job.State != StateWaiting || job.RunAt.After(now) {
			continue
		}
		seq := state.order[id]
		if best == nil || job.Priority > best.Priority ||
			(job.Priority == best.Priority && seq < bestSeq) {
			best = job
			bestSeq = seq
		}
	}
	if best == nil {
		return nil, jobsError(ErrNotFound, "no job ready")
	}

	best.State = StateActive
	best.Attempt++
	processedOn := now
	best.ProcessedOn = &processedOn
	observeTransition(best.Queue, StateActive)
	return cloneJob(best), nil
}

func (q *MemoryQueue) Progress(ctx context.Context, queue, jobID string, progress json.RawMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.lookup(queue, jobID)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return jobsError(ErrConflict, "cannot report progress on a terminal job")
	}
	job.Progress = cloneRaw(progress)
	return nil
}

func (q *MemoryQueue) Complete(ctx context.Context, queue, jobID string, result json.RawMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.lookup(queue, jobID)
	if err != nil {
		return err
	}
	if job.State != StateActive {
		return jobsError(ErrConflict, "only active jobs can complete")
	}

	now := time.Now().UTC()
	job.State = StateCompleted
	job.Result = cloneRaw(result)
	job.FinishedOn = &now
	q.releaseDedup(job)
	observeTransition(job.Queue, StateCompleted)
	return nil
}

func (q *MemoryQueue) Fail(ctx context.Context, queue, jobID string, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.lookup(queue, jobID)
	if err != nil {
		return err
	}
	if job.State != StateActive {
		return jobsError(ErrConflict, "only active jobs can fail")
	}

	reason := "unknown failure"
	if cause != nil {
		reason = cause.Error()
	}

	if job.Attempt < job.Retry.MaxAttempts {
		delay := job.Retry.Delay(job.Attempt)
		job.State = StateWaiting
		job.RunAt = time.Now().UTC().Add(delay)
		job.Error = reason
		observeTransition(job.Queue, StateWaiting)
		q.log.Debug("job re-queued after failure",
			"queue", job.Queue, "job_id", job.ID, "attempt", job.Attempt, "delay", delay)
		return nil
	}

	now := time.Now().UTC()
	job.State = StateFailed
	job.Error = reason
	job.FinishedOn = &now
	q.releaseDedup(job)
	observeTransition(job.Queue, StateFailed)
	q.log.Warn("job failed permanently",
		"queue", job.Queue, "job_id", job.ID, "attempts", job.Attempt, "error", reason)
	return nil
}

func (q *MemoryQueue) HealthCheck(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return jobsError(ErrClosed, "queue is closed")
	}
	return nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// lookup requires q.mu held.
func (q *MemoryQueue) lookup(queue, jobID string) (*Job, error) {
	if q.closed {
		return nil, jobsError(ErrClosed, "queue is closed")
	}
	state, ok := q.queues[strings.TrimSpace(queue)]
	if !ok {
		return nil, jobsError(ErrNotFound, "unknown queue "+queue)
	}
	job, ok := state.jobs[strings.TrimSpace(jobID)]
	if !ok {
		return nil, jobsError(ErrNotFound, "unknown job "+jobID)
	}
	return job, nil
}

// queueState requires q.mu held.
func (q *MemoryQueue) queueState(queue string) *memoryQueueState {
	state, ok := q.queues[queue]
	if !ok {
		state = &memoryQueueState{
			jobs:  map[string]*Job{},
			dedup: map[string]string{},
			order: map[string]uint64{},
		}
		q.queues[queue] = state
	}
	return state
}

// releaseDedup requires q.mu held. The dedup slot opens only when the job
// holding it reaches a terminal state.
func (q *MemoryQueue) releaseDedup(job *Job) {
	if job.DedupKey == "" {
		return
	}
	state, ok := q.queues[job.Queue]
	if !ok {
		return
	}
	if current, ok := state.dedup[job.DedupKey]; ok && current == job.ID {
		delete(state.dedup, job.DedupKey)
	}
}
