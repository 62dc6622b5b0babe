package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
)

const (
	defaultRedisPrefix           = "shopsaas:jobs"
	defaultRedisOperationTimeout = 5 * time.Second
	defaultRedisPromoteBatch     = 100
)

var (
	// Atomic dedup check-and-create. Returns the existing job id on a
	// dedup hit, empty string when the job was created.
	redisSubmitScript = redis.NewScript(`
local existing = redis.call("GET", KEYS[1])
if existing then
  return existing
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SET", KEYS[2], ARGV[2])
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[1])
redis.call("HSET", KEYS[4], ARGV[1], ARGV[3])
return ""
`)

	// Promotes due delayed jobs into the ready set, then pops the
	// highest-priority ready job id.
	redisReserveScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
for _, id in ipairs(due) do
  local score = redis.call("HGET", KEYS[3], id)
  if not score then
    score = 0
  end
  redis.call("ZADD", KEYS[2], score, id)
  redis.call("ZREM", KEYS[1], id)
end
local popped = redis.call("ZPOPMIN", KEYS[2])
if #popped == 0 then
  return nil
end
return popped[1]
`)

	// Writes the terminal record and releases the dedup slot only if it
	// still points at this job.
	redisTerminalScript = redis.NewScript(`
redis.call("SET", KEYS[1], ARGV[2])
redis.call("HDEL", KEYS[2], ARGV[1])
if KEYS[3] ~= "" then
  local holder = redis.call("GET", KEYS[3])
  if holder == ARGV[1] then
    redis.call("DEL", KEYS[3])
  end
end
return 1
`)
)

// RedisQueueConfig configures the Redis-backed queue.
type RedisQueueConfig struct {
	Prefix           string
	OperationTimeout time.Duration
	PromoteBatch     int
}

func (c *RedisQueueConfig) normalize() {
	if strings.TrimSpace(c.Prefix) == "" {
		c.Prefix = defaultRedisPrefix
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaultRedisOperationTimeout
	}
	if c.PromoteBatch <= 0 {
		c.PromoteBatch = defaultRedisPromoteBatch
	}
}

// RedisQueue implements Queue on Redis. Job records live under string
// keys, ready jobs in a priority-scored zset, retry-delayed jobs in a
// run-time-scored zset. Dedup slots are plain SETNX-style keys so the
// check-and-create stays atomic across processes.
type RedisQueue struct {
	client *redis.Client
	log    logger.Logger
	config RedisQueueConfig

	mu     sync.RWMutex
	closed bool
}

// NewRedisQueue creates a queue on an existing Redis client.
func NewRedisQueue(client *redis.Client, log logger.Logger, cfg RedisQueueConfig) (*RedisQueue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if log == nil {
		log = logger.Noop()
	}
	cfg.normalize()

	return &RedisQueue{
		client: client,
		log:    log,
		config: cfg,
	}, nil
}

func (q *RedisQueue) Submit(ctx context.Context, queue, kind string, payload json.RawMessage, opts SubmitOptions) (*Handle, error) {
	if err := q.guard(); err != nil {
		return nil, err
	}
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

	encoded, err := json.Marshal(job)
	if err != nil {
		return nil, jobsError(ErrValidation, "marshal job record failed")
	}

	opCtx, cancel := context.WithTimeout(ctx, q.config.OperationTimeout)
	defer cancel()

	seq, err := q.client.Incr(opCtx, q.seqKey(queue)).Result()
	if err != nil {
		observeSubmission(queue, submissionRejected)
		return nil, errors.Join(jobsError(ErrRetryable, "allocate submission sequence failed"), err)
	}
	score := readyScore(job.Priority, seq)

	if dedupKey == "" {
		pipe := q.client.TxPipeline()
		pipe.Set(opCtx, q.recordKey(queue, job.ID), encoded, 0)
		pipe.ZAdd(opCtx, q.readyKey(queue), redis.Z{Score: score, Member: job.ID})
		pipe.HSet(opCtx, q.prioKey(queue), job.ID, score)
		if _, err := pipe.Exec(opCtx); err != nil {
			observeSubmission(queue, submissionRejected)
			return nil, errors.Join(jobsError(ErrRetryable, "enqueue job failed"), err)
		}
		observeSubmission(queue, submissionCreated)
		return &Handle{JobID: job.ID, Queue: queue}, nil
	}

	keys := []string{
		q.dedupSlotKey(queue, dedupKey),
		q.recordKey(queue, job.ID),
		q.readyKey(queue),
		q.prioKey(queue),
	}
	existing, err := redisSubmitScript.Run(opCtx, q.client, keys, job.ID, encoded, score).Text()
	if err != nil && !errors.Is(err, redis.Nil) {
		observeSubmission(queue, submissionRejected)
		return nil, errors.Join(jobsError(ErrRetryable, "enqueue job failed"), err)
	}
	if existing != "" {
		observeSubmission(queue, submissionDeduplicated)
		q.log.Debug("submission deduplicated",
			"queue", queue, "kind", kind, "dedup_key", dedupKey, "job_id", existing)
		return &Handle{JobID: existing, Queue: queue, Deduplicated: true}, nil
	}

	observeSubmission(queue, submissionCreated)
	return &Handle{JobID: job.ID, Queue: queue}, nil
}

func (q *RedisQueue) Job(ctx context.Context, queue, jobID string) (*Job, error) {
	if err := q.guard(); err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, q.config.OperationTimeout)
	defer cancel()

	return q.loadJob(opCtx, strings.TrimSpace(queue), strings.TrimSpace(jobID))
}

func (q *RedisQueue) State(ctx context.Context, queue, jobID string) (State, error) {
	job, err := q.Job(ctx, queue, jobID)
	if err != nil {
		return "", err
	}
	return job.State, nil
}

func (q *RedisQueue) Reserve(ctx context.Context, queue string) (*Job, error) {
	if err := q.guard(); err != nil {
		return nil, err
	}
	queue = strings.TrimSpace(queue)
	if queue == "" {
		return nil, jobsError(ErrValidation, "queue name is required")
	}

	opCtx, cancel := context.WithTimeout(ctx, q.config.OperationTimeout)
	defer cancel()

	keys := []string{q.delayedKey(queue), q.readyKey(queue), q.prioKey(queue)}
	nowMs := time.Now().UTC().UnixMilli()
	jobID, err := redisReserveScript.Run(opCtx, q.client, keys, nowMs, q.config.PromoteBatch).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, jobsError(ErrNotFound, "no job ready")
		}
		return nil, errors.Join(jobsError(ErrRetryable, "reserve job failed"), err)
	}

	job, err := q.loadJob(opCtx, queue, jobID)
	if err != nil {
		return nil, err
	}

	job.State = StateActive
	job.Attempt++
	processedOn := time.Now().UTC()
	job.ProcessedOn = &processedOn
	if err := q.saveJob(opCtx, job); err != nil {
		return nil, err
	}
	observeTransition(queue, StateActive)
	return job, nil
}

func (q *RedisQueue) Progress(ctx context.Context, queue, jobID string, progress json.RawMessage) error {
	if err := q.guard(); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, q.config.OperationTimeout)
	defer cancel()

	job, err := q.loadJob(opCtx, strings.TrimSpace(queue), strings.TrimSpace(jobID))
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return jobsError(ErrConflict, "cannot report progress on a terminal job")
	}
	job.Progress = cloneRaw(progress)
	return q.saveJob(opCtx, job)
}

func (q *RedisQueue) Complete(ctx context.Context, queue, jobID string, result json.RawMessage) error {
	if err := q.guard(); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, q.config.OperationTimeout)
	defer cancel()

	job, err := q.loadJob(opCtx, strings.TrimSpace(queue), strings.TrimSpace(jobID))
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
	if err := q.writeTerminal(opCtx, job); err != nil {
		return err
	}
	observeTransition(job.Queue, StateCompleted)
	return nil
}

func (q *RedisQueue) Fail(ctx context.Context, queue, jobID string, cause error) error {
	if err := q.guard(); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, q.config.OperationTimeout)
	defer cancel()

	job, err := q.loadJob(opCtx, strings.TrimSpace(queue), strings.TrimSpace(jobID))
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
		job.Error = reason
		job.RunAt = time.Now().UTC().Add(delay)

		encoded, err := json.Marshal(job)
		if err != nil {
			return jobsError(ErrValidation, "marshal job record failed")
		}
		pipe := q.client.TxPipeline()
		pipe.Set(opCtx, q.recordKey(job.Queue, job.ID), encoded, 0)
		pipe.ZAdd(opCtx, q.delayedKey(job.Queue), redis.Z{
			Score:  float64(job.RunAt.UnixMilli()),
			Member: job.ID,
		})
		if _, err := pipe.Exec(opCtx); err != nil {
			return errors.Join(jobsError(ErrRetryable, "re-queue job failed"), err)
		}
		observeTransition(job.Queue, StateWaiting)
		return nil
	}

	now := time.Now().UTC()
	job.State = StateFailed
	job.Error = reason
	job.FinishedOn = &now
	if err := q.writeTerminal(opCtx, job); err != nil {
		return err
	}
	observeTransition(job.Queue, StateFailed)
	q.log.Warn("job failed permanently",
		"queue", job.Queue, "job_id", job.ID, "attempts", job.Attempt, "error", reason)
	return nil
}

func (q *RedisQueue) HealthCheck(ctx context.Context) error {
	if err := q.guard(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, q.config.OperationTimeout)
	defer cancel()
	if err := q.client.Ping(opCtx).Err(); err != nil {
		return errors.Join(jobsError(ErrRetryable, "redis ping failed"), err)
	}
	return nil
}

func (q *RedisQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	return nil
}

func (q *RedisQueue) guard() error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return jobsError(ErrClosed, "queue is closed")
	}
	return nil
}

func (q *RedisQueue) loadJob(ctx context.Context, queue, jobID string) (*Job, error) {
	raw, err := q.client.Get(ctx, q.recordKey(queue, jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, jobsError(ErrNotFound, "unknown job "+jobID)
		}
		return nil, errors.Join(jobsError(ErrRetryable, "load job record failed"), err)
	}

	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, errors.Join(jobsError(ErrRetryable, "decode job record failed"), err)
	}
	return &job, nil
}

func (q *RedisQueue) saveJob(ctx context.Context, job *Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return jobsError(ErrValidation, "marshal job record failed")
	}
	if err := q.client.Set(ctx, q.recordKey(job.Queue, job.ID), encoded, 0).Err(); err != nil {
		return errors.Join(jobsError(ErrRetryable, "save job record failed"), err)
	}
	return nil
}

func (q *RedisQueue) writeTerminal(ctx context.Context, job *Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return jobsError(ErrValidation, "marshal job record failed")
	}

	dedupSlot := ""
	if job.DedupKey != "" {
		dedupSlot = q.dedupSlotKey(job.Queue, job.DedupKey)
	}
	keys := []string{q.recordKey(job.Queue, job.ID), q.prioKey(job.Queue), dedupSlot}
	if err := redisTerminalScript.Run(ctx, q.client, keys, job.ID, encoded).Err(); err != nil {
		return errors.Join(jobsError(ErrRetryable, "finalize job failed"), err)
	}
	return nil
}

func (q *RedisQueue) recordKey(queue, jobID string) string {
	return q.config.Prefix + ":" + queue + ":job:" + jobID
}

func (q *RedisQueue) dedupSlotKey(queue, dedupKey string) string {
	return q.config.Prefix + ":" + queue + ":dedup:" + dedupKey
}

func (q *RedisQueue) readyKey(queue string) string {
	return q.config.Prefix + ":" + queue + ":ready"
}

func (q *RedisQueue) delayedKey(queue string) string {
	return q.config.Prefix + ":" + queue + ":delayed"
}

func (q *RedisQueue) prioKey(queue string) string {
	return q.config.Prefix + ":" + queue + ":prio"
}

func (q *RedisQueue) seqKey(queue string) string {
	return q.config.Prefix + ":" + queue + ":seq"
}

// readyScore orders the ready zset: higher priority first, then
// submission order. ZPOPMIN returns the lowest score.
func readyScore(priority int, seq int64) float64 {
	return float64(-priority)*1e12 + float64(seq)
}
