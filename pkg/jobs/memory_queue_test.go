package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
)

func newTestQueue() *MemoryQueue {
	return NewMemoryQueue(logger.Noop())
}

func TestSubmitValidation(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	if _, err := q.Submit(ctx, "", "order-created", nil, SubmitOptions{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing queue, got %v", err)
	}
	if _, err := q.Submit(ctx, "order-events", "", nil, SubmitOptions{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing kind, got %v", err)
	}
}

func TestSubmitDedupCollapsesWhileNonTerminal(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()
	opts := SubmitOptions{DedupKey: "order-1001"}

	first, err := q.Submit(ctx, "order-events", "order-created", nil, opts)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.Deduplicated {
		t.Fatal("first submission must create a job")
	}

	for i := 0; i < 5; i++ {
		next, err := q.Submit(ctx, "order-events", "order-created", nil, opts)
		if err != nil {
			t.Fatalf("repeat submit %d: %v", i, err)
		}
		if !next.Deduplicated {
			t.Fatalf("repeat submit %d created a new job", i)
		}
		if next.JobID != first.JobID {
			t.Fatalf("repeat submit %d returned handle %s, want %s", i, next.JobID, first.JobID)
		}
	}
}

func TestSubmitDedupIsScopedPerQueue(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()
	opts := SubmitOptions{DedupKey: "order-1001"}

	a, err := q.Submit(ctx, "order-events", "order-created", nil, opts)
	if err != nil {
		t.Fatalf("submit a: %v", err)
	}
	b, err := q.Submit(ctx, "historical-sync", "order-created", nil, opts)
	if err != nil {
		t.Fatalf("submit b: %v", err)
	}
	if b.Deduplicated || a.JobID == b.JobID {
		t.Fatal("dedup keys must not collide across queues")
	}
}

func TestDedupSlotReleasedOnTerminal(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()
	opts := SubmitOptions{DedupKey: "historical-brand-7"}

	first, err := q.Submit(ctx, "historical-sync", "historical-sync", nil, opts)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	job, err := q.Reserve(ctx, "historical-sync")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if job.ID != first.JobID {
		t.Fatalf("reserved %s, want %s", job.ID, first.JobID)
	}
	if err := q.Complete(ctx, "historical-sync", job.ID, json.RawMessage(`{"synced":true}`)); err != nil {
		t.Fatalf("complete: %v", err)
	}

	second, err := q.Submit(ctx, "historical-sync", "historical-sync", nil, opts)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.Deduplicated {
		t.Fatal("terminal job must release the dedup slot")
	}
	if second.JobID == first.JobID {
		t.Fatal("resubmission must create a fresh job")
	}
}

func TestReserveOrdersByPriorityThenSubmission(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	low, _ := q.Submit(ctx, "city-classification", "classify", nil, SubmitOptions{Priority: 0})
	adhoc, _ := q.Submit(ctx, "city-classification", "classify", nil, SubmitOptions{Priority: 10})
	lowSecond, _ := q.Submit(ctx, "city-classification", "classify", nil, SubmitOptions{Priority: 0})

	got := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		job, err := q.Reserve(ctx, "city-classification")
		if err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
		got = append(got, job.ID)
	}

	want := []string{adhoc.JobID, low.JobID, lowSecond.JobID}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reserve order %v, want %v", got, want)
		}
	}

	if _, err := q.Reserve(ctx, "city-classification"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on drained queue, got %v", err)
	}
}

func TestFailRetriesWithExponentialBackoffThenTerminates(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	retry := RetryPolicy{
		MaxAttempts: 3,
		Backoff:     BackoffPolicy{Type: BackoffExponential, BaseDelay: 20 * time.Millisecond},
	}
	handle, err := q.Submit(ctx, "order-events", "order-created", nil, SubmitOptions{Retry: &retry})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		job := awaitReserve(t, q, "order-events", time.Second)
		if job.Attempt != attempt {
			t.Fatalf("attempt = %d, want %d", job.Attempt, attempt)
		}
		if err := q.Fail(ctx, "order-events", job.ID, fmt.Errorf("boom %d", attempt)); err != nil {
			t.Fatalf("fail attempt %d: %v", attempt, err)
		}

		state, err := q.State(ctx, "order-events", handle.JobID)
		if err != nil {
			t.Fatalf("state after attempt %d: %v", attempt, err)
		}
		if attempt < 3 {
			if state != StateWaiting {
				t.Fatalf("state after attempt %d = %s, want waiting", attempt, state)
			}
			loaded, err := q.Job(ctx, "order-events", handle.JobID)
			if err != nil {
				t.Fatalf("job after attempt %d: %v", attempt, err)
			}
			wantDelay := retry.Delay(attempt)
			gap := time.Until(loaded.RunAt)
			if gap <= 0 || gap > wantDelay+50*time.Millisecond {
				t.Fatalf("attempt %d run_at gap %v, want about %v", attempt, gap, wantDelay)
			}
		} else {
			if state != StateFailed {
				t.Fatalf("state after final attempt = %s, want failed", state)
			}
		}
	}

	final, err := q.Job(ctx, "order-events", handle.JobID)
	if err != nil {
		t.Fatalf("final job: %v", err)
	}
	if final.Attempt != 3 {
		t.Fatalf("final attempt = %d, want 3", final.Attempt)
	}
	if final.Error != "boom 3" {
		t.Fatalf("final error = %q, want %q", final.Error, "boom 3")
	}
	if final.FinishedOn == nil {
		t.Fatal("terminal job must record finished_on")
	}

	// Exhausted jobs are never auto-resubmitted.
	if _, err := q.Reserve(ctx, "order-events"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after exhaustion, got %v", err)
	}
}

func TestProgressAndTerminalGuards(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	handle, _ := q.Submit(ctx, "order-events", "order-created", nil, SubmitOptions{})

	if err := q.Progress(ctx, "order-events", handle.JobID, json.RawMessage(`25`)); err != nil {
		t.Fatalf("progress on waiting job: %v", err)
	}
	if err := q.Complete(ctx, "order-events", handle.JobID, nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("completing a waiting job must conflict, got %v", err)
	}

	job, err := q.Reserve(ctx, "order-events")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := q.Progress(ctx, "order-events", job.ID, json.RawMessage(`75`)); err != nil {
		t.Fatalf("progress on active job: %v", err)
	}
	if err := q.Complete(ctx, "order-events", job.ID, json.RawMessage(`{"ok":true}`)); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := q.Progress(ctx, "order-events", job.ID, json.RawMessage(`100`)); !errors.Is(err, ErrConflict) {
		t.Fatalf("progress on terminal job must conflict, got %v", err)
	}
	if err := q.Fail(ctx, "order-events", job.ID, errors.New("late")); !errors.Is(err, ErrConflict) {
		t.Fatalf("failing a terminal job must conflict, got %v", err)
	}
}

func TestLookupUnknown(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	if _, err := q.Job(ctx, "order-events", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown queue, got %v", err)
	}

	if _, err := q.Submit(ctx, "order-events", "order-created", nil, SubmitOptions{}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := q.Job(ctx, "order-events", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown job, got %v", err)
	}
}

func TestClosedQueueRejectsOperations(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := q.Submit(ctx, "order-events", "order-created", nil, SubmitOptions{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := q.HealthCheck(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from health check, got %v", err)
	}
}

// awaitReserve polls until a retry-delayed job becomes ready again.
func awaitReserve(t *testing.T, q *MemoryQueue, queue string, timeout time.Duration) *Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, err := q.Reserve(context.Background(), queue)
		if err == nil {
			return job
		}
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("reserve: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no job became ready within %v", timeout)
	return nil
}
