package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
)

// DefaultFireTimeout bounds one trigger fire.
const DefaultFireTimeout = 10 * time.Minute

// Config controls runtime behavior.
type Config struct {
	FireTimeout time.Duration
}

func (c *Config) normalize() {
	if c.FireTimeout <= 0 {
		c.FireTimeout = DefaultFireTimeout
	}
}

// Runtime runs registered triggers on independent timer loops. A single
// runtime instance is assumed per deployment; once-per-tick is a
// best-effort in-process guarantee, not a distributed lock.
type Runtime struct {
	log    logger.Logger
	config Config

	mu       sync.Mutex
	triggers map[string]Trigger
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewRuntime creates a scheduler runtime.
func NewRuntime(log logger.Logger, cfg Config) *Runtime {
	if log == nil {
		log = logger.Noop()
	}
	cfg.normalize()
	return &Runtime{
		log:      log,
		config:   cfg,
		triggers: map[string]Trigger{},
	}
}

// Register adds a trigger. Duplicate names are rejected; registration
// after Start is rejected.
func (r *Runtime) Register(trigger Trigger) error {
	if err := trigger.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return schedulerError(ErrConflict, "cannot register triggers while running")
	}
	if _, exists := r.triggers[trigger.Name]; exists {
		return schedulerError(ErrConflict, fmt.Sprintf("trigger %q is already registered", trigger.Name))
	}
	r.triggers[trigger.Name] = trigger
	return nil
}

// Start launches one loop per registered trigger and returns. Loops run
// until Stop or context cancellation.
func (r *Runtime) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return schedulerError(ErrConflict, "scheduler already running")
	}
	if len(r.triggers) == 0 {
		r.mu.Unlock()
		return schedulerError(ErrValidation, "no triggers registered")
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	triggers := make([]Trigger, 0, len(r.triggers))
	for _, trigger := range r.triggers {
		triggers = append(triggers, trigger)
	}
	r.mu.Unlock()

	for _, trigger := range triggers {
		r.wg.Add(1)
		go r.runLoop(runCtx, trigger)
	}

	r.log.Info("scheduler started", "triggers", len(triggers))
	return nil
}

// Stop cancels all trigger loops and waits for in-flight fires.
func (r *Runtime) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.cancel = nil
	r.running = false
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		r.log.Info("scheduler stopped")
		return nil
	}
}

func (r *Runtime) runLoop(ctx context.Context, trigger Trigger) {
	defer r.wg.Done()

	now := time.Now().UTC()
	for {
		nextRun, err := trigger.NextRun(now)
		if err != nil {
			r.log.Error("trigger has invalid schedule", "trigger", trigger.Name, "error", err)
			return
		}

		wait := time.Until(nextRun)
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		r.Fire(ctx, trigger)
		now = nextRun.Add(time.Second)
	}
}

// Fire executes one trigger body under failure isolation: panics are
// recovered and errors logged, never propagated. Exposed so tests and
// operator tooling can fire a trigger without waiting on wall-clock time.
func (r *Runtime) Fire(ctx context.Context, trigger Trigger) {
	fireCtx, cancel := context.WithTimeout(ctx, r.config.FireTimeout)
	defer cancel()

	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("trigger panicked", "trigger", trigger.Name, "panic", rec)
		}
	}()

	if err := trigger.Action(fireCtx); err != nil {
		r.log.Error("trigger fire failed",
			"trigger", trigger.Name, "duration", time.Since(started), "error", err)
		return
	}
	r.log.Info("trigger fired",
		"trigger", trigger.Name, "duration", time.Since(started))
}
