// Package classify fans the daily unknown-city classification workload
// out into bounded queued batches. The downstream classifier is
// bulk-rate-limited, so chunking bounds per-job latency and keeps
// retries scoped to a handful of cities instead of a whole day's backlog.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/jobs"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
)

const (
	// QueueCityClassification holds classification batch jobs.
	QueueCityClassification = "city-classification"
	// KindClassifyCities tags one batch of city/state pairs.
	KindClassifyCities = "classify-cities"

	// DefaultChunkSize bounds how many pairs one job carries.
	DefaultChunkSize = 20

	// BatchPriority is shared by all cron-originated batches, below
	// AdhocPriority so operator-requested classifications jump ahead.
	BatchPriority = 0
	AdhocPriority = 10
)

// BatchRetryPolicy is applied to every classification batch job.
var BatchRetryPolicy = jobs.RetryPolicy{
	MaxAttempts: 3,
	Backoff: jobs.BackoffPolicy{
		Type:      jobs.BackoffExponential,
		BaseDelay: 2 * time.Second,
	},
}

// CityState is one distinct (city, state) observation.
type CityState struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// LookupKey canonicalizes a city/state pair. Correctness of the
// already-classified filter depends on two logically-equivalent
// observations producing byte-identical keys, so all lookups go through
// this one function.
func LookupKey(city, state string) string {
	return strings.ToLower(strings.TrimSpace(city)) + "_" +
		strings.ToLower(strings.TrimSpace(state)) + "_india"
}

// CandidateSource yields the distinct city/state pairs observed in a
// time window.
type CandidateSource interface {
	DistinctCityStates(ctx context.Context, from, to time.Time) ([]CityState, error)
}

// ResultStore answers which lookup keys are already classified.
type ResultStore interface {
	ExistingLookupKeys(ctx context.Context, keys []string) (map[string]struct{}, error)
}

// CityBatch is one bounded slice of the unresolved set. It is not
// persisted on its own; each batch becomes exactly one queued job.
type CityBatch struct {
	Pairs        []CityState `json:"pairs"`
	BatchNumber  int         `json:"batch_number"`
	TotalBatches int         `json:"total_batches"`
}

// RunReport summarizes one partitioner fire. A chunk's enqueue failure
// never prevents the remaining chunks from being attempted.
type RunReport struct {
	Day          time.Time
	Candidates   int
	New          int
	TotalBatches int
	Submitted    int
	Failed       int
	Errors       []error
}

// Partitioner splits the day's unclassified cities into queued batches.
type Partitioner struct {
	source    CandidateSource
	results   ResultStore
	queue     jobs.Queue
	log       logger.Logger
	chunkSize int
}

// NewPartitioner creates a partitioner. chunkSize <= 0 selects the default.
func NewPartitioner(source CandidateSource, results ResultStore, queue jobs.Queue, log logger.Logger, chunkSize int) (*Partitioner, error) {
	if source == nil {
		return nil, errors.New("candidate source is required")
	}
	if results == nil {
		return nil, errors.New("result store is required")
	}
	if queue == nil {
		return nil, errors.New("queue is required")
	}
	if log == nil {
		log = logger.Noop()
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Partitioner{
		source:    source,
		results:   results,
		queue:     queue,
		log:       log,
		chunkSize: chunkSize,
	}, nil
}

// Run partitions the given UTC calendar day's unclassified cities and
// submits one job per chunk. Zero new candidates is a logged no-op, not
// an error.
func (p *Partitioner) Run(ctx context.Context, day time.Time) (*RunReport, error) {
	from := day.UTC().Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	report := &RunReport{Day: from}

	candidates, err := p.source.DistinctCityStates(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("collect city candidates: %w", err)
	}
	report.Candidates = len(candidates)

	pending, keys := dedupeByLookupKey(candidates)
	existing, err := p.results.ExistingLookupKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("filter classified cities: %w", err)
	}

	fresh := make([]CityState, 0, len(pending))
	for _, pair := range pending {
		if _, done := existing[LookupKey(pair.City, pair.State)]; !done {
			fresh = append(fresh, pair)
		}
	}
	report.New = len(fresh)

	if len(fresh) == 0 {
		p.log.Info("no new cities to classify", "day", from.Format("2006-01-02"),
			"candidates", report.Candidates)
		return report, nil
	}

	batches := Partition(fresh, p.chunkSize)
	report.TotalBatches = len(batches)

	retry := BatchRetryPolicy
	for _, batch := range batches {
		payload, err := jobs.MarshalPayload(batch)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, err)
			continue
		}

		dedupKey := fmt.Sprintf("cities-%s-batch-%d-of-%d",
			from.Format("2006-01-02"), batch.BatchNumber, batch.TotalBatches)
		handle, err := p.queue.Submit(ctx, QueueCityClassification, KindClassifyCities, payload, jobs.SubmitOptions{
			DedupKey: dedupKey,
			Priority: BatchPriority,
			Retry:    &retry,
		})
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Errorf("submit batch %d/%d: %w",
				batch.BatchNumber, batch.TotalBatches, err))
			p.log.Error("classification batch enqueue failed",
				"batch", batch.BatchNumber, "total", batch.TotalBatches, "error", err)
			continue
		}
		report.Submitted++
		p.log.Debug("classification batch enqueued",
			"batch", batch.BatchNumber, "total", batch.TotalBatches,
			"size", len(batch.Pairs), "job_id", handle.JobID)
	}

	p.log.Info("city classification fan-out finished",
		"day", from.Format("2006-01-02"), "candidates", report.Candidates,
		"new", report.New, "batches", report.TotalBatches,
		"submitted", report.Submitted, "failed", report.Failed)
	return report, nil
}

// Partition splits pairs into fixed-size chunks preserving input order
// and annotates each with its batch number and the total count.
func Partition(pairs []CityState, chunkSize int) []CityBatch {
	if len(pairs) == 0 || chunkSize <= 0 {
		return nil
	}

	total := (len(pairs) + chunkSize - 1) / chunkSize
	batches := make([]CityBatch, 0, total)
	for i := 0; i < len(pairs); i += chunkSize {
		end := i + chunkSize
		if end > len(pairs) {
			end = len(pairs)
		}
		batches = append(batches, CityBatch{
			Pairs:        pairs[i:end],
			BatchNumber:  len(batches) + 1,
			TotalBatches: total,
		})
	}
	return batches
}

// dedupeByLookupKey drops repeated observations of the same canonical
// key, preserving first-occurrence order.
func dedupeByLookupKey(pairs []CityState) ([]CityState, []string) {
	seen := make(map[string]struct{}, len(pairs))
	out := make([]CityState, 0, len(pairs))
	keys := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		key := LookupKey(pair.City, pair.State)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, pair)
		keys = append(keys, key)
	}
	return out, keys
}
