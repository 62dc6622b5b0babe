package jobs

import (
	"context"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
)

// Property: any number of concurrent submissions sharing one dedup key
// produce exactly one job, and every submission resolves to its handle.
func TestDedupPropertyConcurrentSubmissions(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("concurrent same-key submissions collapse to one job", prop.ForAll(
		func(submitters int, dedupKey string) bool {
			q := NewMemoryQueue(logger.Noop())
			defer func() { _ = q.Close() }()

			handles := make([]*Handle, submitters)
			var wg sync.WaitGroup
			wg.Add(submitters)
			for i := 0; i < submitters; i++ {
				go func(slot int) {
					defer wg.Done()
					h, err := q.Submit(context.Background(), "order-events", "order-created", nil,
						SubmitOptions{DedupKey: dedupKey})
					if err != nil {
						return
					}
					handles[slot] = h
				}(i)
			}
			wg.Wait()

			created := 0
			jobID := ""
			for _, h := range handles {
				if h == nil {
					return false
				}
				if !h.Deduplicated {
					created++
				}
				if jobID == "" {
					jobID = h.JobID
				}
				if h.JobID != jobID {
					return false
				}
			}
			return created == 1
		},
		gen.IntRange(2, 16),
		gen.RegexMatch(`order-[0-9]{1,8}`),
	))

	properties.Property("distinct keys never collapse", prop.ForAll(
		func(count int) bool {
			q := NewMemoryQueue(logger.Noop())
			defer func() { _ = q.Close() }()

			seen := map[string]struct{}{}
			for i := 0; i < count; i++ {
				h, err := q.Submit(context.Background(), "order-events", "refund-created", nil,
					SubmitOptions{DedupKey: refundKeyForTest(i)})
				if err != nil || h.Deduplicated {
					return false
				}
				if _, dup := seen[h.JobID]; dup {
					return false
				}
				seen[h.JobID] = struct{}{}
			}
			return len(seen) == count
		},
		gen.IntRange(1, 32),
	))

	properties.TestingRun(t)
}

func refundKeyForTest(n int) string {
	return "refund-555-" + string(rune('a'+n%26)) + string(rune('a'+(n/26)%26))
}
