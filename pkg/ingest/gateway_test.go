package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/jobs"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
)

type fakeBrands struct {
	brands map[string]*Brand
}

func (f *fakeBrands) Brand(_ context.Context, brandID string) (*Brand, error) {
	brand, ok := f.brands[brandID]
	if !ok {
		return nil, ingestError(ErrNotFound, "unknown brand "+brandID)
	}
	return brand, nil
}

func newTestGateway(t *testing.T) (*Gateway, *jobs.MemoryQueue) {
	t.Helper()
	queue := jobs.NewMemoryQueue(logger.Noop())
	brands := &fakeBrands{brands: map[string]*Brand{
		"brand-7":  {ID: "brand-7", ShopDomain: "acme.myshopify.com", AccessToken: "shpat_secret"},
		"brand-11": {ID: "brand-11", ShopDomain: "bare.myshopify.com"},
	}}
	gw, err := NewGateway(queue, brands, logger.Noop())
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return gw, queue
}

func TestOrderCreatedCollapsesDuplicateDeliveries(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()
	event := json.RawMessage(`{"id": 1001, "total_price": "499.00"}`)

	first, err := gw.OrderCreated(ctx, "acme.myshopify.com", event)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if first.Deduplicated {
		t.Fatal("first delivery must create a job")
	}

	second, err := gw.OrderCreated(ctx, "acme.myshopify.com", event)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if !second.Deduplicated || second.JobID != first.JobID {
		t.Fatalf("duplicate delivery produced handle %+v, want collapse onto %s", second, first.JobID)
	}
}

func TestOrderCreatedValidation(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	if _, err := gw.OrderCreated(ctx, "acme.myshopify.com", json.RawMessage(`{"total_price":"1.00"}`)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing id, got %v", err)
	}
	if _, err := gw.OrderCreated(ctx, "acme.myshopify.com", json.RawMessage(`not-json`)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for malformed body, got %v", err)
	}
}

func TestRefundCreatedNeverCollapses(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()
	event := json.RawMessage(`{"order_id": 1001, "amount": "120.00"}`)

	seen := map[string]struct{}{}
	for i := 0; i < 4; i++ {
		handle, err := gw.RefundCreated(ctx, "acme.myshopify.com", event)
		if err != nil {
			t.Fatalf("refund %d: %v", i, err)
		}
		if handle.Deduplicated {
			t.Fatalf("refund %d collapsed onto an earlier job", i)
		}
		if _, dup := seen[handle.JobID]; dup {
			t.Fatalf("refund %d reused job id %s", i, handle.JobID)
		}
		seen[handle.JobID] = struct{}{}
	}
}

func TestRefundCreatedValidation(t *testing.T) {
	gw, _ := newTestGateway(t)
	if _, err := gw.RefundCreated(context.Background(), "acme.myshopify.com", json.RawMessage(`{}`)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing order_id, got %v", err)
	}
}

func TestHistoricalSyncDedupPerBrand(t *testing.T) {
	gw, queue := newTestGateway(t)
	ctx := context.Background()

	first, err := gw.HistoricalSync(ctx, "brand-7")
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	second, err := gw.HistoricalSync(ctx, "brand-7")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if !second.Deduplicated || second.JobID != first.JobID {
		t.Fatalf("second sync = %+v, want collapse onto %s", second, first.JobID)
	}

	// Finishing the sync releases the brand's slot.
	job, err := queue.Reserve(ctx, QueueHistoricalSync)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := queue.Complete(ctx, QueueHistoricalSync, job.ID, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	third, err := gw.HistoricalSync(ctx, "brand-7")
	if err != nil {
		t.Fatalf("third sync: %v", err)
	}
	if third.Deduplicated {
		t.Fatal("completed sync must allow a fresh job")
	}
}

func TestHistoricalSyncRequiresBrandAndCredentials(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	if _, err := gw.HistoricalSync(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown brand, got %v", err)
	}
	if _, err := gw.HistoricalSync(ctx, "brand-11"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing credentials, got %v", err)
	}
	if _, err := gw.HistoricalSync(ctx, "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank id, got %v", err)
	}
}

func TestDedupKeyDerivation(t *testing.T) {
	if got := OrderDedupKey(1001); got != "order-1001" {
		t.Fatalf("OrderDedupKey = %q", got)
	}
	if got := RefundDedupKey(1001, "abc"); got != "refund-1001-abc" {
		t.Fatalf("RefundDedupKey = %q", got)
	}
	if got := HistoricalSyncDedupKey("brand-7"); got != "historical-brand-7" {
		t.Fatalf("HistoricalSyncDedupKey = %q", got)
	}
}
