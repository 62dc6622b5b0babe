// Package ingest translates inbound webhook events and manual sync
// requests into queue submissions. It validates minimal shape, derives
// the dedup key for each event kind, and acknowledges as soon as the
// job is enqueued; downstream processing outcomes are only visible
// through the job status surface.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/jobs"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
)

// Queue names owned by the gateway.
const (
	QueueOrderEvents    = "order-events"
	QueueHistoricalSync = "historical-sync"
)

// Job kinds within those queues.
const (
	KindOrderCreated   = "order-created"
	KindRefundCreated  = "refund-created"
	KindHistoricalSync = "historical-sync"
)

var (
	// ErrValidation classifies structurally invalid events.
	ErrValidation = errors.New("ingest validation error")
	// ErrNotFound classifies unknown brands or missing credentials' owner.
	ErrNotFound = errors.New("ingest not found")
)

func ingestError(kind error, message string) error {
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}

// Brand is the slice of the brand document the gateway needs.
type Brand struct {
	ID          string
	ShopDomain  string
	AccessToken string
}

// HasCredentials reports whether the brand stores platform API credentials.
func (b *Brand) HasCredentials() bool {
	return b != nil && strings.TrimSpace(b.AccessToken) != ""
}

// BrandDirectory looks brands up by id. Implementations return an error
// matching ErrNotFound for unknown brands.
type BrandDirectory interface {
	Brand(ctx context.Context, brandID string) (*Brand, error)
}

// OrderDedupKey derives the dedup key for order-created events. One
// pending job per order id: duplicate webhook deliveries for the same
// creation event collapse into the original job.
func OrderDedupKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// RefundDedupKey derives the dedup key for refund-created events. The
// nonce keeps distinct refunds against one order from collapsing; it
// also means an at-least-once redelivery of the same refund creates a
// second job, which downstream workers must tolerate.
func RefundDedupKey(orderID int64, nonce string) string {
	return fmt.Sprintf("refund-%d-%s", orderID, nonce)
}

// HistoricalSyncDedupKey derives the dedup key for historical syncs:
// one in-flight sync per brand no matter how often it is triggered.
func HistoricalSyncDedupKey(brandID string) string {
	return "historical-" + brandID
}

type orderCreatedEvent struct {
	ID int64 `json:"id"`
}

type refundCreatedEvent struct {
	OrderID int64 `json:"order_id"`
}

type webhookPayload struct {
	ShopDomain string          `json:"shop_domain"`
	ReceivedAt time.Time       `json:"received_at"`
	Event      json.RawMessage `json:"event"`
}

type historicalSyncPayload struct {
	BrandID     string    `json:"brand_id"`
	ShopDomain  string    `json:"shop_domain"`
	RequestedAt time.Time `json:"requested_at"`
}

// Gateway turns inbound events into deduplicated queue submissions.
type Gateway struct {
	queue  jobs.Queue
	brands BrandDirectory
	log    logger.Logger
}

// NewGateway creates an ingestion gateway.
func NewGateway(queue jobs.Queue, brands BrandDirectory, log logger.Logger) (*Gateway, error) {
	if queue == nil {
		return nil, errors.New("queue is required")
	}
	if brands == nil {
		return nil, errors.New("brand directory is required")
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Gateway{queue: queue, brands: brands, log: log}, nil
}

// OrderCreated enqueues an order-created webhook event. Requires the
// order id; repeated deliveries for the same order collapse into one job.
func (g *Gateway) OrderCreated(ctx context.Context, shopDomain string, event json.RawMessage) (*jobs.Handle, error) {
	var order orderCreatedEvent
	if err := json.Unmarshal(event, &order); err != nil {
		return nil, errors.Join(ingestError(ErrValidation, "malformed order-created event"), err)
	}
	if order.ID == 0 {
		return nil, ingestError(ErrValidation, "order id is required")
	}

	payload, err := marshalWebhookPayload(shopDomain, event)
	if err != nil {
		return nil, err
	}

	handle, err := g.queue.Submit(ctx, QueueOrderEvents, KindOrderCreated, payload, jobs.SubmitOptions{
		DedupKey: OrderDedupKey(order.ID),
	})
	if err != nil {
		return nil, err
	}

	g.log.Info("order-created event enqueued",
		"shop_domain", shopDomain, "order_id", order.ID,
		"job_id", handle.JobID, "deduplicated", handle.Deduplicated)
	return handle, nil
}

// RefundCreated enqueues a refund-created webhook event. Requires the
// order id; each delivery gets its own nonce so multiple refunds against
// one order never collapse.
func (g *Gateway) RefundCreated(ctx context.Context, shopDomain string, event json.RawMessage) (*jobs.Handle, error) {
	var refund refundCreatedEvent
	if err := json.Unmarshal(event, &refund); err != nil {
		return nil, errors.Join(ingestError(ErrValidation, "malformed refund-created event"), err)
	}
	if refund.OrderID == 0 {
		return nil, ingestError(ErrValidation, "order_id is required")
	}

	payload, err := marshalWebhookPayload(shopDomain, event)
	if err != nil {
		return nil, err
	}

	handle, err := g.queue.Submit(ctx, QueueOrderEvents, KindRefundCreated, payload, jobs.SubmitOptions{
		DedupKey: RefundDedupKey(refund.OrderID, uuid.NewString()),
	})
	if err != nil {
		return nil, err
	}

	g.log.Info("refund-created event enqueued",
		"shop_domain", shopDomain, "order_id", refund.OrderID, "job_id", handle.JobID)
	return handle, nil
}

// HistoricalSync enqueues a full historical data sync for one brand.
// The brand must exist and hold stored platform credentials. At most one
// sync per brand is in flight regardless of how often it is triggered.
func (g *Gateway) HistoricalSync(ctx context.Context, brandID string) (*jobs.Handle, error) {
	brandID = strings.TrimSpace(brandID)
	if brandID == "" {
		return nil, ingestError(ErrValidation, "brand id is required")
	}

	brand, err := g.brands.Brand(ctx, brandID)
	if err != nil {
		return nil, err
	}
	if !brand.HasCredentials() {
		return nil, ingestError(ErrValidation, "brand has no stored platform credentials")
	}

	payload, err := json.Marshal(historicalSyncPayload{
		BrandID:     brandID,
		ShopDomain:  brand.ShopDomain,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, errors.Join(ingestError(ErrValidation, "marshal sync payload failed"), err)
	}

	handle, err := g.queue.Submit(ctx, QueueHistoricalSync, KindHistoricalSync, payload, jobs.SubmitOptions{
		DedupKey: HistoricalSyncDedupKey(brandID),
	})
	if err != nil {
		return nil, err
	}

	g.log.Info("historical sync enqueued",
		"brand_id", brandID, "job_id", handle.JobID, "deduplicated", handle.Deduplicated)
	return handle, nil
}

func marshalWebhookPayload(shopDomain string, event json.RawMessage) (json.RawMessage, error) {
	payload, err := json.Marshal(webhookPayload{
		ShopDomain: strings.TrimSpace(shopDomain),
		ReceivedAt: time.Now().UTC(),
		Event:      event,
	})
	if err != nil {
		return nil, errors.Join(ingestError(ErrValidation, "marshal webhook payload failed"), err)
	}
	return payload, nil
}
