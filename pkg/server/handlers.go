package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/ingest"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/jobs"
)

const shopDomainHeader = "X-Shop-Domain"

// maxWebhookBody bounds webhook payload reads. Shopify order payloads
// are well under this.
const maxWebhookBody = 1 << 20

func (s *Server) handleOrderCreated(c *gin.Context) {
	s.handleWebhook(c, "order-created event accepted", s.gateway.OrderCreated)
}

func (s *Server) handleRefundCreated(c *gin.Context) {
	s.handleWebhook(c, "refund-created event accepted", s.gateway.RefundCreated)
}

func (s *Server) handleWebhook(c *gin.Context, message string, enqueue func(context.Context, string, json.RawMessage) (*jobs.Handle, error)) {
	shopDomain := c.GetHeader(shopDomainHeader)
	if shopDomain == "" {
		respondError(c, fmt.Errorf("%w: %s header is required", ingest.ErrValidation, shopDomainHeader))
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, err)
		return
	}

	handle, err := enqueue(c.Request.Context(), shopDomain, body)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, message, handle)
}

func (s *Server) handleHistoricalSync(c *gin.Context) {
	handle, err := s.gateway.HistoricalSync(c.Request.Context(), c.Param("brandId"))
	if err != nil {
		respondError(c, err)
		return
	}
	message := "historical sync queued"
	if handle.Deduplicated {
		message = "historical sync already in progress"
	}
	respondOK(c, message, handle)
}

func (s *Server) handleJobStatus(c *gin.Context) {
	status, err := s.jobStatus.Status(c.Request.Context(), c.Param("queue"), c.Param("jobId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", status)
}

func (s *Server) handleCacheStats(c *gin.Context) {
	stats, err := s.caches.Stats(c.Query("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", stats)
}

func (s *Server) handleCacheFlush(c *gin.Context) {
	outcomes, err := s.caches.Flush(c.Query("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	// Per-cache failures do not abort the flush; report them instead.
	results := make(map[string]string, len(outcomes))
	failures := 0
	for name, flushErr := range outcomes {
		if flushErr != nil {
			results[name] = flushErr.Error()
			failures++
			continue
		}
		results[name] = "flushed"
	}
	if failures > 0 {
		c.JSON(http.StatusInternalServerError, envelope{
			Success: false,
			Message: "some caches failed to flush",
			Data:    results,
		})
		return
	}
	respondOK(c, "caches flushed", results)
}

func (s *Server) handleCacheDeleteKey(c *gin.Context) {
	deleted, err := s.caches.DeleteKey(c.Param("name"), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	message := "key not present"
	if deleted {
		message = "key deleted"
	}
	respondOK(c, message, gin.H{"deleted": deleted})
}

func (s *Server) handleHealth(c *gin.Context) {
	type componentHealth struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	components := make(map[string]componentHealth, len(s.health))
	healthy := true
	for _, check := range s.health {
		if err := check.Check(c.Request.Context()); err != nil {
			components[check.Name] = componentHealth{Status: "unhealthy", Error: err.Error()}
			healthy = false
			continue
		}
		components[check.Name] = componentHealth{Status: "healthy"}
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{"status": overall, "components": components})
}
