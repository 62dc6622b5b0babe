package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/cache"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/ingest"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/jobs"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/scheduler"
)

// envelope is the uniform response body for API endpoints.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), envelope{Success: false, Message: err.Error()})
}

// statusFor maps domain errors onto HTTP status codes: validation
// failures are the caller's fault, unknown resources are 404, and
// everything else is treated as transient infrastructure failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, jobs.ErrValidation),
		errors.Is(err, ingest.ErrValidation),
		errors.Is(err, scheduler.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrNotFound),
		errors.Is(err, ingest.ErrNotFound),
		errors.Is(err, cache.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
