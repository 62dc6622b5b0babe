// Package server exposes the HTTP surface: webhook intake, historical
// sync triggers, job status reads and cache administration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/cache"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/ingest"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/jobs"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
)

// Config holds HTTP server settings.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func (c *Config) normalize() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 15 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
}

// HealthCheck is one named component probe reported by /health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies are the collaborators the handlers dispatch to.
type Dependencies struct {
	Gateway   *ingest.Gateway
	JobStatus *jobs.StatusService
	Caches    *cache.Registry
	Health    []HealthCheck
}

// Server hosts the HTTP API.
type Server struct {
	cfg       Config
	engine    *gin.Engine
	httpSrv   *http.Server
	log       logger.Logger
	gateway   *ingest.Gateway
	jobStatus *jobs.StatusService
	caches    *cache.Registry
	health    []HealthCheck
}

// New builds the server and registers all routes.
func New(cfg Config, deps Dependencies, log logger.Logger) (*Server, error) {
	cfg.normalize()
	if deps.Gateway == nil {
		return nil, errors.New("ingestion gateway is required")
	}
	if deps.JobStatus == nil {
		return nil, errors.New("job status service is required")
	}
	if deps.Caches == nil {
		return nil, errors.New("cache registry is required")
	}
	if log == nil {
		log = logger.Noop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), requestLogging(log))

	s := &Server{
		cfg:       cfg,
		engine:    engine,
		log:       log,
		gateway:   deps.Gateway,
		jobStatus: deps.JobStatus,
		caches:    deps.Caches,
		health:    deps.Health,
	}
	s.registerRoutes()

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	webhooks := s.engine.Group("/webhooks")
	webhooks.POST("/orders/create", s.handleOrderCreated)
	webhooks.POST("/refunds/create", s.handleRefundCreated)

	api := s.engine.Group("/api")
	api.POST("/brands/:brandId/historical-sync", s.handleHistoricalSync)
	api.GET("/jobs/:queue/:jobId", s.handleJobStatus)
	api.GET("/caches/stats", s.handleCacheStats)
	api.DELETE("/caches", s.handleCacheFlush)
	api.DELETE("/caches/:name/keys/:key", s.handleCacheDeleteKey)
}

// Handler returns the underlying handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}
	s.log.Info("http server stopped")
	return <-errCh
}
