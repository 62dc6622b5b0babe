// Package redis provides Redis connectivity shared by the Redis-backed
// queue and caches.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
)

// Config holds Redis connection configuration.
type Config struct {
	URL              string
	MaxConns         int
	OperationTimeout time.Duration
}

// Adapter wraps a pooled Redis client.
type Adapter struct {
	client *redis.Client
	log    logger.Logger
}

// NewAdapter creates a Redis adapter and verifies connectivity.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	if log == nil {
		log = logger.Noop()
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		opts.PoolSize = cfg.MaxConns
	}
	opts.DialTimeout = 5 * time.Second
	if cfg.OperationTimeout > 0 {
		opts.ReadTimeout = cfg.OperationTimeout
		opts.WriteTimeout = cfg.OperationTimeout
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info("redis connection established", "max_conns", opts.PoolSize)
	return &Adapter{client: client, log: log}, nil
}

// Client returns the underlying client for queue and cache construction.
func (a *Adapter) Client() *redis.Client {
	return a.client
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.client.Ping(hcCtx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

func (a *Adapter) Close() error {
	return a.client.Close()
}
