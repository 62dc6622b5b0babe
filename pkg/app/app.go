// Package app wires configuration, stores, queue, caches, gateway,
// partitioner, scheduler and HTTP server into one runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/cache"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/classify"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/config"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/ingest"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/jobs"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/repository"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/scheduler"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/server"
	mongostore "github.com/beasroy/shopify-SAAS-sub001/pkg/store/mongodb"
	redisstore "github.com/beasroy/shopify-SAAS-sub001/pkg/store/redis"
)

// Cache names registered at startup.
const (
	CacheDashboardMetrics   = "dashboard-metrics"
	CacheCompetitorAds      = "competitor-ads"
	CacheCityClassification = "city-classification"
)

// Options carries the external collaborators the scheduler triggers call.
// Nil fields fall back to logging no-op implementations.
type Options struct {
	Metrics MetricsService
	Digest  DigestService
	Ads     AdsService
}

// App owns the service's components and their lifecycle.
type App struct {
	cfg *config.Config
	log logger.Logger

	mongo *mongostore.Adapter
	redis *redisstore.Adapter

	queue     jobs.Queue
	caches    *cache.Registry
	gateway   *ingest.Gateway
	jobStatus *jobs.StatusService

	partitioner *classify.Partitioner
	scheduler   *scheduler.Runtime
	server      *server.Server
}

// New builds the full component graph. It connects to the backing
// stores, so it fails fast on bad connectivity.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	zapLog, err := logger.NewZapLogger(logger.Config{
		Level:  logger.Level(cfg.Log.Level),
		Format: logger.Format(cfg.Log.Format),
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	log := zapLog.With("service", cfg.Service.Name, "environment", cfg.Service.Environment)

	a := &App{cfg: cfg, log: log}
	if err := a.build(opts); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(opts Options) error {
	cfg := a.cfg

	mongo, err := mongostore.NewAdapter(mongostore.Config{
		URL:              cfg.Mongo.URL,
		Database:         cfg.Mongo.Database,
		ConnectTimeout:   cfg.Mongo.ConnectTimeout,
		OperationTimeout: cfg.Mongo.OperationTimeout,
	}, a.log)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	a.mongo = mongo

	needsRedis := cfg.Jobs.Backend == config.QueueBackendRedis || cfg.Cache.Backend == "redis"
	if needsRedis {
		rds, err := redisstore.NewAdapter(redisstore.Config{
			URL:              cfg.Redis.URL,
			MaxConns:         cfg.Redis.MaxConns,
			OperationTimeout: cfg.Redis.OperationTimeout,
		}, a.log)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.redis = rds
	}

	if err := a.buildQueue(); err != nil {
		return err
	}
	if err := a.buildCaches(); err != nil {
		return err
	}

	brands := repository.NewBrandRepository(mongo.Database(), cfg.Mongo.OperationTimeout, a.log)
	orders := repository.NewOrderRepository(mongo.Database(), cfg.Mongo.OperationTimeout, a.log)
	classifications := repository.NewClassificationRepository(mongo.Database(), cfg.Mongo.OperationTimeout, a.log)

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), cfg.Mongo.OperationTimeout)
	defer cancelIndexes()
	if err := ensureIndexes(indexCtx, classifications); err != nil {
		return fmt.Errorf("ensure mongodb indexes: %w", err)
	}

	gateway, err := ingest.NewGateway(a.queue, brands, a.log)
	if err != nil {
		return fmt.Errorf("build ingestion gateway: %w", err)
	}
	a.gateway = gateway
	a.jobStatus = jobs.NewStatusService(a.queue)

	partitioner, err := classify.NewPartitioner(orders, classifications, a.queue, a.log, cfg.Classify.ChunkSize)
	if err != nil {
		return fmt.Errorf("build partitioner: %w", err)
	}
	a.partitioner = partitioner

	if err := a.buildScheduler(opts); err != nil {
		return err
	}
	return a.buildServer()
}

// indexEnsurer is implemented by repositories that maintain collection
// indexes.
type indexEnsurer interface {
	EnsureIndexes(ctx context.Context) error
}

func ensureIndexes(ctx context.Context, ensurers ...indexEnsurer) error {
	for _, ensurer := range ensurers {
		if err := ensurer.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) buildQueue() error {
	switch a.cfg.Jobs.Backend {
	case config.QueueBackendRedis:
		queue, err := jobs.NewRedisQueue(a.redis.Client(), a.log, jobs.RedisQueueConfig{})
		if err != nil {
			return fmt.Errorf("build redis queue: %w", err)
		}
		a.queue = queue
	default:
		a.queue = jobs.NewMemoryQueue(a.log)
	}
	return nil
}

func (a *App) buildCaches() error {
	registry := cache.NewRegistry()
	names := []string{CacheDashboardMetrics, CacheCompetitorAds, CacheCityClassification}

	ttl := a.cfg.Cache.DefaultTTL
	for _, name := range names {
		if a.cfg.Cache.Backend == "redis" {
			c, err := cache.NewRedisCache(a.redis.Client(), name, cache.WithRedisDefaultTTL(ttl))
			if err != nil {
				return fmt.Errorf("build redis cache %q: %w", name, err)
			}
			registry.Register(name, c)
			continue
		}
		registry.Register(name, cache.NewMemoryCache(cache.WithDefaultTTL(ttl)))
	}
	a.caches = registry
	return nil
}

func (a *App) buildScheduler(opts Options) error {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = loggingMetricsService{log: a.log}
	}
	digest := opts.Digest
	if digest == nil {
		digest = loggingDigestService{log: a.log}
	}
	ads := opts.Ads
	if ads == nil {
		ads = loggingAdsService{log: a.log}
	}

	runtime := scheduler.NewRuntime(a.log, scheduler.Config{FireTimeout: a.cfg.Scheduler.FireTimeout})
	tz := a.cfg.Scheduler.Timezone

	triggers := []scheduler.Trigger{
		{Name: "metrics-rollup", Schedule: "0 1 * * *", Timezone: tz, Action: metrics.RollupDaily},
		{Name: "email-digest", Schedule: "0 8 * * *", Timezone: tz, Action: digest.SendDigests},
		{Name: "competitor-ads-refresh", Schedule: "@every 6h", Timezone: tz, Action: ads.RefreshCompetitorAds},
		{Name: "city-classification", Schedule: "30 0 * * *", Timezone: tz, Action: a.runCityClassification},
	}
	for _, trigger := range triggers {
		if err := runtime.Register(trigger); err != nil {
			return fmt.Errorf("register trigger %q: %w", trigger.Name, err)
		}
	}
	a.scheduler = runtime
	return nil
}

// runCityClassification partitions the previous UTC day's destinations.
func (a *App) runCityClassification(ctx context.Context) error {
	day := time.Now().UTC().AddDate(0, 0, -1)
	report, err := a.partitioner.Run(ctx, day)
	if err != nil {
		return err
	}
	a.log.Info("city classification run finished",
		"day", report.Day.Format("2006-01-02"),
		"candidates", report.Candidates,
		"new", report.New,
		"submitted", report.Submitted,
		"failed", report.Failed)
	return nil
}

func (a *App) buildServer() error {
	health := []server.HealthCheck{
		{Name: "mongodb", Check: a.mongo.HealthCheck},
		{Name: "queue", Check: a.queue.HealthCheck},
	}
	if a.redis != nil {
		health = append(health, server.HealthCheck{Name: "redis", Check: a.redis.HealthCheck})
	}

	srv, err := server.New(server.Config{
		Port:            a.cfg.HTTP.Port,
		ReadTimeout:     a.cfg.HTTP.ReadTimeout,
		WriteTimeout:    a.cfg.HTTP.WriteTimeout,
		IdleTimeout:     a.cfg.HTTP.IdleTimeout,
		ShutdownTimeout: a.cfg.HTTP.ShutdownTimeout,
	}, server.Dependencies{
		Gateway:   a.gateway,
		JobStatus: a.jobStatus,
		Caches:    a.caches,
		Health:    health,
	}, a.log)
	if err != nil {
		return fmt.Errorf("build http server: %w", err)
	}
	a.server = srv
	return nil
}

// Run serves until ctx is cancelled, then stops everything gracefully.
func (a *App) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	if a.cfg.Scheduler.Enabled {
		if err := a.scheduler.Start(groupCtx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		group.Go(func() error {
			<-groupCtx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return a.scheduler.Stop(stopCtx)
		})
	}

	group.Go(func() error {
		return a.server.Run(groupCtx)
	})

	err := group.Wait()
	if closeErr := a.Close(); closeErr != nil {
		a.log.Warn("shutdown cleanup failed", "error", closeErr)
	}
	return err
}

// Close releases queue, cache and store resources. Safe to call after a
// partial build.
func (a *App) Close() error {
	var errs []error
	if a.queue != nil {
		errs = append(errs, a.queue.Close())
	}
	if a.caches != nil {
		errs = append(errs, a.caches.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.mongo != nil {
		errs = append(errs, a.mongo.Close())
	}
	return errors.Join(errs...)
}
