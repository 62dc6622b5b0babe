package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Loader loads and validates configuration.
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader with precedence ENV > file > defaults.
type ViperLoader struct {
	configFile string
	envPrefix  string
}

// NewViperLoader creates a loader. configFile may be empty; envPrefix
// defaults to SHOPSAAS.
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{configFile: configFile, envPrefix: envPrefix}
}

func (l *ViperLoader) Load() (*Config, error) {
	v := viper.New()

	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	v.SetEnvPrefix(l.envPrefix)
	l.bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// bindEnvVars binds environment variables explicitly for nested structs.
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	v.BindEnv("log.level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("log.format", l.prefixedEnv("LOG_FORMAT"))

	v.BindEnv("http.port", l.prefixedEnv("HTTP_PORT"))
	v.BindEnv("http.read_timeout", l.prefixedEnv("HTTP_READ_TIMEOUT"))
	v.BindEnv("http.write_timeout", l.prefixedEnv("HTTP_WRITE_TIMEOUT"))
	v.BindEnv("http.idle_timeout", l.prefixedEnv("HTTP_IDLE_TIMEOUT"))
	v.BindEnv("http.shutdown_timeout", l.prefixedEnv("HTTP_SHUTDOWN_TIMEOUT"))

	v.BindEnv("mongo.url", l.prefixedEnv("MONGO_URL"))
	v.BindEnv("mongo.database", l.prefixedEnv("MONGO_DATABASE"))
	v.BindEnv("mongo.connect_timeout", l.prefixedEnv("MONGO_CONNECT_TIMEOUT"))
	v.BindEnv("mongo.operation_timeout", l.prefixedEnv("MONGO_OPERATION_TIMEOUT"))

	v.BindEnv("redis.url", l.prefixedEnv("REDIS_URL"))
	v.BindEnv("redis.max_conns", l.prefixedEnv("REDIS_MAX_CONNS"))
	v.BindEnv("redis.operation_timeout", l.prefixedEnv("REDIS_OPERATION_TIMEOUT"))

	v.BindEnv("jobs.backend", l.prefixedEnv("JOBS_BACKEND"))

	v.BindEnv("scheduler.enabled", l.prefixedEnv("SCHEDULER_ENABLED"))
	v.BindEnv("scheduler.timezone", l.prefixedEnv("SCHEDULER_TIMEZONE"))
	v.BindEnv("scheduler.fire_timeout", l.prefixedEnv("SCHEDULER_FIRE_TIMEOUT"))

	v.BindEnv("cache.backend", l.prefixedEnv("CACHE_BACKEND"))
	v.BindEnv("cache.default_ttl", l.prefixedEnv("CACHE_DEFAULT_TTL"))

	v.BindEnv("classify.chunk_size", l.prefixedEnv("CLASSIFY_CHUNK_SIZE"))
}

func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", cfg.Service.Name)
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.read_timeout", cfg.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", cfg.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", cfg.HTTP.IdleTimeout)
	v.SetDefault("http.shutdown_timeout", cfg.HTTP.ShutdownTimeout)

	v.SetDefault("mongo.url", cfg.Mongo.URL)
	v.SetDefault("mongo.database", cfg.Mongo.Database)
	v.SetDefault("mongo.connect_timeout", cfg.Mongo.ConnectTimeout)
	v.SetDefault("mongo.operation_timeout", cfg.Mongo.OperationTimeout)

	v.SetDefault("redis.max_conns", cfg.Redis.MaxConns)
	v.SetDefault("redis.operation_timeout", cfg.Redis.OperationTimeout)

	v.SetDefault("jobs.backend", string(cfg.Jobs.Backend))

	v.SetDefault("scheduler.enabled", cfg.Scheduler.Enabled)
	v.SetDefault("scheduler.timezone", cfg.Scheduler.Timezone)
	v.SetDefault("scheduler.fire_timeout", cfg.Scheduler.FireTimeout)

	v.SetDefault("cache.backend", cfg.Cache.Backend)
	v.SetDefault("cache.default_ttl", cfg.Cache.DefaultTTL)

	v.SetDefault("classify.chunk_size", cfg.Classify.ChunkSize)
}

// Validate checks the configuration and returns detailed errors.
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.Service.Name) == "" {
		errs = append(errs, errors.New("service.name is required"))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, strings.ToLower(cfg.Log.Level)) {
		errs = append(errs, fmt.Errorf("invalid log.level: %s (must be one of: %v)", cfg.Log.Level, validLevels))
	}
	validFormats := []string{"json", "text"}
	if !contains(validFormats, strings.ToLower(cfg.Log.Format)) {
		errs = append(errs, fmt.Errorf("invalid log.format: %s (must be one of: %v)", cfg.Log.Format, validFormats))
	}

	if cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid http.port: %d", cfg.HTTP.Port))
	}

	if strings.TrimSpace(cfg.Mongo.URL) == "" {
		errs = append(errs, errors.New("mongo.url is required"))
	}
	if strings.TrimSpace(cfg.Mongo.Database) == "" {
		errs = append(errs, errors.New("mongo.database is required"))
	}

	switch cfg.Jobs.Backend {
	case QueueBackendMemory:
	case QueueBackendRedis:
		if strings.TrimSpace(cfg.Redis.URL) == "" {
			errs = append(errs, errors.New("redis.url is required when jobs.backend is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid jobs.backend: %s (must be memory or redis)", cfg.Jobs.Backend))
	}

	switch strings.ToLower(cfg.Cache.Backend) {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.Redis.URL) == "" {
			errs = append(errs, errors.New("redis.url is required when cache.backend is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid cache.backend: %s (must be memory or redis)", cfg.Cache.Backend))
	}

	if cfg.Classify.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("classify.chunk_size must be greater than zero, got %d", cfg.Classify.ChunkSize))
	}

	if cfg.Scheduler.Enabled {
		if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("invalid scheduler.timezone %q: %w", cfg.Scheduler.Timezone, err))
		}
	}

	return errors.Join(errs...)
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = "SHOPSAAS"
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
