// Package config defines the service configuration and its Viper-based
// loader. Precedence is ENV > file > defaults.
package config

import "time"

// QueueBackend selects the job queue implementation.
type QueueBackend string

const (
	QueueBackendMemory QueueBackend = "memory"
	QueueBackendRedis  QueueBackend = "redis"
)

// Config is the root configuration for the service.
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Classify  ClassifyConfig  `mapstructure:"classify"`
}

// ServiceConfig identifies the service instance.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MongoConfig configures the MongoDB document store.
type MongoConfig struct {
	URL              string        `mapstructure:"url"`
	Database         string        `mapstructure:"database"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// RedisConfig configures the Redis connection shared by the Redis queue
// backend and the Redis cache tier. URL may be empty when neither is used.
type RedisConfig struct {
	URL              string        `mapstructure:"url"`
	MaxConns         int           `mapstructure:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// JobsConfig configures the job queue abstraction.
type JobsConfig struct {
	Backend QueueBackend `mapstructure:"backend"`
}

// SchedulerConfig configures the cron trigger runtime.
type SchedulerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Timezone    string        `mapstructure:"timezone"`
	FireTimeout time.Duration `mapstructure:"fire_timeout"`
}

// CacheConfig configures the named cache registry.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend    string        `mapstructure:"backend"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// ClassifyConfig configures the city classification batch run.
type ClassifyConfig struct {
	// ChunkSize is the number of lookup keys bundled into one
	// classification job.
	ChunkSize int `mapstructure:"chunk_size"`
}

// DefaultConfig returns the defaults applied before file and env overrides.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "shopify-saas",
			Environment: "development",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Mongo: MongoConfig{
			URL:              "mongodb://localhost:27017",
			Database:         "shopify_saas",
			ConnectTimeout:   5 * time.Second,
			OperationTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			MaxConns:         10,
			OperationTimeout: 3 * time.Second,
		},
		Jobs: JobsConfig{
			Backend: QueueBackendMemory,
		},
		Scheduler: SchedulerConfig{
			Enabled:     true,
			Timezone:    "Asia/Kolkata",
			FireTimeout: 10 * time.Minute,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			DefaultTTL: 15 * time.Minute,
		},
		Classify: ClassifyConfig{
			ChunkSize: 20,
		},
	}
}
