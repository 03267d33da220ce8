package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"go.uber.org/zap"
)

type Env string

const (
	EnvLocal  Env = "local"
	EnvDocker Env = "docker"
)

type Config struct {
	AppEnv   Env    `env:"APP_ENV" envDefault:"local"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":50051"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"mysql"`
	DBDSN       string `env:"DB_DSN" envDefault:"root:root@tcp(localhost:3306)/commerce?parseTime=true"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// RedisAddr empty selects the in-process lock and cache, which only
	// serialize rollups within one process.
	RedisAddr string `env:"REDIS_ADDR"`

	// KafkaBrokers empty disables rollup events.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"inventory-events"`

	RollupWorkers       int           `env:"ROLLUP_WORKERS" envDefault:"4"`
	RollupQueueSize     int           `env:"ROLLUP_QUEUE_SIZE" envDefault:"10000"`
	RollupSweepInterval time.Duration `env:"ROLLUP_SWEEP_INTERVAL" envDefault:"30s"`
	RollupLockTTL       time.Duration `env:"ROLLUP_LOCK_TTL" envDefault:"30s"`

	ProjectionCacheTTL time.Duration `env:"PROJECTION_CACHE_TTL" envDefault:"5m"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.AppEnv != EnvLocal && c.AppEnv != EnvDocker {
		return fmt.Errorf("invalid APP_ENV: %s (must be 'local' or 'docker')", c.AppEnv)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.GRPCAddr == "" {
		return fmt.Errorf("GRPC_ADDR is required")
	}
	if c.DBDriver != "mysql" && c.DBDriver != "sqlite3" {
		return fmt.Errorf("invalid DB_DRIVER: %s (must be 'mysql' or 'sqlite3')", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.RollupWorkers <= 0 {
		return fmt.Errorf("ROLLUP_WORKERS must be positive")
	}
	if c.RollupQueueSize <= 0 {
		return fmt.Errorf("ROLLUP_QUEUE_SIZE must be positive")
	}
	if c.RollupSweepInterval <= 0 {
		return fmt.Errorf("ROLLUP_SWEEP_INTERVAL must be positive")
	}
	if c.RollupLockTTL <= 0 {
		return fmt.Errorf("ROLLUP_LOCK_TTL must be positive")
	}
	if c.ProjectionCacheTTL < 0 {
		return fmt.Errorf("PROJECTION_CACHE_TTL must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// Fields returns the config as log fields, without the DSN.
func (c Config) Fields() []zap.Field {
	return []zap.Field{
		zap.String("app_env", string(c.AppEnv)),
		zap.String("http_addr", c.HTTPAddr),
		zap.String("grpc_addr", c.GRPCAddr),
		zap.String("db_driver", c.DBDriver),
		zap.String("redis_addr", c.RedisAddr),
		zap.Strings("kafka_brokers", c.KafkaBrokers),
		zap.String("kafka_topic", c.KafkaTopic),
		zap.Int("rollup_workers", c.RollupWorkers),
		zap.Int("rollup_queue_size", c.RollupQueueSize),
		zap.Duration("rollup_sweep_interval", c.RollupSweepInterval),
		zap.Duration("rollup_lock_ttl", c.RollupLockTTL),
		zap.Duration("projection_cache_ttl", c.ProjectionCacheTTL),
		zap.Duration("shutdown_timeout", c.ShutdownTimeout),
	}
}
