package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	Config struct {
		HTTP        HTTP
		Log         Log
		PG          PG
		Redis       Redis
		Kafka       Kafka
		Queue       Queue
		Marketplace Marketplace
		Archive     Archive
		Swagger     Swagger
	}

	HTTP struct {
		Port           string `env:"HTTP_PORT,required"`
		UsePreforkMode bool   `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL" envDefault:"info"`
	}

	PG struct {
		PoolMax int    `env:"PG_POOL_MAX" envDefault:"10"`
		URL     string `env:"PG_URL,required"`
	}

	Redis struct {
		Enabled  bool          `env:"REDIS_ENABLED" envDefault:"false"`
		Addr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		Password string        `env:"REDIS_PASSWORD"`
		DB       int           `env:"REDIS_DB" envDefault:"0"`
		LockKey  string        `env:"REDIS_LOCK_KEY" envDefault:"sale-event-queue"`
		LockTTL  time.Duration `env:"REDIS_LOCK_TTL" envDefault:"5m"`
	}

	Kafka struct {
		Enabled         bool          `env:"KAFKA_ENABLED" envDefault:"true"`
		Brokers         []string      `env:"KAFKA_BROKERS" envSeparator:","`
		GroupID         string        `env:"KAFKA_GROUP_ID" envDefault:"resale-delister"`
		SaleEventsTopic string        `env:"KAFKA_SALE_EVENTS_TOPIC" envDefault:"sale-events"`
		JobsTopic       string        `env:"KAFKA_JOBS_TOPIC" envDefault:"delisting-jobs"`
		CommitTimeout   time.Duration `env:"KAFKA_COMMIT_TIMEOUT" envDefault:"2s"`
		ProcessTimeout  time.Duration `env:"KAFKA_PROCESS_TIMEOUT" envDefault:"10s"`
		PublishTimeout  time.Duration `env:"KAFKA_PUBLISH_TIMEOUT" envDefault:"5s"`
		Workers         int           `env:"KAFKA_WORKERS" envDefault:"4"`
		ShutdownTimeout time.Duration `env:"KAFKA_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	}

	Queue struct {
		ProcessingInterval  time.Duration `env:"QUEUE_PROCESSING_INTERVAL" envDefault:"10s"`
		BatchSize           int           `env:"QUEUE_BATCH_SIZE" envDefault:"50"`
		MaxConcurrentJobs   int           `env:"QUEUE_MAX_CONCURRENT_JOBS" envDefault:"10"`
		MaxRetries          int           `env:"QUEUE_MAX_RETRIES" envDefault:"3"`
		CleanupInterval     time.Duration `env:"QUEUE_CLEANUP_INTERVAL" envDefault:"24h"`
		CleanupInitialDelay time.Duration `env:"QUEUE_CLEANUP_INITIAL_DELAY" envDefault:"1h"`
		RetentionDays       int           `env:"QUEUE_RETENTION_DAYS" envDefault:"30"`
		EscalateInterval    time.Duration `env:"QUEUE_ESCALATE_INTERVAL" envDefault:"2m"`
		ShutdownTimeout     time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		JobMaxRetries       int           `env:"QUEUE_JOB_MAX_RETRIES" envDefault:"3"`
	}

	Marketplace struct {
		BaseURL      string        `env:"MARKETPLACE_VERIFY_URL" envDefault:"http://localhost:8090"`
		Timeout      time.Duration `env:"MARKETPLACE_TIMEOUT" envDefault:"10s"`
		RateLimitRPS float64       `env:"MARKETPLACE_RATE_LIMIT_RPS" envDefault:"5"`
		RateBurst    int           `env:"MARKETPLACE_RATE_BURST" envDefault:"10"`
	}

	Archive struct {
		Enabled        bool          `env:"ARCHIVE_ENABLED" envDefault:"false"`
		Endpoint       string        `env:"S3_ENDPOINT"`
		Region         string        `env:"S3_REGION" envDefault:"us-east-1"`
		AccessKey      string        `env:"S3_ACCESS_KEY"`
		SecretKey      string        `env:"S3_SECRET_KEY"`
		Bucket         string        `env:"S3_BUCKET" envDefault:"sale-event-archive"`
		CfgLoadTimeout time.Duration `env:"S3_LOAD_CFG_TIMEOUT" envDefault:"10s"`
	}

	Swagger struct {
		Enabled bool `env:"SWAGGER_ENABLED" envDefault:"false"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errList []error

	if c.Queue.BatchSize <= 0 {
		errList = append(errList, errors.New("QUEUE_BATCH_SIZE must be positive"))
	}
	if c.Queue.MaxConcurrentJobs <= 0 {
		errList = append(errList, errors.New("QUEUE_MAX_CONCURRENT_JOBS must be positive"))
	}
	if c.Queue.MaxRetries <= 0 {
		errList = append(errList, errors.New("QUEUE_MAX_RETRIES must be positive"))
	}
	if c.Queue.ProcessingInterval <= 0 {
		errList = append(errList, errors.New("QUEUE_PROCESSING_INTERVAL must be positive"))
	}
	if c.Queue.RetentionDays <= 0 {
		errList = append(errList, errors.New("QUEUE_RETENTION_DAYS must be positive"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errList = append(errList, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED"))
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		errList = append(errList, errors.New("S3_BUCKET is required when ARCHIVE_ENABLED"))
	}

	return errors.Join(errList...)
}
