package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Service holds process-level settings shared by both binaries.
type Service struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" required:"true"`
	APIPort     string `envconfig:"SERVICE_API_PORT" default:"8080"`
	QueryPort   string `envconfig:"SERVICE_QUERY_PORT" default:"8081"`
}

// SQS configures the event queue between the gateway and the pipeline.
type SQS struct {
	Endpoint string `envconfig:"SQS_ENDPOINT"`
	QueueURL string `envconfig:"SQS_QUEUE_URL" required:"true"`
	Region   string `envconfig:"SQS_REGION" required:"true"`
}

// ClickHouse configures the append-only event history store.
type ClickHouse struct {
	Host            string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port            string `envconfig:"CLICKHOUSE_PORT" required:"true"`
	Database        string `envconfig:"CLICKHOUSE_DB" required:"true"`
	User            string `envconfig:"CLICKHOUSE_USER" default:""`
	Password        string `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	UseTLS          bool   `envconfig:"CLICKHOUSE_USE_TLS" default:"false"`
	MaxOpenConns    int    `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int    `envconfig:"CLICKHOUSE_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime int    `envconfig:"CLICKHOUSE_CONN_MAX_LIFETIME_SEC" default:"3600"`
}

// Postgres configures durable consent, identity and trigger-job records.
type Postgres struct {
	DSN string `envconfig:"POSTGRES_DSN" required:"true"`
}

// Valkey configures the hot-key store: dedupe window, consent cache and
// trigger frequency caps.
type Valkey struct {
	Host string `envconfig:"VALKEY_HOST" required:"true"`
	Port string `envconfig:"VALKEY_PORT" required:"true"`
	DB   int    `envconfig:"VALKEY_DB" default:"0"`
}

// Gateway configures ingestion validation and load shedding.
type Gateway struct {
	DedupeWindowSec    int `envconfig:"GATEWAY_DEDUPE_WINDOW_SEC" default:"86400"`
	MaxInFlight        int `envconfig:"GATEWAY_MAX_IN_FLIGHT" default:"256"`
	ShedRetryAfterSec  int `envconfig:"GATEWAY_SHED_RETRY_AFTER_SEC" default:"5"`
	FutureSkewSec      int `envconfig:"GATEWAY_FUTURE_SKEW_SEC" default:"60"`
	ConsentTimeoutMsec int `envconfig:"GATEWAY_CONSENT_TIMEOUT_MS" default:"200"`
}

// Aggregator configures batching and sharding of profile mutation.
type Aggregator struct {
	Workers         int `envconfig:"AGGREGATOR_WORKERS" default:"8"`
	BatchSizeMax    int `envconfig:"AGGREGATOR_BATCH_SIZE_MAX" default:"100"`
	BatchTimeoutSec int `envconfig:"AGGREGATOR_BATCH_TIMEOUT_SEC" default:"5"`
	ChannelDepth    int `envconfig:"AGGREGATOR_CHANNEL_DEPTH" default:"1024"`
	InsertRetries   int `envconfig:"AGGREGATOR_INSERT_RETRIES" default:"3"`
}

// Journey configures drop-off detection.
type Journey struct {
	InactivityWindowSec int64 `envconfig:"JOURNEY_INACTIVITY_WINDOW_SEC" default:"2592000"`
}

// Trigger configures the rule engine and scheduler.
type Trigger struct {
	WebhookURL string `envconfig:"TRIGGER_WEBHOOK_URL"`
}

// Retention configures anonymization and default retention windows.
type Retention struct {
	AnonymizeSLASec   int64 `envconfig:"RETENTION_ANONYMIZE_SLA_SEC" default:"86400"`
	EventRetentionDay int   `envconfig:"RETENTION_EVENT_DAYS" default:"395"`
	SweepIntervalSec  int   `envconfig:"RETENTION_SWEEP_INTERVAL_SEC" default:"300"`
}

// Config is the full environment-driven configuration.
type Config struct {
	Service    Service
	SQS        SQS
	ClickHouse ClickHouse
	Postgres   Postgres
	Valkey     Valkey
	Gateway    Gateway
	Aggregator Aggregator
	Journey    Journey
	Trigger    Trigger
	Retention  Retention
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

// DedupeWindow returns the gateway dedupe window as a duration.
func (g Gateway) DedupeWindow() time.Duration {
	return time.Duration(g.DedupeWindowSec) * time.Second
}

// BatchTimeout returns the aggregator flush interval as a duration.
func (a Aggregator) BatchTimeout() time.Duration {
	return time.Duration(a.BatchTimeoutSec) * time.Second
}
