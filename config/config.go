// Package config provides environment configuration for the services.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Ingest configures the ingestion gateway.
type Ingest struct {
	StorageConnectionString string        `env:"STORAGE_CONNECTION_STRING,required"`
	CommandQueue            string        `env:"COMMAND_QUEUE"         envDefault:"vendor-commands"`
	RedisConnectionString   string        `env:"REDIS_CONNECTION_STRING,required"`
	DedupTTL                time.Duration `env:"DEDUP_TTL"             envDefault:"24h"`
	EnqueueRetries          int           `env:"ENQUEUE_RETRIES"       envDefault:"3"`
	EnqueueTimeout          time.Duration `env:"ENQUEUE_TIMEOUT"       envDefault:"15s"`
	Port                    string        `env:"INGEST_API_PORT"       envDefault:"8080"`
}

// Worker configures the vendor worker.
type Worker struct {
	StorageConnectionString string        `env:"STORAGE_CONNECTION_STRING,required"`
	CommandQueue            string        `env:"COMMAND_QUEUE"         envDefault:"vendor-commands"`
	PoisonQueue             string        `env:"POISON_QUEUE"          envDefault:"vendor-commands-poison"`
	MappingTable            string        `env:"MAPPING_TABLE"         envDefault:"vendormappings"`
	CredentialTable         string        `env:"CREDENTIAL_TABLE"      envDefault:"approvercredentials"`
	RedisConnectionString   string        `env:"REDIS_CONNECTION_STRING,required"`
	StatusStream            string        `env:"STATUS_STREAM"         envDefault:"status-events"`
	StatusStreamMaxLen      int64         `env:"STATUS_STREAM_MAXLEN"  envDefault:"10000"`
	OutcomeTTL              time.Duration `env:"OUTCOME_TTL"           envDefault:"24h"`
	MaxDeliveryAttempts     int64         `env:"MAX_DELIVERY_ATTEMPTS" envDefault:"5"`
	LockTimeout             time.Duration `env:"LOCK_TIMEOUT"          envDefault:"90s"`
	LockRenewInterval       time.Duration `env:"LOCK_RENEW_INTERVAL"   envDefault:"30s"`
	CallTimeout             time.Duration `env:"ERP_CALL_TIMEOUT"      envDefault:"60s"`
	RetryBaseDelay          time.Duration `env:"RETRY_BASE_DELAY"      envDefault:"5s"`
	RetryMaxDelay           time.Duration `env:"RETRY_MAX_DELAY"       envDefault:"10m"`
	ERPEndpoint             string        `env:"ERP_ENDPOINT,required"`
	SystemCredentialUser    string        `env:"ERP_SYSTEM_USER,required"`
	SystemCredentialSecret  string        `env:"ERP_SYSTEM_SECRET,required"`
	CredentialFallback      string        `env:"CREDENTIAL_FALLBACK"   envDefault:"fail"`
}

// Notify configures the notification service.
type Notify struct {
	RedisConnectionString string        `env:"REDIS_CONNECTION_STRING,required"`
	StatusStream          string        `env:"STATUS_STREAM"        envDefault:"status-events"`
	ConsumerGroup         string        `env:"CONSUMER_GROUP"       envDefault:"notifiers"`
	ConsumerName          string        `env:"CONSUMER_NAME"        envDefault:"notify-1"`
	ClaimMinIdle          time.Duration `env:"CLAIM_MIN_IDLE"       envDefault:"1m"`
	Port                  string        `env:"NOTIFY_SERVICE_PORT"  envDefault:"9000"`
}

// StorageInit configures the provisioning utility.
type StorageInit struct {
	StorageConnectionString string `env:"STORAGE_CONNECTION_STRING,required"`
	CommandQueue            string `env:"COMMAND_QUEUE"    envDefault:"vendor-commands"`
	PoisonQueue             string `env:"POISON_QUEUE"     envDefault:"vendor-commands-poison"`
	MappingTable            string `env:"MAPPING_TABLE"    envDefault:"vendormappings"`
	CredentialTable         string `env:"CREDENTIAL_TABLE" envDefault:"approvercredentials"`
}

// Load parses environment variables into the given config struct.
func Load[T any]() (*T, error) {
	cfg := new(T)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
