// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the gateway HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; when empty the in-memory registry is used.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// ChainID is the chain the operation digest binds to (e.g. 11155111 for Sepolia).
	ChainID int64 `mapstructure:"CHAIN_ID"`
	// RelayerJWTSecret is the HS256 shared secret for relayer bearer tokens.
	// When empty, operation submission is unauthenticated (dev mode).
	RelayerJWTSecret string `mapstructure:"RELAYER_JWT_SECRET"`
	// RelayerJWTIssuer is the iss claim for relayer tokens.
	RelayerJWTIssuer string `mapstructure:"RELAYER_JWT_ISSUER"`
	// RelayerJWTTTL is the relayer token lifetime (e.g. "24h").
	RelayerJWTTTL string `mapstructure:"RELAYER_JWT_TTL"`

	// Telemetry (optional). When Kafka brokers are set, the server emits
	// request events to Kafka.
	// KafkaBrokers is a comma-separated list of Kafka broker addresses.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// DecisionKafkaTopic is the Kafka topic for gateway events.
	DecisionKafkaTopic string `mapstructure:"DECISION_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is the Loki base URL the worker pushes events to.
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("CHAIN_ID", 11155111)
	v.SetDefault("RELAYER_JWT_SECRET", "")
	v.SetDefault("RELAYER_JWT_ISSUER", "sessiongate")
	v.SetDefault("RELAYER_JWT_TTL", "24h")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("DECISION_KAFKA_TOPIC", "sessiongate-decisions")
	v.SetDefault("KAFKA_GROUP_ID", "sessiongate-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.ChainID <= 0 {
		return nil, errors.New("config: CHAIN_ID must be positive")
	}
	if cfg.RelayerJWTSecret == "" && cfg.Env == "production" {
		return nil, errors.New("config: RELAYER_JWT_SECRET must be set when APP_ENV=production")
	}

	return &cfg, nil
}

// RelayerTokenTTL parses RelayerJWTTTL as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) RelayerTokenTTL() time.Duration {
	d, err := time.ParseDuration(c.RelayerJWTTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event emission is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
