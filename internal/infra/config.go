package infra

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment
// variables (spec §6 "Configuration" table), following the teacher's
// caarlos0/env-driven, envDefault-annotated Config pattern.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5435"`
	PGUser      string `env:"PGUSER" envDefault:"ocasino"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"ocasino"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"ocasino"`

	// Redis-backed cache (api-key lookup cache, §4.3)
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6380"`

	// Wallet amount encryption (§4.1/§4.4): required base64-encoded 32-byte
	// AES-256 key. No insecure default — a missing key fails Validate.
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	// Auth pipeline (§4.3)
	AllowedIPEnforcement bool          `env:"ALLOWED_IP_ENFORCEMENT" envDefault:"true"`
	DefaultRateLimit     int           `env:"DEFAULT_RATE_LIMIT" envDefault:"100"`
	AuthExcludePaths     []string      `env:"AUTH_EXCLUDE_PATHS" envSeparator:"," envDefault:"/healthz"`
	OperationDeadline    time.Duration `env:"OPERATION_DEADLINE" envDefault:"5s"`

	// AML analyzer (§4.6): per-currency large-value reporting thresholds, in
	// major units (the analyzer itself converts to minor units per
	// currency scale). Format: "USD=10000,EUR=9000,KRW=1000000" — parsed by
	// LargeValueThresholds rather than env's own map support, since the
	// values need currency-code uppercasing and int64 range checks.
	AMLLargeValueThresholdsRaw string `env:"AML_LARGE_VALUE_THRESHOLDS" envDefault:"USD=10000,EUR=9000,GBP=9000,JPY=1000000,KRW=1000000,CNY=70000"`

	// Event bus (§4.5)
	EventQueueCapacity int `env:"EVENT_QUEUE_CAPACITY" envDefault:"10000"`

	// Kafka outbox bridge (§2 item 12)
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3100"`

	// Outbound provider adapter (§6 domain stack additions)
	ProviderBaseURL    string `env:"PROVIDER_BASE_URL"`
	ProviderHMACSecret string `env:"PROVIDER_HMAC_SECRET"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure or missing configuration that must not run in
// production. Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil || len(key) != 32 {
		if c.AllowInsecureDefaults {
			return nil
		}
		return fmt.Errorf("ENCRYPTION_KEY must be a base64-encoded 32-byte key")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// LargeValueThresholds parses AMLLargeValueThresholdsRaw ("USD=10000,...")
// into a per-currency major-units map, the input aml.SetLargeValueThresholds
// expects.
func (c *Config) LargeValueThresholds() (map[string]int64, error) {
	return parseCurrencyAmountMap(c.AMLLargeValueThresholdsRaw)
}

func parseCurrencyAmountMap(raw string) (map[string]int64, error) {
	out := make(map[string]int64)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		currency, amountStr, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid threshold entry %q: expected CUR=amount", entry)
		}
		amount, err := strconv.ParseInt(strings.TrimSpace(amountStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold amount in %q: %w", entry, err)
		}
		out[strings.ToUpper(strings.TrimSpace(currency))] = amount
	}
	return out, nil
}
