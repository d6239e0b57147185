package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string        `envconfig:"APP_NAME" default:"corebank"`
	AppEnv         string        `envconfig:"APP_ENV" default:"development"`
	Port           string        `envconfig:"PORT" default:"8080"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL    string        `envconfig:"DATABASE_URL"`
	RedisURL       string        `envconfig:"REDIS_URL"`
	ShutdownPeriod time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	JWT   JWTConfig
	Kafka KafkaConfig
	Fraud FraudConfig
}

// JWTConfig controls token issuance and verification.
type JWTConfig struct {
	Secret    string        `envconfig:"JWT_SECRET" default:"dev-secret-change-me"`
	AccessTTL time.Duration `envconfig:"JWT_ACCESS_TTL" default:"15m"`
}

// KafkaConfig controls the transaction event stream.
type KafkaConfig struct {
	Enabled       bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers       []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	DepositTopic  string   `envconfig:"KAFKA_DEPOSIT_TOPIC" default:"deposit-events"`
	WithdrawTopic string   `envconfig:"KAFKA_WITHDRAWAL_TOPIC" default:"withdrawal-events"`
	TransferTopic string   `envconfig:"KAFKA_TRANSFER_TOPIC" default:"funds-transfer-events"`
	ConsumerGroup string   `envconfig:"KAFKA_CONSUMER_GROUP" default:"core-banking-group"`
}

// FraudConfig holds the transfer heuristics thresholds.
type FraudConfig struct {
	LargeTransferThreshold string        `envconfig:"FRAUD_LARGE_TRANSFER_THRESHOLD" default:"500000.00"`
	Blacklist              []string      `envconfig:"FRAUD_BLACKLIST"`
	WindowLookback         time.Duration `envconfig:"FRAUD_WINDOW_LOOKBACK" default:"10m"`
	FrequencyLimit         int           `envconfig:"FRAUD_FREQUENCY_LIMIT" default:"5"`
}

// Load reads configuration from an optional .env file and the environment.
func Load() (Config, error) {
	// Missing .env is fine; the environment alone is enough in production.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if cfg.DatabaseURL == "" && !isDev(cfg.AppEnv) {
		return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
	}
	if cfg.RedisURL == "" && !isDev(cfg.AppEnv) {
		return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
	}
	if _, err := decimal.NewFromString(cfg.Fraud.LargeTransferThreshold); err != nil {
		return Config{}, fmt.Errorf("invalid FRAUD_LARGE_TRANSFER_THRESHOLD: %w", err)
	}

	return cfg, nil
}

// LargeTransferThreshold returns the parsed fraud threshold. Load already
// validated the raw value.
func (c Config) LargeTransferThreshold() decimal.Decimal {
	d, _ := decimal.NewFromString(c.Fraud.LargeTransferThreshold)
	return d
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a development-like environment.
func (c Config) IsDev() bool {
	return isDev(c.AppEnv)
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
