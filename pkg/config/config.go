package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Ledger store backends
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port           string
	Env            string
	LogFormat      string
	AllowedOrigins []string

	// Ledger persistence
	LedgerStore string
	BadgerPath  string
	DatabaseURL string

	// Redis configuration
	RedisURL      string
	RedisPassword string

	// JWT configuration
	JWTSecret string

	// Chain access
	EthRPCURL           string
	ChainID             int64
	SignerPrivateKey    string
	ChainsConfigPath    string
	VerifyChain         bool
	ReceiptPollInterval time.Duration
	RPCRateLimit        int

	// Tracking
	StaleHorizon         time.Duration
	TrackerRetryBase     time.Duration
	TrackerRetryMaxDelay time.Duration
	TrackerMaxRetries    int
	ResyncInterval       time.Duration

	// Notifications and stats
	NotifierCapacity     int
	StatsTTL             time.Duration
	StatsRefreshInterval time.Duration

	// Propulsion watcher
	PropulsionPollInterval time.Duration
	PropulsionLookback     uint64
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := FromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv reads configuration from environment variables without validating it
func FromEnv() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogFormat:      getEnv("LOG_FORMAT", ""),
		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		LedgerStore: getEnv("LEDGER_STORE", StoreBadger),
		BadgerPath:  getEnv("BADGER_PATH", "data/ledger"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		EthRPCURL:           getEnv("ETH_RPC_URL", ""),
		ChainID:             int64(getEnvAsInt("CHAIN_ID", 1)),
		SignerPrivateKey:    getEnv("SIGNER_PRIVATE_KEY", ""),
		ChainsConfigPath:    getEnv("CHAINS_CONFIG_PATH", "config/chains.yaml"),
		VerifyChain:         getEnvAsBool("VERIFY_CHAIN", true),
		ReceiptPollInterval: getEnvAsDuration("RECEIPT_POLL_INTERVAL", 4*time.Second),
		RPCRateLimit:        getEnvAsInt("RPC_RATE_LIMIT", 10),

		StaleHorizon:         getEnvAsDuration("STALE_HORIZON", 24*time.Hour),
		TrackerRetryBase:     getEnvAsDuration("TRACKER_RETRY_BASE", 2*time.Second),
		TrackerRetryMaxDelay: getEnvAsDuration("TRACKER_RETRY_MAX_DELAY", 2*time.Minute),
		TrackerMaxRetries:    getEnvAsInt("TRACKER_MAX_RETRIES", 0),
		ResyncInterval:       getEnvAsDuration("RESYNC_INTERVAL", time.Minute),

		NotifierCapacity:     getEnvAsInt("NOTIFIER_CAPACITY", 256),
		StatsTTL:             getEnvAsDuration("STATS_TTL", 5*time.Minute),
		StatsRefreshInterval: getEnvAsDuration("STATS_REFRESH_INTERVAL", 30*time.Second),

		PropulsionPollInterval: getEnvAsDuration("PROPULSION_POLL_INTERVAL", 6*time.Second),
		PropulsionLookback:     uint64(getEnvAsInt("PROPULSION_LOOKBACK_BLOCKS", 6650)),
	}
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.EthRPCURL == "" {
		return fmt.Errorf("ETH_RPC_URL is required")
	}

	if c.SignerPrivateKey == "" {
		return fmt.Errorf("SIGNER_PRIVATE_KEY is required")
	}

	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive")
	}

	if c.TrackerMaxRetries < 0 {
		return fmt.Errorf("TRACKER_MAX_RETRIES must not be negative")
	}

	if c.PropulsionLookback == 0 {
		return fmt.Errorf("PROPULSION_LOOKBACK_BLOCKS must be positive")
	}

	return nil
}

// ValidateStore checks only what is needed to open the ledger store
func (c *Config) ValidateStore() error {
	switch c.LedgerStore {
	case StoreMemory:
	case StoreBadger:
		if c.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH is required for the badger store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown LEDGER_STORE %q", c.LedgerStore)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a duration ("30s", "2m") with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList gets a comma-separated environment variable
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
