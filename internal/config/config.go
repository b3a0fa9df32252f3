package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Ledger backends
const (
	LedgerBackendEVM    = "evm"
	LedgerBackendMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Ledger   LedgerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	App      AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// LedgerConfig holds the connection to the SmartCard contract
type LedgerConfig struct {
	Backend         string
	RPCURL          string
	ContractAddress string
	PrivateKey      string
	UnitSymbol      string
	ChainID         uint64
	Decimals        int32
	ProbeCeiling    int
	MaxConcurrency  int
	CallTimeout     time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	ConnMaxLifetime time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	Enabled         bool
}

// RedisConfig holds the shared block-time cache configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	BlockTTL time.Duration
}

// KafkaConfig holds portfolio snapshot publishing configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Timezone       string
	WalletAddress  string
	FailureRate    float64
	MinLatencyMS   int
	MaxLatencyMS   int
	BlockCacheSize int
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// Load loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", "60s"),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Ledger: LedgerConfig{
			Backend:         getEnv("LEDGER_BACKEND", LedgerBackendEVM),
			RPCURL:          getEnv("LEDGER_RPC_URL", "http://testnet.x-phere.com"),
			ContractAddress: getEnv("LEDGER_CONTRACT_ADDRESS", ""),
			PrivateKey:      getEnv("LEDGER_PRIVATE_KEY", ""),
			UnitSymbol:      getEnv("LEDGER_UNIT_SYMBOL", "XPT"),
			ChainID:         getEnvAsUint("LEDGER_CHAIN_ID", 0x1e808f),
			Decimals:        int32(getEnvAsInt("LEDGER_DECIMALS", 18)), // #nosec G115 -- validated below
			ProbeCeiling:    getEnvAsInt("LEDGER_PROBE_CEILING", 1000),
			MaxConcurrency:  getEnvAsInt("LEDGER_MAX_CONCURRENCY", 0),
			CallTimeout:     getEnvAsDuration("LEDGER_CALL_TIMEOUT", "30s"),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvAsBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "smartcards"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			BlockTTL: getEnvAsDuration("REDIS_BLOCK_TTL", "0s"),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "portfolio.computed"),
		},
		App: AppConfig{
			Timezone:       getEnv("APP_TIMEZONE", "Local"),
			WalletAddress:  getEnv("WALLET_ADDRESS", ""),
			FailureRate:    getEnvAsFloat("FAILURE_RATE", 0),
			MinLatencyMS:   getEnvAsInt("MIN_LATENCY_MS", 0),
			MaxLatencyMS:   getEnvAsInt("MAX_LATENCY_MS", 0),
			BlockCacheSize: getEnvAsInt("BLOCK_CACHE_SIZE", 4096),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	switch c.Ledger.Backend {
	case LedgerBackendMemory:
	case LedgerBackendEVM:
		if c.Ledger.RPCURL == "" {
			return fmt.Errorf("ledger rpc url cannot be empty")
		}
		if !common.IsHexAddress(c.Ledger.ContractAddress) {
			return fmt.Errorf("invalid ledger contract address: %q", c.Ledger.ContractAddress)
		}
	default:
		return fmt.Errorf("invalid ledger backend: %s (must be evm or memory)", c.Ledger.Backend)
	}

	if c.Ledger.ProbeCeiling <= 0 {
		return fmt.Errorf("probe ceiling must be positive, got %d", c.Ledger.ProbeCeiling)
	}
	if c.Ledger.MaxConcurrency < 0 {
		return fmt.Errorf("max concurrency cannot be negative")
	}
	if c.Ledger.Decimals < 0 || c.Ledger.Decimals > 36 {
		return fmt.Errorf("ledger decimals must be between 0 and 36, got %d", c.Ledger.Decimals)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host cannot be empty")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database name cannot be empty")
		}
	}

	if c.App.WalletAddress != "" && !common.IsHexAddress(c.App.WalletAddress) {
		return fmt.Errorf("invalid wallet address: %q", c.App.WalletAddress)
	}
	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.App.Timezone, err)
	}
	if c.App.BlockCacheSize <= 0 {
		return fmt.Errorf("block cache size must be positive")
	}

	if c.App.FailureRate < 0 || c.App.FailureRate > 1 {
		return fmt.Errorf("failure rate must be between 0 and 1, got %f", c.App.FailureRate)
	}
	if c.App.MinLatencyMS < 0 {
		return fmt.Errorf("min latency cannot be negative")
	}
	if c.App.MaxLatencyMS < c.App.MinLatencyMS {
		return fmt.Errorf("max latency (%d) must be >= min latency (%d)", c.App.MaxLatencyMS, c.App.MinLatencyMS)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}
	if c.Logger.Format != "" && c.Logger.Format != "json" && c.Logger.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logger.Format)
	}

	return nil
}

// Location resolves the timezone used for calendar-day bucketing
func (c *AppConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsUint accepts decimal or 0x-prefixed hex, since chain IDs are usually quoted in hex
func getEnvAsUint(key string, defaultValue uint64) uint64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 0, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

func getEnvAsDuration(key, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to parsing the default if provided value is invalid
		duration, err = time.ParseDuration(defaultValue)
		if err != nil {
			return 0
		}
	}
	return duration
}
