// Package config loads engine configuration from the environment.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Logger       LoggerConfig
	Security     SecurityConfig
	Crypto       CryptoConfig
	Housekeeping HousekeepingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// SecurityConfig holds the fraud/risk thresholds and windows
type SecurityConfig struct {
	AllowedCurrencies       []string
	MinAmount               int64
	MaxAmount               int64
	FraudDetectionThreshold int64
	HighValueThreshold      int64
	MaxAttempts             int
	VelocityThreshold       int
	RateLimitWindow         time.Duration
	PaymentTimeout          time.Duration
}

// CryptoConfig holds the AEAD key for the payment-data codec
type CryptoConfig struct {
	// KeyHex is a hex-encoded 32-byte key. A development key is generated
	// when unset, so every restart invalidates previously sealed data.
	KeyHex string
}

// HousekeepingConfig holds the background sweep intervals
type HousekeepingConfig struct {
	TimeoutSweepInterval   time.Duration
	RetentionSweepInterval time.Duration
	RetentionPeriod        time.Duration
}

// Load loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // missing .env is the normal case

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			AllowedCurrencies:       []string{"INR", "USD", "EUR", "GBP"},
			MinAmount:               getEnvAsInt64("MIN_AMOUNT", 1),
			MaxAmount:               getEnvAsInt64("MAX_AMOUNT", 1_000_000),
			FraudDetectionThreshold: getEnvAsInt64("FRAUD_DETECTION_THRESHOLD", 10_000),
			HighValueThreshold:      getEnvAsInt64("HIGH_VALUE_THRESHOLD", 50_000),
			MaxAttempts:             getEnvAsInt("MAX_ATTEMPTS", 3),
			VelocityThreshold:       getEnvAsInt("SUSPICIOUS_VELOCITY_THRESHOLD", 5),
			RateLimitWindow:         getEnvAsDuration("RATE_LIMIT_WINDOW", "10m"),
			PaymentTimeout:          getEnvAsDuration("PAYMENT_TIMEOUT", "5m"),
		},
		Crypto: CryptoConfig{
			KeyHex: getEnv("PAYMENT_DATA_KEY", ""),
		},
		Housekeeping: HousekeepingConfig{
			TimeoutSweepInterval:   getEnvAsDuration("TIMEOUT_SWEEP_INTERVAL", "1m"),
			RetentionSweepInterval: getEnvAsDuration("RETENTION_SWEEP_INTERVAL", "24h"),
			RetentionPeriod:        getEnvAsDuration("RETENTION_PERIOD", "24h"),
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

	s := &c.Security
	if s.MinAmount <= 0 {
		return fmt.Errorf("minimum amount must be positive, got %d", s.MinAmount)
	}
	if s.MaxAmount < s.MinAmount {
		return fmt.Errorf("maximum amount (%d) must be >= minimum amount (%d)", s.MaxAmount, s.MinAmount)
	}
	if s.FraudDetectionThreshold <= 0 {
		return fmt.Errorf("fraud detection threshold must be positive")
	}
	if s.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", s.MaxAttempts)
	}
	if s.VelocityThreshold <= 0 {
		return fmt.Errorf("velocity threshold must be positive, got %d", s.VelocityThreshold)
	}
	if s.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if s.PaymentTimeout <= 0 {
		return fmt.Errorf("payment timeout must be positive")
	}

	if c.Crypto.KeyHex != "" {
		key, err := hex.DecodeString(c.Crypto.KeyHex)
		if err != nil {
			return fmt.Errorf("payment data key is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("payment data key must be 32 bytes, got %d", len(key))
		}
	}

	h := &c.Housekeeping
	if h.TimeoutSweepInterval <= 0 {
		return fmt.Errorf("timeout sweep interval must be positive")
	}
	if h.RetentionSweepInterval <= 0 {
		return fmt.Errorf("retention sweep interval must be positive")
	}
	if h.RetentionPeriod <= 0 {
		return fmt.Errorf("retention period must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}
	if c.Logger.Format != "json" && c.Logger.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logger.Format)
	}

	return nil
}

// Key returns the decoded AEAD key, or nil when no key is configured.
func (c *CryptoConfig) Key() []byte {
	if c.KeyHex == "" {
		return nil
	}
	key, err := hex.DecodeString(c.KeyHex)
	if err != nil {
		return nil
	}
	return key
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
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
