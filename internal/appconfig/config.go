// Package appconfig loads the approver configuration from the environment and
// wires the application together.
package appconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/lisanmuaddib/allowance-go/pkg/chains"
	"github.com/lisanmuaddib/allowance-go/pkg/logging"
)

const rpcURLPrefix = "RPC_URL_"

// Config is the process configuration.
type Config struct {
	// HTTP
	ListenAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Networks
	DefaultChainID uint64
	RPCOverrides   map[uint64]string
	DialRetries    int
	DialRetryDelay time.Duration

	// Signers
	PrivateKey       string
	KeystorePath     string
	KeystorePassword string

	// Approvals
	ApprovePerMinute  int
	WatchReceipts     bool
	BaseFeeMultiplier float64
}

// Load reads the optional .env files (default ".env"), then the environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}
	return FromEnv()
}

// FromEnv builds a validated Config from environment variables.
func FromEnv() (*Config, error) {
	defaultChainID, err := strconv.ParseUint(getEnvOrDefault("DEFAULT_CHAIN_ID", strconv.FormatUint(chains.ArbitrumOne, 10)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_CHAIN_ID: %w", err)
	}

	dialRetries, err := strconv.Atoi(getEnvOrDefault("DIAL_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid DIAL_RETRIES: %w", err)
	}

	dialRetryDelay, err := time.ParseDuration(getEnvOrDefault("DIAL_RETRY_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DIAL_RETRY_DELAY: %w", err)
	}

	approvePerMinute, err := strconv.Atoi(getEnvOrDefault("APPROVE_RATE_PER_MINUTE", "6"))
	if err != nil {
		return nil, fmt.Errorf("invalid APPROVE_RATE_PER_MINUTE: %w", err)
	}

	watchReceipts, err := strconv.ParseBool(getEnvOrDefault("WATCH_RECEIPTS", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid WATCH_RECEIPTS: %w", err)
	}

	multiplier, err := strconv.ParseFloat(getEnvOrDefault("BASE_FEE_MULTIPLIER", "1.2"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid BASE_FEE_MULTIPLIER: %w", err)
	}

	overrides, err := rpcOverrides(os.Environ())
	if err != nil {
		return nil, err
	}

	config := &Config{
		ListenAddr:        getEnvOrDefault("LISTEN_ADDR", ":8080"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         getEnvOrDefault("LOG_FORMAT", logging.FormatJSON),
		DefaultChainID:    defaultChainID,
		RPCOverrides:      overrides,
		DialRetries:       dialRetries,
		DialRetryDelay:    dialRetryDelay,
		PrivateKey:        os.Getenv("PRIVATE_KEY"),
		KeystorePath:      os.Getenv("KEYSTORE_PATH"),
		KeystorePassword:  os.Getenv("KEYSTORE_PASSWORD"),
		ApprovePerMinute:  approvePerMinute,
		WatchReceipts:     watchReceipts,
		BaseFeeMultiplier: multiplier,
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects values the application cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("LISTEN_ADDR must not be empty")
	}
	if c.DefaultChainID == 0 {
		return fmt.Errorf("DEFAULT_CHAIN_ID must be non-zero")
	}

	switch c.LogFormat {
	case logging.FormatJSON, logging.FormatColor:
	default:
		return fmt.Errorf("LOG_FORMAT must be %q or %q, got %q", logging.FormatJSON, logging.FormatColor, c.LogFormat)
	}

	if c.DialRetries < 0 {
		return fmt.Errorf("DIAL_RETRIES must not be negative")
	}
	if c.DialRetryDelay < 0 {
		return fmt.Errorf("DIAL_RETRY_DELAY must not be negative")
	}
	if c.ApprovePerMinute < 0 {
		return fmt.Errorf("APPROVE_RATE_PER_MINUTE must not be negative")
	}
	if c.BaseFeeMultiplier < 1 {
		return fmt.Errorf("BASE_FEE_MULTIPLIER must be at least 1, got %v", c.BaseFeeMultiplier)
	}

	for chainID, rpcURL := range c.RPCOverrides {
		if strings.TrimSpace(rpcURL) == "" {
			return fmt.Errorf("%s%d is empty", rpcURLPrefix, chainID)
		}
	}

	return nil
}

// HasSigner reports whether any connector has key material configured.
func (c *Config) HasSigner() bool {
	return c.PrivateKey != "" || c.KeystorePath != ""
}

// rpcOverrides collects RPC_URL_<chainid> variables from environ.
func rpcOverrides(environ []string) (map[uint64]string, error) {
	overrides := make(map[uint64]string)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, rpcURLPrefix) {
			continue
		}
		chainID, err := strconv.ParseUint(strings.TrimPrefix(key, rpcURLPrefix), 10, 64)
		if err != nil || chainID == 0 {
			return nil, fmt.Errorf("invalid chain id in %s", key)
		}
		overrides[chainID] = value
	}
	return overrides, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
