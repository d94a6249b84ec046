// Copyright 2025 Alpen Labs
//
// Package config loads the rollup node's ambient configuration
// (listeners, data directory, logging, retry policy) from environment
// variables, and its domain configuration (genesis anchor, store retry
// policy, admin confirmation depth, prover backends, fork-choice depth
// limit) from a YAML file — see rollup_config.go.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the node's ambient configuration, read from environment
// variables with safe local-development defaults.
type Config struct {
	// Server configuration
	ListenAddr  string
	MetricsAddr string
	HealthAddr  string

	// Storage configuration
	DataDir          string
	RetryMaxAttempts int
	RetryBaseBackoff time.Duration
	RetryExponential bool

	// L1 reader configuration
	L1RPCURL       string
	L1RPCUser      string
	L1RPCPassword  string
	L1PollInterval time.Duration

	// Service identity
	NodeID   string
	LogLevel string
}

// Load reads ambient configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("API_PORT", "8080"),
		MetricsAddr: getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("METRICS_PORT", "9090"),
		HealthAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("HEALTH_CHECK_PORT", "8081"),

		DataDir:          getEnv("DATA_DIR", "./data"),
		RetryMaxAttempts: getEnvInt("STORE_RETRY_MAX_ATTEMPTS", 5),
		RetryBaseBackoff: getEnvDuration("STORE_RETRY_BASE_BACKOFF", 10*time.Millisecond),
		RetryExponential: getEnvBool("STORE_RETRY_EXPONENTIAL", true),

		L1RPCURL:       getEnv("L1_RPC_URL", ""),
		L1RPCUser:      getEnv("L1_RPC_USER", ""),
		L1RPCPassword:  getEnv("L1_RPC_PASSWORD", ""),
		L1PollInterval: getEnvDuration("L1_POLL_INTERVAL", 10*time.Second),

		NodeID:   getEnv("NODE_ID", "rollup-node-default"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// Validate checks that the configuration required to reach L1 is present.
func (c *Config) Validate() error {
	if c.L1RPCURL == "" {
		return fmt.Errorf("config: L1_RPC_URL is required but not set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
