package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"pumpfun-sniper/internal/price"
	"pumpfun-sniper/internal/utils"
)

// Config holds all configuration for the sniper. It is constructed once at
// startup and passed by reference into the ingestion and dispatch layers.
type Config struct {
	// Helius Enhanced WebSocket feed
	HeliusAPIKey string
	HeliusWSURL  string

	// PumpPortal trade API
	PumpPortalAPIKey string
	PumpPortalURL    string

	// Pump.Fun program to subscribe to
	PumpFunProgramID string

	// Trading parameters
	BuyAmountSOL    float64
	SlippagePercent int
	PriorityFee     float64

	// Watched token symbols (normalized to uppercase by the dispatcher)
	MonitoredSymbols []string

	// Connection settings
	PingInterval   time.Duration
	ReconnectDelay time.Duration
	TimeoutSeconds int

	// Logging
	LogLevel string
	LogFile  string

	// Price Service
	PriceService *price.PriceService

	// Runtime flags
	SimulateMode bool
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	config := &Config{}

	// Required fields
	config.HeliusAPIKey = getEnvRequired("HELIUS_API_KEY")
	config.PumpPortalAPIKey = getEnvRequired("PUMPPORTAL_API_KEY")
	config.HeliusWSURL = getEnv("HELIUS_WS_URL", "wss://mainnet.helius-rpc.com/") + "?api-key=" + config.HeliusAPIKey
	config.PumpPortalURL = getEnv("PUMPPORTAL_BASE_URL", "https://pumpportal.fun/api/trade")

	// Trading parameters with defaults
	config.BuyAmountSOL = getEnvFloat("BUY_AMOUNT_SOL", 0.01)
	config.SlippagePercent = getEnvInt("SLIPPAGE_PERCENT", 10)
	config.PriorityFee = getEnvFloat("PRIORITY_FEE", 0.00005)

	// Connection settings with defaults
	config.PingInterval = time.Duration(getEnvInt("PING_INTERVAL_SECONDS", 10)) * time.Second
	config.ReconnectDelay = time.Duration(getEnvInt("RECONNECT_DELAY_SECONDS", 5)) * time.Second
	config.TimeoutSeconds = getEnvInt("TIMEOUT_SECONDS", 10)

	config.LogLevel = getEnv("LOG_LEVEL", "info")
	config.LogFile = getEnv("LOG_FILE", "")

	// Pump.Fun configuration
	config.PumpFunProgramID = getEnv("PUMP_FUN_PROGRAM_ID", "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	// Watched symbols, comma-separated
	config.MonitoredSymbols = splitSymbols(getEnv("MONITORED_SYMBOLS", ""))

	// Initialize price service
	config.PriceService = price.NewPriceService()

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.BuyAmountSOL <= 0 {
		return fmt.Errorf("BUY_AMOUNT_SOL must be positive, got: %f", c.BuyAmountSOL)
	}

	if c.SlippagePercent < 0 || c.SlippagePercent > 100 {
		return fmt.Errorf("SLIPPAGE_PERCENT must be between 0 and 100, got: %d", c.SlippagePercent)
	}

	if c.PriorityFee < 0 {
		return fmt.Errorf("PRIORITY_FEE must be non-negative, got: %f", c.PriorityFee)
	}

	if c.PingInterval < time.Second {
		return fmt.Errorf("PING_INTERVAL_SECONDS must be at least 1, got: %s", c.PingInterval)
	}

	if c.ReconnectDelay < time.Second {
		return fmt.Errorf("RECONNECT_DELAY_SECONDS must be at least 1, got: %s", c.ReconnectDelay)
	}

	if c.TimeoutSeconds < 1 {
		return fmt.Errorf("TIMEOUT_SECONDS must be at least 1, got: %d", c.TimeoutSeconds)
	}

	if _, err := solana.PublicKeyFromBase58(c.PumpFunProgramID); err != nil {
		return fmt.Errorf("PUMP_FUN_PROGRAM_ID is not a valid address: %w", err)
	}

	return nil
}

// GetTimeout returns the timeout duration.
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetCurrentSOLPrice returns the current SOL price.
func (c *Config) GetCurrentSOLPrice() float64 {
	return c.PriceService.GetPrice()
}

// LogConfig logs the current configuration.
func (c *Config) LogConfig() {
	logrus.WithFields(logrus.Fields{
		"helius_ws":       utils.SanitizeURL(c.HeliusWSURL),
		"pumpportal_url":  utils.SanitizeURL(c.PumpPortalURL),
		"program_id":      c.PumpFunProgramID,
		"buy_amount":      fmt.Sprintf("%.3f SOL", c.BuyAmountSOL),
		"slippage":        fmt.Sprintf("%d%%", c.SlippagePercent),
		"watched_symbols": len(c.MonitoredSymbols),
		"simulate_mode":   c.SimulateMode,
	}).Info("📋 Configuration loaded")
}

// splitSymbols parses a comma-separated symbol list, dropping blanks.
func splitSymbols(raw string) []string {
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// Helper functions for environment variable handling

func getEnvRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		logrus.Fatalf("Required environment variable %s is not set", key)
	}
	return value
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		logrus.Warnf("Invalid integer value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
		logrus.Warnf("Invalid float value for %s: %s, using default: %f", key, value, defaultValue)
	}
	return defaultValue
}
