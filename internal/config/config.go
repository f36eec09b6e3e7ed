// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string  // base directory for the result databases
	Port            int
	LogLevel        string
	DevMode         bool
	InitialCapital  float64 // default starting capital for scenario runs
	CommissionRate  float64 // fraction of gross trade value per leg
	MinPositionSize float64 // sizing floor as a fraction of total value
	MaxPositionSize float64 // sizing ceiling as a fraction of total value
	AnnualRiskFree  float64 // fallback benchmark rate, annual fraction
	BenchmarkSymbol string  // ledger tag for interest accrual entries
}

// Load reads configuration from environment variables, honoring a .env file
// when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("BACKTEST_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		Port:            getEnvAsInt("PORT", 8001),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		InitialCapital:  getEnvAsFloat("INITIAL_CAPITAL", 50_000_000),
		CommissionRate:  getEnvAsFloat("COMMISSION_RATE", 0.001),
		MinPositionSize: getEnvAsFloat("MIN_POSITION_SIZE", 0.01),
		MaxPositionSize: getEnvAsFloat("MAX_POSITION_SIZE", 0.15),
		AnnualRiskFree:  getEnvAsFloat("ANNUAL_RISK_FREE_RATE", 0.135),
		BenchmarkSymbol: getEnv("BENCHMARK_SYMBOL", "SELIC"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("INITIAL_CAPITAL must be positive, got %v", c.InitialCapital)
	}
	if c.CommissionRate < 0 {
		return fmt.Errorf("COMMISSION_RATE must not be negative, got %v", c.CommissionRate)
	}
	if c.MinPositionSize <= 0 || c.MaxPositionSize <= 0 || c.MinPositionSize > c.MaxPositionSize {
		return fmt.Errorf("position size bounds invalid: min %v, max %v", c.MinPositionSize, c.MaxPositionSize)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
