// Package config loads application configuration from the environment.
//
// A .env file in the working directory is loaded first when present, so
// local development does not need exported variables. Real environment
// variables always win over .env values.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration.
type Config struct {
	Port     string
	DBPath   string
	LogLevel string

	BaseRent         decimal.Decimal
	HourlyCreditRate decimal.Decimal
	MonthlyCapHours  decimal.Decimal
	CreditWorker     string

	// RecalcCron is the schedule for the nightly safety-net
	// recalculation. Empty disables it.
	RecalcCron string
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	// Missing .env is fine; the environment alone is enough.
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		DBPath:       getEnv("DB_PATH", "./data/rent.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		CreditWorker: getEnv("CREDIT_WORKER", "lyndzie"),
		RecalcCron:   getEnv("RECALC_CRON", "0 3 * * *"),
	}

	var err error
	if cfg.BaseRent, err = getDecimal("BASE_RENT", "1100"); err != nil {
		return nil, err
	}
	if cfg.HourlyCreditRate, err = getDecimal("HOURLY_CREDIT_RATE", "50"); err != nil {
		return nil, err
	}
	if cfg.MonthlyCapHours, err = getDecimal("MONTHLY_CAP_HOURS", "8"); err != nil {
		return nil, err
	}

	if cfg.BaseRent.IsNegative() {
		return nil, fmt.Errorf("BASE_RENT must not be negative")
	}
	if !cfg.HourlyCreditRate.IsPositive() {
		return nil, fmt.Errorf("HOURLY_CREDIT_RATE must be positive")
	}
	if cfg.MonthlyCapHours.IsNegative() {
		return nil, fmt.Errorf("MONTHLY_CAP_HOURS must not be negative")
	}
	if cfg.CreditWorker == "" {
		return nil, fmt.Errorf("CREDIT_WORKER is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getDecimal(key, defaultVal string) (decimal.Decimal, error) {
	raw := getEnv(key, defaultVal)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q", key, raw)
	}
	return d, nil
}
