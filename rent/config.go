package rent

import "github.com/shopspring/decimal"

// =============================================================================
// CONFIG - Engine parameters (never hard-coded in the calculation)
// =============================================================================

// Config carries the rates the calculator derives balances from. These are
// configuration, not literals: the observed household runs $50/hour with an
// 8 hour/month cap against a fixed base rent, but nothing in the engine
// depends on those particular values.
type Config struct {
	// BaseRent is the monthly rent before any credit.
	BaseRent decimal.Decimal

	// HourlyCreditRate is the dollar value of one worked hour.
	HourlyCreditRate decimal.Decimal

	// MonthlyCapHours is the most hours creditable in one period; excess
	// carries into the next period.
	MonthlyCapHours decimal.Decimal
}

// DefaultConfig returns the observed household configuration.
func DefaultConfig() Config {
	return Config{
		BaseRent:         decimal.NewFromInt(1100),
		HourlyCreditRate: decimal.NewFromInt(50),
		MonthlyCapHours:  decimal.NewFromInt(8),
	}
}

// Validate rejects configurations the calculator cannot work with.
func (c Config) Validate() error {
	if !c.HourlyCreditRate.IsPositive() {
		return &ValidationError{Field: "hourly_credit_rate", Reason: "must be positive"}
	}
	if c.MonthlyCapHours.IsNegative() {
		return &ValidationError{Field: "monthly_cap_hours", Reason: "must not be negative"}
	}
	if c.BaseRent.IsNegative() {
		return &ValidationError{Field: "base_rent", Reason: "must not be negative"}
	}
	return nil
}
