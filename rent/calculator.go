/*
calculator.go - Single-period balance derivation

PURPOSE:
  The pure function at the center of the engine: given one period's events
  and the hours carried in from the previous period, derive that period's
  balance and the hours carried out.

THE DERIVATION:
  totalHours   = sum(work event hours) + carried-in hours
  hoursApplied = min(totalHours, monthly cap)
  discount     = hoursApplied x hourly rate
  carryOut     = max(totalHours - cap, 0)
  amountDue    = baseRent - discount - sum(adjustment amounts)
  amountPaid   = sum(payment amounts)

  amountDue is deliberately NOT floored at zero: credits exceeding the rent
  leave a negative due, the owed-to-worker state.

DEFENSIVE FILTERING:
  Deleted and malformed events are excluded from the sums. One bad record
  in the store must never abort derivation of the rest.

SEE ALSO:
  - recalc.go: Chains ComputePeriod across months via the carry-out
*/
package rent

import (
	"time"

	"github.com/shopspring/decimal"
)

// ComputeResult pairs a derived period with the carry-out hours that feed
// the next period's computation.
type ComputeResult struct {
	Period   Period
	CarryOut decimal.Decimal
}

// ComputePeriod derives one period's balance. Pure: same inputs, same
// output. Events outside the target period are ignored, so callers may pass
// a broader slice than strictly necessary.
//
// priorCarryHours is the previous period's carry-out (>= 0; negative input
// is clamped to zero - carried hours are monotonically non-negative).
// An empty event set yields a zero-state period, not an error.
func ComputePeriod(key PeriodKey, priorCarryHours decimal.Decimal, events []Event, cfg Config, now time.Time) (ComputeResult, error) {
	if err := key.Validate(); err != nil {
		return ComputeResult{}, err
	}
	if priorCarryHours.IsNegative() {
		priorCarryHours = decimal.Zero
	}

	var (
		hoursWorked = decimal.Zero
		adjustments = decimal.Zero
		amountPaid  = decimal.Zero
	)

	for _, e := range events {
		if e.Deleted || !e.Valid() {
			continue
		}
		if e.Year != key.Year || e.Month != key.Month {
			continue
		}

		switch e.Type {
		case EventWorkValue:
			hoursWorked = hoursWorked.Add(e.Hours(cfg.HourlyCreditRate))
		case EventPayment:
			amountPaid = amountPaid.Add(e.Amount)
		case EventAdjustment, EventManual:
			adjustments = adjustments.Add(e.Amount)
		}
	}

	totalHours := hoursWorked.Add(priorCarryHours)
	hoursApplied := decimal.Min(totalHours, cfg.MonthlyCapHours)
	carryOut := decimal.Max(totalHours.Sub(cfg.MonthlyCapHours), decimal.Zero)
	discount := hoursApplied.Mul(cfg.HourlyCreditRate)

	p := Period{
		Key:               key,
		HoursWorked:       hoursWorked,
		HoursFromPrevious: priorCarryHours,
		HoursApplied:      hoursApplied,
		HoursCarriedOver:  carryOut,
		DiscountApplied:   discount,
		AmountDue:         cfg.BaseRent.Sub(discount).Sub(adjustments),
		AmountPaid:        amountPaid,
		CalculatedAt:      now,
	}

	return ComputeResult{Period: p, CarryOut: carryOut}, nil
}
