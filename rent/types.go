/*
Package rent provides the rent-credit calculation engine.

PURPOSE:
  This package contains the domain types and algorithms for turning a ledger
  of dated events (work credits, payments, adjustments) into per-month rent
  balances. Worked hours earn a rent discount at a fixed hourly rate, capped
  per month; hours beyond the cap carry forward into the next month.

KEY CONCEPTS IN THIS FILE (types.go):
  - Event: A dated financial entry affecting one rent period
  - EventType: work_value_change, payment, adjustment, manual
  - Period: The derived monthly balance record
  - Soft deletion: events are never removed, only flagged

DESIGN PRINCIPLES:
  1. Amount is canonical: hours of a work event are always derived from its
     dollar amount via the hourly credit rate, never stored separately
  2. Precision: uses decimal.Decimal to avoid floating-point errors
  3. Derivability: Period records are pure derivations and can be rebuilt
     from the event history at any time
  4. Auditability: every mutation produces an audit entry

SEE ALSO:
  - calculator.go: Single-period balance derivation
  - recalc.go: Chronological recalculation across periods
  - service.go: Validated event mutations
*/
package rent

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EVENT - Dated financial entry affecting a rent period
// =============================================================================

type EventType string

const (
	// EventWorkValue is credit earned from logged work hours. Its Amount is
	// hours x hourly credit rate; hours are re-derived by dividing back.
	EventWorkValue EventType = "work_value_change"

	// EventPayment is money paid toward a period's rent. Always non-negative.
	EventPayment EventType = "payment"

	// EventAdjustment is a signed correction to a period's amount due.
	// Positive reduces the amount due, negative charges extra.
	EventAdjustment EventType = "adjustment"

	// EventManual is a hand-entered credit outside the work-log flow.
	// Treated like an adjustment in the due calculation.
	EventManual EventType = "manual"
)

// Event is an immutable-by-id record. Edits produce a new revision of the
// same id with the prior state preserved in the audit log; deletion is a
// soft flag so history always replays the same way it was entered.
type Event struct {
	ID   string
	Type EventType

	// Date is the calendar date of the event, normalized to UTC midnight.
	// Year/Month name the rent period the event feeds; they default to
	// Date's month but may be reassigned via edit (e.g. a payment made
	// Feb 2 against January rent).
	Date  time.Time
	Year  int
	Month time.Month

	// Amount is signed: positive increases credit / reduces the amount
	// due, negative is a charge.
	Amount decimal.Decimal

	Description string
	Notes       string

	// Payment subtype fields, set only when Type == EventPayment.
	PaymentDate   time.Time
	PaymentMethod string

	// WorkLogID links a work_value_change event back to the work-log entry
	// that produced it. Empty for hand-entered events.
	WorkLogID string

	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Hours returns the hour-equivalent of a work event's amount at the given
// hourly rate. Zero for non-work events or a non-positive rate.
func (e Event) Hours(hourlyRate decimal.Decimal) decimal.Decimal {
	if e.Type != EventWorkValue || !hourlyRate.IsPositive() {
		return decimal.Zero
	}
	return e.Amount.Div(hourlyRate)
}

// Valid reports whether the event is well-formed enough to participate in
// calculation. Malformed records in the store (unknown type, zero date) are
// filtered rather than aborting recalculation of everything else.
func (e Event) Valid() bool {
	switch e.Type {
	case EventWorkValue, EventPayment, EventAdjustment, EventManual:
	default:
		return false
	}
	if e.Date.IsZero() {
		return false
	}
	return PeriodKey{Year: e.Year, Month: e.Month}.Validate() == nil
}

// =============================================================================
// PERIOD - Derived monthly balance record
// =============================================================================

// PaymentStatus classifies a period by how much of its due has been paid.
type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "paid"
	StatusPartial PaymentStatus = "partial"
	StatusUnpaid  PaymentStatus = "unpaid"
)

// Period is the derived balance record for one (year, month). It is never
// authored directly: recalculation overwrites it wholesale from the event
// history, so recalculating twice with no intervening mutation yields
// identical records.
type Period struct {
	Key PeriodKey

	// Hours worked within the period (from work events dated in it).
	HoursWorked decimal.Decimal

	// Hours carried in from the previous period's overflow. Always >= 0.
	HoursFromPrevious decimal.Decimal

	// Hours actually credited this period: min(worked+previous, cap).
	HoursApplied decimal.Decimal

	// Hours beyond the cap, rolled into the next period. Always >= 0.
	HoursCarriedOver decimal.Decimal

	// DiscountApplied = HoursApplied x hourly credit rate.
	DiscountApplied decimal.Decimal

	// AmountDue = base rent - discount - signed adjustments. NOT floored
	// at zero: a negative due is a valid owed-to-worker state.
	AmountDue decimal.Decimal

	// AmountPaid is the sum of payment events for the period.
	AmountPaid decimal.Decimal

	CalculatedAt time.Time
}

// Status derives the payment status from due vs paid.
func (p Period) Status() PaymentStatus {
	switch {
	case p.AmountPaid.GreaterThanOrEqual(p.AmountDue):
		return StatusPaid
	case p.AmountPaid.IsPositive():
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// Outstanding returns due minus paid (negative when overpaid or when
// credits exceed the rent).
func (p Period) Outstanding() decimal.Decimal {
	return p.AmountDue.Sub(p.AmountPaid)
}

// =============================================================================
// SUMMARY - Totals across all tracked periods
// =============================================================================

type Summary struct {
	TotalPeriods         int
	OutstandingBalance   decimal.Decimal
	TotalDiscountApplied decimal.Decimal
	TotalAmountPaid      decimal.Decimal
}
