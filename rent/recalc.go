/*
recalc.go - Chronological recalculation across periods

PURPOSE:
  After any event mutation, re-derive every affected period in ascending
  order. Carry-out hours create a strict forward dependency: period N must
  be written before period N+1 is computed, since N+1 reads N's carry-out.

RANGE SELECTION:
  Start: the mutation's period - or for an edit that moved an event, the
  earlier of its old and new periods. "Recalculate all" starts at the
  earliest event ever recorded.
  End: the latest of the current month, the latest period holding events,
  and every period the mutation touched (so a period emptied by a delete
  or a move to an earlier month is still rewritten).

FAILURE SEMANTICS:
  Writes are not rolled back. A persist failure surfaces a RecalcError with
  the count of periods already written; because the whole operation is
  idempotent, a re-run self-heals.

SEE ALSO:
  - calculator.go: The per-period derivation being chained
  - service.go: Decides the starting period per mutation
*/
package rent

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Recalculator re-derives period records from the event history.
type Recalculator struct {
	Events  EventStore
	Periods PeriodStore
	Config  Config
	Clock   Clock
	Log     *logrus.Logger
}

// NewRecalculator wires a recalculator. A nil clock falls back to the
// system clock; a nil logger discards.
func NewRecalculator(events EventStore, periods PeriodStore, cfg Config, clock Clock, log *logrus.Logger) *Recalculator {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &Recalculator{Events: events, Periods: periods, Config: cfg, Clock: clock, Log: log}
}

// RecalculateAll re-derives every period from the earliest event through
// the current month. The degenerate full-range case of RecalculateFrom.
func (r *Recalculator) RecalculateAll(ctx context.Context) (int, error) {
	earliest, ok, err := r.Events.EarliestPeriod(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: finding earliest period: %v", ErrStorage, err)
	}
	if !ok {
		// No events yet; nothing to derive.
		return 0, nil
	}
	return r.RecalculateFrom(ctx, earliest)
}

// RecalculateFrom re-derives periods from the given key forward, feeding
// each period's carry-out into the next. Returns how many periods were
// written; on failure, the count covers the periods durably written before
// the error.
func (r *Recalculator) RecalculateFrom(ctx context.Context, from PeriodKey) (int, error) {
	return r.RecalculateSpan(ctx, from, from)
}

// RecalculateSpan is RecalculateFrom with a second known-affected period:
// the range always reaches through, even when no surviving event dates
// that far. A mutation that empties a future period (delete, or a move to
// an earlier month) still gets its stale record rewritten.
func (r *Recalculator) RecalculateSpan(ctx context.Context, from, through PeriodKey) (int, error) {
	if err := from.Validate(); err != nil {
		return 0, err
	}
	if err := through.Validate(); err != nil {
		return 0, err
	}

	end := LaterOf(CurrentKey(r.Clock), LaterOf(from, through))
	if latest, ok, err := r.Events.LatestPeriod(ctx); err != nil {
		return 0, fmt.Errorf("%w: finding latest period: %v", ErrStorage, err)
	} else if ok {
		end = LaterOf(end, latest)
	}

	carry, err := r.carryInto(ctx, from)
	if err != nil {
		return 0, err
	}

	updated := 0
	now := r.Clock.Now()
	for key := from; !key.After(end); key = key.Next() {
		events, err := r.Events.EventsForPeriod(ctx, key)
		if err != nil {
			return updated, &RecalcError{PeriodsUpdated: updated, Failed: key,
				Err: fmt.Errorf("%w: loading events: %v", ErrStorage, err)}
		}

		result, err := ComputePeriod(key, carry, events, r.Config, now)
		if err != nil {
			return updated, &RecalcError{PeriodsUpdated: updated, Failed: key, Err: err}
		}

		if err := r.Periods.PutPeriod(ctx, result.Period); err != nil {
			return updated, &RecalcError{PeriodsUpdated: updated, Failed: key,
				Err: fmt.Errorf("%w: writing period: %v", ErrStorage, err)}
		}

		updated++
		carry = result.CarryOut
	}

	r.Log.WithFields(logrus.Fields{
		"from":    from.String(),
		"through": end.String(),
		"periods": updated,
	}).Info("recalculated rent periods")

	return updated, nil
}

// carryInto returns the carry-out of the period before key: the stored
// derived record if one exists, zero otherwise (the very first period
// starts with no carried hours).
func (r *Recalculator) carryInto(ctx context.Context, key PeriodKey) (decimal.Decimal, error) {
	prev := key.Prev()
	if prev.Validate() != nil {
		return decimal.Zero, nil
	}

	p, err := r.Periods.GetPeriod(ctx, prev)
	if IsNotFound(err) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: reading prior period %s: %v", ErrStorage, prev, err)
	}
	return p.HoursCarriedOver, nil
}
