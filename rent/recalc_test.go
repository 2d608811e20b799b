package rent_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearth/rent-engine/rent"
	"github.com/hearth/rent-engine/rent/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func fixedClock(t time.Time) rent.Clock {
	return rent.ClockFunc(func() time.Time { return t })
}

func newTestRecalculator(mem *store.Memory, now time.Time) *rent.Recalculator {
	return rent.NewRecalculator(mem, mem, testConfig(), fixedClock(now), nil)
}

// =============================================================================
// RANGE AND CHAINING TESTS
// =============================================================================

func TestRecalculateAll_EmptyStore_NoOp(t *testing.T) {
	mem := store.NewMemory()
	recalc := newTestRecalculator(mem, testNow)

	updated, err := recalc.RecalculateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
}

func TestRecalculateAll_CarryChainsAcrossMonths(t *testing.T) {
	// GIVEN: 10 hours worked in May, nothing in June, clock says June
	// WHEN: Recalculating all
	// THEN: May applies 8h ($400) and carries 2h; June applies the
	//       carried 2h for a $100 discount

	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutEvent(ctx, workEvent("w1", 2025, time.May, 12, 500)))

	recalc := newTestRecalculator(mem, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))

	updated, err := recalc.RecalculateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	may, err := mem.GetPeriod(ctx, key(2025, time.May))
	require.NoError(t, err)
	assertDecimal(t, 8, may.HoursApplied, "may applied")
	assertDecimal(t, 2, may.HoursCarriedOver, "may carry")
	assertDecimal(t, 700, may.AmountDue, "may due")

	june, err := mem.GetPeriod(ctx, key(2025, time.June))
	require.NoError(t, err)
	assertDecimal(t, 2, june.HoursFromPrevious, "june from previous")
	assertDecimal(t, 100, june.DiscountApplied, "june discount")
	assertDecimal(t, 1000, june.AmountDue, "june due")
}

func TestRecalculateAll_ExtendsThroughLatestEventPeriod(t *testing.T) {
	// GIVEN: Clock says June but an event is already assigned to September
	// WHEN: Recalculating all
	// THEN: The range runs through September, not just the current month

	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutEvent(ctx, workEvent("w1", 2025, time.June, 1, 100)))
	require.NoError(t, mem.PutEvent(ctx, workEvent("w2", 2025, time.September, 1, 100)))

	recalc := newTestRecalculator(mem, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))

	updated, err := recalc.RecalculateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, updated) // June through September

	sept, err := mem.GetPeriod(ctx, key(2025, time.September))
	require.NoError(t, err)
	assertDecimal(t, 2, sept.HoursWorked, "september hours")
}

func TestRecalculateFrom_EmptiedTrailingPeriod_Rewritten(t *testing.T) {
	// GIVEN: The only event sits in December, months past the June clock,
	//        and its period has been derived
	// WHEN: The event is soft-deleted and December is recalculated
	// THEN: December is still in range (no surviving event reaches it) and
	//       its stored record drops the deleted contribution

	ctx := context.Background()
	mem := store.NewMemory()
	e := workEvent("w1", 2025, time.December, 5, 200)
	require.NoError(t, mem.PutEvent(ctx, e))

	recalc := newTestRecalculator(mem, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))
	_, err := recalc.RecalculateAll(ctx)
	require.NoError(t, err)

	dec, err := mem.GetPeriod(ctx, key(2025, time.December))
	require.NoError(t, err)
	assertDecimal(t, 200, dec.DiscountApplied, "december discount before delete")

	e.Deleted = true
	require.NoError(t, mem.PutEvent(ctx, e))

	updated, err := recalc.RecalculateFrom(ctx, key(2025, time.December))
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	dec, err = mem.GetPeriod(ctx, key(2025, time.December))
	require.NoError(t, err)
	assertDecimal(t, 0, dec.DiscountApplied, "december discount after delete")
	assertDecimal(t, 1100, dec.AmountDue, "december due after delete")
}

func TestRecalculateSpan_ReachesThroughPeriod(t *testing.T) {
	// GIVEN: Surviving events only in June
	// WHEN: Recalculating a span whose far end is September
	// THEN: All four periods are written, not just June

	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutEvent(ctx, workEvent("w1", 2025, time.June, 1, 100)))

	recalc := newTestRecalculator(mem, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))

	updated, err := recalc.RecalculateSpan(ctx, key(2025, time.June), key(2025, time.September))
	require.NoError(t, err)
	assert.Equal(t, 4, updated)

	sept, err := mem.GetPeriod(ctx, key(2025, time.September))
	require.NoError(t, err)
	assertDecimal(t, 1100, sept.AmountDue, "september due")
}

func TestRecalculateFrom_ReadsStoredCarryIn(t *testing.T) {
	// GIVEN: May already derived with a 2-hour carry-out
	// WHEN: Recalculating from June only
	// THEN: June picks up May's stored carry

	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutEvent(ctx, workEvent("w1", 2025, time.May, 12, 500)))

	now := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	recalc := newTestRecalculator(mem, now)
	_, err := recalc.RecalculateAll(ctx)
	require.NoError(t, err)

	updated, err := recalc.RecalculateFrom(ctx, key(2025, time.June))
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	june, err := mem.GetPeriod(ctx, key(2025, time.June))
	require.NoError(t, err)
	assertDecimal(t, 2, june.HoursFromPrevious, "june from previous")
}

func TestRecalculateFrom_InvalidKey_Rejected(t *testing.T) {
	mem := store.NewMemory()
	recalc := newTestRecalculator(mem, testNow)

	_, err := recalc.RecalculateFrom(context.Background(), key(2025, 0))
	assert.ErrorIs(t, err, rent.ErrInvalidPeriod)
}

// =============================================================================
// IDEMPOTENCE
// =============================================================================

func TestRecalculateAll_Idempotent(t *testing.T) {
	// GIVEN: A fixed clock and an unchanged event history
	// WHEN: Recalculating twice
	// THEN: Every stored period record is identical between runs

	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutEvent(ctx, workEvent("w1", 2025, time.April, 3, 650)))
	require.NoError(t, mem.PutEvent(ctx, paymentEvent("p1", 2025, time.May, 1, 700)))

	recalc := newTestRecalculator(mem, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))

	_, err := recalc.RecalculateAll(ctx)
	require.NoError(t, err)
	first, err := mem.ListPeriods(ctx)
	require.NoError(t, err)

	_, err = recalc.RecalculateAll(ctx)
	require.NoError(t, err)
	second, err := mem.ListPeriods(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// =============================================================================
// PARTIAL FAILURE
// =============================================================================

func TestRecalculateAll_PersistFailure_ReportsProgress(t *testing.T) {
	// GIVEN: A store whose period writes fail
	// WHEN: Recalculating
	// THEN: The error carries how many periods were written (zero here)
	//       and which period failed

	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutEvent(ctx, workEvent("w1", 2025, time.May, 12, 500)))
	mem.FailPuts = true

	recalc := newTestRecalculator(mem, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))

	updated, err := recalc.RecalculateAll(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, updated)

	var recalcErr *rent.RecalcError
	require.ErrorAs(t, err, &recalcErr)
	assert.Equal(t, 0, recalcErr.PeriodsUpdated)
	assert.Equal(t, key(2025, time.May), recalcErr.Failed)
	assert.ErrorIs(t, err, rent.ErrStorage)
}

func TestRecalculateAll_RerunAfterFailure_SelfHeals(t *testing.T) {
	// GIVEN: A failed run left no periods written
	// WHEN: The store recovers and recalculation re-runs
	// THEN: All periods derive cleanly

	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutEvent(ctx, workEvent("w1", 2025, time.May, 12, 500)))

	recalc := newTestRecalculator(mem, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))

	mem.FailPuts = true
	_, err := recalc.RecalculateAll(ctx)
	require.Error(t, err)

	mem.FailPuts = false
	updated, err := recalc.RecalculateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
}

// =============================================================================
// MALFORMED EVENT TOLERANCE
// =============================================================================

func TestRecalculateAll_MalformedEventNeverAborts(t *testing.T) {
	// GIVEN: A stored event with an unknown type alongside a good one
	// WHEN: Recalculating
	// THEN: The run completes and only the good event contributes

	ctx := context.Background()
	mem := store.NewMemory()

	bad := workEvent("bad", 2025, time.May, 2, 9999)
	bad.Type = "corrupted"
	require.NoError(t, mem.PutEvent(ctx, bad))
	require.NoError(t, mem.PutEvent(ctx, workEvent("good", 2025, time.May, 3, 100)))

	recalc := newTestRecalculator(mem, time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC))

	updated, err := recalc.RecalculateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	may, err := mem.GetPeriod(ctx, key(2025, time.May))
	require.NoError(t, err)
	assertDecimal(t, 2, may.HoursWorked, "may hours")
}

func sum(ds ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range ds {
		total = total.Add(d)
	}
	return total
}

func TestRecalculateAll_LongCarryChain_Conserved(t *testing.T) {
	// GIVEN: 20 hours worked in one month, nothing after
	// WHEN: Recalculating across three months
	// THEN: 8+8+4 hours apply in sequence; total applied equals total worked

	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutEvent(ctx, workEvent("w1", 2025, time.March, 1, 1000)))

	recalc := newTestRecalculator(mem, time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC))
	_, err := recalc.RecalculateAll(ctx)
	require.NoError(t, err)

	march, _ := mem.GetPeriod(ctx, key(2025, time.March))
	april, _ := mem.GetPeriod(ctx, key(2025, time.April))
	may, _ := mem.GetPeriod(ctx, key(2025, time.May))

	assertDecimal(t, 8, march.HoursApplied, "march applied")
	assertDecimal(t, 8, april.HoursApplied, "april applied")
	assertDecimal(t, 4, may.HoursApplied, "may applied")
	assertDecimal(t, 0, may.HoursCarriedOver, "may carry")
	assertDecimal(t, 20, sum(march.HoursApplied, april.HoursApplied, may.HoursApplied), "total applied")
}
