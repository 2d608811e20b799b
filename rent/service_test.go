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

func newTestService(now time.Time) (*rent.Service, *store.Memory) {
	mem := store.NewMemory()
	svc := rent.NewService(mem, mem, mem, testConfig(), fixedClock(now), nil)
	return svc, mem
}

func juneNow() time.Time {
	return time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestCreateEvent_Validation(t *testing.T) {
	svc, _ := newTestService(juneNow())
	ctx := context.Background()
	date := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		input rent.EventInput
		field string
	}{
		{"missing type", rent.EventInput{Date: date, Description: "x"}, "type"},
		{"unknown type", rent.EventInput{Type: "bogus", Date: date, Description: "x"}, "type"},
		{"missing date", rent.EventInput{Type: rent.EventManual, Description: "x"}, "date"},
		{"blank description", rent.EventInput{Type: rent.EventManual, Date: date, Description: "   "}, "description"},
		{"negative payment", rent.EventInput{Type: rent.EventPayment, Date: date,
			Description: "x", Amount: dollars(-1)}, "amount"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateEvent(ctx, tc.input)
			var vErr *rent.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestCreateEvent_InvalidPeriodOverride_Rejected(t *testing.T) {
	svc, _ := newTestService(juneNow())

	_, err := svc.CreateEvent(context.Background(), rent.EventInput{
		Type:        rent.EventManual,
		Date:        time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		Year:        2025,
		Month:       13,
		Amount:      dollars(10),
		Description: "bad month",
	})
	assert.ErrorIs(t, err, rent.ErrInvalidPeriod)
}

// =============================================================================
// CREATE / UPDATE / DELETE FLOW
// =============================================================================

func TestCreateEvent_PersistsAndRecalculates(t *testing.T) {
	// GIVEN: An empty ledger
	// WHEN: Creating a 6-hour work credit for June
	// THEN: The event is stored with a normalized date and June's period
	//       reflects the discount immediately

	svc, mem := newTestService(juneNow())
	ctx := context.Background()

	e, err := svc.CreateEvent(ctx, rent.EventInput{
		Type:        rent.EventWorkValue,
		Date:        time.Date(2025, time.June, 10, 14, 30, 0, 0, time.UTC),
		Amount:      dollars(300),
		Description: "yard work",
		Actor:       "tester",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC), e.Date)
	assert.Equal(t, 2025, e.Year)
	assert.Equal(t, time.June, e.Month)

	june, err := mem.GetPeriod(ctx, key(2025, time.June))
	require.NoError(t, err)
	assertDecimal(t, 300, june.DiscountApplied, "june discount")
	assertDecimal(t, 800, june.AmountDue, "june due")
}

func TestCreateEvent_ExplicitPeriodOverride(t *testing.T) {
	// GIVEN: A payment dated February 2 made against January rent
	// WHEN: Creating with an explicit Year/Month
	// THEN: It lands in January's period, not February's

	svc, mem := newTestService(time.Date(2025, time.February, 5, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := svc.CreateEvent(ctx, rent.EventInput{
		Type:        rent.EventPayment,
		Date:        time.Date(2025, time.February, 2, 0, 0, 0, 0, time.UTC),
		Year:        2025,
		Month:       time.January,
		Amount:      dollars(1100),
		Description: "january rent",
	})
	require.NoError(t, err)

	jan, err := mem.GetPeriod(ctx, key(2025, time.January))
	require.NoError(t, err)
	assertDecimal(t, 1100, jan.AmountPaid, "january paid")
	assert.Equal(t, rent.StatusPaid, jan.Status())
}

func TestUpdateEvent_MoveToEarlierPeriod_RecalculatesForward(t *testing.T) {
	// GIVEN: A June work event already derived
	// WHEN: Editing it back to March
	// THEN: March through June all re-derive; June loses the credit

	svc, mem := newTestService(juneNow())
	ctx := context.Background()

	e, err := svc.CreateEvent(ctx, rent.EventInput{
		Type:        rent.EventWorkValue,
		Date:        time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC),
		Amount:      dollars(300),
		Description: "work",
	})
	require.NoError(t, err)

	_, err = svc.UpdateEvent(ctx, e.ID, rent.EventInput{
		Type:        rent.EventWorkValue,
		Date:        time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		Amount:      dollars(300),
		Description: "work",
	})
	require.NoError(t, err)

	march, err := mem.GetPeriod(ctx, key(2025, time.March))
	require.NoError(t, err)
	assertDecimal(t, 300, march.DiscountApplied, "march discount")

	june, err := mem.GetPeriod(ctx, key(2025, time.June))
	require.NoError(t, err)
	assertDecimal(t, 0, june.DiscountApplied, "june discount after move")
	assertDecimal(t, 1100, june.AmountDue, "june due after move")
}

func TestUpdateEvent_NotFound(t *testing.T) {
	svc, _ := newTestService(juneNow())

	_, err := svc.UpdateEvent(context.Background(), "missing", rent.EventInput{
		Type: rent.EventManual, Date: juneNow(), Amount: dollars(1), Description: "x",
	})
	assert.ErrorIs(t, err, rent.ErrNotFound)
}

func TestUpdateEvent_DeletedEvent_Rejected(t *testing.T) {
	svc, _ := newTestService(juneNow())
	ctx := context.Background()

	e, err := svc.CreateEvent(ctx, rent.EventInput{
		Type: rent.EventManual, Date: juneNow(), Amount: dollars(10), Description: "x",
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteEvent(ctx, e.ID, "tester"))

	_, err = svc.UpdateEvent(ctx, e.ID, rent.EventInput{
		Type: rent.EventManual, Date: juneNow(), Amount: dollars(20), Description: "x",
	})
	assert.ErrorIs(t, err, rent.ErrEventDeleted)
}

func TestDeleteUndelete_RestoresContribution(t *testing.T) {
	// GIVEN: A work credit contributing to June
	// WHEN: Soft-deleting and then restoring it
	// THEN: June's discount drops to zero and comes back identically

	svc, mem := newTestService(juneNow())
	ctx := context.Background()

	e, err := svc.CreateEvent(ctx, rent.EventInput{
		Type:        rent.EventWorkValue,
		Date:        time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC),
		Amount:      dollars(300),
		Description: "work",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEvent(ctx, e.ID, "tester"))
	june, _ := mem.GetPeriod(ctx, key(2025, time.June))
	assertDecimal(t, 0, june.DiscountApplied, "discount after delete")

	// Deleted events stay retrievable
	stored, err := mem.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, stored.Deleted)

	require.NoError(t, svc.UndeleteEvent(ctx, e.ID, "tester"))
	june, _ = mem.GetPeriod(ctx, key(2025, time.June))
	assertDecimal(t, 300, june.DiscountApplied, "discount after undelete")
}

func TestDeleteEvent_OnlyEventInFutureMonth_ClearsPeriod(t *testing.T) {
	// GIVEN: A single work event assigned to December, months past the
	//        June clock
	// WHEN: Deleting it
	// THEN: December's stored record is rewritten back to the base rent
	//       instead of keeping the deleted event's discount

	svc, _ := newTestService(juneNow())
	ctx := context.Background()

	e, err := svc.CreateEvent(ctx, rent.EventInput{
		Type:        rent.EventWorkValue,
		Date:        time.Date(2025, time.December, 5, 0, 0, 0, 0, time.UTC),
		Amount:      dollars(200),
		Description: "deep cleaning",
		Actor:       "tester",
	})
	require.NoError(t, err)

	dec, err := svc.GetPeriod(ctx, key(2025, time.December))
	require.NoError(t, err)
	assertDecimal(t, 200, dec.DiscountApplied, "december discount before delete")

	require.NoError(t, svc.DeleteEvent(ctx, e.ID, "tester"))

	dec, err = svc.GetPeriod(ctx, key(2025, time.December))
	require.NoError(t, err)
	assertDecimal(t, 0, dec.DiscountApplied, "december discount after delete")
	assertDecimal(t, 1100, dec.AmountDue, "december due after delete")
}

func TestUpdateEvent_MovedOutOfFutureMonth_RewritesOldPeriod(t *testing.T) {
	// GIVEN: The only event sits in December, past the June clock
	// WHEN: Moving it back to March
	// THEN: December is rewritten without it and March picks it up

	svc, _ := newTestService(juneNow())
	ctx := context.Background()

	e, err := svc.CreateEvent(ctx, rent.EventInput{
		Type:        rent.EventWorkValue,
		Date:        time.Date(2025, time.December, 5, 0, 0, 0, 0, time.UTC),
		Amount:      dollars(150),
		Description: "yard work",
		Actor:       "tester",
	})
	require.NoError(t, err)

	_, err = svc.UpdateEvent(ctx, e.ID, rent.EventInput{
		Type:        rent.EventWorkValue,
		Date:        time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC),
		Amount:      dollars(150),
		Description: "yard work",
		Actor:       "tester",
	})
	require.NoError(t, err)

	dec, err := svc.GetPeriod(ctx, key(2025, time.December))
	require.NoError(t, err)
	assertDecimal(t, 0, dec.DiscountApplied, "december discount after move")
	assertDecimal(t, 1100, dec.AmountDue, "december due after move")

	march, err := svc.GetPeriod(ctx, key(2025, time.March))
	require.NoError(t, err)
	assertDecimal(t, 150, march.DiscountApplied, "march discount after move")
}

func TestDeleteEvent_AlreadyDeleted_NoOp(t *testing.T) {
	svc, _ := newTestService(juneNow())
	ctx := context.Background()

	e, err := svc.CreateEvent(ctx, rent.EventInput{
		Type: rent.EventManual, Date: juneNow(), Amount: dollars(10), Description: "x",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEvent(ctx, e.ID, "tester"))
	require.NoError(t, svc.DeleteEvent(ctx, e.ID, "tester"))
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestRecordPayment_CreatesPaymentEvent(t *testing.T) {
	svc, mem := newTestService(juneNow())
	ctx := context.Background()

	e, err := svc.RecordPayment(ctx, key(2025, time.June), dollars(550),
		time.Date(2025, time.June, 3, 0, 0, 0, 0, time.UTC), "venmo", "first half", "tester")
	require.NoError(t, err)

	assert.Equal(t, rent.EventPayment, e.Type)
	assert.Equal(t, "venmo", e.PaymentMethod)
	assert.Contains(t, e.Description, "2025-06")

	june, err := mem.GetPeriod(ctx, key(2025, time.June))
	require.NoError(t, err)
	assertDecimal(t, 550, june.AmountPaid, "june paid")
	assert.Equal(t, rent.StatusPartial, june.Status())
}

func TestRecordPayment_NegativeAmount_Rejected(t *testing.T) {
	svc, _ := newTestService(juneNow())

	_, err := svc.RecordPayment(context.Background(), key(2025, time.June),
		dollars(-10), juneNow(), "", "", "")
	var vErr *rent.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestGetPeriod_Unstored_ZeroState(t *testing.T) {
	// GIVEN: No events, no stored periods
	// WHEN: Fetching a valid future period
	// THEN: A zero-state derivation is returned, not an error

	svc, _ := newTestService(juneNow())

	p, err := svc.GetPeriod(context.Background(), key(2026, time.January))
	require.NoError(t, err)
	assertDecimal(t, 1100, p.AmountDue, "due")
	assertDecimal(t, 0, p.HoursWorked, "hours")
	assert.Equal(t, rent.StatusUnpaid, p.Status())
}

func TestGetPeriod_InvalidKey_Rejected(t *testing.T) {
	svc, _ := newTestService(juneNow())

	_, err := svc.GetPeriod(context.Background(), key(2025, 0))
	assert.ErrorIs(t, err, rent.ErrInvalidPeriod)
}

func TestListEvents_ExcludesMalformedRecords(t *testing.T) {
	// GIVEN: A malformed record sitting in the store
	// WHEN: Listing events
	// THEN: Only well-formed events come back

	svc, mem := newTestService(juneNow())
	ctx := context.Background()

	bad := workEvent("bad", 2025, time.June, 2, 100)
	bad.Type = "corrupted"
	require.NoError(t, mem.PutEvent(ctx, bad))
	require.NoError(t, mem.PutEvent(ctx, workEvent("good", 2025, time.June, 3, 100)))

	events, err := svc.ListEvents(ctx, rent.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "good", events[0].ID)
}

func TestGetSummary_AggregatesAcrossPeriods(t *testing.T) {
	// GIVEN: Two months: May with 10h worked, June with a $700 payment
	// WHEN: Summarizing
	// THEN: Outstanding, discounts and payments all total correctly

	svc, _ := newTestService(juneNow())
	ctx := context.Background()

	_, err := svc.CreateEvent(ctx, rent.EventInput{
		Type:        rent.EventWorkValue,
		Date:        time.Date(2025, time.May, 12, 0, 0, 0, 0, time.UTC),
		Amount:      dollars(500),
		Description: "work",
	})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, key(2025, time.June), dollars(700),
		time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), "check", "", "")
	require.NoError(t, err)

	sum, err := svc.GetSummary(ctx)
	require.NoError(t, err)

	// May: due 700 (8h applied), paid 0. June: due 1000 (2h carried), paid 700.
	assert.Equal(t, 2, sum.TotalPeriods)
	assertDecimal(t, 1000, sum.OutstandingBalance, "outstanding")
	assertDecimal(t, 500, sum.TotalDiscountApplied, "total discount")
	assertDecimal(t, 700, sum.TotalAmountPaid, "total paid")
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func TestMutations_ProduceAuditEntries(t *testing.T) {
	svc, _ := newTestService(juneNow())
	ctx := context.Background()

	e, err := svc.CreateEvent(ctx, rent.EventInput{
		Type: rent.EventManual, Date: juneNow(), Amount: dollars(25),
		Description: "credit", Actor: "tester",
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteEvent(ctx, e.ID, "tester"))

	entries, err := svc.QueryAudit(ctx, e.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first
	assert.Equal(t, rent.AuditEventDeleted, entries[0].Action)
	assert.Equal(t, rent.AuditEventCreated, entries[1].Action)
	assert.Equal(t, "tester", entries[0].Actor)
}

func TestRecordPayment_AuditsAsPayment(t *testing.T) {
	svc, _ := newTestService(juneNow())
	ctx := context.Background()

	e, err := svc.RecordPayment(ctx, key(2025, time.June), dollars(100),
		juneNow(), "cash", "", "tester")
	require.NoError(t, err)

	entries, err := svc.QueryAudit(ctx, e.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, rent.AuditPaymentRecorded, entries[0].Action)
}

func TestAuditFailure_DoesNotFailMutation(t *testing.T) {
	// GIVEN: A service with no audit sink at all
	// WHEN: Creating an event
	// THEN: The mutation still succeeds

	mem := store.NewMemory()
	svc := rent.NewService(mem, mem, nil, testConfig(), fixedClock(juneNow()), nil)

	_, err := svc.CreateEvent(context.Background(), rent.EventInput{
		Type: rent.EventManual, Date: juneNow(), Amount: decimal.NewFromInt(5),
		Description: "no audit",
	})
	assert.NoError(t, err)
}
