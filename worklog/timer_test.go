package worklog_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearth/rent-engine/rent"
	rentstore "github.com/hearth/rent-engine/rent/store"
	"github.com/hearth/rent-engine/worklog"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testCreditWorker = "lyndzie"

// fakeClock is advanceable so elapsed-time behavior is deterministic.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	rentStore *rentstore.Memory
	workStore *worklog.Memory
	rent      *rent.Service
	work      *worklog.Service
	timer     *worklog.Timer
	clock     *fakeClock
}

func newHarness() *harness {
	clock := &fakeClock{now: time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC)}
	rmem := rentstore.NewMemory()
	wmem := worklog.NewMemory()

	rentSvc := rent.NewService(rmem, rmem, rmem, rent.DefaultConfig(), clock, nil)
	workSvc := worklog.NewService(wmem, rentSvc, testCreditWorker, decimal.NewFromInt(50), clock, nil)
	timer := worklog.NewTimer(wmem, workSvc, clock, nil)

	return &harness{
		rentStore: rmem,
		workStore: wmem,
		rent:      rentSvc,
		work:      workSvc,
		timer:     timer,
		clock:     clock,
	}
}

// =============================================================================
// STATE MACHINE TESTS
// =============================================================================

func TestTimer_StartStop_CreatesEntry(t *testing.T) {
	// GIVEN: A started timer
	// WHEN: Stopping after 90 minutes
	// THEN: A billable 90-minute entry exists and, since the worker is
	//       the credit worker, a linked rent event appears

	h := newHarness()
	ctx := context.Background()

	session, err := h.timer.Start(ctx, testCreditWorker)
	require.NoError(t, err)
	assert.Equal(t, worklog.SessionActive, session.Status)

	h.clock.Advance(90 * time.Minute)

	entry, err := h.timer.Stop(ctx, testCreditWorker, "mowed the lawn")
	require.NoError(t, err)
	assert.Equal(t, 90, entry.Duration)
	assert.True(t, entry.Billable)
	assert.Equal(t, "mowed the lawn", entry.Description)
	assert.Equal(t, session.StartedAt, entry.StartTime)

	events, err := h.rent.ListEvents(ctx, rent.EventFilter{Type: rent.EventWorkValue})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, entry.ID, events[0].WorkLogID)
	// 1.5 hours at $50
	assert.True(t, decimal.NewFromInt(75).Equal(events[0].Amount),
		"expected 75, got %v", events[0].Amount)
}

func TestTimer_SecondStart_Rejected(t *testing.T) {
	// GIVEN: A running timer
	// WHEN: Starting another for the same worker
	// THEN: ErrSessionActive (paused counts too)

	h := newHarness()
	ctx := context.Background()

	_, err := h.timer.Start(ctx, testCreditWorker)
	require.NoError(t, err)

	_, err = h.timer.Start(ctx, testCreditWorker)
	assert.ErrorIs(t, err, worklog.ErrSessionActive)

	_, err = h.timer.Pause(ctx, testCreditWorker)
	require.NoError(t, err)
	_, err = h.timer.Start(ctx, testCreditWorker)
	assert.ErrorIs(t, err, worklog.ErrSessionActive)
}

func TestTimer_DifferentWorkers_Independent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.timer.Start(ctx, testCreditWorker)
	require.NoError(t, err)
	_, err = h.timer.Start(ctx, "other")
	assert.NoError(t, err)
}

func TestTimer_PauseResume_BanksMinutes(t *testing.T) {
	// GIVEN: 30 minutes active, then an hour paused, then 15 more active
	// WHEN: Stopping
	// THEN: The entry is 45 minutes; paused time never counts

	h := newHarness()
	ctx := context.Background()

	_, err := h.timer.Start(ctx, testCreditWorker)
	require.NoError(t, err)

	h.clock.Advance(30 * time.Minute)
	paused, err := h.timer.Pause(ctx, testCreditWorker)
	require.NoError(t, err)
	assert.Equal(t, worklog.SessionPaused, paused.Status)
	assert.Equal(t, 30, paused.AccumulatedMin)

	h.clock.Advance(time.Hour)
	resumed, err := h.timer.Resume(ctx, testCreditWorker)
	require.NoError(t, err)
	assert.Equal(t, worklog.SessionActive, resumed.Status)
	assert.Equal(t, 30, resumed.AccumulatedMin)

	h.clock.Advance(15 * time.Minute)
	entry, err := h.timer.Stop(ctx, testCreditWorker, "split shift")
	require.NoError(t, err)
	assert.Equal(t, 45, entry.Duration)
}

func TestTimer_InvalidTransitions(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	// Nothing running yet
	_, err := h.timer.Pause(ctx, testCreditWorker)
	assert.ErrorIs(t, err, worklog.ErrNoActiveSession)
	_, err = h.timer.Stop(ctx, testCreditWorker, "x")
	assert.ErrorIs(t, err, worklog.ErrNoActiveSession)

	_, err = h.timer.Start(ctx, testCreditWorker)
	require.NoError(t, err)

	// Resume while active
	_, err = h.timer.Resume(ctx, testCreditWorker)
	assert.ErrorIs(t, err, worklog.ErrNotPaused)

	// Pause twice
	_, err = h.timer.Pause(ctx, testCreditWorker)
	require.NoError(t, err)
	_, err = h.timer.Pause(ctx, testCreditWorker)
	assert.ErrorIs(t, err, worklog.ErrNoActiveSession)
}

func TestTimer_Stop_RequiresDescription(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.timer.Start(ctx, testCreditWorker)
	require.NoError(t, err)

	_, err = h.timer.Stop(ctx, testCreditWorker, "   ")
	var vErr *rent.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestTimer_Stop_EntryFailure_SessionStaysRecoverable(t *testing.T) {
	// GIVEN: A 40-minute session and a store refusing period writes
	// WHEN: Stop fails downstream of the session
	// THEN: The session is still running with its minutes intact, and a
	//       retry stops it with the full elapsed time

	h := newHarness()
	ctx := context.Background()

	_, err := h.timer.Start(ctx, testCreditWorker)
	require.NoError(t, err)
	h.clock.Advance(40 * time.Minute)

	h.rentStore.FailPuts = true
	_, err = h.timer.Stop(ctx, testCreditWorker, "mowed the lawn")
	require.Error(t, err)

	s, ok, err := h.timer.Status(ctx, testCreditWorker)
	require.NoError(t, err)
	require.True(t, ok, "session must survive a failed stop")
	assert.Equal(t, worklog.SessionActive, s.Status)
	assert.Equal(t, 40, s.ElapsedMinutes(h.clock.Now()))

	h.rentStore.FailPuts = false
	h.clock.Advance(5 * time.Minute)
	entry, err := h.timer.Stop(ctx, testCreditWorker, "mowed the lawn")
	require.NoError(t, err)
	assert.Equal(t, 45, entry.Duration)

	_, ok, err = h.timer.Status(ctx, testCreditWorker)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTimer_Start_RequiresWorker(t *testing.T) {
	h := newHarness()

	_, err := h.timer.Start(context.Background(), "  ")
	var vErr *rent.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestTimer_Cancel_NoEntryAndFreesWorker(t *testing.T) {
	// GIVEN: A running timer
	// WHEN: Cancelling
	// THEN: No entry, no rent event, and a new timer can start

	h := newHarness()
	ctx := context.Background()

	_, err := h.timer.Start(ctx, testCreditWorker)
	require.NoError(t, err)
	h.clock.Advance(20 * time.Minute)

	require.NoError(t, h.timer.Cancel(ctx, testCreditWorker))

	entries, err := h.work.ListEntries(ctx, worklog.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, active, err := h.timer.Status(ctx, testCreditWorker)
	require.NoError(t, err)
	assert.False(t, active)

	_, err = h.timer.Start(ctx, testCreditWorker)
	assert.NoError(t, err)
}

func TestTimer_Status_ReportsElapsed(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, active, err := h.timer.Status(ctx, testCreditWorker)
	require.NoError(t, err)
	assert.False(t, active)

	_, err = h.timer.Start(ctx, testCreditWorker)
	require.NoError(t, err)
	h.clock.Advance(25 * time.Minute)

	session, active, err := h.timer.Status(ctx, testCreditWorker)
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, 25, session.ElapsedMinutes(h.clock.Now()))
}
