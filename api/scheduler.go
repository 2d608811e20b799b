/*
scheduler.go - Automated recalculation scheduler

PURPOSE:
  Runs a full recalculation on a cron schedule as a safety net. Normal
  mutations already recalculate inline; the scheduled run repairs any
  drift left behind by a partial failure.

CONFIGURATION:
  - Spec: cron expression (default: 3am daily). Empty disables.

USAGE:
  scheduler := NewRecalcScheduler(rentSvc, "0 3 * * *", log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RecalculateAll endpoint (manual trigger)
  - rent/recalc.go: Recalculation engine
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/hearth/rent-engine/rent"
)

// RecalcScheduler runs the nightly safety-net recalculation.
type RecalcScheduler struct {
	Rent *rent.Service
	Spec string
	Log  *logrus.Logger

	cron *cron.Cron
	mu   sync.Mutex
}

// NewRecalcScheduler creates a new scheduler.
func NewRecalcScheduler(rentSvc *rent.Service, spec string, log *logrus.Logger) *RecalcScheduler {
	if log == nil {
		log = logrus.New()
	}
	return &RecalcScheduler{
		Rent: rentSvc,
		Spec: spec,
		Log:  log,
	}
}

// Start begins the scheduler. A bad cron spec is returned, not fatal.
func (rs *RecalcScheduler) Start() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.Spec == "" {
		rs.Log.Info("scheduler disabled, not starting")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(rs.Spec, rs.run); err != nil {
		return err
	}
	c.Start()
	rs.cron = c

	rs.Log.WithField("spec", rs.Spec).Info("recalculation scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (rs *RecalcScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cron != nil {
		<-rs.cron.Stop().Done()
		rs.cron = nil
		rs.Log.Info("recalculation scheduler stopped")
	}
}

func (rs *RecalcScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	updated, err := rs.Rent.RecalculateAll(ctx, "scheduler")
	ObserveRecalculation(err)
	if err != nil {
		rs.Log.WithError(err).Error("scheduled recalculation failed")
		return
	}
	rs.Log.WithField("periods_updated", updated).Info("scheduled recalculation complete")
}
