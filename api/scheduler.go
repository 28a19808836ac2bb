/*
scheduler.go - In-process expiry sweep scheduler

PURPOSE:
  Periodically runs the TOIL expiry sweep so deployments without an
  external cron still forfeit overdue hours. The sweep is idempotent,
  so overlapping with an external POST /api/cron/expire-toil is safe.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Records sweep runs for audit and UI display

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSweepScheduler(handler, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ExpireToil endpoint (manual/cron sweep)
  - toil/sweep.go: The sweep itself
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SweepScheduler runs the expiry sweep on a timer.
type SweepScheduler struct {
	Handler       *Handler
	Log           logrus.FieldLogger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweepScheduler creates a new scheduler.
func NewSweepScheduler(handler *Handler, log logrus.FieldLogger) *SweepScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SweepScheduler{
		Handler:       handler,
		Log:           log,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SweepScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		ss.Log.Info("sweep scheduler disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	ss.Log.WithField("interval", ss.CheckInterval).Info("sweep scheduler started")
}

// Stop stops the scheduler.
func (ss *SweepScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		ss.Log.Info("sweep scheduler stopped")
	}
}

func (ss *SweepScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start
	ss.sweep()

	for {
		select {
		case <-ss.ticker.C:
			ss.sweep()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SweepScheduler) sweep() {
	ctx := context.Background()

	summary, err := ss.Handler.RunSweep(ctx)
	if err != nil {
		ss.Log.WithError(err).Error("scheduled expiry sweep failed")
		return
	}

	if summary.EntriesExpired > 0 || len(summary.Failures) > 0 {
		ss.Log.WithFields(logrus.Fields{
			"entries_expired": summary.EntriesExpired,
			"hours_expired":   summary.HoursExpired,
			"failures":        len(summary.Failures),
		}).Info("scheduled expiry sweep complete")
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (ss *SweepScheduler) RunNow() {
	ss.sweep()
}
