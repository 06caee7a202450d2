/*
scheduler.go - Automated billing scheduler

PURPOSE:
  Periodically runs the monthly billing for the current period so RENT
  charges exist even if the external cron endpoint is never called.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick bills the current calendar month across all orgs
  - Charge generation is idempotent, so re-running within a month is a
    no-op; the unique index absorbs any race with the cron endpoint

USAGE:
  scheduler := NewBillingScheduler(handler, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunBilling and the cron endpoint
  - accounting/charges.go: Charge generation
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/proyectohouse/rent-engine/accounting"
)

// BillingScheduler handles automated monthly charge generation.
type BillingScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool
	Log           zerolog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBillingScheduler creates a new scheduler.
func NewBillingScheduler(handler *Handler, log zerolog.Logger) *BillingScheduler {
	return &BillingScheduler{
		Handler:       handler,
		CheckInterval: 12 * time.Hour,
		Enabled:       true,
		Log:           log,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (bs *BillingScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		bs.Log.Info().Msg("billing scheduler disabled, not starting")
		return
	}

	bs.ticker = time.NewTicker(bs.CheckInterval)
	bs.wg.Add(1)

	go bs.run()

	bs.Log.Info().Dur("interval", bs.CheckInterval).Msg("billing scheduler started")
}

// Stop stops the scheduler.
func (bs *BillingScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		bs.Log.Info().Msg("billing scheduler stopped")
	}
}

func (bs *BillingScheduler) run() {
	defer bs.wg.Done()

	// Run immediately on start
	bs.billCurrentPeriod()

	for {
		select {
		case <-bs.ticker.C:
			bs.billCurrentPeriod()
		case <-bs.stop:
			return
		}
	}
}

func (bs *BillingScheduler) billCurrentPeriod() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	period := accounting.PeriodFor(accounting.Today())
	generated, err := bs.Handler.RunBilling(ctx, period)
	if err != nil {
		bs.Log.Error().Err(err).Str("period", period.Token()).Msg("scheduled billing run failed")
		return
	}
	if generated > 0 {
		bs.Log.Info().Str("period", period.Token()).Int("charges", generated).Msg("scheduled billing run generated charges")
	}
}

// RunNow triggers an immediate billing run (for testing/admin).
func (bs *BillingScheduler) RunNow() {
	bs.billCurrentPeriod()
}
