/*
scheduler.go - Automated retention scheduler

PURPOSE:
  Periodically removes ledger dates from years before the current one, the
  same purge an operator can trigger by hand.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Checks once on start, then on every tick
  - A purge that finds nothing to remove saves nothing

USAGE:
  scheduler := NewRetentionScheduler(service, 24*time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - sheet.go: Service.Purge
  - api/handlers.go: Purge endpoint (manual purge)
*/
package sheet

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RetentionScheduler purges old years on an interval.
type RetentionScheduler struct {
	Service       *Service
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRetentionScheduler creates a scheduler. A non-positive interval
// disables it.
func NewRetentionScheduler(service *Service, interval time.Duration) *RetentionScheduler {
	return &RetentionScheduler{
		Service:       service,
		CheckInterval: interval,
		Enabled:       interval > 0,
	}
}

// Start begins the scheduler. It can be started again after Stop.
func (rs *RetentionScheduler) Start() {
	rs.start(context.Background())
}

func (rs *RetentionScheduler) start(parent context.Context) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		slog.Info("retention scheduler disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	rs.cancel = cancel
	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)
	go rs.run(ctx, rs.ticker)

	slog.Info("retention scheduler started", "interval", rs.CheckInterval)
}

// Stop stops the scheduler and waits for a running check to finish. A check
// in progress sees its context canceled.
func (rs *RetentionScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		rs.cancel()
		rs.wg.Wait()
		rs.ticker = nil
		rs.cancel = nil
		slog.Info("retention scheduler stopped")
	}
}

// Run starts the scheduler under ctx and stops it when ctx is done.
func (rs *RetentionScheduler) Run(ctx context.Context) error {
	rs.start(ctx)
	<-ctx.Done()
	rs.Stop()
	return nil
}

func (rs *RetentionScheduler) run(ctx context.Context, ticker *time.Ticker) {
	defer rs.wg.Done()

	rs.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			rs.RunNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunNow purges immediately and returns the number of dates removed.
func (rs *RetentionScheduler) RunNow(ctx context.Context) int {
	year := rs.Service.DefaultPurgeYear()

	removed, status, err := rs.Service.Purge(ctx, year)
	if err != nil {
		slog.ErrorContext(ctx, "retention purge failed", "through", year, "error", err)
		return 0
	}
	if removed > 0 {
		slog.InfoContext(ctx, "retention purge completed",
			"through", year, "dates", removed, "revision", status.Revision, "persisted", status.Persisted)
	}
	return removed
}
