package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cimillas/linevault/internal/clock"
)

type SweepRepository interface {
	// ExpireHeldBefore moves held rows whose expiry is before now to expired
	// and returns how many changed.
	ExpireHeldBefore(ctx context.Context, now time.Time) (int, error)
}

// Reaper periodically expires abandoned holds.
type Reaper struct {
	repo     SweepRepository
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // serialises sweeps
	cancel context.CancelFunc
	done   chan struct{}
}

const defaultReaperInterval = 60 * time.Second

func NewReaper(repo SweepRepository, clk clock.Clock, interval time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = defaultReaperInterval
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &Reaper{
		repo:     repo,
		clock:    clk,
		interval: interval,
		logger:   logger.With(slog.String("component", "reaper")),
	}
}

// Start sweeps once immediately and then on every interval until ctx is
// cancelled or Stop is called. Starting a running reaper is a no-op.
func (r *Reaper) Start(ctx context.Context) {
	if r.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(loopCtx)

	r.logger.Info("reaper started", slog.String("interval", r.interval.String()))
}

// Stop cancels the loop and waits for the running sweep to finish.
func (r *Reaper) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel, r.done = nil, nil
	r.logger.Info("reaper stopped")
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.done)

	r.sweepLogged(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepLogged(ctx)
		}
	}
}

func (r *Reaper) sweepLogged(ctx context.Context) {
	n, err := r.SweepOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("sweep failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		r.logger.Info("expired holds swept", slog.Int("expired", n))
	}
}

// SweepOnce expires holds that are past their deadline at the clock's now.
func (r *Reaper) SweepOnce(ctx context.Context) (int, error) {
	return r.SweepExpired(ctx, r.clock.Now())
}

// SweepExpired expires held rows with an expiry before now. Rows that were
// confirmed or cancelled concurrently are left alone.
func (r *Reaper) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	sweepRunsTotal.Inc()

	n, err := r.repo.ExpireHeldBefore(ctx, now)
	sweepDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		sweepFailuresTotal.Inc()
		return 0, err
	}
	holdsExpiredTotal.WithLabelValues("sweep").Add(float64(n))
	return n, nil
}
