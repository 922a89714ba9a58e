package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/acornbank/acorn/internal/savings/store"
)

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper is the background janitor: it cancels pending transactions
// that outlived the confirmation window, and deletes dead one-time
// codes and expired sessions. Every pass is idempotent, so overlapping
// process instances are harmless.
type Sweeper struct {
	Store  store.Store
	Logger *slog.Logger

	Interval      time.Duration
	ConfirmWindow time.Duration

	stop chan struct{}
	done chan struct{}
}

func (s *Sweeper) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return DefaultSweepInterval
}

func (s *Sweeper) confirmWindow() time.Duration {
	if s.ConfirmWindow > 0 {
		return s.ConfirmWindow
	}
	return DefaultConfirmWindow
}

// Start launches the sweep loop. Call Stop to shut it down.
func (s *Sweeper) Start() {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval())
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(context.Background())
			case <-s.stop:
				return
			}
		}
	}()

	s.Logger.Info("sweeper started", "interval", s.interval())
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.Logger.Info("sweeper stopped")
}

// Sweep runs one cleanup pass. Exposed so tests and operators can
// trigger it without waiting for the ticker.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	cancelled, err := s.Store.Transactions().CancelExpiredTransactions(ctx, now.Add(-s.confirmWindow()))
	if err != nil {
		s.Logger.Error("cancel expired transactions", "error", err)
	} else if cancelled > 0 {
		s.Logger.Info("cancelled expired transactions", "count", cancelled)
	}

	purged, err := s.Store.OneTimeCodes().DeleteDeadOneTimeCodes(ctx, now)
	if err != nil {
		s.Logger.Error("purge one-time codes", "error", err)
	} else if purged > 0 {
		s.Logger.Info("purged dead one-time codes", "count", purged)
	}

	if err := s.Store.Sessions().DeleteExpiredSessions(ctx, now); err != nil {
		s.Logger.Error("delete expired sessions", "error", err)
	}
}
