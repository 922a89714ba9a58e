package service_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acornbank/acorn/internal/savings/domain"
	"github.com/acornbank/acorn/internal/savings/service"
)

func TestSweepCancelsExpiredPending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := e.register(t, "ada@example.com")
	userID := res.User.ID
	require.NoError(t, e.auth.SetTransactionPIN(ctx, userID, "", "4321"))

	rec, err := e.ledger.Deposit(ctx, userID, dec("2500.00"))
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, rec.Status)

	sweeper := &service.Sweeper{
		Store:  e.store,
		Logger: slog.New(slog.DiscardHandler),
		// Everything pending right now counts as expired.
		ConfirmWindow: time.Nanosecond,
	}
	sweeper.Sweep(ctx)

	t.Run("pending record was cancelled", func(t *testing.T) {
		_, err := e.ledger.Confirm(ctx, userID, rec.ID, "4321")
		require.ErrorIs(t, err, service.ErrTransactionNotPending)
	})

	t.Run("fresh records survive a normal sweep", func(t *testing.T) {
		rec, err := e.ledger.Deposit(ctx, userID, dec("2500.00"))
		require.NoError(t, err)

		(&service.Sweeper{Store: e.store, Logger: slog.New(slog.DiscardHandler)}).Sweep(ctx)

		confirmed, err := e.ledger.Confirm(ctx, userID, rec.ID, "4321")
		require.NoError(t, err)
		require.Equal(t, domain.StatusCompleted, confirmed.Status)
	})
}

func TestSweeperStartStop(t *testing.T) {
	e := newEnv(t)
	sweeper := &service.Sweeper{
		Store:    e.store,
		Logger:   slog.New(slog.DiscardHandler),
		Interval: 10 * time.Millisecond,
	}
	sweeper.Start()
	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()
}
