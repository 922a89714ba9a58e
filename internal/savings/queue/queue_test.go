package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never held")
}

func TestEnqueueProcessesJob(t *testing.T) {
	d := NewDispatcher(testLogger())
	defer d.Stop()

	var mu sync.Mutex
	var got []any
	d.Register("email", func(ctx context.Context, payload any) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, payload)
		return nil
	})

	id := d.Enqueue("email", "hello")
	require.NotEmpty(t, id)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
	require.Equal(t, "hello", got[0])
	require.Zero(t, d.Pending())
}

func TestJobWithNoHandlerIsDropped(t *testing.T) {
	d := NewDispatcher(testLogger())
	defer d.Stop()

	d.Enqueue("unknown", nil)
	waitFor(t, func() bool { return d.Pending() == 0 })
}

func TestRetriesThenDropsAfterMaxAttempts(t *testing.T) {
	d := NewDispatcher(testLogger())
	defer d.Stop()

	// Collapse the backoff so the test does not wait real seconds.
	base := time.Now()
	var mu sync.Mutex
	offset := time.Duration(0)
	d.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return base.Add(offset)
	}

	var calls int
	var callsMu sync.Mutex
	d.Register("flaky", func(ctx context.Context, payload any) error {
		callsMu.Lock()
		calls++
		callsMu.Unlock()
		return errors.New("boom")
	})

	d.Enqueue("flaky", nil)

	// Each retry schedules its backoff against the fake clock, so the
	// clock has to keep moving after the handler returns. Drive it
	// forward from here and re-kick the drain until the job has burned
	// through its attempts.
	deadline := time.Now().Add(5 * time.Second)
	for d.Pending() > 0 && time.Now().Before(deadline) {
		mu.Lock()
		offset += time.Minute
		mu.Unlock()

		d.mu.Lock()
		d.kickLocked()
		d.mu.Unlock()

		time.Sleep(5 * time.Millisecond)
	}
	require.Zero(t, d.Pending())

	callsMu.Lock()
	defer callsMu.Unlock()
	require.Equal(t, DefaultMaxAttempts, calls)
}

func TestDelayedJobRunsAfterDelay(t *testing.T) {
	d := NewDispatcher(testLogger())
	defer d.Stop()

	var mu sync.Mutex
	ran := false
	d.Register("later", func(ctx context.Context, payload any) error {
		mu.Lock()
		defer mu.Unlock()
		ran = true
		return nil
	})

	d.EnqueueAfter("later", nil, 30*time.Millisecond)

	mu.Lock()
	require.False(t, ran)
	mu.Unlock()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ran
	})
}

func TestStopPreventsFurtherEnqueues(t *testing.T) {
	d := NewDispatcher(testLogger())
	d.Register("email", func(ctx context.Context, payload any) error { return nil })

	d.Stop()
	require.Empty(t, d.Enqueue("email", nil))
}
