package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newFrozen returns a Memory whose clock only moves when the test
// advances it.
func newFrozen(t *testing.T) (*Memory, *time.Time) {
	t.Helper()
	now := time.Unix(1700000000, 0)
	m := NewMemory()
	m.now = func() time.Time { return now }
	return m, &now
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	m, _ := newFrozen(t)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))

	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)

	require.NoError(t, m.Delete(ctx, "k"))
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting a missing key is fine.
	require.NoError(t, m.Delete(ctx, "missing"))
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	m, now := newFrozen(t)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))

	*now = now.Add(59 * time.Second)
	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	*now = now.Add(2 * time.Second)
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	m, now := newFrozen(t)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	*now = now.Add(1000 * time.Hour)

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIncrementRollingWindow(t *testing.T) {
	ctx := context.Background()
	m, now := newFrozen(t)

	n, err := m.Increment(ctx, "attempts", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	// Later increments do not extend the window.
	*now = now.Add(30 * time.Second)
	n, err = m.Increment(ctx, "attempts", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	// Window ends a minute after the first increment.
	*now = now.Add(31 * time.Second)
	n, err = m.Increment(ctx, "attempts", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestConcurrentIncrement(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Increment(ctx, "k", time.Minute)
		}()
	}
	wg.Wait()

	n, err := m.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 51, n)
}
