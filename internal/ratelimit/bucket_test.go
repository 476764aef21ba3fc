package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock lets tests drive refill without real sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestBucket_ConsumesBurstThenBlocks(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewBucket(Config{RequestsPerSecond: 2, Burst: 3}, clock)

	for i := 0; i < 3; i++ {
		require.Zero(t, b.Acquire(), "burst token %d should be free", i)
	}

	wait := b.Acquire()
	require.Positive(t, wait)
	// With 0 tokens and 2 rps the wait is (1-0)/2 = 500ms, no jitter configured.
	require.Equal(t, 500*time.Millisecond, wait)

	snap := b.Snapshot()
	require.EqualValues(t, 3, snap.TotalRequests)
	require.EqualValues(t, 1, snap.BlockedRequests)
}

func TestBucket_RefillScalesLinearlyAndCaps(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewBucket(Config{RequestsPerSecond: 4, Burst: 2}, clock)

	// Drain the burst.
	require.Zero(t, b.Acquire())
	require.Zero(t, b.Acquire())
	require.Positive(t, b.Acquire())

	// 250ms at 4 rps refills exactly one token.
	clock.Advance(250 * time.Millisecond)
	require.Zero(t, b.Acquire())
	require.Positive(t, b.Acquire())

	// A long idle period refills to the cap, never past it.
	clock.Advance(time.Hour)
	require.Zero(t, b.Acquire())
	require.Zero(t, b.Acquire())
	require.Positive(t, b.Acquire())
}

func TestBucket_TokensNeverNegativeOrOverCap(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewBucket(Config{RequestsPerSecond: 1, Burst: 2}, clock)

	for i := 0; i < 50; i++ {
		b.Acquire()
		if i%7 == 0 {
			clock.Advance(3 * time.Second)
		}
		snap := b.Snapshot()
		require.GreaterOrEqual(t, snap.TokensAvailable, 0.0)
		require.LessOrEqual(t, snap.TokensAvailable, 2.0)
	}
}

func TestBucket_JitterStaysWithinBoundsAndNonNegative(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewBucket(Config{RequestsPerSecond: 1, Burst: 1, Jitter: 0.5}, clock)
	require.Zero(t, b.Acquire())

	for i := 0; i < 100; i++ {
		wait := b.Acquire()
		require.GreaterOrEqual(t, wait, time.Duration(0))
		// Base wait is 1s here, so jitter keeps it within base*(1±jitter).
		require.LessOrEqual(t, wait, time.Duration(1.5*float64(time.Second))+time.Millisecond)
	}
}

func TestBucket_ConcurrentAcquireIsSerialized(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewBucket(Config{RequestsPerSecond: 1, Burst: 10}, clock)

	var wg sync.WaitGroup
	admitted := make(chan struct{}, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Acquire() == 0 {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	var n int
	for range admitted {
		n++
	}
	require.Equal(t, 10, n, "exactly the burst size should be admitted for free")
}
