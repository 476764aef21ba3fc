package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdaptiveBucket_NoAdaptationBelowMinimumSamples(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	a := NewAdaptiveBucket(Config{RequestsPerSecond: 5, Burst: 5}, clock)

	for i := 0; i < adaptMinSample-1; i++ {
		a.RecordResponse(10*time.Second, false)
	}
	snap := a.Snapshot()
	require.Equal(t, 5.0, snap.CurrentRate, "rate must not move before the sample floor")
	require.Equal(t, 1.0, snap.AdaptationFactor)
}

func TestAdaptiveBucket_ThrottlesOnErrorsAndLatency(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	a := NewAdaptiveBucket(Config{RequestsPerSecond: 5, Burst: 5}, clock)

	for i := 0; i < 50; i++ {
		a.RecordResponse(20*time.Second, false)
	}
	snap := a.Snapshot()
	require.Less(t, snap.CurrentRate, 5.0)
	require.GreaterOrEqual(t, snap.CurrentRate, minRate, "rate must never drop below the floor")
}

func TestAdaptiveBucket_FavorableConditionsKeepBaseRate(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	a := NewAdaptiveBucket(Config{RequestsPerSecond: 5, Burst: 5}, clock)

	for i := 0; i < 100; i++ {
		a.RecordResponse(50*time.Millisecond, true)
	}
	snap := a.Snapshot()
	require.InDelta(t, 1.0, snap.AdaptationFactor, 0.05)
	require.LessOrEqual(t, snap.CurrentRate, 5.0, "rate never exceeds the base rate")
	require.Greater(t, snap.CurrentRate, 4.5)
}

func TestAdaptiveBucket_WindowIsBounded(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	a := NewAdaptiveBucket(Config{RequestsPerSecond: 5, Burst: 5}, clock)

	// A long streak of failures followed by a longer streak of successes
	// should recover because old samples age out of the window.
	for i := 0; i < 200; i++ {
		a.RecordResponse(100*time.Millisecond, false)
	}
	low := a.Snapshot().CurrentRate

	for i := 0; i < 300; i++ {
		a.RecordResponse(100*time.Millisecond, true)
	}
	recovered := a.Snapshot().CurrentRate

	require.Greater(t, recovered, low)
	require.Len(t, a.samples, adaptWindow)
}
