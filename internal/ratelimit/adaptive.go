package ratelimit

import (
	"time"

	"github.com/shelfscout/bookscraper/internal/scraper"
)

// Adaptation thresholds. The refill rate never drops below minRate and
// never exceeds the configured base rate.
const (
	adaptWindow    = 100
	adaptMinSample = 10
	maxLatency     = 5 * time.Second
	maxErrorRate   = 0.1
	minRate        = 0.1
	smoothingOld   = 0.7
	smoothingNew   = 0.3
)

type responseSample struct {
	latency time.Duration
	failed  bool
}

// AdaptiveBucket extends Bucket with feedback-driven rate adaptation. After
// each fetch RecordResponse folds the observed latency and outcome into a
// smoothed adaptation factor applied multiplicatively to the base rate.
type AdaptiveBucket struct {
	*Bucket
	samples []responseSample
	factor  float64
}

// NewAdaptiveBucket builds an adaptive bucket starting at the base rate.
func NewAdaptiveBucket(cfg Config, clock scraper.Clock) *AdaptiveBucket {
	return &AdaptiveBucket{
		Bucket: NewBucket(cfg, clock),
		factor: 1.0,
	}
}

// RecordResponse appends a sample to the bounded window and re-derives the
// effective refill rate.
func (a *AdaptiveBucket) RecordResponse(latency time.Duration, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.samples = append(a.samples, responseSample{latency: latency, failed: !success})
	if len(a.samples) > adaptWindow {
		a.samples = a.samples[1:]
	}
	a.adapt()
}

// adapt must be called with the mutex held.
func (a *AdaptiveBucket) adapt() {
	if len(a.samples) < adaptMinSample {
		return
	}

	var latencySum time.Duration
	var failures int
	for _, s := range a.samples {
		latencySum += s.latency
		if s.failed {
			failures++
		}
	}
	n := float64(len(a.samples))
	avgLatency := latencySum.Seconds() / n
	if avgLatency < 0.1 {
		avgLatency = 0.1
	}
	avgErrRate := float64(failures) / n

	latencyFactor := min(1.0, maxLatency.Seconds()/avgLatency)
	errorFactor := 1.0 - avgErrRate/maxErrorRate

	a.factor = smoothingOld*a.factor + smoothingNew*(latencyFactor+errorFactor)/2
	a.refillRate = max(minRate, a.cfg.RequestsPerSecond*a.factor)
}

// Snapshot reports the bucket counters plus adaptation state.
func (a *AdaptiveBucket) Snapshot() Snapshot {
	snap := a.Bucket.Snapshot()
	a.mu.Lock()
	snap.AdaptationFactor = a.factor
	snap.CurrentRate = a.refillRate
	a.mu.Unlock()
	return snap
}
